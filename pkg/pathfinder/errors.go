package pathfinder

import (
	"errors"
	"fmt"
)

// Code classifies a pathfinder error.
type Code string

const (
	// CodeInvalidRoot means the query root does not exist or is not a directory
	CodeInvalidRoot Code = "INVALID_ROOT"

	// CodeInvalidStartPath means the repository search start path does not
	// exist or is not a directory
	CodeInvalidStartPath Code = "INVALID_START_PATH"

	// CodeInvalidBoundary means the repository search boundary is unusable
	CodeInvalidBoundary Code = "INVALID_BOUNDARY"

	// CodeRepositoryNotFound means no marker was found within bounds
	CodeRepositoryNotFound Code = "REPOSITORY_NOT_FOUND"

	// CodeSecurityViolation means a start path escaped the constraint root
	CodeSecurityViolation Code = "SECURITY_VIOLATION"

	// CodeConstraintViolation means a resolved path escaped the constraint root
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"

	// CodeTraversalLoop means symlink resolution revisited a real path
	CodeTraversalLoop Code = "TRAVERSAL_LOOP"

	// CodeValidationFailed means a configuration or query value is invalid
	CodeValidationFailed Code = "VALIDATION_FAILED"
)

// Severity distinguishes fatal aborts from recoverable, telemetry-reported
// warnings.
type Severity string

const (
	// SeverityCritical aborts the whole operation
	SeverityCritical Severity = "critical"

	// SeverityError fails the operation but indicates no security concern
	SeverityError Severity = "error"

	// SeverityWarning is recovered locally and surfaced via callbacks only
	SeverityWarning Severity = "warning"
)

// Error is the error value crossing the pathfinder boundary. Context always
// carries domain and the active correlation id.
type Error struct {
	Code     Code
	Message  string
	Severity Severity
	Context  map[string]interface{}
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match on the code, so callers can compare against
// &Error{Code: CodeConstraintViolation}.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// IsCode reports whether err (or anything it wraps) is a pathfinder Error
// with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
