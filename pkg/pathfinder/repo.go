package pathfinder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/pathfinder/pkg/logger"
)

// DefaultRepositoryMaxDepth caps upward steps during repository root
// discovery.
const DefaultRepositoryMaxDepth = 32

// RepositoryRootOptions tunes FindRepositoryRoot. Build custom options from
// DefaultRepositoryRootOptions; the zero value disables StopAtFirst.
type RepositoryRootOptions struct {
	// Boundary is the inclusive upper bound of the search. Defaults to the
	// caller's home directory.
	Boundary string

	// MaxDepth caps upward steps. Defaults to DefaultRepositoryMaxDepth
	// when non-positive.
	MaxDepth int

	// StopAtFirst returns the nearest matching ancestor (including the
	// start path). When false the search keeps walking and returns the
	// topmost matching ancestor within bounds.
	StopAtFirst bool

	// Constraint overrides the Finder's constraint for this search
	Constraint *Constraint

	// FollowSymlinks resolves each candidate directory's real path before
	// the marker check, with loop detection
	FollowSymlinks bool
}

// DefaultRepositoryRootOptions returns the documented defaults.
func DefaultRepositoryRootOptions() RepositoryRootOptions {
	home, _ := os.UserHomeDir()
	return RepositoryRootOptions{
		Boundary:    home,
		MaxDepth:    DefaultRepositoryMaxDepth,
		StopAtFirst: true,
	}
}

// FindRepositoryRoot walks upward from startPath until a directory contains
// one of the marker names (first marker in list order wins within a
// directory). Stop conditions: the boundary (checked inclusively), MaxDepth
// upward steps, the filesystem root, or the constraint root.
func (f *Finder) FindRepositoryRoot(ctx context.Context, startPath string, markers []string, opts *RepositoryRootOptions) (string, error) {
	options := DefaultRepositoryRootOptions()
	explicitBoundary := false
	if opts != nil {
		options = *opts
		explicitBoundary = options.Boundary != ""
		if !explicitBoundary {
			options.Boundary = DefaultRepositoryRootOptions().Boundary
		}
	}
	if options.MaxDepth <= 0 {
		options.MaxDepth = DefaultRepositoryMaxDepth
	}

	f.metrics.Counter("pathfinder.repository_lookups").Inc()

	if len(markers) == 0 {
		return "", f.decorate(&Error{
			Code:     CodeValidationFailed,
			Message:  "at least one marker is required",
			Severity: SeverityCritical,
		})
	}

	start := filepath.Clean(startPath)
	info, err := f.fs.Stat(start)
	if err != nil {
		return "", f.decorate(&Error{
			Code:     CodeInvalidStartPath,
			Message:  fmt.Sprintf("start path %q does not exist", startPath),
			Severity: SeverityCritical,
			Context:  map[string]interface{}{"start_path": startPath},
			Err:      err,
		})
	}
	if !info.IsDir() {
		return "", f.decorate(&Error{
			Code:     CodeInvalidStartPath,
			Message:  fmt.Sprintf("start path %q is not a directory", startPath),
			Severity: SeverityCritical,
			Context:  map[string]interface{}{"start_path": startPath},
		})
	}

	// Only a caller-supplied boundary is validated; the defaulted home
	// directory boundary simply never matches when it does not exist on
	// the filesystem in use.
	if explicitBoundary {
		binfo, err := f.fs.Stat(options.Boundary)
		if err != nil || !binfo.IsDir() {
			return "", f.decorate(&Error{
				Code:     CodeInvalidBoundary,
				Message:  fmt.Sprintf("boundary %q is not a directory", options.Boundary),
				Severity: SeverityCritical,
				Context:  map[string]interface{}{"boundary": options.Boundary},
				Err:      err,
			})
		}
	}

	constraint := options.Constraint
	if constraint == nil {
		constraint = f.config.Constraint
	}

	if violation := checkConstraint(start, constraint, CodeSecurityViolation); violation != nil {
		f.decorate(violation)
		if violation.Severity == SeverityCritical {
			f.log.WithFields(logger.Fields{
				"code":    string(violation.Code),
				"context": violation.Context,
			}).Error(violation.Message)
			return "", violation
		}
		f.metrics.Counter("pathfinder.security_warnings").Inc()
		f.log.WithFields(logger.Fields{
			"code":    string(violation.Code),
			"context": violation.Context,
		}).Warn(violation.Message)
	}

	visited := make(map[string]struct{})
	current := start
	steps := 0
	best := ""

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate := current
		if options.FollowSymlinks {
			real, err := resolveRealPath(f.fs, current)
			if err == nil {
				if _, seen := visited[real]; seen {
					err = errSymlinkLoop
				} else {
					visited[real] = struct{}{}
					candidate = real
				}
			}
			if err != nil {
				return "", f.decorate(&Error{
					Code:     CodeTraversalLoop,
					Message:  fmt.Sprintf("symlink loop while resolving %q", current),
					Severity: SeverityCritical,
					Context:  map[string]interface{}{"path": current},
					Err:      err,
				})
			}
		}

		if marker := f.firstMarker(candidate, markers); marker != "" {
			f.log.WithFields(logger.Fields{
				"path":   candidate,
				"marker": marker,
			}).Debug("Repository marker found")

			if options.StopAtFirst {
				return candidate, nil
			}
			// Keep walking: the match furthest from the start wins.
			best = candidate
		}

		// Boundary is inclusive: its own marker check already happened.
		if options.Boundary != "" && normalizePath(candidate) == normalizePath(options.Boundary) {
			break
		}

		steps++
		if steps > options.MaxDepth {
			break
		}

		parent := filepath.Dir(candidate)
		if parent == candidate {
			break
		}
		if constraint != nil && constraint.level() != EnforcementPermissive && !constraint.Contains(parent) {
			break
		}
		current = parent
	}

	if best != "" {
		return best, nil
	}

	return "", f.decorate(&Error{
		Code:     CodeRepositoryNotFound,
		Message:  fmt.Sprintf("no repository marker found above %q", startPath),
		Severity: SeverityError,
		Context: map[string]interface{}{
			"start_path": startPath,
			"markers":    markers,
			"boundary":   options.Boundary,
			"max_depth":  options.MaxDepth,
		},
	})
}

// firstMarker returns the first marker from the ordered list present in
// dir, or "" when none is.
func (f *Finder) firstMarker(dir string, markers []string) string {
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		if _, err := f.fs.Stat(filepath.Join(dir, marker)); err == nil {
			return marker
		}
	}
	return ""
}
