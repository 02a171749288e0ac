package pathfinder

import (
	"fmt"
	"path/filepath"
	"strings"
)

// normalizePath cleans path and converts it to POSIX separators so prefix
// containment checks behave identically across platforms.
func normalizePath(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// Contains reports whether path equals the constraint root or is a
// normalized descendant of it.
func (c *Constraint) Contains(path string) bool {
	root := normalizePath(c.Root)
	p := normalizePath(path)
	return p == root || strings.HasPrefix(p, root+"/")
}

// level returns the effective enforcement level. An unset level is treated
// as STRICT: a constraint that was configured but not classified must not
// silently become advisory.
func (c *Constraint) level() EnforcementLevel {
	if c.EnforcementLevel == "" {
		return EnforcementStrict
	}
	return c.EnforcementLevel
}

// checkConstraint is a pure function of (resolvedPath, constraint). It
// returns nil when the path is allowed. STRICT violations come back with
// critical severity (hard abort); WARN violations with warning severity
// (drop, report, continue). code selects the taxonomy entry so the
// traversal engine and the repository locator can reuse the same check.
func checkConstraint(resolved string, c *Constraint, code Code) *Error {
	if c == nil || c.level() == EnforcementPermissive {
		return nil
	}
	if c.Contains(resolved) {
		return nil
	}

	severity := SeverityWarning
	if c.level() == EnforcementStrict {
		severity = SeverityCritical
	}

	return &Error{
		Code:     code,
		Message:  fmt.Sprintf("path %q escapes constraint root %q", resolved, c.Root),
		Severity: severity,
		Context: map[string]interface{}{
			"path":            normalizePath(resolved),
			"constraint_root": normalizePath(c.Root),
			"constraint_type": c.Type,
			"enforcement":     string(c.level()),
		},
	}
}
