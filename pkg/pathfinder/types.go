package pathfinder

import (
	"os"
	"time"

	"github.com/fulmenhq/pathfinder/pkg/checksum"
)

// EnforcementLevel controls whether a boundary violation is fatal,
// logged-and-skipped, or ignored.
type EnforcementLevel string

const (
	// EnforcementStrict aborts the whole operation on a violation
	EnforcementStrict EnforcementLevel = "STRICT"

	// EnforcementWarn drops the entry, reports it, and continues
	EnforcementWarn EnforcementLevel = "WARN"

	// EnforcementPermissive allows everything
	EnforcementPermissive EnforcementLevel = "PERMISSIVE"
)

// Constraint is the directory boundary resolved paths must not escape.
type Constraint struct {
	// Root is the constraint root directory
	Root string

	// Type is a free-form label for the constraint (e.g. "workspace")
	Type string

	// EnforcementLevel governs every boundary check
	EnforcementLevel EnforcementLevel
}

// Config holds the immutable construction-time configuration of a Finder.
// It is shared read-only across every Find invocation.
type Config struct {
	// MaxWorkers caps concurrently in-flight checksum operations for one
	// Find or batch call. Defaults to runtime.NumCPU() when zero.
	MaxWorkers int

	// CacheEnabled turns on the checksum memo keyed by path, size, and
	// modification time
	CacheEnabled bool

	// CacheTTL bounds the age of memoized checksums
	CacheTTL time.Duration

	// Constraint, when set, bounds every resolved path
	Constraint *Constraint

	// LoaderType is an opaque label stamped onto every PathResult
	LoaderType string

	// CalculateChecksums attaches checksums to discovered regular files
	CalculateChecksums bool

	// ChecksumAlgorithm selects the hash. Defaults to XXH3-128.
	ChecksumAlgorithm checksum.Algorithm

	// ChecksumEncoding selects the digest rendering. Defaults to hex.
	ChecksumEncoding checksum.Encoding

	// HonorIgnoreFiles applies per-directory ignore files during traversal
	HonorIgnoreFiles bool

	// IgnoreFileName is the per-directory ignore file. Defaults to ".gitignore".
	IgnoreFileName string

	// RateLimit caps checksum operations per second (0 for unlimited)
	RateLimit int

	// CorrelationID is propagated into every log line and error raised
	// during this instance's lifetime. A uuid is generated when empty.
	CorrelationID string
}

// Query describes one discovery request.
type Query struct {
	// Root must exist and be a directory
	Root string

	// Include patterns (doublestar globs). Empty means include everything.
	Include []string

	// Exclude patterns (doublestar globs)
	Exclude []string

	// MaxDepth bounds directory depth from Root; depth 0 is Root's direct
	// children. Negative means unlimited.
	MaxDepth int

	// FollowSymlinks dereferences symlinks and traverses into directory
	// targets. Off by default: symlinks are then reported, never followed.
	FollowSymlinks bool

	// IncludeHidden toggles dotfile and dot-directory visibility
	IncludeHidden bool

	// HonorIgnoreFiles overrides the Finder config for this call when set
	HonorIgnoreFiles *bool
}

// NewQuery returns a Query for root with unlimited depth.
func NewQuery(root string) Query {
	return Query{Root: root, MaxDepth: -1}
}

// Metadata carries per-entry filesystem facts and the optional checksum.
type Metadata struct {
	Size              int64              `json:"size" yaml:"size"`
	Modified          time.Time          `json:"modified" yaml:"modified"`
	Checksum          string             `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	ChecksumAlgorithm checksum.Algorithm `json:"checksumAlgorithm,omitempty" yaml:"checksumAlgorithm,omitempty"`
	ChecksumError     string             `json:"checksumError,omitempty" yaml:"checksumError,omitempty"`
	Mode              os.FileMode        `json:"mode,omitempty" yaml:"mode,omitempty"`
	IsSymlink         bool               `json:"isSymlink,omitempty" yaml:"isSymlink,omitempty"`
	SymlinkTarget     string             `json:"symlinkTarget,omitempty" yaml:"symlinkTarget,omitempty"`
}

// PathResult is one discovered entry. It is created once during a Find call
// and never mutated after being handed to a callback or placed in the
// result slice.
type PathResult struct {
	// RelativePath is POSIX-normalized, relative to the query root
	RelativePath string `json:"relativePath" yaml:"relativePath"`

	// SourcePath is the absolute logical path of the entry
	SourcePath string `json:"sourcePath" yaml:"sourcePath"`

	// LoaderType echoes Config.LoaderType
	LoaderType string `json:"loaderType,omitempty" yaml:"loaderType,omitempty"`

	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// Progress is handed to the progress callback once per surviving entry.
type Progress struct {
	// Path is the entry's relative path
	Path string

	// Discovered is the running count of surviving entries
	Discovered int64

	// Depth is the entry's depth from the query root
	Depth int
}

// Callbacks carries the three independently-optional capability slots fired
// during a Find. Nil slots are simply skipped.
type Callbacks struct {
	// Result receives each surviving entry in traversal order
	Result func(PathResult)

	// Progress fires once per surviving entry
	Progress func(Progress)

	// Error receives every recovered (warning-level) issue; the walk
	// continues after each
	Error func(error)
}

func (c *Callbacks) emitResult(r PathResult) {
	if c != nil && c.Result != nil {
		c.Result(r)
	}
}

func (c *Callbacks) emitProgress(p Progress) {
	if c != nil && c.Progress != nil {
		c.Progress(p)
	}
}

func (c *Callbacks) emitError(err error) {
	if c != nil && c.Error != nil {
		c.Error(err)
	}
}
