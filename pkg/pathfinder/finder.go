package pathfinder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/fulmenhq/pathfinder/pkg/checksum"
	"github.com/fulmenhq/pathfinder/pkg/logger"
	"github.com/fulmenhq/pathfinder/pkg/metrics"
	"github.com/fulmenhq/pathfinder/pkg/worker"
)

// Finder is the discovery engine. It is safe for concurrent use: all
// per-call state lives on the stack of each Find invocation.
type Finder struct {
	config  Config
	fs      SymlinkFs
	log     logger.Logger
	metrics metrics.Metrics
	cache   *checksumCache
}

// Option customizes a Finder beyond its Config.
type Option func(*Finder)

// WithMetrics wires a telemetry sink. The default records nothing.
func WithMetrics(m metrics.Metrics) Option {
	return func(f *Finder) {
		if m != nil {
			f.metrics = m
		}
	}
}

// NewFinder validates config, fills defaults, and returns a Finder reading
// through fs. A nil log discards output.
func NewFinder(config Config, fs afero.Fs, log logger.Logger, opts ...Option) (*Finder, error) {
	if config.MaxWorkers < 0 {
		return nil, &Error{
			Code:     CodeValidationFailed,
			Message:  fmt.Sprintf("maxWorkers must be at least 1, got %d", config.MaxWorkers),
			Severity: SeverityCritical,
		}
	}
	if config.MaxWorkers == 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	if config.RateLimit < 0 {
		return nil, &Error{
			Code:     CodeValidationFailed,
			Message:  "rateLimit must be non-negative",
			Severity: SeverityCritical,
		}
	}

	if config.ChecksumAlgorithm == "" {
		config.ChecksumAlgorithm = checksum.XXH3128
	}
	switch config.ChecksumAlgorithm {
	case checksum.XXH3128, checksum.SHA256:
	default:
		return nil, &Error{
			Code:     CodeValidationFailed,
			Message:  fmt.Sprintf("unsupported checksum algorithm: %s", config.ChecksumAlgorithm),
			Severity: SeverityCritical,
		}
	}

	if config.ChecksumEncoding == "" {
		config.ChecksumEncoding = checksum.EncodingHex
	}
	switch config.ChecksumEncoding {
	case checksum.EncodingHex, checksum.EncodingBase64:
	default:
		return nil, &Error{
			Code:     CodeValidationFailed,
			Message:  fmt.Sprintf("unsupported checksum encoding: %s", config.ChecksumEncoding),
			Severity: SeverityCritical,
		}
	}

	if config.IgnoreFileName == "" {
		config.IgnoreFileName = ".gitignore"
	}
	if config.CorrelationID == "" {
		config.CorrelationID = uuid.NewString()
	}

	if c := config.Constraint; c != nil {
		if c.Root == "" {
			return nil, &Error{
				Code:     CodeValidationFailed,
				Message:  "constraint root must not be empty",
				Severity: SeverityCritical,
			}
		}
		switch c.EnforcementLevel {
		case "", EnforcementStrict, EnforcementWarn, EnforcementPermissive:
		default:
			return nil, &Error{
				Code:     CodeValidationFailed,
				Message:  fmt.Sprintf("unknown enforcement level: %s", c.EnforcementLevel),
				Severity: SeverityCritical,
			}
		}
	}

	if log == nil {
		log = logger.Nop()
	}

	f := &Finder{
		config: config,
		fs:     asSymlinkFs(fs),
		log: log.WithFields(logger.Fields{
			"domain":         "pathfinder",
			"correlation_id": config.CorrelationID,
		}),
		metrics: metrics.Nop(),
	}
	if config.CacheEnabled {
		f.cache = newChecksumCache(config.CacheTTL)
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// CorrelationID returns the id stamped onto every log line and error this
// Finder produces.
func (f *Finder) CorrelationID() string {
	return f.config.CorrelationID
}

// decorate stamps domain and correlation id onto an error's context.
func (f *Finder) decorate(e *Error) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context["domain"] = "pathfinder"
	e.Context["correlation_id"] = f.config.CorrelationID
	return e
}

// pendingDir is one directory awaiting traversal. realPath is where reads
// happen; logicalPath is where the directory sits relative to the query
// root. They differ only below a followed directory symlink.
type pendingDir struct {
	realPath    string
	logicalPath string
	depth       int
	ignores     []*ignoreRules
}

// pendingSum is a result slot awaiting its checksum.
type pendingSum struct {
	index int
	path  string
	info  os.FileInfo
}

// walkState accumulates the per-call traversal state.
type walkState struct {
	results     []PathResult
	depths      []int
	pendingSums []pendingSum
	visitedDirs map[string]struct{}
	discovered  int64
}

// Find walks query.Root depth-first in a deterministic order, applies
// include/exclude/ignore filtering with symlink and constraint safety, and
// returns the surviving entries in traversal order.
//
// Without checksums the result and progress callbacks fire inline as the
// walk discovers entries. With checksums enabled, results are collected
// first, hashed by a bounded worker pool, and the callbacks fire afterwards
// in traversal order, so no result mutates after a callback sees it.
func (f *Finder) Find(ctx context.Context, query Query, callbacks *Callbacks) ([]PathResult, error) {
	start := time.Now()
	defer func() {
		f.metrics.Histogram("pathfinder.find_duration_seconds").Observe(time.Since(start).Seconds())
	}()

	root := filepath.Clean(query.Root)
	info, err := f.fs.Stat(root)
	if err != nil {
		return nil, f.decorate(&Error{
			Code:     CodeInvalidRoot,
			Message:  fmt.Sprintf("root %q does not exist", query.Root),
			Severity: SeverityCritical,
			Context:  map[string]interface{}{"root": query.Root},
			Err:      err,
		})
	}
	if !info.IsDir() {
		return nil, f.decorate(&Error{
			Code:     CodeInvalidRoot,
			Message:  fmt.Sprintf("root %q is not a directory", query.Root),
			Severity: SeverityCritical,
			Context:  map[string]interface{}{"root": query.Root},
		})
	}

	honorIgnores := f.config.HonorIgnoreFiles
	if query.HonorIgnoreFiles != nil {
		honorIgnores = *query.HonorIgnoreFiles
	}

	f.log.WithFields(logger.Fields{
		"root":           root,
		"include":        query.Include,
		"exclude":        query.Exclude,
		"maxDepth":       query.MaxDepth,
		"followSymlinks": query.FollowSymlinks,
		"honorIgnores":   honorIgnores,
	}).Debug("Starting discovery")

	state := &walkState{visitedDirs: make(map[string]struct{})}
	if query.FollowSymlinks {
		if real, err := resolveRealPath(f.fs, root); err == nil {
			state.visitedDirs[real] = struct{}{}
		}
	}

	stack := []pendingDir{{realPath: root, logicalPath: root, depth: 0}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		subdirs, err := f.walkDir(ctx, dir, root, query, honorIgnores, state, callbacks)
		if err != nil {
			return nil, err
		}

		// Reverse push keeps subdirectories in name order on a LIFO stack.
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	if f.config.CalculateChecksums {
		if err := f.attachChecksums(ctx, state); err != nil {
			return nil, err
		}
		for i, result := range state.results {
			callbacks.emitProgress(Progress{
				Path:       result.RelativePath,
				Discovered: int64(i + 1),
				Depth:      state.depths[i],
			})
			callbacks.emitResult(result)
		}
	}

	f.log.WithFields(logger.Fields{
		"root":       root,
		"discovered": state.discovered,
		"duration":   time.Since(start).String(),
	}).Info("Discovery completed")

	return state.results, nil
}

// walkDir processes a single directory: filtering, symlink and constraint
// checks, result emission. It returns the subdirectories to descend into,
// in name order.
func (f *Finder) walkDir(ctx context.Context, dir pendingDir, root string, query Query, honorIgnores bool, state *walkState, callbacks *Callbacks) ([]pendingDir, error) {
	ignores := dir.ignores
	if honorIgnores {
		if rules := loadIgnoreRules(f.fs, dir.realPath, f.config.IgnoreFileName); rules != nil {
			// Scope the rules to the logical position so relative
			// matching works below followed directory symlinks.
			rules.dir = dir.logicalPath
			ignores = append(ignores[:len(ignores):len(ignores)], rules)
		}
	}

	entries, err := afero.ReadDir(f.fs, dir.realPath)
	if err != nil {
		f.reportRecovered(&Error{
			Code:     CodeValidationFailed,
			Message:  fmt.Sprintf("failed to read directory %q", dir.logicalPath),
			Severity: SeverityWarning,
			Context:  map[string]interface{}{"path": dir.logicalPath},
			Err:      err,
		}, callbacks)
		return nil, nil
	}

	var subdirs []pendingDir
	for _, entry := range entries {
		name := entry.Name()
		logical := filepath.Join(dir.logicalPath, name)
		real := filepath.Join(dir.realPath, name)
		depth := dir.depth

		if !query.IncludeHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if query.MaxDepth >= 0 && depth > query.MaxDepth {
			continue
		}

		rel := relativeTo(root, logical)
		link := isSymlink(f.fs, real, entry)
		isDir := entry.IsDir()

		if honorIgnores && isIgnored(logical, isDir, ignores) {
			continue
		}
		if matchesAny(query.Exclude, rel, name) {
			continue
		}

		switch {
		case isDir && !link:
			if violation := checkConstraint(real, f.config.Constraint, CodeConstraintViolation); violation != nil {
				if err := f.handleViolation(violation, callbacks); err != nil {
					return nil, err
				}
				continue
			}
			if query.FollowSymlinks {
				// A directory already reached through a followed symlink is
				// not traversed a second time.
				if _, seen := state.visitedDirs[real]; seen {
					continue
				}
				state.visitedDirs[real] = struct{}{}
			}
			if query.MaxDepth < 0 || depth+1 <= query.MaxDepth {
				subdirs = append(subdirs, pendingDir{
					realPath:    real,
					logicalPath: logical,
					depth:       depth + 1,
					ignores:     ignores,
				})
			}

		case link:
			sub, err := f.walkSymlink(entry, real, logical, rel, depth, query, ignores, state, callbacks)
			if err != nil {
				return nil, err
			}
			if sub != nil {
				subdirs = append(subdirs, *sub)
			}

		default:
			if !matchesInclude(query.Include, rel, name) {
				continue
			}
			if violation := checkConstraint(real, f.config.Constraint, CodeConstraintViolation); violation != nil {
				if err := f.handleViolation(violation, callbacks); err != nil {
					return nil, err
				}
				continue
			}
			f.emit(state, callbacks, PathResult{
				RelativePath: rel,
				SourcePath:   absPath(logical),
				LoaderType:   f.config.LoaderType,
				Metadata: Metadata{
					Size:     entry.Size(),
					Modified: entry.ModTime(),
					Mode:     entry.Mode(),
				},
			}, depth, real, entry)
		}
	}

	return subdirs, nil
}

// walkSymlink applies the symlink safety guard to one link entry. It
// returns a pendingDir when the link resolves to a directory that should be
// descended into.
func (f *Finder) walkSymlink(entry os.FileInfo, real, logical, rel string, depth int, query Query, ignores []*ignoreRules, state *walkState, callbacks *Callbacks) (*pendingDir, error) {
	rawTarget, _ := f.fs.ReadlinkIfPossible(real)

	if !query.FollowSymlinks {
		// Never dereferenced, never traversed into.
		if !matchesInclude(query.Include, rel, entry.Name()) {
			return nil, nil
		}
		f.emit(state, callbacks, PathResult{
			RelativePath: rel,
			SourcePath:   absPath(logical),
			LoaderType:   f.config.LoaderType,
			Metadata: Metadata{
				Size:          entry.Size(),
				Modified:      entry.ModTime(),
				Mode:          entry.Mode(),
				IsSymlink:     true,
				SymlinkTarget: rawTarget,
			},
		}, depth, real, nil)
		return nil, nil
	}

	resolved, err := resolveRealPath(f.fs, real)
	if err != nil {
		f.reportRecovered(&Error{
			Code:     CodeTraversalLoop,
			Message:  fmt.Sprintf("symlink loop at %q", logical),
			Severity: SeverityWarning,
			Context:  map[string]interface{}{"path": logical},
			Err:      err,
		}, callbacks)
		return nil, nil
	}

	if violation := checkConstraint(resolved, f.config.Constraint, CodeConstraintViolation); violation != nil {
		if err := f.handleViolation(violation, callbacks); err != nil {
			return nil, err
		}
		return nil, nil
	}

	targetInfo, err := f.fs.Stat(resolved)
	if err != nil {
		f.reportRecovered(&Error{
			Code:     CodeValidationFailed,
			Message:  fmt.Sprintf("broken symlink %q", logical),
			Severity: SeverityWarning,
			Context:  map[string]interface{}{"path": logical, "target": resolved},
			Err:      err,
		}, callbacks)
		return nil, nil
	}

	if targetInfo.IsDir() {
		if _, seen := state.visitedDirs[resolved]; seen {
			f.reportRecovered(&Error{
				Code:     CodeTraversalLoop,
				Message:  fmt.Sprintf("directory %q already visited via %q", resolved, logical),
				Severity: SeverityWarning,
				Context:  map[string]interface{}{"path": logical, "target": resolved},
			}, callbacks)
			return nil, nil
		}
		state.visitedDirs[resolved] = struct{}{}

		// Contents merge at the link's logical position; depth keeps
		// counting from the link's own depth.
		if query.MaxDepth < 0 || depth+1 <= query.MaxDepth {
			return &pendingDir{
				realPath:    resolved,
				logicalPath: logical,
				depth:       depth + 1,
				ignores:     ignores,
			}, nil
		}
		return nil, nil
	}

	if !matchesInclude(query.Include, rel, entry.Name()) {
		return nil, nil
	}
	f.emit(state, callbacks, PathResult{
		RelativePath: rel,
		SourcePath:   absPath(logical),
		LoaderType:   f.config.LoaderType,
		Metadata: Metadata{
			Size:          targetInfo.Size(),
			Modified:      targetInfo.ModTime(),
			Mode:          targetInfo.Mode(),
			IsSymlink:     true,
			SymlinkTarget: resolved,
		},
	}, depth, resolved, targetInfo)
	return nil, nil
}

// emit appends a surviving entry. realPath and info are used for the
// checksum phase and may describe a symlink's resolved target; info is nil
// when the entry cannot be hashed.
func (f *Finder) emit(state *walkState, callbacks *Callbacks, result PathResult, depth int, realPath string, info os.FileInfo) {
	state.discovered++
	f.metrics.Counter("pathfinder.files_discovered").Inc()

	index := len(state.results)
	state.results = append(state.results, result)
	state.depths = append(state.depths, depth)

	if f.config.CalculateChecksums {
		if info != nil && info.Mode().IsRegular() {
			state.pendingSums = append(state.pendingSums, pendingSum{index: index, path: realPath, info: info})
		}
		// Callbacks fire after the checksum phase, in traversal order.
		return
	}

	callbacks.emitProgress(Progress{
		Path:       result.RelativePath,
		Discovered: state.discovered,
		Depth:      depth,
	})
	callbacks.emitResult(result)
}

// attachChecksums hashes the pending slots with a bounded worker pool and
// writes each checksum into its traversal-order slot.
func (f *Finder) attachChecksums(ctx context.Context, state *walkState) error {
	if len(state.pendingSums) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		f.metrics.Histogram("pathfinder.checksum_duration_seconds").Observe(time.Since(start).Seconds())
	}()

	pool, err := worker.NewPool(worker.Config{
		Workers:   min(f.config.MaxWorkers, len(state.pendingSums)),
		RateLimit: f.config.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to create checksum pool: %w", err)
	}
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start checksum pool: %w", err)
	}
	defer pool.Stop()

	type sumSlot struct {
		index  int
		result checksum.Result
	}

	for _, pending := range state.pendingSums {
		p := pending
		err := pool.Submit(worker.Task{
			ID: p.index,
			Execute: func(ctx context.Context) (worker.Result, error) {
				return worker.Result{
					ID:   p.index,
					Data: sumSlot{index: p.index, result: f.checksumWithCache(p.path, p.info)},
				}, nil
			},
		})
		if err != nil {
			return fmt.Errorf("failed to submit checksum task: %w", err)
		}
	}

	workerResults, err := pool.Wait()
	if err != nil {
		return fmt.Errorf("checksum pool failed: %w", err)
	}

	for _, wr := range workerResults {
		slot, ok := wr.Data.(sumSlot)
		if !ok {
			continue
		}
		meta := &state.results[slot.index].Metadata
		meta.ChecksumAlgorithm = f.config.ChecksumAlgorithm
		meta.Checksum = slot.result.Checksum
		meta.ChecksumError = slot.result.Err
		if slot.result.Err != "" {
			f.metrics.Counter("pathfinder.checksum_errors").Inc()
		}
	}

	return nil
}

// checksumWithCache serves a memoized checksum when the cache recognizes
// path, size and mtime; otherwise it streams the file and stores the result.
func (f *Finder) checksumWithCache(path string, info os.FileInfo) checksum.Result {
	if sum, ok := f.cache.get(path, info, f.config.ChecksumAlgorithm); ok {
		return checksum.Result{Checksum: sum, Algorithm: f.config.ChecksumAlgorithm}
	}

	result := checksum.Calculate(f.fs, path, f.config.ChecksumAlgorithm, f.config.ChecksumEncoding)
	if result.Err == "" {
		f.cache.put(path, info, f.config.ChecksumAlgorithm, result.Checksum)
	}
	return result
}

// CalculateChecksum hashes a single file with the configured algorithm and
// encoding. Failures are captured on the Result, never raised.
func (f *Finder) CalculateChecksum(path string) checksum.Result {
	info, err := f.fs.Stat(path)
	if err != nil {
		return checksum.Calculate(f.fs, path, f.config.ChecksumAlgorithm, f.config.ChecksumEncoding)
	}
	return f.checksumWithCache(path, info)
}

// CalculateChecksumsBatch hashes all paths with at most
// min(concurrency, len(paths)) workers. A non-positive concurrency uses
// the configured MaxWorkers.
func (f *Finder) CalculateChecksumsBatch(ctx context.Context, paths []string, concurrency int) map[string]checksum.Result {
	if concurrency <= 0 {
		concurrency = f.config.MaxWorkers
	}

	results := checksum.Batch(ctx, f.fs, paths, f.config.ChecksumAlgorithm, f.config.ChecksumEncoding, concurrency)

	for path, result := range results {
		if result.Err != "" {
			f.metrics.Counter("pathfinder.checksum_errors").Inc()
			continue
		}
		if info, err := f.fs.Stat(path); err == nil {
			f.cache.put(path, info, f.config.ChecksumAlgorithm, result.Checksum)
		}
	}

	return results
}

// handleViolation routes a constraint violation by severity: critical
// aborts the operation, warnings are recovered locally.
func (f *Finder) handleViolation(violation *Error, callbacks *Callbacks) error {
	f.decorate(violation)

	if violation.Severity == SeverityCritical {
		f.log.WithFields(logger.Fields{
			"code":    string(violation.Code),
			"context": violation.Context,
		}).Error(violation.Message)
		return violation
	}

	f.metrics.Counter("pathfinder.security_warnings").Inc()
	f.log.WithFields(logger.Fields{
		"code":    string(violation.Code),
		"context": violation.Context,
	}).Warn(violation.Message)
	callbacks.emitError(violation)
	return nil
}

// reportRecovered surfaces a non-security recoverable issue without
// stopping the walk.
func (f *Finder) reportRecovered(e *Error, callbacks *Callbacks) {
	f.decorate(e)
	f.metrics.Counter("pathfinder.recovered_errors").Inc()
	f.log.WithFields(logger.Fields{
		"code":    string(e.Code),
		"context": e.Context,
	}).Warn(e.Message)
	callbacks.emitError(e)
}

// relativeTo returns path relative to root, POSIX-normalized.
func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// absPath makes path absolute without touching already-absolute paths, so
// in-memory filesystems keep their rooted form.
func absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// matchesAny reports whether any pattern matches the entry's relative path
// or bare name.
func matchesAny(patterns []string, rel, name string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// matchesInclude treats an empty include list as match-all.
func matchesInclude(patterns []string, rel, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	return matchesAny(patterns, rel, name)
}
