package pathfinder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// SymlinkFs extends afero.Fs with symlink readback. afero.OsFs satisfies it
// natively; other filesystems are wrapped by BasicSymlinkFs.
type SymlinkFs interface {
	afero.Fs
	ReadlinkIfPossible(name string) (string, error)
}

// BasicSymlinkFs adapts a symlink-less afero.Fs to SymlinkFs.
type BasicSymlinkFs struct {
	afero.Fs
}

// ReadlinkIfPossible always fails: the wrapped filesystem has no symlinks.
func (fs *BasicSymlinkFs) ReadlinkIfPossible(name string) (string, error) {
	return "", fmt.Errorf("symlinks not supported")
}

// asSymlinkFs returns fs as a SymlinkFs, wrapping it when necessary.
func asSymlinkFs(fs afero.Fs) SymlinkFs {
	if sf, ok := fs.(SymlinkFs); ok {
		return sf
	}
	return &BasicSymlinkFs{Fs: fs}
}

// isSymlink reports whether the entry at path is a symbolic link, using the
// lstat mode when the filesystem provides one and falling back to readlink.
func isSymlink(fs SymlinkFs, path string, info os.FileInfo) bool {
	if info != nil && info.Mode()&os.ModeSymlink != 0 {
		return true
	}
	_, err := fs.ReadlinkIfPossible(path)
	return err == nil
}

// errSymlinkLoop is returned by resolveRealPath when resolution revisits a
// path. Callers translate it into a TRAVERSAL_LOOP error.
var errSymlinkLoop = errors.New("symlink loop detected")

// resolveRealPath follows the chain of symlinks starting at path until it
// reaches a non-link, tracking visited paths so a cycle terminates with
// errSymlinkLoop instead of looping forever. Relative targets are resolved
// against the link's own directory.
func resolveRealPath(fs SymlinkFs, path string) (string, error) {
	seen := make(map[string]struct{})
	current := filepath.Clean(path)

	for {
		if _, ok := seen[current]; ok {
			return "", errSymlinkLoop
		}
		seen[current] = struct{}{}

		target, err := fs.ReadlinkIfPossible(current)
		if err != nil {
			// Not a symlink; resolution is complete.
			return current, nil
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		current = filepath.Clean(target)
	}
}

// TestSymlinkFs layers map-backed symlinks over an afero.Fs so symlink
// behavior is testable on afero.NewMemMapFs().
type TestSymlinkFs struct {
	afero.Fs
	mu       sync.RWMutex
	symlinks map[string]string
}

// NewTestSymlinkFs creates a TestSymlinkFs over fs.
func NewTestSymlinkFs(fs afero.Fs) *TestSymlinkFs {
	return &TestSymlinkFs{
		Fs:       fs,
		symlinks: make(map[string]string),
	}
}

// ReadlinkIfPossible returns the registered target of name.
func (fs *TestSymlinkFs) ReadlinkIfPossible(name string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if target, ok := fs.symlinks[filepath.Clean(name)]; ok {
		return target, nil
	}
	return "", fmt.Errorf("not a symlink")
}

// Symlink registers link as a symlink pointing at target. The target does
// not have to exist.
func (fs *TestSymlinkFs) Symlink(target, link string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.symlinks[filepath.Clean(link)] = target
}
