package pathfinder

import (
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// ignoreRules is one compiled ignore file, scoped to the directory that
// contains it. Patterns are interpreted relative to that directory.
type ignoreRules struct {
	dir     string
	matcher *ignore.GitIgnore
}

// loadIgnoreRules compiles dir's ignore file, returning nil when the
// directory has none or it cannot be read. An unreadable ignore file is not
// worth failing a traversal over.
func loadIgnoreRules(fs afero.Fs, dir, name string) *ignoreRules {
	if name == "" {
		return nil
	}

	data, err := afero.ReadFile(fs, filepath.Join(dir, name))
	if err != nil {
		return nil
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	return &ignoreRules{
		dir:     dir,
		matcher: ignore.CompileIgnoreLines(lines...),
	}
}

// isIgnored applies the cascading ignore chain to the entry at path.
// Matchers are consulted nearest-first; the first file with a match wins.
// Directories are additionally tested with a trailing slash so dir-only
// patterns apply.
func isIgnored(path string, isDir bool, chain []*ignoreRules) bool {
	for i := len(chain) - 1; i >= 0; i-- {
		rules := chain[i]

		rel, err := filepath.Rel(rules.dir, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)

		if rules.matcher.MatchesPath(rel) {
			return true
		}
		if isDir && rules.matcher.MatchesPath(rel+"/") {
			return true
		}
	}
	return false
}
