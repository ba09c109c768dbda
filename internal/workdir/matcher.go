package workdir

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// CanonicalPath converts a root-relative path into the `./`-prefixed,
// slash-separated form used throughout the index, history and snapshots.
func CanonicalPath(rel string) string {
	return "./" + filepath.ToSlash(rel)
}

// NormalizePattern qualifies bare patterns with the working-directory
// marker so they match canonical paths. Patterns already anchored with
// `./` or `../`, and the whole-tree marker `.`, pass through unchanged.
func NormalizePattern(pattern string) string {
	if pattern == "." ||
		strings.HasPrefix(pattern, "./") ||
		strings.HasPrefix(pattern, "../") {
		return pattern
	}
	return "./" + pattern
}

// Matcher resolves user-supplied patterns to concrete working-tree files.
// It is a pure read of the filesystem tree.
type Matcher struct {
	root  string
	rules *Rules
}

func NewMatcher(root string, rules *Rules) *Matcher {
	return &Matcher{root: root, rules: rules}
}

// Walk visits every file under the root in canonical path form. It does not
// apply ignore rules; callers filter as needed.
func (m *Matcher) Walk(fn func(path string) error) error {
	return filepath.WalkDir(m.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(m.root, p)
		if err != nil {
			return err
		}
		return fn(CanonicalPath(rel))
	})
}

// Match walks the working tree and returns every non-ignored file that
// matches at least one of the patterns, sorted, in canonical form. Patterns
// that match nothing contribute nothing; that is not an error.
func (m *Matcher) Match(patterns []string) ([]string, error) {
	normalized := make([]string, len(patterns))
	for i, p := range patterns {
		normalized[i] = NormalizePattern(p)
	}

	var out []string
	seen := make(map[string]bool)
	err := m.Walk(func(path string) error {
		if seen[path] {
			return nil
		}
		for _, pat := range normalized {
			if Matches(path, pat) && !m.rules.IsIgnored(path) {
				seen[path] = true
				out = append(out, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
