package workdir

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Rules holds the ignore patterns for a working directory: an ordered list
// of ignore globs and an ordered list of negation globs. Evaluation is
// two-pass, so a negation always wins over an ignore regardless of the
// order the patterns appear in the rules file.
type Rules struct {
	ignore   []string
	negation []string
}

// LoadRules reads an ignore rules file. Blank lines and `#` comments are
// skipped; a leading `!` marks a negation pattern. The implicit patterns
// (the repository metadata directory) are always ignored and come first.
// A missing rules file yields just the implicit rules.
func LoadRules(path string, implicit ...string) (*Rules, error) {
	r := &Rules{ignore: append([]string{}, implicit...)}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("opening ignore rules: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "!") {
			r.negation = append(r.negation, strings.TrimSpace(line[1:]))
		} else {
			r.ignore = append(r.ignore, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore rules: %w", err)
	}
	return r, nil
}

// IsIgnored classifies a canonical path against the rule set.
func (r *Rules) IsIgnored(path string) bool {
	ignored := false
	for _, pat := range r.ignore {
		if Matches(path, pat) {
			ignored = true
		}
	}
	for _, pat := range r.negation {
		if Matches(path, pat) {
			ignored = false
		}
	}
	return ignored
}

// Matches reports whether path matches pattern, either by glob match on the
// full path or because the path sits under pattern as a directory prefix.
// The prefix rule lets a single directory pattern cover all descendants.
func Matches(path, pattern string) bool {
	if Glob(pattern, path) {
		return true
	}
	return strings.HasPrefix(path, strings.TrimRight(pattern, "/")+"/")
}
