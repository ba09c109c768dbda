// internal/history/history.go
package history

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"epoch/internal/fsutil"
)

const header = "# Historically committed files"

// Ledger is the ordered record of every path that has been committed and
// whose deletion has not since been committed. It is rewritten in full on
// every commit.
type Ledger struct {
	paths []string
}

// Load reads the history file. Comment lines and blank lines are skipped.
func Load(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	l := &Ledger{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		l.paths = append(l.paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return l, nil
}

// Save rewrites the history file atomically, header line first.
func (l *Ledger) Save(path string) error {
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for _, p := range l.paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return fsutil.WriteFileAtomic(path, []byte(b.String()), 0644)
}

func (l *Ledger) Contains(path string) bool {
	for _, p := range l.paths {
		if p == path {
			return true
		}
	}
	return false
}

// Append adds a path, preserving order and skipping duplicates.
func (l *Ledger) Append(path string) {
	if !l.Contains(path) {
		l.paths = append(l.paths, path)
	}
}

// Remove drops a path; removing an absent path is a no-op.
func (l *Ledger) Remove(path string) {
	for i, p := range l.paths {
		if p == path {
			l.paths = append(l.paths[:i], l.paths[i+1:]...)
			return
		}
	}
}

// Paths returns a copy of the tracked paths in ledger order.
func (l *Ledger) Paths() []string {
	out := make([]string, len(l.paths))
	copy(out, l.paths)
	return out
}

func (l *Ledger) Len() int { return len(l.paths) }
