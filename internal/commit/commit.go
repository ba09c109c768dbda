// internal/commit/commit.go
package commit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"epoch/internal/fsutil"
)

// Record is the persisted metadata for one commit. Next links to the
// chronologically following commit; the head has no Next. Commits never
// store a back-pointer.
type Record struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Next      string    `json:"next,omitempty"`
}

// Table is the commit metadata document, keyed by commit id.
type Table map[string]*Record

// LoadTable reads the commit table file.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading commit table: %w", err)
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing commit table: %w", err)
	}
	if t == nil {
		t = Table{}
	}
	return t, nil
}

// Save rewrites the commit table atomically.
func (t Table) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding commit table: %w", err)
	}
	return fsutil.WriteFileAtomic(path, data, 0644)
}

// Chain follows Next from tail and returns the commit ids oldest to
// newest. A broken link or a cycle is an error.
func (t Table) Chain(tail string) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	for id := tail; id != ""; {
		if seen[id] {
			return nil, fmt.Errorf("commit chain cycle at %s", id)
		}
		seen[id] = true
		rec, ok := t[id]
		if !ok {
			return nil, fmt.Errorf("commit %s missing from table", id)
		}
		ids = append(ids, id)
		id = rec.Next
	}
	return ids, nil
}

// Previous returns the id of the commit whose Next links to id, or empty if
// none does. This is a linear scan of the table; the chain stores no
// back-pointers.
func (t Table) Previous(id string) string {
	for candidate, rec := range t {
		if rec.Next == id {
			return candidate
		}
	}
	return ""
}

// Snapshot is a commit's cumulative path-to-fingerprint mapping, covering
// every tracked path as of that commit. It is a full picture, not a diff.
type Snapshot map[string]string

// LoadSnapshot reads a commit's snapshot document.
func LoadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if s == nil {
		s = Snapshot{}
	}
	return s, nil
}

// Save writes the snapshot document atomically.
func (s Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return fsutil.WriteFileAtomic(path, data, 0644)
}
