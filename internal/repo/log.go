// internal/repo/log.go
package repo

import (
	"time"

	"epoch/internal/commit"
)

// LogEntry is one commit as reported by Log, oldest first.
type LogEntry struct {
	ID        string
	Message   string
	Timestamp time.Time
}

// Log walks the commit chain from tail to head and returns every commit
// in creation order. ErrNoCommits when the repository has no commits yet.
func (r *Repository) Log() ([]LogEntry, error) {
	tail, err := r.tail()
	if err != nil {
		return nil, err
	}
	if tail == "" {
		return nil, ErrNoCommits
	}

	table, err := commit.LoadTable(r.layout.CommitTableFile())
	if err != nil {
		return nil, err
	}
	chain, err := table.Chain(tail)
	if err != nil {
		return nil, err
	}

	entries := make([]LogEntry, 0, len(chain))
	for _, id := range chain {
		rec := table[id]
		entries = append(entries, LogEntry{
			ID:        id,
			Message:   rec.Message,
			Timestamp: rec.Timestamp,
		})
	}
	return entries, nil
}
