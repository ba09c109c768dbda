// internal/repo/status.go
package repo

import (
	"epoch/internal/commit"
	"epoch/internal/history"
	"epoch/internal/stage"
)

// FileStatus pairs a canonical path with its reported state.
type FileStatus struct {
	Path  string
	State string
}

// Status is the computed, read-only view of the working tree against the
// staging index and history. Nothing is persisted by computing it.
type Status struct {
	Staged    []FileStatus // new, modified, deleted
	Modified  []FileStatus // modified or deleted, not staged
	Untracked []string
}

// Clean reports whether no changes of any kind were detected.
func (s *Status) Clean() bool {
	return len(s.Staged) == 0 && len(s.Modified) == 0 && len(s.Untracked) == 0
}

// Status classifies every staged entry, walks the working tree for
// modified and untracked files, and reports tracked files missing from the
// tree that have no tombstone staged yet.
func (r *Repository) Status() (*Status, error) {
	ix, err := stage.Load(r.layout.StageFile())
	if err != nil {
		return nil, err
	}
	hist, err := history.Load(r.layout.HistoryFile())
	if err != nil {
		return nil, err
	}
	table, err := commit.LoadTable(r.layout.CommitTableFile())
	if err != nil {
		return nil, err
	}

	st := &Status{}
	for _, p := range ix.Paths() {
		e := ix[p]
		switch {
		case !e.Deleted && hist.Contains(p):
			st.Staged = append(st.Staged, FileStatus{Path: p, State: "modified"})
		case e.Deleted:
			st.Staged = append(st.Staged, FileStatus{Path: p, State: "deleted"})
		default:
			st.Staged = append(st.Staged, FileStatus{Path: p, State: "new"})
		}
	}

	err = r.matcher.Walk(func(p string) error {
		if _, ok := ix[p]; !ok && !hist.Contains(p) && !r.IsIgnored(p) {
			st.Untracked = append(st.Untracked, p)
		}
		modified, err := r.isModified(p, ix, hist, table)
		if err != nil {
			return err
		}
		if modified {
			st.Modified = append(st.Modified, FileStatus{Path: p, State: "modified"})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	removed, err := r.removedFiles(hist)
	if err != nil {
		return nil, err
	}
	for _, p := range removed {
		if e, ok := ix[p]; ok && e.Deleted {
			continue
		}
		st.Modified = append(st.Modified, FileStatus{Path: p, State: "deleted"})
	}

	return st, nil
}
