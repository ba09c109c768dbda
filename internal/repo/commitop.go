// internal/repo/commitop.go
package repo

import (
	"fmt"
	"os"
	"time"

	"epoch/internal/blob"
	"epoch/internal/commit"
	"epoch/internal/history"
	"epoch/internal/stage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CommitResult reports a created commit and the paths it recorded.
type CommitResult struct {
	ID    string
	Paths []string
}

// Commit promotes the staging index into a new commit: a cumulative
// snapshot merged from the previous commit's snapshot and the staged diff,
// plus a full physical copy of every referenced blob, so each commit is
// restorable on its own without walking the chain. The staging index and
// blob area are emptied afterwards and newly tracked paths join history.
func (r *Repository) Commit(message string) (*CommitResult, error) {
	ix, err := stage.Load(r.layout.StageFile())
	if err != nil {
		return nil, err
	}
	if len(ix) == 0 {
		return nil, ErrNothingToCommit
	}

	id := uuid.New().String()

	prev, err := r.head()
	if err != nil {
		return nil, err
	}
	if err := r.writePointer(r.layout.HeadFile(), id); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.layout.CommitDir(id), 0755); err != nil {
		return nil, fmt.Errorf("creating commit directory: %w", err)
	}
	commitBlobs, err := blob.NewStore(r.layout.CommitBlobDir(id), 16)
	if err != nil {
		return nil, err
	}

	hist, err := history.Load(r.layout.HistoryFile())
	if err != nil {
		return nil, err
	}

	if prev == "" {
		snap := commit.Snapshot{}
		for p, e := range ix {
			if e.Deleted {
				delete(ix, p)
				continue
			}
			snap[p] = e.Fingerprint
		}
		if err := snap.Save(r.layout.CommitSnapshotFile(id)); err != nil {
			return nil, err
		}

		names, err := r.blobs.List()
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if err := commitBlobs.AdoptFrom(r.blobs, name); err != nil {
				return nil, err
			}
		}

		if err := r.writePointer(r.layout.TailFile(), id); err != nil {
			return nil, err
		}
	} else {
		snap, err := commit.LoadSnapshot(r.layout.CommitSnapshotFile(prev))
		if err != nil {
			return nil, err
		}
		for p, e := range ix {
			if e.Deleted {
				delete(snap, p)
				delete(ix, p)
				hist.Remove(p)
			}
		}
		for p, e := range ix {
			snap[p] = e.Fingerprint
		}
		if err := snap.Save(r.layout.CommitSnapshotFile(id)); err != nil {
			return nil, err
		}

		// Prefer the previous commit's own copy; fall back to the staging
		// area. Either way the new commit ends up self-contained.
		prevBlobs, err := blob.NewStore(r.layout.CommitBlobDir(prev), 16)
		if err != nil {
			return nil, err
		}
		for _, fp := range snap {
			src := prevBlobs
			if !prevBlobs.Exists(fp) {
				src = r.blobs
			}
			if err := commitBlobs.AdoptFrom(src, fp); err != nil {
				return nil, err
			}
		}
	}

	table, err := commit.LoadTable(r.layout.CommitTableFile())
	if err != nil {
		return nil, err
	}
	if prev != "" {
		rec, ok := table[prev]
		if !ok {
			return nil, fmt.Errorf("commit %s missing from table", prev)
		}
		rec.Next = id
	}
	table[id] = &commit.Record{Message: message, Timestamp: time.Now()}
	if err := table.Save(r.layout.CommitTableFile()); err != nil {
		return nil, err
	}

	if err := r.blobs.Clear(); err != nil {
		return nil, err
	}
	if err := (stage.Index{}).Save(r.layout.StageFile()); err != nil {
		return nil, err
	}

	paths := ix.Paths()
	for _, p := range paths {
		hist.Append(p)
	}
	if err := hist.Save(r.layout.HistoryFile()); err != nil {
		return nil, err
	}

	r.log.Info("commit created",
		zap.String("id", id),
		zap.Int("paths", len(paths)))
	return &CommitResult{ID: id, Paths: paths}, nil
}
