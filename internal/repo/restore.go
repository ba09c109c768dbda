// internal/repo/restore.go
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"epoch/internal/blob"
	"epoch/internal/commit"
	"epoch/internal/history"
	"epoch/internal/stage"

	"go.uber.org/zap"
)

// Restore rewrites matched working-tree files from their last recorded
// content: the staged blob when the path is in the index, otherwise the
// copy held by the most recent commit that recorded the path. Paths with
// no recorded content are skipped.
func (r *Repository) Restore(patterns []string) ([]string, error) {
	matched, err := r.matcher.Match(patterns)
	if err != nil {
		return nil, err
	}

	ix, err := stage.Load(r.layout.StageFile())
	if err != nil {
		return nil, err
	}
	hist, err := history.Load(r.layout.HistoryFile())
	if err != nil {
		return nil, err
	}

	var table commit.Table
	restored := make([]string, 0, len(matched))
	for _, p := range matched {
		var data []byte
		if fp, ok := ix.Fingerprint(p); ok {
			data, err = r.blobs.Get(fp)
			if err != nil {
				return nil, err
			}
		} else if hist.Contains(p) {
			if table == nil {
				table, err = commit.LoadTable(r.layout.CommitTableFile())
				if err != nil {
					return nil, err
				}
			}
			fp, commitID, found, err := r.lastCommitFingerprint(p, hist, table)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			store, err := blob.NewStore(r.layout.CommitBlobDir(commitID), 16)
			if err != nil {
				return nil, err
			}
			data, err = store.Get(fp)
			if err != nil {
				return nil, err
			}
		} else {
			continue
		}

		if err := r.writeWorkFile(p, data); err != nil {
			return nil, err
		}
		restored = append(restored, p)
	}
	sort.Strings(restored)
	return restored, nil
}

// Revert rolls the working tree back to the state recorded by commitID and
// appends a new commit for that state, keeping history strictly forward.
// Work staged before the revert is put back in the staging area afterwards.
func (r *Repository) Revert(commitID string) (*CommitResult, error) {
	table, err := commit.LoadTable(r.layout.CommitTableFile())
	if err != nil {
		return nil, err
	}
	if _, ok := table[commitID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommit, commitID)
	}

	savedIndex, err := stage.Load(r.layout.StageFile())
	if err != nil {
		return nil, err
	}
	savedBlobs := make(map[string][]byte)
	for _, e := range savedIndex {
		if e.Deleted || savedBlobs[e.Fingerprint] != nil {
			continue
		}
		raw, err := r.blobs.ReadRaw(e.Fingerprint)
		if err != nil {
			return nil, err
		}
		savedBlobs[e.Fingerprint] = raw
	}

	snap, err := commit.LoadSnapshot(r.layout.CommitSnapshotFile(commitID))
	if err != nil {
		return nil, err
	}

	ix := stage.Index{}
	for p, fp := range snap {
		ix.Stage(p, fp)
	}
	if err := ix.Save(r.layout.StageFile()); err != nil {
		return nil, err
	}

	if err := r.blobs.Clear(); err != nil {
		return nil, err
	}
	commitBlobs, err := blob.NewStore(r.layout.CommitBlobDir(commitID), 16)
	if err != nil {
		return nil, err
	}
	for _, fp := range snap {
		if err := r.blobs.AdoptFrom(commitBlobs, fp); err != nil {
			return nil, err
		}
	}

	for p, fp := range snap {
		data, err := commitBlobs.Get(fp)
		if err != nil {
			return nil, err
		}
		if err := r.writeWorkFile(p, data); err != nil {
			return nil, err
		}
	}

	result, err := r.Commit("Revert back to " + commitID)
	if err != nil {
		return nil, err
	}

	if err := savedIndex.Save(r.layout.StageFile()); err != nil {
		return nil, err
	}
	for fp, raw := range savedBlobs {
		if err := r.blobs.WriteRaw(fp, raw); err != nil {
			return nil, err
		}
	}

	r.log.Info("reverted",
		zap.String("target", commitID),
		zap.String("commit", result.ID))
	return result, nil
}

func (r *Repository) writeWorkFile(path string, data []byte) error {
	abs := r.workPath(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return err
	}
	return os.WriteFile(abs, data, 0644)
}
