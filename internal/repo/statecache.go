// internal/repo/statecache.go
package repo

import (
	"encoding/json"
	"os"
	"time"

	"epoch/internal/blob"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// fileState is a cached fingerprint keyed by the file's mtime and size, so
// unchanged files are not re-hashed on every stage or status. The cache is
// an optimization only; observable behavior is identical without it.
type fileState struct {
	Fingerprint string    `json:"fingerprint"`
	ModTime     time.Time `json:"mod_time"`
	Size        int64     `json:"size"`
}

const stateKeyPrefix = "file_state:"

func (r *Repository) cachedState(path string) *fileState {
	if r.db == nil {
		return nil
	}

	var state fileState
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stateKeyPrefix + path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			r.log.Warn("reading file state", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	return &state
}

func (r *Repository) storeState(path string, state fileState) {
	if r.db == nil {
		return
	}

	data, err := json.Marshal(state)
	if err != nil {
		r.log.Warn("encoding file state", zap.String("path", path), zap.Error(err))
		return
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(stateKeyPrefix+path), data)
	})
	if err != nil {
		r.log.Warn("storing file state", zap.String("path", path), zap.Error(err))
	}
}

// fingerprint computes the fingerprint of a working-tree file, consulting
// the file-state cache first. A cache hit requires both mtime and size to
// match.
func (r *Repository) fingerprint(path string) (string, error) {
	info, err := os.Stat(r.workPath(path))
	if err != nil {
		return "", err
	}

	if state := r.cachedState(path); state != nil &&
		state.Size == info.Size() && state.ModTime.Equal(info.ModTime()) {
		return state.Fingerprint, nil
	}

	fp, err := blob.Fingerprint(r.Root, path)
	if err != nil {
		return "", err
	}

	r.storeState(path, fileState{
		Fingerprint: fp,
		ModTime:     info.ModTime(),
		Size:        info.Size(),
	})
	return fp, nil
}
