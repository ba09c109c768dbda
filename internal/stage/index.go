// internal/stage/index.go
package stage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"epoch/internal/fsutil"
)

// tombstonePrefix marks a staged deletion in the serialized index. In
// memory the index keys are plain paths and deletion is a tagged state on
// the entry; the prefix only exists in the file format.
const tombstonePrefix = "!"

// Entry is one staging-index record: either a staged fingerprint or a
// tombstone marking a previously tracked path as staged for deletion.
type Entry struct {
	Fingerprint string
	Deleted     bool
}

// Index is the mutable mapping of path to pending change, keyed by
// canonical path.
type Index map[string]Entry

// Load reads the staging index file. A missing file is an empty index.
func Load(path string) (Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Index{}, nil
		}
		return nil, fmt.Errorf("reading staging index: %w", err)
	}

	var raw map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing staging index: %w", err)
	}

	ix := make(Index, len(raw))
	for key, value := range raw {
		if value == nil {
			ix[strings.TrimPrefix(key, tombstonePrefix)] = Entry{Deleted: true}
			continue
		}
		ix[key] = Entry{Fingerprint: *value}
	}
	return ix, nil
}

// Save rewrites the staging index file atomically.
func (ix Index) Save(path string) error {
	raw := make(map[string]*string, len(ix))
	for p, e := range ix {
		if e.Deleted {
			raw[tombstonePrefix+p] = nil
		} else {
			fp := e.Fingerprint
			raw[p] = &fp
		}
	}

	data, err := json.MarshalIndent(raw, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding staging index: %w", err)
	}
	return fsutil.WriteFileAtomic(path, data, 0644)
}

// Stage records a staged fingerprint for a path, replacing any tombstone.
func (ix Index) Stage(path, fingerprint string) {
	ix[path] = Entry{Fingerprint: fingerprint}
}

// MarkDeleted replaces any staged entry for the path with a tombstone.
func (ix Index) MarkDeleted(path string) {
	ix[path] = Entry{Deleted: true}
}

// Fingerprint returns the staged fingerprint for a path; tombstones report
// not-present.
func (ix Index) Fingerprint(path string) (string, bool) {
	e, ok := ix[path]
	if !ok || e.Deleted {
		return "", false
	}
	return e.Fingerprint, true
}

// Paths returns every indexed path, sorted.
func (ix Index) Paths() []string {
	paths := make([]string, 0, len(ix))
	for p := range ix {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
