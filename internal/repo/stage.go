// internal/repo/stage.go
package repo

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"epoch/internal/commit"
	"epoch/internal/history"
	"epoch/internal/stage"
	"epoch/internal/workdir"

	"go.uber.org/zap"
)

// Stage resolves patterns against the working tree and folds the result
// into the staging index: untracked and modified files gain fresh
// fingerprints and blobs, unchanged already-staged files are dropped as
// no-ops, and tracked files missing from the tree gain tombstones when a
// pattern targets them. Returns the paths newly added to staging.
func (r *Repository) Stage(patterns []string) ([]string, error) {
	if err := os.MkdirAll(r.layout.StageBlobDir(), 0755); err != nil {
		return nil, fmt.Errorf("creating staging blob area: %w", err)
	}

	matched, err := r.matcher.Match(patterns)
	if err != nil {
		return nil, fmt.Errorf("matching patterns: %w", err)
	}

	ix, err := stage.Load(r.layout.StageFile())
	if err != nil {
		return nil, err
	}
	hist, err := history.Load(r.layout.HistoryFile())
	if err != nil {
		return nil, err
	}

	untracked := make(map[string]bool)
	for _, p := range matched {
		if _, ok := ix[p]; !ok && !hist.Contains(p) && !r.IsIgnored(p) {
			untracked[p] = true
		}
	}

	head, err := r.head()
	if err != nil {
		return nil, err
	}

	candidates := matched
	if head != "" {
		table, err := commit.LoadTable(r.layout.CommitTableFile())
		if err != nil {
			return nil, err
		}
		var filtered []string
		for _, p := range matched {
			if untracked[p] {
				filtered = append(filtered, p)
				continue
			}
			modified, err := r.isModified(p, ix, hist, table)
			if err != nil {
				return nil, err
			}
			if modified {
				filtered = append(filtered, p)
			}
		}
		candidates = filtered
	}

	fresh := make(map[string]string, len(candidates))
	for _, p := range candidates {
		if r.IsIgnored(p) {
			continue
		}
		fp, err := r.fingerprint(p)
		if err != nil {
			return nil, fmt.Errorf("fingerprinting %s: %w", p, err)
		}
		fresh[p] = fp
	}

	// Re-staging an unchanged staged file is a no-op.
	for p, fp := range fresh {
		if staged, ok := ix.Fingerprint(p); ok && staged == fp {
			delete(fresh, p)
		}
	}
	for p, fp := range fresh {
		ix.Stage(p, fp)
	}

	for p, e := range ix {
		if e.Deleted {
			continue
		}
		if err := r.blobs.Put(r.workPath(p), e.Fingerprint); err != nil {
			return nil, fmt.Errorf("persisting blob for %s: %w", p, err)
		}
	}

	staged := make([]string, 0, len(fresh))
	for p := range fresh {
		staged = append(staged, p)
	}

	removed, err := r.removedFiles(hist)
	if err != nil {
		return nil, err
	}
	for _, p := range removed {
		if patternsTarget(patterns, p) {
			ix.MarkDeleted(p)
			staged = append(staged, p)
		}
	}

	if err := ix.Save(r.layout.StageFile()); err != nil {
		return nil, err
	}

	sort.Strings(staged)
	r.log.Debug("staged paths", zap.Int("count", len(staged)))
	return staged, nil
}

// Unstage drops matched entries from the staging index along with their
// staged blobs. Entries whose path appears verbatim in the patterns (or
// when the whole-tree marker is given) are dropped too, tombstones
// included. Returns the unstaged paths.
func (r *Repository) Unstage(patterns []string) ([]string, error) {
	ix, err := stage.Load(r.layout.StageFile())
	if err != nil {
		return nil, err
	}
	matched, err := r.matcher.Match(patterns)
	if err != nil {
		return nil, fmt.Errorf("matching patterns: %w", err)
	}

	var unstaged []string
	for _, p := range matched {
		if fp, ok := ix.Fingerprint(p); ok {
			if err := r.blobs.Remove(fp); err != nil {
				return nil, err
			}
			delete(ix, p)
			unstaged = append(unstaged, p)
		}
	}

	for p := range ix {
		variations := []string{".", p, strings.TrimPrefix(p, "./")}
		for _, v := range variations {
			if slices.Contains(patterns, v) {
				delete(ix, p)
				unstaged = append(unstaged, p)
				break
			}
		}
	}

	if err := ix.Save(r.layout.StageFile()); err != nil {
		return nil, err
	}
	sort.Strings(unstaged)
	return unstaged, nil
}

// isModified reports whether a working-tree file differs from its staged
// fingerprint, or, for tracked files with no staged entry, from the
// fingerprint recorded by the nearest commit containing the path.
func (r *Repository) isModified(p string, ix stage.Index, hist *history.Ledger, table commit.Table) (bool, error) {
	staged, inIndex := ix.Fingerprint(p)
	inHistory := hist.Contains(p)
	if !inIndex && !inHistory {
		return false, nil
	}

	fp, err := r.fingerprint(p)
	if err != nil {
		return false, err
	}
	if inIndex && staged != fp {
		return true, nil
	}
	if inHistory && !inIndex {
		last, _, found, err := r.lastCommitFingerprint(p, hist, table)
		if err != nil {
			return false, err
		}
		if !found || last != fp {
			return true, nil
		}
	}
	return false, nil
}

// lastCommitFingerprint searches backward from head for the nearest commit
// whose cumulative snapshot contains the path. Backward steps use a linear
// scan of the table for the commit whose Next links to the current one.
func (r *Repository) lastCommitFingerprint(p string, hist *history.Ledger, table commit.Table) (fingerprint, commitID string, found bool, err error) {
	head, err := r.head()
	if err != nil {
		return "", "", false, err
	}
	if head == "" || !hist.Contains(p) {
		return "", "", false, nil
	}

	seen := make(map[string]bool)
	for id := head; id != "" && !seen[id]; {
		seen[id] = true
		snap, err := commit.LoadSnapshot(r.layout.CommitSnapshotFile(id))
		if err != nil {
			return "", "", false, err
		}
		if fp, ok := snap[p]; ok {
			return fp, id, true, nil
		}
		id = table.Previous(id)
	}
	return "", "", false, nil
}

// removedFiles returns every history path absent from the working tree.
func (r *Repository) removedFiles(hist *history.Ledger) ([]string, error) {
	present, err := r.matcher.Match([]string{"."})
	if err != nil {
		return nil, err
	}
	onDisk := make(map[string]bool, len(present))
	for _, p := range present {
		onDisk[p] = true
	}

	var removed []string
	for _, p := range hist.Paths() {
		if !onDisk[p] {
			removed = append(removed, p)
		}
	}
	return removed, nil
}

// patternsTarget reports whether any input pattern targets the path for
// deletion staging: the whole-tree marker, a pattern textually containing
// the path, or a pattern that normalizes to it.
func patternsTarget(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if pattern == "." ||
			strings.Contains(pattern, path) ||
			workdir.NormalizePattern(pattern) == path {
			return true
		}
	}
	return false
}
