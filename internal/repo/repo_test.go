package repo

import (
	"os"
	"path/filepath"
	"testing"

	"epoch/internal/commit"
	"epoch/internal/history"
	"epoch/internal/stage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, Init(root))
	r, err := Open(root, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func writeWork(t *testing.T, r *Repository, name, content string) string {
	t.Helper()
	abs := filepath.Join(r.Root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
	return "./" + name
}

func readWork(t *testing.T, r *Repository, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.Root, path))
	require.NoError(t, err)
	return string(data)
}

func TestInit(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Init(root))

	assert.True(t, Exists(root))
	assert.ErrorIs(t, Init(root), ErrExists)

	l := Layout{Root: root}
	head, err := os.ReadFile(l.HeadFile())
	require.NoError(t, err)
	assert.Empty(t, string(head))
	tail, err := os.ReadFile(l.TailFile())
	require.NoError(t, err)
	assert.Empty(t, string(tail))

	hist, err := history.Load(l.HistoryFile())
	require.NoError(t, err)
	assert.Zero(t, hist.Len())
}

func TestOpen_MissingRepository(t *testing.T) {
	_, err := Open(t.TempDir(), zap.NewNop())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStage_NewFiles(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")
	writeWork(t, r, "sub/b.txt", "beta")

	staged, err := r.Stage([]string{"."})
	require.NoError(t, err)
	assert.Equal(t, []string{"./a.txt", "./sub/b.txt"}, staged)

	ix, err := stage.Load(r.layout.StageFile())
	require.NoError(t, err)
	fp, ok := ix.Fingerprint("./a.txt")
	assert.True(t, ok)
	assert.True(t, r.blobs.Exists(fp))
}

func TestStage_IsIdempotent(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")

	_, err := r.Stage([]string{"."})
	require.NoError(t, err)

	again, err := r.Stage([]string{"."})
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestStage_PicksUpModification(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)

	writeWork(t, r, "a.txt", "alpha v2")
	staged, err := r.Stage([]string{"."})
	require.NoError(t, err)
	assert.Equal(t, []string{"./a.txt"}, staged)
}

func TestStage_RespectsIgnoreRules(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Init(root))
	require.NoError(t, os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("*.log\n"), 0644))
	r, err := Open(root, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	writeWork(t, r, "a.txt", "alpha")
	writeWork(t, r, "app.log", "noise")

	staged, err := r.Stage([]string{"."})
	require.NoError(t, err)
	assert.Equal(t, []string{"./" + IgnoreFileName, "./a.txt"}, staged)
}

func TestStage_TombstonesRemovedTrackedFile(t *testing.T) {
	r := newRepo(t)
	pa := writeWork(t, r, "a.txt", "alpha")
	writeWork(t, r, "b.txt", "beta")

	_, err := r.Stage([]string{"."})
	require.NoError(t, err)
	_, err = r.Commit("both")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(r.Root, "a.txt")))
	staged, err := r.Stage([]string{"."})
	require.NoError(t, err)
	assert.Equal(t, []string{pa}, staged)

	ix, err := stage.Load(r.layout.StageFile())
	require.NoError(t, err)
	assert.True(t, ix[pa].Deleted)
}

func TestUnstage(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")
	writeWork(t, r, "b.txt", "beta")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)

	removed, err := r.Unstage([]string{"a.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"./a.txt"}, removed)

	ix, err := stage.Load(r.layout.StageFile())
	require.NoError(t, err)
	_, ok := ix["./a.txt"]
	assert.False(t, ok)
	_, ok = ix["./b.txt"]
	assert.True(t, ok)
}

func TestUnstage_WholeTreeDropsTombstones(t *testing.T) {
	r := newRepo(t)
	pa := writeWork(t, r, "a.txt", "alpha")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)
	_, err = r.Commit("first")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(r.Root, "a.txt")))
	_, err = r.Stage([]string{"."})
	require.NoError(t, err)

	removed, err := r.Unstage([]string{"."})
	require.NoError(t, err)
	assert.Equal(t, []string{pa}, removed)

	ix, err := stage.Load(r.layout.StageFile())
	require.NoError(t, err)
	assert.Empty(t, ix)
}

func TestStatus(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")
	writeWork(t, r, "b.txt", "beta")

	_, err := r.Stage([]string{"a.txt"})
	require.NoError(t, err)

	st, err := r.Status()
	require.NoError(t, err)
	require.Len(t, st.Staged, 1)
	assert.Equal(t, FileStatus{Path: "./a.txt", State: "new"}, st.Staged[0])
	assert.Equal(t, []string{"./b.txt"}, st.Untracked)
	assert.False(t, st.Clean())
}

func TestStatus_CleanAfterCommit(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)
	_, err = r.Commit("first")
	require.NoError(t, err)

	st, err := r.Status()
	require.NoError(t, err)
	assert.True(t, st.Clean())
}

func TestStatus_ModifiedSinceCommit(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)
	_, err = r.Commit("first")
	require.NoError(t, err)

	writeWork(t, r, "a.txt", "alpha but longer")
	st, err := r.Status()
	require.NoError(t, err)
	require.Len(t, st.Modified, 1)
	assert.Equal(t, FileStatus{Path: "./a.txt", State: "modified"}, st.Modified[0])
	assert.Empty(t, st.Staged)
}

func TestStatus_DeletedSinceCommit(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)
	_, err = r.Commit("first")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(r.Root, "a.txt")))
	st, err := r.Status()
	require.NoError(t, err)
	require.Len(t, st.Modified, 1)
	assert.Equal(t, FileStatus{Path: "./a.txt", State: "deleted"}, st.Modified[0])
}

func TestCommit_EmptiesStagingArea(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)

	result, err := r.Commit("first")
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, []string{"./a.txt"}, result.Paths)

	ix, err := stage.Load(r.layout.StageFile())
	require.NoError(t, err)
	assert.Empty(t, ix)

	blobs, err := r.blobs.List()
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestCommit_NothingStaged(t *testing.T) {
	r := newRepo(t)
	_, err := r.Commit("empty")
	assert.ErrorIs(t, err, ErrNothingToCommit)
}

func TestCommit_SnapshotIsCumulative(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)
	_, err = r.Commit("first")
	require.NoError(t, err)

	writeWork(t, r, "b.txt", "beta")
	_, err = r.Stage([]string{"."})
	require.NoError(t, err)
	second, err := r.Commit("second")
	require.NoError(t, err)

	snap, err := commit.LoadSnapshot(r.layout.CommitSnapshotFile(second.ID))
	require.NoError(t, err)
	assert.Contains(t, snap, "./a.txt")
	assert.Contains(t, snap, "./b.txt")
}

func TestCommit_IsSelfContained(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)
	_, err = r.Commit("first")
	require.NoError(t, err)

	writeWork(t, r, "b.txt", "beta")
	_, err = r.Stage([]string{"."})
	require.NoError(t, err)
	second, err := r.Commit("second")
	require.NoError(t, err)

	// Every fingerprint in the snapshot has a physical blob in the
	// commit's own directory, including ones inherited from the parent.
	snap, err := commit.LoadSnapshot(r.layout.CommitSnapshotFile(second.ID))
	require.NoError(t, err)
	for _, fp := range snap {
		_, err := os.Stat(filepath.Join(r.layout.CommitBlobDir(second.ID), fp))
		assert.NoError(t, err)
	}
}

func TestCommit_DeletionDropsFromSnapshotAndHistory(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")
	writeWork(t, r, "b.txt", "beta")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)
	_, err = r.Commit("both")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(r.Root, "a.txt")))
	_, err = r.Stage([]string{"."})
	require.NoError(t, err)
	second, err := r.Commit("drop a")
	require.NoError(t, err)

	snap, err := commit.LoadSnapshot(r.layout.CommitSnapshotFile(second.ID))
	require.NoError(t, err)
	assert.NotContains(t, snap, "./a.txt")
	assert.Contains(t, snap, "./b.txt")

	st, err := r.Status()
	require.NoError(t, err)
	assert.True(t, st.Clean())
}

func TestLog(t *testing.T) {
	r := newRepo(t)

	_, err := r.Log()
	assert.ErrorIs(t, err, ErrNoCommits)

	writeWork(t, r, "a.txt", "alpha")
	_, err = r.Stage([]string{"."})
	require.NoError(t, err)
	first, err := r.Commit("first")
	require.NoError(t, err)

	writeWork(t, r, "a.txt", "alpha v2")
	_, err = r.Stage([]string{"."})
	require.NoError(t, err)
	second, err := r.Commit("second")
	require.NoError(t, err)

	entries, err := r.Log()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, second.ID, entries[1].ID)
	assert.False(t, entries[1].Timestamp.Before(entries[0].Timestamp))
}

func TestRestore_FromStagedBlob(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "staged content")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)

	writeWork(t, r, "a.txt", "scribbled over")
	restored, err := r.Restore([]string{"a.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"./a.txt"}, restored)
	assert.Equal(t, "staged content", readWork(t, r, "a.txt"))
}

func TestRestore_FromCommittedBlob(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "committed content")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)
	_, err = r.Commit("first")
	require.NoError(t, err)

	writeWork(t, r, "a.txt", "scribbled over")
	restored, err := r.Restore([]string{"a.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"./a.txt"}, restored)
	assert.Equal(t, "committed content", readWork(t, r, "a.txt"))
}

func TestRestore_UntrackedIsSkipped(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "never recorded")

	restored, err := r.Restore([]string{"a.txt"})
	require.NoError(t, err)
	assert.Empty(t, restored)
	assert.Equal(t, "never recorded", readWork(t, r, "a.txt"))
}

func TestRevert(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "version one")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)
	first, err := r.Commit("first")
	require.NoError(t, err)

	writeWork(t, r, "a.txt", "version two")
	_, err = r.Stage([]string{"."})
	require.NoError(t, err)
	_, err = r.Commit("second")
	require.NoError(t, err)

	result, err := r.Revert(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "version one", readWork(t, r, "a.txt"))

	// The revert is recorded as a new commit at the head of the chain.
	entries, err := r.Log()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, result.ID, entries[2].ID)
	assert.Equal(t, "Revert back to "+first.ID, entries[2].Message)
}

func TestRevert_PreservesStagedWork(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "version one")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)
	first, err := r.Commit("first")
	require.NoError(t, err)

	writeWork(t, r, "a.txt", "version two")
	_, err = r.Stage([]string{"."})
	require.NoError(t, err)
	_, err = r.Commit("second")
	require.NoError(t, err)

	wip := writeWork(t, r, "wip.txt", "work in progress")
	_, err = r.Stage([]string{"wip.txt"})
	require.NoError(t, err)

	_, err = r.Revert(first.ID)
	require.NoError(t, err)

	ix, err := stage.Load(r.layout.StageFile())
	require.NoError(t, err)
	fp, ok := ix.Fingerprint(wip)
	assert.True(t, ok)
	assert.True(t, r.blobs.Exists(fp))
}

func TestRevert_UnknownCommit(t *testing.T) {
	r := newRepo(t)
	writeWork(t, r, "a.txt", "alpha")
	_, err := r.Stage([]string{"."})
	require.NoError(t, err)
	_, err = r.Commit("first")
	require.NoError(t, err)

	_, err = r.Revert("no-such-commit")
	assert.ErrorIs(t, err, ErrUnknownCommit)
}
