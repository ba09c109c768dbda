// internal/repo/repo.go
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"epoch/internal/blob"
	"epoch/internal/fsutil"
	"epoch/internal/workdir"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// MetaDirName is the metadata directory owning all repository state.
const MetaDirName = ".epoch"

// IgnoreFileName is the ignore rules file at the working-tree root.
const IgnoreFileName = ".epochignore"

var (
	ErrExists          = errors.New("repository already initialized")
	ErrNotFound        = errors.New("repository not found")
	ErrNothingToCommit = errors.New("nothing to commit")
	ErrUnknownCommit   = errors.New("unknown commit")
	ErrNoCommits       = errors.New("no commits yet")
)

// Layout maps out every metadata path under a repository root.
type Layout struct {
	Root string
}

func (l Layout) MetaDir() string {
	return filepath.Join(l.Root, MetaDirName)
}

func (l Layout) IgnoreFile() string {
	return filepath.Join(l.Root, IgnoreFileName)
}

func (l Layout) StageFile() string {
	return filepath.Join(l.MetaDir(), "stage.json")
}

func (l Layout) StageBlobDir() string {
	return filepath.Join(l.MetaDir(), "snapshot")
}

func (l Layout) HistoryFile() string {
	return filepath.Join(l.MetaDir(), "history")
}

func (l Layout) HeadFile() string {
	return filepath.Join(l.MetaDir(), "head")
}

func (l Layout) TailFile() string {
	return filepath.Join(l.MetaDir(), "tail")
}

func (l Layout) ConfigFile() string {
	return filepath.Join(l.MetaDir(), "config.json")
}

func (l Layout) CacheDir() string {
	return filepath.Join(l.MetaDir(), "db")
}

func (l Layout) CommitsDir() string {
	return filepath.Join(l.MetaDir(), "commits")
}

func (l Layout) CommitTableFile() string {
	return filepath.Join(l.CommitsDir(), "info.json")
}
func (l Layout) CommitDir(id string) string {
	return filepath.Join(l.CommitsDir(), id)
}
func (l Layout) CommitSnapshotFile(id string) string {
	return filepath.Join(l.CommitDir(id), "snapshot.json")
}
func (l Layout) CommitBlobDir(id string) string {
	return filepath.Join(l.CommitDir(id), "snapshot")
}

// Repository is the explicit context for every versioning operation. It is
// constructed from the working-directory root; there is no ambient global
// state.
type Repository struct {
	Root string

	layout  Layout
	rules   *workdir.Rules
	matcher *workdir.Matcher
	blobs   *blob.Store // staging blob area
	db      *badger.DB  // file-state cache, may be nil
	log     *zap.Logger
}

// Exists reports whether a repository has been initialized at root.
func Exists(root string) bool {
	_, err := os.Stat(Layout{Root: root}.MetaDir())
	return err == nil
}

// Init creates an empty repository at root: metadata directory, empty
// staging index and blob area, empty head/tail pointers, empty commit
// table, config, and the history file.
func Init(root string) error {
	l := Layout{Root: root}
	if Exists(root) {
		return ErrExists
	}

	dirs := []string{l.MetaDir(), l.StageBlobDir(), l.CommitsDir()}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	seeds := []struct {
		path string
		data string
	}{
		{l.StageFile(), "{}"},
		{l.HeadFile(), ""},
		{l.TailFile(), ""},
		{l.CommitTableFile(), "{}"},
		{l.ConfigFile(), "{}"},
		{l.HistoryFile(), "# Historically committed files\n"},
	}
	for _, seed := range seeds {
		if err := os.WriteFile(seed.path, []byte(seed.data), 0644); err != nil {
			return fmt.Errorf("creating %s: %w", seed.path, err)
		}
	}
	return nil
}

// Open loads an initialized repository. The ignore rules are read once; the
// badger-backed file-state cache is best effort and the repository works
// identically (just slower) when it cannot be opened.
func Open(root string, logger *zap.Logger) (*Repository, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}
	if !Exists(absRoot) {
		return nil, ErrNotFound
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := Layout{Root: absRoot}
	rules, err := workdir.LoadRules(l.IgnoreFile(), "./"+MetaDirName)
	if err != nil {
		return nil, fmt.Errorf("loading ignore rules: %w", err)
	}

	blobs, err := blob.NewStore(l.StageBlobDir(), 256)
	if err != nil {
		return nil, fmt.Errorf("opening staging blob area: %w", err)
	}

	opts := badger.DefaultOptions(l.CacheDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		logger.Warn("file-state cache unavailable", zap.Error(err))
		db = nil
	}

	return &Repository{
		Root:    absRoot,
		layout:  l,
		rules:   rules,
		matcher: workdir.NewMatcher(absRoot, rules),
		blobs:   blobs,
		db:      db,
		log:     logger,
	}, nil
}

// Close releases the file-state cache.
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// IsIgnored classifies a canonical path against the repository's ignore
// rules.
func (r *Repository) IsIgnored(path string) bool {
	return r.rules.IsIgnored(path)
}

// Rules exposes the loaded ignore rules (used by the watcher).
func (r *Repository) Rules() *workdir.Rules { return r.rules }

func (r *Repository) workPath(path string) string {
	return filepath.Join(r.Root, path)
}

func (r *Repository) readPointer(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (r *Repository) writePointer(path, id string) error {
	return fsutil.WriteFileAtomic(path, []byte(id), 0644)
}

func (r *Repository) head() (string, error) {
	return r.readPointer(r.layout.HeadFile())
}

func (r *Repository) tail() (string, error) {
	return r.readPointer(r.layout.TailFile())
}
