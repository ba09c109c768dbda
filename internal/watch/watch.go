// Package watch streams filesystem change events for a repository's
// working tree, filtered through its ignore rules.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"epoch/internal/workdir"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Event is a single working-tree change. Path is in canonical form.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher observes a working tree recursively. fsnotify watches are
// per-directory, so new directories are added as they appear.
type Watcher struct {
	root  string
	rules *workdir.Rules
	fw    *fsnotify.Watcher
	log   *zap.Logger
}

func New(root string, rules *workdir.Rules, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	return &Watcher{root: root, rules: rules, fw: fw, log: logger}, nil
}

// Run watches until ctx is cancelled, calling fn for every event on a
// file that is not ignored. Events for ignored paths and directories are
// dropped, except that newly created directories get a watch.
func (w *Watcher) Run(ctx context.Context, fn func(Event)) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev, fn)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event, fn func(Event)) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		w.log.Warn("resolving event path", zap.Error(err))
		return
	}
	path := workdir.CanonicalPath(rel)
	if w.rules.IsIgnored(path) {
		return
	}

	if ev.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.log.Warn("watching new directory", zap.Error(err))
			}
			return
		}
	}

	fn(Event{Path: path, Op: ev.Op})
}

// addTree registers a watch on dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root {
			rel, err := filepath.Rel(w.root, p)
			if err != nil {
				return err
			}
			if w.rules.IsIgnored(workdir.CanonicalPath(rel)) {
				return filepath.SkipDir
			}
		}
		return w.fw.Add(p)
	})
}

func (w *Watcher) Close() error {
	return w.fw.Close()
}
