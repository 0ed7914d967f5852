package vault

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// stateRel is the state file path relative to the vault root.
const stateRel = ".copilot/state.yaml"

// Watcher turns file system events in the vault into raw change signals.
// It does no debouncing of its own.
type Watcher struct {
	root   string
	ignore *IgnoreMatcher
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[int]func(key string)
	nextID int
}

// NewWatcher creates a Watcher for v. Call Run to start delivering signals.
func NewWatcher(v *Vault) *Watcher {
	return &Watcher{
		root:   v.root,
		ignore: v.ignore,
		logger: v.logger,
		subs:   make(map[int]func(string)),
	}
}

// OnRawChangeSignal implements assistant.SignalSource. cb receives the
// slash-separated path of the changed file.
func (w *Watcher) OnRawChangeSignal(cb func(key string)) (unregister func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = cb
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
		})
	}
}

func (w *Watcher) emit(rel string) {
	w.mu.Lock()
	ids := make([]int, 0, len(w.subs))
	for id := range w.subs {
		ids = append(ids, id)
	}
	cbs := make([]func(string), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		cbs = append(cbs, w.subs[id])
	}
	w.mu.Unlock()

	for _, cb := range cbs {
		cb(rel)
	}
}

// Run watches the vault until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("vault: create watcher: %w", err)
	}
	defer fw.Close()

	if err := addWatchDirs(fw, w.root, w.ignore); err != nil {
		return fmt.Errorf("vault: add watch directories: %w", err)
	}
	w.logger.Info("vault: watching", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("vault: watcher stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(w.root, ev.Name)
			if err != nil || rel == "." {
				continue
			}
			rel = filepath.ToSlash(rel)

			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if !shouldIgnoreEvent(rel+"/x.md", w.ignore) {
						if err := addWatchDirs(fw, ev.Name, w.ignore); err != nil {
							w.logger.Warn("vault: add new dir failed",
								slog.String("path", rel), slog.String("error", err.Error()))
						}
					}
					continue
				}
			}
			if !relevant(rel, w.ignore) {
				continue
			}
			w.logger.Debug("vault: change", slog.String("path", rel), slog.String("op", ev.Op.String()))
			w.emit(rel)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("vault: watch error", slog.String("error", err.Error()))
		}
	}
}

// addWatchDirs recursively adds directories to the watcher, skipping
// ignored ones. The state directory is watched even though it is hidden.
func addWatchDirs(fw *fsnotify.Watcher, root string, ignore *IgnoreMatcher) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		rel = filepath.ToSlash(rel)
		if rel != "." {
			if d.Name() == ".copilot" {
				return fw.Add(p)
			}
			if HardIgnore(d.Name()) || ignore.Match(rel+"/") {
				return filepath.SkipDir
			}
		}
		return fw.Add(p)
	})
}

// shouldIgnoreEvent checks whether a relative path should be ignored.
func shouldIgnoreEvent(rel string, ignore *IgnoreMatcher) bool {
	return ignore.skipped(rel)
}

// relevant reports whether a change to rel can affect built context.
func relevant(rel string, ignore *IgnoreMatcher) bool {
	if rel == stateRel {
		return true
	}
	return strings.HasSuffix(rel, ".md") && !shouldIgnoreEvent(rel, ignore)
}
