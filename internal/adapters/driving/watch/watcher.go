// Package watch monitors the drop folder and feeds new files into the
// ingestion pipeline.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/davidsparrow/findmysh/internal/core/ports/driving"
	"github.com/davidsparrow/findmysh/internal/logger"
)

// debounceWindow coalesces the event bursts editors and copies produce
// for a single file.
const debounceWindow = 500 * time.Millisecond

// Watcher feeds files dropped into a folder through the indexer.
type Watcher struct {
	dir     string
	indexer driving.Indexer

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher over the given directory.
func NewWatcher(dir string, indexer driving.Indexer) *Watcher {
	return &Watcher{
		dir:     dir,
		indexer: indexer,
		pending: make(map[string]*time.Timer),
	}
}

// Run watches the folder until the context is cancelled. Create and
// write events schedule ingestion after a short debounce; removes,
// renames and chmods are ignored.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	logger.Info("Watching %s", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.drainTimers()
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

// schedule (re)arms the debounce timer for one path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(debounceWindow)
		return
	}
	w.pending[path] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	if err := w.indexer.AddFiles(ctx, []string{path}); err != nil {
		logger.Warn("Indexing %s failed: %v", filepath.Base(path), err)
	}
}

func (w *Watcher) drainTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}
