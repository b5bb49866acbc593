// Package watcher rebuilds collection stores when their knowledge
// directories change on disk.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 2 * time.Second

// Watcher watches one knowledge directory per collection and invokes the
// change callback once per burst of file events. Editors and sync tools tend
// to fire many events for a single document, so changes are debounced per
// collection rather than per file.
type Watcher struct {
	dirs     map[string]string // org -> knowledge directory
	onChange func(org string)
	debounce time.Duration
	logger   *zap.Logger

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the event settle window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over the given org -> directory mapping.
// onChange is called with the collection name after a debounced change.
func NewWatcher(dirs map[string]string, onChange func(org string), logger *zap.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		dirs:        dirs,
		onChange:    onChange,
		debounce:    defaultDebounce,
		logger:      logger,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Missing knowledge directories are created so a
// collection can be provisioned by dropping files in later. Runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	for org, dir := range w.dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			_ = watcher.Close()
			w.mu.Unlock()
			return err
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			w.mu.Unlock()
			return err
		}
		w.logger.Info("watching knowledge directory",
			zap.String("org", org), zap.String("dir", dir))
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	org := w.orgForPath(ev.Name)
	if org == "" {
		return
	}
	w.logger.Debug("knowledge change",
		zap.String("org", org), zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	w.scheduleChange(org)
}

func (w *Watcher) orgForPath(path string) string {
	clean := filepath.Clean(path)
	for org, dir := range w.dirs {
		dirClean := filepath.Clean(dir)
		if clean == dirClean || strings.HasPrefix(clean, dirClean+string(filepath.Separator)) {
			return org
		}
	}
	return ""
}

func (w *Watcher) scheduleChange(org string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[org]; ok {
		t.Stop()
	}
	w.debounceMap[org] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, org)
		w.mu.Unlock()
		if w.onChange != nil {
			w.onChange(org)
		}
	})
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for org, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, org)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
