package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"agentcluster/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file when it changes on disk and hands the
// freshly loaded Config to onChange. Invalid files are logged and skipped.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	onChange    func(*Config)
	debounceDur time.Duration
	pendingAt   time.Time
	reloads     int
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	return &Watcher{
		watcher:     fw,
		path:        abs,
		onChange:    onChange,
		debounceDur: 200 * time.Millisecond,
	}, nil
}

// Run blocks, dispatching reloads until ctx is cancelled.
// The parent directory is watched so editors that replace the file are seen.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logging.Get(logging.CategoryConfig).Info("Watching config file: %s", w.path)

	ticker := time.NewTicker(w.debounceDur / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryConfig).Error("Config watcher error: %v", err)

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	w.pendingAt = time.Now()
	w.mu.Unlock()
}

// flush reloads once the last event has settled past the debounce window.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.pendingAt.IsZero() || time.Since(w.pendingAt) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.pendingAt = time.Time{}
	w.mu.Unlock()

	cfg, err := Load(w.path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logging.Get(logging.CategoryConfig).Warn("Ignoring invalid config reload: %v", err)
		return
	}

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	logging.Get(logging.CategoryConfig).Info("Config reloaded from %s", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Reloads returns how many successful reloads were dispatched.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}
