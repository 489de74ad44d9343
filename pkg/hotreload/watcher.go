// Package hotreload reloads local block-list files when they change on disk.
package hotreload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader re-reads a list file after it changed.
type Reloader interface {
	Reload(path string) error
}

// ReloaderFunc adapts a function to Reloader.
type ReloaderFunc func(path string) error

func (f ReloaderFunc) Reload(path string) error { return f(path) }

// WatcherStats counts reloads. Failed includes watcher errors.
type WatcherStats struct {
	ReloadsTotal   int64     `json:"reloads_total"`
	ReloadsSuccess int64     `json:"reloads_success"`
	ReloadsFailed  int64     `json:"reloads_failed"`
	LastReload     time.Time `json:"last_reload,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	LastErrorTime  time.Time `json:"last_error_time,omitempty"`
}

type WatcherConfig struct {
	Files    []string
	Reloader Reloader
	// Debounce collapses bursts of events on one file. Default 200ms.
	Debounce time.Duration
	OnChange func(path string, err error)
}

// ListWatcher watches a fixed set of list files. Parent directories are
// watched so editors that save through a rename are still seen.
type ListWatcher struct {
	cfg     WatcherConfig
	files   map[string]struct{}
	running atomic.Bool
	queue   chan string
	fsw     *fsnotify.Watcher

	mu    sync.Mutex
	stats WatcherStats
}

func NewListWatcher(cfg WatcherConfig) (*ListWatcher, error) {
	if len(cfg.Files) == 0 {
		return nil, errors.New("at least one list file is required")
	}
	if cfg.Reloader == nil {
		return nil, errors.New("reloader is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 200 * time.Millisecond
	}
	files := make(map[string]struct{}, len(cfg.Files))
	for _, f := range cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", f, err)
		}
		files[abs] = struct{}{}
	}
	return &ListWatcher{cfg: cfg, files: files, queue: make(chan string, len(files)+8)}, nil
}

// Start registers the directory watches and returns; events are handled in
// the background until ctx is cancelled or Stop is called.
func (w *ListWatcher) Start(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("watcher already running")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.running.Store(false)
		return fmt.Errorf("create watcher: %w", err)
	}
	seen := make(map[string]bool)
	for f := range w.files {
		dir := filepath.Dir(f)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			w.running.Store(false)
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.fsw = fsw
	go w.loop(ctx, fsw)
	return nil
}

// loop debounces filesystem events per file and runs reloads serially.
func (w *ListWatcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	due := make(map[string]time.Time)
	tick := time.NewTicker(max(w.cfg.Debounce/4, time.Millisecond))
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if name, err := filepath.Abs(ev.Name); err == nil {
				if _, ok := w.files[name]; ok {
					due[name] = time.Now().Add(w.cfg.Debounce)
				}
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.fail(fmt.Sprintf("watcher error: %v", err))
		case now := <-tick.C:
			for path, at := range due {
				if now.After(at) {
					delete(due, path)
					w.reload(path)
				}
			}
		case path := <-w.queue:
			w.reload(path)
		}
	}
}

func (w *ListWatcher) reload(path string) {
	w.mu.Lock()
	w.stats.ReloadsTotal++
	w.mu.Unlock()

	err := w.cfg.Reloader.Reload(path)
	if err != nil {
		w.fail(fmt.Sprintf("reload %s: %v", path, err))
	} else {
		w.mu.Lock()
		w.stats.ReloadsSuccess++
		w.stats.LastReload = time.Now()
		w.mu.Unlock()
	}
	if w.cfg.OnChange != nil {
		w.cfg.OnChange(path, err)
	}
}

func (w *ListWatcher) fail(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.ReloadsFailed++
	w.stats.LastError = msg
	w.stats.LastErrorTime = time.Now()
}

func (w *ListWatcher) Stop() error {
	if !w.running.CompareAndSwap(true, false) || w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}

func (w *ListWatcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// TriggerReload queues every watched file for reload.
func (w *ListWatcher) TriggerReload() error {
	if !w.running.Load() {
		return errors.New("watcher not running")
	}
	for path := range w.files {
		select {
		case w.queue <- path:
		default:
			return errors.New("reload queue full")
		}
	}
	return nil
}
