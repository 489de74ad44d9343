package hotreload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingReloader struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recordingReloader) Reload(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return r.err
}

func (r *recordingReloader) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewListWatcher(t *testing.T) {
	t.Run("requires files", func(t *testing.T) {
		if _, err := NewListWatcher(WatcherConfig{Reloader: &recordingReloader{}}); err == nil {
			t.Error("expected error for no files")
		}
	})
	t.Run("requires reloader", func(t *testing.T) {
		if _, err := NewListWatcher(WatcherConfig{Files: []string{"/tmp/x.txt"}}); err == nil {
			t.Error("expected error for nil reloader")
		}
	})
}

func TestListWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "blocked.txt")
	other := filepath.Join(dir, "other.txt")
	if err := os.WriteFile(list, []byte("bad.example\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &recordingReloader{}
	var changed []string
	var mu sync.Mutex
	w, err := NewListWatcher(WatcherConfig{
		Files:    []string{list},
		Reloader: r,
		Debounce: 20 * time.Millisecond,
		OnChange: func(path string, err error) {
			mu.Lock()
			changed = append(changed, path)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := w.Start(ctx); err == nil {
		t.Error("expected error on double start")
	}

	if err := os.WriteFile(other, []byte("ignored\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(list, []byte("bad.example\nworse.example\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return r.Count() >= 1 })
	r.mu.Lock()
	for _, p := range r.paths {
		if filepath.Base(p) != "blocked.txt" {
			t.Errorf("unexpected reload of %s", p)
		}
	}
	r.mu.Unlock()

	stats := w.Stats()
	if stats.ReloadsSuccess < 1 || stats.ReloadsFailed != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	mu.Lock()
	if len(changed) == 0 {
		t.Error("expected OnChange callback")
	}
	mu.Unlock()
}

func TestListWatcher_TriggerReloadRecordsFailure(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "blocked.txt")
	if err := os.WriteFile(list, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	r := &recordingReloader{err: errors.New("parse failed")}
	w, err := NewListWatcher(WatcherConfig{Files: []string{list}, Reloader: r})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.TriggerReload(); err == nil {
		t.Error("expected error when not running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.TriggerReload(); err != nil {
		t.Fatalf("TriggerReload: %v", err)
	}
	waitFor(t, func() bool { return w.Stats().ReloadsFailed == 1 })
	if w.Stats().LastError == "" {
		t.Error("expected LastError to be set")
	}
}
