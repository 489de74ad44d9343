package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Smeet2005/PHISHSCAN/internal/detect"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestKeyString(t *testing.T) {
	k := Key{Service: "virustotal", URL: "https://evil.example/login"}
	want := "virustotal:https://evil.example/login"
	if got := k.String(); got != want {
		t.Errorf("Key.String() = %q, want %q", got, want)
	}
}

func TestPutThenGet(t *testing.T) {
	c, err := New(Config{TTL: time.Minute})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := detect.Result{
		Malicious: true,
		Reason:    "VirusTotal: 5/70 engines detected (7.1%)",
		Evidence:  &types.Evidence{Positives: 5, Total: 70, ResponseCode: 1},
	}
	c.Put("virustotal", "https://evil.example/", r)

	got, ok := c.Get("virustotal", "https://evil.example/")
	if !ok {
		t.Fatal("Get returned false, want true")
	}
	if got.Reason != r.Reason || got.Evidence.Positives != 5 {
		t.Errorf("got %+v", got)
	}
	if _, ok := c.Get("safebrowsing", "https://evil.example/"); ok {
		t.Error("results must be keyed per service")
	}
}

func TestExpiredEntryIsMiss(t *testing.T) {
	clk := newClock()
	c, err := New(Config{TTL: 90 * time.Second, Now: clk.Now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Put("virustotal", "https://a.example/", detect.Result{Reason: "VirusTotal: Clean (0/70 engines detected)"})

	clk.Advance(89 * time.Second)
	if _, ok := c.Get("virustotal", "https://a.example/"); !ok {
		t.Fatal("entry should still be fresh")
	}
	clk.Advance(time.Second)
	if _, ok := c.Get("virustotal", "https://a.example/"); ok {
		t.Fatal("entry at TTL must be treated as absent")
	}
}

func TestPutOverwrites(t *testing.T) {
	clk := newClock()
	c, _ := New(Config{TTL: time.Minute, Now: clk.Now})
	c.Put("sb", "u", detect.Result{Reason: "first"})
	clk.Advance(50 * time.Second)
	c.Put("sb", "u", detect.Result{Reason: "second"})
	clk.Advance(50 * time.Second)

	got, ok := c.Get("sb", "u")
	if !ok || got.Reason != "second" {
		t.Fatalf("got %+v ok=%v, want refreshed second entry", got, ok)
	}
}

func TestSweep(t *testing.T) {
	clk := newClock()
	c, _ := New(Config{TTL: time.Minute, Now: clk.Now})
	c.Put("sb", "old", detect.Result{})
	clk.Advance(2 * time.Minute)
	c.Put("sb", "new", detect.Result{})

	if n := c.Sweep(clk.Now()); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	clk := newClock()

	c1, err := New(Config{Dir: dir, TTL: time.Hour, Now: clk.Now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c1.Put("virustotal", "https://x.example/", detect.Result{Reason: "VirusTotal: Clean (0/70 engines detected)"})
	if err := c1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("stat cache file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("cache file mode = %v, want 0600", perm)
	}

	c2, err := New(Config{Dir: dir, TTL: time.Hour, Now: clk.Now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, ok := c2.Get("virustotal", "https://x.example/")
	if !ok || got.Reason != "VirusTotal: Clean (0/70 engines detected)" {
		t.Fatalf("reloaded entry = %+v ok=%v", got, ok)
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := New(Config{Dir: dir, TTL: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := New(Config{TTL: time.Hour})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Put("sb", "u", detect.Result{})
				c.Get("sb", "u")
				c.Sweep(time.Now())
			}
		}()
	}
	wg.Wait()
}
