// Package cache memoizes reputation results per (service, URL) for a bounded
// time.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Smeet2005/PHISHSCAN/internal/detect"
)

const fileName = "verdicts.json"

// Key identifies a cached result by service and normalized URL.
type Key struct {
	Service string
	URL     string
}

// String returns the key formatted as "service:url".
func (k Key) String() string {
	return k.Service + ":" + k.URL
}

type Config struct {
	// Dir is where the cache file is kept. Empty disables persistence.
	Dir string
	// TTL is how long a result is trusted.
	TTL time.Duration
	// Now is used for testing.
	Now func() time.Time
}

type entry struct {
	Result     detect.Result `json:"result"`
	InsertedAt time.Time     `json:"inserted_at"`
}

type diskFormat struct {
	Entries map[string]entry `json:"entries"`
}

// Cache is a thread-safe TTL cache of reputation results, optionally
// persisted as JSON between runs.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
	path    string
}

var _ detect.VerdictCache = (*Cache)(nil)

// New creates a Cache. When cfg.Dir is set the directory is created and any
// previous cache file in it is loaded.
func New(cfg Config) (*Cache, error) {
	c := &Cache{
		ttl:     cfg.TTL,
		now:     cfg.Now,
		entries: make(map[string]entry),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if cfg.Dir == "" {
		return c, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c.path = filepath.Join(cfg.Dir, fileName)
	if err := c.loadFromDisk(); err != nil {
		// A missing or corrupt file starts an empty cache.
		c.entries = make(map[string]entry)
	}
	return c, nil
}

// Get returns the result for (service, url) if it is younger than the TTL.
func (c *Cache) Get(service, url string) (detect.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[Key{service, url}.String()]
	if !ok || !c.fresh(e, c.now()) {
		return detect.Result{}, false
	}
	return e.Result, true
}

// Put stores r, replacing any previous result for the key.
func (c *Cache) Put(service, url string, r detect.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key{service, url}.String()] = entry{Result: r, InsertedAt: c.now()}
}

// Sweep drops entries that expired by now and returns how many were removed.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if !c.fresh(e, now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close flushes live entries to disk when persistence is enabled.
func (c *Cache) Close() error {
	if c.path == "" {
		return nil
	}
	c.Sweep(c.now())

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flushToDisk()
}

func (c *Cache) fresh(e entry, now time.Time) bool {
	return now.Sub(e.InsertedAt) < c.ttl
}

func (c *Cache) loadFromDisk() error {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var df diskFormat
	if err := json.Unmarshal(data, &df); err != nil {
		return fmt.Errorf("unmarshal cache: %w", err)
	}
	if df.Entries != nil {
		c.entries = df.Entries
	}
	return nil
}

// flushToDisk writes the current entries. The caller must hold at least an
// RLock.
func (c *Cache) flushToDisk() error {
	data, err := json.Marshal(diskFormat{Entries: c.entries})
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}
