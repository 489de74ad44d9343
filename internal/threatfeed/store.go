package threatfeed

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Smeet2005/PHISHSCAN/internal/urlnorm"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

// retryAfter bounds how often a stale store asks for another refresh while
// the previous one has not produced fresh data.
const retryAfter = time.Minute

// FeedEntry records which feed listed an entry and when.
type FeedEntry struct {
	FeedName string
	AddedAt  time.Time
}

// Store is a thread-safe known-bad snapshot with disk persistence. Matching
// never sees an empty set: the fixed demonstration set stands in until the
// first feed data arrives.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]FeedEntry
	snap      *snapshot
	fetchedAt time.Time
	ttl       time.Duration
	cacheDir  string
	boundary  bool

	trigMu      sync.Mutex
	onStale     func()
	lastTrigger time.Time

	now func() time.Time
}

// NewStore creates an empty store. A ttl of 0 means the snapshot never goes stale.
func NewStore(cacheDir string, ttl time.Duration) *Store {
	return &Store{
		entries:  make(map[string]FeedEntry),
		snap:     newSnapshot(nil),
		ttl:      ttl,
		cacheDir: cacheDir,
		now:      time.Now,
	}
}

// SetLabelBoundary restricts substring matches to whole labels.
func (s *Store) SetLabelBoundary(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boundary = on
}

// OnStale registers the function called by EnsureFresh. It must not block.
func (s *Store) OnStale(fn func()) {
	s.trigMu.Lock()
	defer s.trigMu.Unlock()
	s.onStale = fn
}

// Update atomically replaces the entry set and marks it fetched now.
func (s *Store) Update(entries map[string]FeedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	s.snap = newSnapshot(keys(entries))
	s.fetchedAt = s.now()
}

// Replace swaps the entry set but keeps the fetch time, for rounds where
// every source failed and only cached data was reassembled.
func (s *Store) Replace(entries map[string]FeedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	s.snap = newSnapshot(keys(entries))
}

// Touch marks the current entries as fresh without changing them.
func (s *Store) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchedAt = s.now()
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// Stale reports whether the snapshot is older than the TTL at now.
func (s *Store) Stale(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ttl <= 0 {
		return false
	}
	return s.fetchedAt.IsZero() || now.Sub(s.fetchedAt) >= s.ttl
}

// EnsureFresh fires the stale hook when the snapshot expired. It never blocks
// and fires at most once per retryAfter.
func (s *Store) EnsureFresh() {
	now := s.now()
	if !s.Stale(now) {
		return
	}
	s.trigMu.Lock()
	fn := s.onStale
	if fn == nil || now.Sub(s.lastTrigger) < retryAfter {
		s.trigMu.Unlock()
		return
	}
	s.lastTrigger = now
	s.trigMu.Unlock()
	fn()
}

// Fallback reports whether matching currently uses the demonstration set.
func (s *Store) Fallback() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snap.list) == 0
}

// Entries returns the sorted entries used for matching, substituting the
// demonstration set when the feed is empty.
func (s *Store) Entries() []string {
	snap := s.effective()
	out := make([]string, len(snap.list))
	copy(out, snap.list)
	return out
}

// Match checks rec against the current snapshot.
func (s *Store) Match(rec urlnorm.Record) MatchResult {
	s.EnsureFresh()
	s.mu.RLock()
	boundary := s.boundary
	s.mu.RUnlock()
	return s.effective().match(rec, boundary)
}

// MatchFallback checks rec against the demonstration set only.
func (s *Store) MatchFallback(rec urlnorm.Record) MatchResult {
	s.mu.RLock()
	boundary := s.boundary
	s.mu.RUnlock()
	return fallback.match(rec, boundary)
}

// Snapshot returns the current entries grouped by feed name.
func (s *Store) Snapshot() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grouped := make(map[string][]string)
	for entry, meta := range s.entries {
		grouped[meta.FeedName] = append(grouped[meta.FeedName], entry)
	}
	return grouped
}

// Status summarises the store for the API.
func (s *Store) Status() types.FeedStatus {
	now := s.now()
	grouped := s.Snapshot()
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)
	usingFallback := s.Fallback()

	s.mu.RLock()
	st := types.FeedStatus{
		Size:      len(s.entries),
		FetchedAt: s.fetchedAt,
		TTL:       s.ttl.String(),
		Fallback:  usingFallback,
		Feeds:     names,
	}
	s.mu.RUnlock()
	st.Stale = s.Stale(now)
	return st
}

func (s *Store) effective() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snap.list) == 0 {
		return fallback
	}
	return s.snap
}

func keys(m map[string]FeedEntry) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

type diskCache struct {
	Entries   map[string]FeedEntry
	FetchedAt time.Time
}

const cacheFileName = "feeds.cache"

// SaveToDisk persists the current entry set to a gob-encoded file.
func (s *Store) SaveToDisk() error {
	if s.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return err
	}

	s.mu.RLock()
	cache := diskCache{Entries: s.entries, FetchedAt: s.fetchedAt}
	s.mu.RUnlock()

	path := filepath.Join(s.cacheDir, cacheFileName)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(&cache); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	// On Windows, os.Rename fails if the destination exists. Remove it first.
	if runtime.GOOS == "windows" {
		os.Remove(path)
	}
	return os.Rename(tmp, path)
}

// LoadFromDisk restores a previously persisted entry set, keeping its
// original fetch time so staleness survives restarts.
func (s *Store) LoadFromDisk() error {
	if s.cacheDir == "" {
		return nil
	}
	path := filepath.Join(s.cacheDir, cacheFileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var cache diskCache
	if err := gob.NewDecoder(f).Decode(&cache); err != nil {
		return err
	}
	if cache.Entries == nil {
		cache.Entries = make(map[string]FeedEntry)
	}
	s.mu.Lock()
	s.entries = cache.Entries
	s.snap = newSnapshot(keys(cache.Entries))
	s.fetchedAt = cache.FetchedAt
	s.mu.Unlock()
	return nil
}
