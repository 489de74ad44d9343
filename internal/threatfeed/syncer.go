package threatfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Smeet2005/PHISHSCAN/internal/config"
	"github.com/Smeet2005/PHISHSCAN/internal/metrics"
	"github.com/Smeet2005/PHISHSCAN/pkg/hotreload"
	"github.com/Smeet2005/PHISHSCAN/pkg/observability"
)

const defaultMaxFeedSize = 100 * 1024 * 1024

var (
	errNotModified = errors.New("not modified")
	errTruncated   = errors.New("feed exceeds maximum size, skipping to avoid partial data")

	// ErrAllSourcesFailed is returned by Refresh when no feed or local list
	// could be read; the previous snapshot stays in place.
	ErrAllSourcesFailed = errors.New("all threat feed sources failed")
)

// Syncer downloads threat feeds every TTL, or sooner when triggered, and
// updates the store.
type Syncer struct {
	store       *Store
	feeds       []config.ThreatFeedEntry
	locals      []string
	watchLocal  bool
	interval    time.Duration
	maxFeedSize int64
	client      *http.Client
	logger      *slog.Logger
	metrics     *metrics.Collector
	trigger     chan struct{}
	watcher     *hotreload.ListWatcher

	mu    sync.Mutex // serialises sync rounds and guards the maps below
	etags map[string]string
	// Per-feed last-known-good snapshots. Keyed by feed name.
	lastGood    map[string][]string
	seededCache bool // true after lastGood has been seeded from store
}

// NewSyncer creates a new feed syncer. Pass nil for logger to disable logging.
func NewSyncer(store *Store, cfg config.ThreatFeedsConfig, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = observability.Discard()
	}
	interval := cfg.TTL
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	maxSize := int64(defaultMaxFeedSize)
	if cfg.MaxFeedSize != "" {
		if n, err := config.ParseByteSize(cfg.MaxFeedSize); err == nil && n > 0 {
			maxSize = n
		}
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Syncer{
		store:       store,
		feeds:       cfg.Feeds,
		locals:      cfg.LocalLists,
		watchLocal:  cfg.WatchLocal,
		interval:    interval,
		maxFeedSize: maxSize,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
		trigger:     make(chan struct{}, 1),
		etags:       make(map[string]string),
		lastGood:    make(map[string][]string),
	}
	store.OnStale(s.Trigger)
	return s
}

// SetMetrics records sync outcomes on c.
func (s *Syncer) SetMetrics(c *metrics.Collector) {
	s.metrics = c
}

// Trigger requests an early sync round. It never blocks; requests made while
// one is already pending are merged.
func (s *Syncer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Refresh runs one sync round synchronously.
func (s *Syncer) Refresh(ctx context.Context) error {
	return s.syncAll(ctx)
}

// Run syncs immediately, then every interval or on Trigger, until ctx is
// cancelled. The snapshot is saved to disk on the way out.
func (s *Syncer) Run(ctx context.Context) {
	if s.watchLocal && len(s.locals) > 0 {
		if err := s.startWatcher(ctx); err != nil {
			s.logger.Warn("local threat list watch disabled", "error", err)
		}
	}
	_ = s.syncAll(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if s.watcher != nil {
				_ = s.watcher.Stop()
			}
			if err := s.store.SaveToDisk(); err != nil {
				s.logger.Warn("threat feed disk save failed on shutdown", "error", err)
			}
			return
		case <-ticker.C:
			_ = s.syncAll(ctx)
		case <-s.trigger:
			_ = s.syncAll(ctx)
			ticker.Reset(s.interval)
		}
	}
}

func (s *Syncer) startWatcher(ctx context.Context) error {
	w, err := hotreload.NewListWatcher(hotreload.WatcherConfig{
		Files: s.locals,
		Reloader: hotreload.ReloaderFunc(func(path string) error {
			if _, err := s.parseLocalFile(path); err != nil {
				return err
			}
			s.Trigger()
			return nil
		}),
		OnChange: func(path string, err error) {
			if err != nil {
				s.logger.Warn("local threat list reload failed", "path", path, "error", err)
				return
			}
			s.logger.Info("local threat list changed", "path", path)
		},
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// syncAll fetches all feeds and local lists, merges results, and updates the store.
// On fetch failure or 304 Not Modified, the feed's last-known-good data is preserved.
func (s *Syncer) syncAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := observability.TraceStage(ctx, observability.StageFeedSync, map[string]string{
		"sources": strconv.Itoa(len(s.feeds) + len(s.locals)),
	})
	defer span.End()

	// On first sync, seed lastGood from the disk-loaded store, but only for
	// feeds that are still configured.
	needsPrune := false
	if !s.seededCache {
		s.seededCache = true
		configuredKeys := s.configuredFeedKeys()
		for feedName, entries := range s.store.Snapshot() {
			if _, configured := configuredKeys[feedName]; !configured {
				needsPrune = true
				continue
			}
			if _, exists := s.lastGood[feedName]; !exists {
				s.lastGood[feedName] = entries
			}
		}
	}

	merged := make(map[string]FeedEntry)
	anySucceeded := false
	hasSources := len(s.feeds) > 0 || len(s.locals) > 0

	for _, feed := range s.feeds {
		entries, err := s.fetchFeed(ctx, feed)
		if err != nil {
			if errors.Is(err, errNotModified) {
				s.logger.Debug("threat feed not modified", "feed", feed.Name)
				anySucceeded = true
			} else {
				s.logger.Warn("threat feed fetch failed, using cached data",
					"feed", feed.Name, "url", sanitizeURL(feed.URL), "error", err)
			}
			entries = s.lastGood[feed.Name]
		} else {
			s.lastGood[feed.Name] = entries
			s.logger.Info("threat feed synced", "feed", feed.Name, "entries", len(entries))
			anySucceeded = true
		}
		addAll(merged, entries, feed.Name)
	}

	for _, path := range s.locals {
		cacheKey := "local:" + path
		entries, err := s.parseLocalFile(path)
		if err != nil {
			s.logger.Warn("local threat list failed, using cached data", "path", path, "error", err)
			entries = s.lastGood[cacheKey]
		} else {
			s.lastGood[cacheKey] = entries
			anySucceeded = true
		}
		addAll(merged, entries, cacheKey)
	}

	switch {
	case anySucceeded || !hasSources:
		s.store.Update(merged)
	case len(merged) > 0 || needsPrune:
		s.store.Replace(merged)
	}
	if err := s.store.SaveToDisk(); err != nil {
		s.logger.Warn("threat feed disk save failed", "error", err)
	}

	if hasSources && !anySucceeded {
		s.metrics.IncFeedSync(false)
		observability.RecordError(span, ErrAllSourcesFailed)
		return ErrAllSourcesFailed
	}
	s.metrics.IncFeedSync(true)
	return nil
}

func addAll(merged map[string]FeedEntry, entries []string, feedName string) {
	now := time.Now()
	for _, e := range entries {
		if _, exists := merged[e]; !exists {
			merged[e] = FeedEntry{FeedName: feedName, AddedAt: now}
		}
	}
}

func (s *Syncer) fetchFeed(ctx context.Context, feed config.ThreatFeedEntry) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, err
	}
	if etag, ok := s.etags[feed.Name]; ok {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, errNotModified
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	// Read one byte past the cap so "exactly at limit" and "truncated" differ.
	lr := &io.LimitedReader{R: resp.Body, N: s.maxFeedSize + 1}
	entries, err := ParserForFormat(feed.Format).Parse(lr)
	if err != nil {
		return nil, err
	}
	if lr.N == 0 {
		return nil, errTruncated
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		s.etags[feed.Name] = etag
	}
	return entries, nil
}

func (s *Syncer) parseLocalFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return URLListParser{}.Parse(f)
}

// configuredFeedKeys returns the remote names and local cache keys currently
// configured, used to drop cached entries of removed feeds.
func (s *Syncer) configuredFeedKeys() map[string]struct{} {
	keys := make(map[string]struct{}, len(s.feeds)+len(s.locals))
	for _, feed := range s.feeds {
		keys[feed.Name] = struct{}{}
	}
	for _, path := range s.locals {
		keys["local:"+path] = struct{}{}
	}
	return keys
}

// sanitizeURL strips everything except scheme and host from a URL for safe
// logging. Path segments may contain tokens in some feed URLs.
func sanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	return u.Scheme + "://" + u.Host
}
