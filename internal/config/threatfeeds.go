package config

import (
	"fmt"
	"strings"
	"time"
)

// OpenPhishFeedURL is the public OpenPhish community feed.
const OpenPhishFeedURL = "https://raw.githubusercontent.com/openphish/public_feed/refs/heads/main/feed.txt"

// ThreatFeedsConfig configures the local known-bad URL snapshot.
type ThreatFeedsConfig struct {
	// Enabled defaults to true; set false to rely on the fallback set only.
	Enabled    *bool             `yaml:"enabled"`
	Feeds      []ThreatFeedEntry `yaml:"feeds"`
	LocalLists []string          `yaml:"local_lists"`
	// WatchLocal reloads local lists as soon as they change on disk.
	WatchLocal bool `yaml:"watch_local"`
	// TTL is how long a snapshot is trusted before a refresh is triggered.
	TTL      time.Duration `yaml:"ttl"`
	CacheDir string        `yaml:"cache_dir"`
	// LabelBoundary restricts substring matches to whole labels.
	LabelBoundary bool          `yaml:"label_boundary"`
	MaxFeedSize   string        `yaml:"max_feed_size"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
}

// ThreatFeedEntry defines a single remote threat feed.
type ThreatFeedEntry struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Format string `yaml:"format"` // "url-list", "domain-list" or "hostfile"
}

// IsEnabled reports whether feed syncing is on.
func (c ThreatFeedsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func applyThreatFeedDefaults(c *ThreatFeedsConfig) {
	if c.Feeds == nil && c.LocalLists == nil {
		c.Feeds = []ThreatFeedEntry{{Name: "openphish", URL: OpenPhishFeedURL, Format: "url-list"}}
	}
	for i := range c.Feeds {
		if c.Feeds[i].Format == "" {
			c.Feeds[i].Format = "url-list"
		}
	}
	if c.TTL == 0 {
		c.TTL = 30 * time.Minute
	}
	if c.CacheDir == "" {
		c.CacheDir = "data/feeds"
	}
	if c.MaxFeedSize == "" {
		c.MaxFeedSize = "100MB"
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 30 * time.Second
	}
}

func validateThreatFeeds(c *ThreatFeedsConfig) error {
	seen := make(map[string]struct{}, len(c.Feeds))
	for _, f := range c.Feeds {
		if f.Name == "" {
			return fmt.Errorf("threat_feeds.feeds: name is required")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("threat_feeds.feeds: duplicate name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if !strings.HasPrefix(f.URL, "http://") && !strings.HasPrefix(f.URL, "https://") {
			return fmt.Errorf("threat_feeds.feeds[%s]: url must be http(s)", f.Name)
		}
		switch strings.ToLower(f.Format) {
		case "url-list", "domain-list", "hostfile":
		default:
			return fmt.Errorf("threat_feeds.feeds[%s]: invalid format %q", f.Name, f.Format)
		}
	}
	if c.TTL < 0 {
		return fmt.Errorf("threat_feeds.ttl must be >= 0")
	}
	if _, err := ParseByteSize(c.MaxFeedSize); err != nil {
		return fmt.Errorf("threat_feeds.max_feed_size: %w", err)
	}
	return nil
}
