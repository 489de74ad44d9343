package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Smeet2005/PHISHSCAN/internal/auth"
	"github.com/Smeet2005/PHISHSCAN/internal/config"
	"github.com/Smeet2005/PHISHSCAN/internal/detect"
	"github.com/Smeet2005/PHISHSCAN/internal/detect/cache"
	"github.com/Smeet2005/PHISHSCAN/internal/detect/provider"
	"github.com/Smeet2005/PHISHSCAN/internal/metrics"
	"github.com/Smeet2005/PHISHSCAN/internal/shortener"
	"github.com/Smeet2005/PHISHSCAN/internal/store"
	"github.com/Smeet2005/PHISHSCAN/internal/store/sqlite"
	"github.com/Smeet2005/PHISHSCAN/internal/threatfeed"
	"github.com/Smeet2005/PHISHSCAN/pkg/ratelimit"
)

// Components is the assembled detection pipeline. The CLI builds one for
// local checks without starting a server.
type Components struct {
	Metrics      *metrics.Collector
	Store        store.Store
	Feed         *threatfeed.Store
	Syncer       *threatfeed.Syncer
	Cache        *cache.Cache
	Shortener    *shortener.Resolver
	Orchestrator *detect.Orchestrator
	Scanner      *detect.Scanner
	Auth         *auth.APIKeyAuth
	// Quotas holds the daily budget of each metered service, by name.
	Quotas map[string]*ratelimit.Quota
	// Pruner is set when snapshots are persisted and can be expired.
	Pruner store.Pruner
}

// BuildComponents wires every pipeline component from cfg. Close releases
// what it opened, also on error paths of the caller.
func BuildComponents(cfg *config.Config, logger *slog.Logger) (*Components, error) {
	c := &Components{Metrics: metrics.New(), Quotas: make(map[string]*ratelimit.Quota)}

	var st store.Store = store.NewMemory()
	if cfg.Storage.SQLitePath != "" {
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		st = db
		c.Pruner = db
	}
	c.Store = metrics.WrapStore(st, c.Metrics)

	c.Feed = threatfeed.NewStore(cfg.ThreatFeeds.CacheDir, cfg.ThreatFeeds.TTL)
	c.Feed.SetLabelBoundary(cfg.ThreatFeeds.LabelBoundary)
	if err := c.Feed.LoadFromDisk(); err != nil {
		logger.Warn("threat feed disk cache not loaded", "error", err)
	}
	if cfg.ThreatFeeds.IsEnabled() {
		c.Syncer = threatfeed.NewSyncer(c.Feed, cfg.ThreatFeeds, logger.With("component", "threatfeed"))
		c.Syncer.SetMetrics(c.Metrics)
	}

	allow, err := detect.NewAllowlist(cfg.Detection.Allowlist.Extra, cfg.Detection.Allowlist.Patterns)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	logger.Debug("allowlist loaded", "entries", allow.Len())

	vc, err := cache.New(cache.Config{Dir: cfg.Reputation.CacheDir, TTL: cfg.Reputation.CacheTTL})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("verdict cache: %w", err)
	}
	c.Cache = vc
	logger.Debug("verdict cache loaded", "entries", vc.Len())

	c.Shortener = shortener.New(shortener.Options{
		Timeout:      cfg.Shortener.Timeout,
		MaxRedirects: cfg.Shortener.MaxRedirects,
		ExtraHosts:   cfg.Shortener.ExtraHosts,
		Logger:       logger.With("component", "shortener"),
	})

	httpClient := &http.Client{}
	sbCfg, vtCfg := cfg.Reputation.SafeBrowsing, cfg.Reputation.VirusTotal
	sbLimiter := newLimiter("safebrowsing", sbCfg.RatePerSecond, sbCfg.Burst, sbCfg.DailyQuota, logger)
	vtLimiter := newLimiter("virustotal", vtCfg.RatePerSecond, vtCfg.Burst, vtCfg.DailyQuota, logger)
	if q := sbLimiter.Quota(); q != nil {
		c.Quotas["safebrowsing"] = q
	}
	if q := vtLimiter.Quota(); q != nil {
		c.Quotas["virustotal"] = q
	}
	sb := provider.NewSafeBrowsing(provider.SafeBrowsingConfig{
		APIKey:        sbCfg.APIKey,
		BaseURL:       sbCfg.BaseURL,
		ClientID:      sbCfg.ClientID,
		ClientVersion: sbCfg.ClientVersion,
		Timeout:       cfg.Reputation.Timeout,
		Limiter:       sbLimiter,
		Client:        httpClient,
		Logger:        logger.With("component", "safebrowsing"),
	})
	vt := provider.NewVirusTotal(provider.VirusTotalConfig{
		APIKey:       vtCfg.APIKey,
		BaseURL:      vtCfg.BaseURL,
		MinPositives: vtCfg.MinPositives,
		Timeout:      cfg.Reputation.Timeout,
		Limiter:      vtLimiter,
		Client:       httpClient,
		Logger:       logger.With("component", "virustotal"),
	})
	if !sb.Configured() && !vt.Configured() {
		logger.Warn("no reputation service configured, running on feed and heuristics only")
	}

	c.Orchestrator = detect.NewOrchestrator(detect.Options{
		Strategy: detect.Strategy(cfg.Detection.Strategy),
		Thresholds: detect.Thresholds{
			Low:     cfg.Detection.Thresholds.Low,
			High:    cfg.Detection.Thresholds.High,
			Offline: cfg.Detection.Thresholds.Offline,
		},
		Allowlist: allow,
		Feed:      c.Feed,
		Shortener: c.Shortener,
		Services: []detect.Service{
			{Client: sb},
			{Client: vt, Metered: true},
		},
		Cache:   c.Cache,
		Metrics: c.Metrics,
		Logger:  logger.With("component", "classify"),
	})
	c.Scanner = detect.NewScanner(c.Orchestrator, c.Store, detect.ScannerConfig{
		BatchSize:  cfg.Scan.BatchSize,
		BatchDelay: cfg.Scan.BatchDelay,
		MaxLinks:   cfg.Scan.MaxLinks,
		MaxForms:   cfg.Scan.MaxForms,
	}, c.Metrics, logger.With("component", "scan"))

	if !cfg.Development.DisableAuth && cfg.Auth.Type == "api_key" {
		a, err := auth.NewAPIKeyAuth(cfg.Auth.APIKeys, cfg.Auth.KeysFile, cfg.Auth.HeaderName)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.Auth = a
	}
	return c, nil
}

// Close flushes the verdict cache and feed snapshot and closes the store.
func (c *Components) Close() error {
	var first error
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil && first == nil {
			first = fmt.Errorf("close verdict cache: %w", err)
		}
	}
	if c.Feed != nil {
		if err := c.Feed.SaveToDisk(); err != nil && first == nil {
			first = fmt.Errorf("save threat feed: %w", err)
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil && first == nil {
			first = fmt.Errorf("close store: %w", err)
		}
	}
	return first
}

func newLimiter(service string, perSecond float64, burst, daily int, logger *slog.Logger) *ratelimit.Limiter {
	l := ratelimit.NewLimiter(ratelimit.LimiterConfig{PerSecond: perSecond, Burst: burst, DailyQuota: int64(daily)})
	if q := l.Quota(); q != nil {
		q.OnWarning(func(pct float64) {
			logger.Warn("reputation daily quota nearly used", "service", service, "percent", pct)
		})
	}
	return l
}
