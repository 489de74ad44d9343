package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Health      HealthConfig      `yaml:"health"`
	Storage     StorageConfig     `yaml:"storage"`
	Detection   DetectionConfig   `yaml:"detection"`
	Reputation  ReputationConfig  `yaml:"reputation"`
	Shortener   ShortenerConfig   `yaml:"shortener"`
	ThreatFeeds ThreatFeedsConfig `yaml:"threat_feeds"`
	Scan        ScanConfig        `yaml:"scan"`
	Development DevelopmentConfig `yaml:"development"`
}

type ServerConfig struct {
	HTTP ServerHTTPConfig `yaml:"http"`
}

type ServerHTTPConfig struct {
	Addr string `yaml:"addr"`

	ReadTimeout    string `yaml:"read_timeout"`
	WriteTimeout   string `yaml:"write_timeout"`
	MaxRequestSize string `yaml:"max_request_size"`
}

type AuthConfig struct {
	// Type is "none" or "api_key".
	Type       string   `yaml:"type"`
	APIKeys    []string `yaml:"api_keys"`
	KeysFile   string   `yaml:"keys_file"`
	HeaderName string   `yaml:"header_name"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
	Output string `yaml:"output"` // "stderr", "stdout" or a file path
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// SampleRatio is the fraction of root spans kept, 0 to 1.
	SampleRatio float64 `yaml:"sample_ratio"`
}

type HealthConfig struct {
	Path string `yaml:"path"`
}

type StorageConfig struct {
	// SQLitePath is where settings and scan snapshots live. Empty keeps them
	// in memory.
	SQLitePath string `yaml:"sqlite_path"`
	// SnapshotRetention is how long scan snapshots are kept in SQLite.
	// Negative keeps them forever.
	SnapshotRetention time.Duration `yaml:"snapshot_retention"`
}

type DetectionConfig struct {
	// Strategy is "always" (query reputation services for every URL) or
	// "gated" (only when the heuristic score reaches Thresholds.Low).
	Strategy   string           `yaml:"strategy"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Allowlist  AllowlistConfig  `yaml:"allowlist"`
}

// ThresholdsConfig holds the heuristic score cut-offs. They are tunables,
// not derived values.
type ThresholdsConfig struct {
	// Low gates reputation lookups in the gated strategy.
	Low int `yaml:"low"`
	// High flags a URL on heuristics alone when no reputation signal exists.
	High int `yaml:"high"`
	// Offline replaces High when no reputation service is configured.
	Offline int `yaml:"offline"`
}

type AllowlistConfig struct {
	Extra    []string `yaml:"extra"`
	Patterns []string `yaml:"patterns"`
}

type ReputationConfig struct {
	Timeout            time.Duration      `yaml:"timeout"`
	CacheTTL           time.Duration      `yaml:"cache_ttl"`
	CacheSweepInterval time.Duration      `yaml:"cache_sweep_interval"`
	CacheDir           string             `yaml:"cache_dir"`
	VirusTotal         VirusTotalConfig   `yaml:"virustotal"`
	SafeBrowsing       SafeBrowsingConfig `yaml:"safebrowsing"`
}

type VirusTotalConfig struct {
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	MinPositives  int     `yaml:"min_positives"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	DailyQuota    int     `yaml:"daily_quota"`
}

type SafeBrowsingConfig struct {
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	ClientID      string  `yaml:"client_id"`
	ClientVersion string  `yaml:"client_version"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	DailyQuota    int     `yaml:"daily_quota"`
}

type ShortenerConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxRedirects int           `yaml:"max_redirects"`
	ExtraHosts   []string      `yaml:"extra_hosts"`
}

type ScanConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
	MaxLinks   int           `yaml:"max_links"`
	MaxForms   int           `yaml:"max_forms"`
}

type DevelopmentConfig struct {
	DisableAuth bool `yaml:"disable_auth"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromBytes loads configuration from bytes without applying environment
// overrides. This is intended for testing where env vars should not interfere.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and environment
// overrides honoured, reading a .env file in the working directory if one
// exists. Used when no config file exists.
func Default() *Config {
	_ = loadDotEnv(".")
	var cfg Config
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg
}

// loadDotEnv reads API keys from a .env file next to the config. Variables
// already present in the environment win.
func loadDotEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load .env: %w", err)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = "127.0.0.1:8787"
	}
	if cfg.Server.HTTP.ReadTimeout == "" {
		cfg.Server.HTTP.ReadTimeout = "30s"
	}
	if cfg.Server.HTTP.WriteTimeout == "" {
		cfg.Server.HTTP.WriteTimeout = "2m"
	}
	if cfg.Server.HTTP.MaxRequestSize == "" {
		cfg.Server.HTTP.MaxRequestSize = "4MB"
	}

	if cfg.Storage.SnapshotRetention == 0 {
		cfg.Storage.SnapshotRetention = 7 * 24 * time.Hour
	}

	if cfg.Auth.Type == "" {
		cfg.Auth.Type = "none"
	}
	if cfg.Auth.HeaderName == "" {
		cfg.Auth.HeaderName = "X-API-Key"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/health"
	}

	if cfg.Detection.Strategy == "" {
		cfg.Detection.Strategy = "always"
	}
	if cfg.Detection.Thresholds.Low == 0 {
		cfg.Detection.Thresholds.Low = 20
	}
	if cfg.Detection.Thresholds.High == 0 {
		cfg.Detection.Thresholds.High = 50
	}
	if cfg.Detection.Thresholds.Offline == 0 {
		cfg.Detection.Thresholds.Offline = 25
	}

	if cfg.Reputation.Timeout == 0 {
		cfg.Reputation.Timeout = 7 * time.Second
	}
	if cfg.Reputation.CacheTTL == 0 {
		cfg.Reputation.CacheTTL = 90 * time.Second
	}
	if cfg.Reputation.CacheSweepInterval == 0 {
		cfg.Reputation.CacheSweepInterval = 5 * time.Minute
	}
	vt := &cfg.Reputation.VirusTotal
	if vt.BaseURL == "" {
		vt.BaseURL = "https://www.virustotal.com"
	}
	if vt.MinPositives == 0 {
		vt.MinPositives = 2
	}
	if vt.RatePerSecond == 0 {
		vt.RatePerSecond = 4
	}
	if vt.Burst == 0 {
		vt.Burst = 6
	}
	if vt.DailyQuota == 0 {
		vt.DailyQuota = 500
	}
	sb := &cfg.Reputation.SafeBrowsing
	if sb.BaseURL == "" {
		sb.BaseURL = "https://safebrowsing.googleapis.com"
	}
	if sb.ClientID == "" {
		sb.ClientID = "phishscan-extension"
	}
	if sb.ClientVersion == "" {
		sb.ClientVersion = "1.0"
	}
	if sb.RatePerSecond == 0 {
		sb.RatePerSecond = 10
	}
	if sb.Burst == 0 {
		sb.Burst = 10
	}
	if sb.DailyQuota == 0 {
		sb.DailyQuota = 10000
	}

	if cfg.Shortener.Timeout == 0 {
		cfg.Shortener.Timeout = 5 * time.Second
	}
	if cfg.Shortener.MaxRedirects == 0 {
		cfg.Shortener.MaxRedirects = 10
	}

	applyThreatFeedDefaults(&cfg.ThreatFeeds)

	if cfg.Scan.BatchSize == 0 {
		cfg.Scan.BatchSize = 6
	}
	if cfg.Scan.BatchDelay == 0 {
		cfg.Scan.BatchDelay = 150 * time.Millisecond
	}
	if cfg.Scan.MaxLinks == 0 {
		cfg.Scan.MaxLinks = 30
	}
	if cfg.Scan.MaxForms == 0 {
		cfg.Scan.MaxForms = 5
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PHISHSCAN_HTTP_ADDR"); v != "" {
		cfg.Server.HTTP.Addr = v
	}
	if v := os.Getenv("PHISHSCAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PHISHSCAN_STRATEGY"); v != "" {
		cfg.Detection.Strategy = v
	}
	if v := os.Getenv("PHISHSCAN_VIRUSTOTAL_API_KEY"); v != "" {
		cfg.Reputation.VirusTotal.APIKey = v
	}
	if v := os.Getenv("PHISHSCAN_SAFEBROWSING_API_KEY"); v != "" {
		cfg.Reputation.SafeBrowsing.APIKey = v
	}
	if v := os.Getenv("PHISHSCAN_VT_MIN_POSITIVES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reputation.VirusTotal.MinPositives = n
		}
	}
	if v := os.Getenv("PHISHSCAN_DATA_DIR"); v != "" {
		cfg.Storage.SQLitePath = filepath.Join(v, "phishscan.db")
		cfg.ThreatFeeds.CacheDir = filepath.Join(v, "feeds")
		cfg.Reputation.CacheDir = filepath.Join(v, "reputation")
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Detection.Strategy {
	case "always", "gated":
	default:
		return fmt.Errorf("invalid detection.strategy %q", cfg.Detection.Strategy)
	}
	th := cfg.Detection.Thresholds
	if th.Low < 0 || th.High < 0 || th.Offline < 0 {
		return fmt.Errorf("detection.thresholds must be >= 0")
	}
	if th.Low > th.High {
		return fmt.Errorf("detection.thresholds.low (%d) must not exceed high (%d)", th.Low, th.High)
	}
	if cfg.Reputation.VirusTotal.MinPositives < 1 {
		return fmt.Errorf("reputation.virustotal.min_positives must be >= 1")
	}
	if cfg.Reputation.Timeout < 0 || cfg.Shortener.Timeout < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}
	if cfg.Scan.BatchSize < 1 {
		return fmt.Errorf("scan.batch_size must be >= 1")
	}
	if cfg.Scan.MaxLinks < 0 || cfg.Scan.MaxForms < 0 {
		return fmt.Errorf("scan.max_links and scan.max_forms must be >= 0")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format %q", cfg.Logging.Format)
	}
	switch cfg.Auth.Type {
	case "none":
	case "api_key":
		if len(cfg.Auth.APIKeys) == 0 && cfg.Auth.KeysFile == "" && !cfg.Development.DisableAuth {
			return fmt.Errorf("auth.type=api_key requires auth.api_keys or auth.keys_file")
		}
	default:
		return fmt.Errorf("invalid auth.type %q", cfg.Auth.Type)
	}
	if _, err := ParseByteSize(cfg.Server.HTTP.MaxRequestSize); err != nil {
		return fmt.Errorf("server.http.max_request_size: %w", err)
	}
	return validateThreatFeeds(&cfg.ThreatFeeds)
}

// ParseByteSize parses sizes such as "512", "10KB", "4MiB".
func ParseByteSize(s string) (int64, error) {
	in := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	if in == "" {
		return 0, fmt.Errorf("empty size")
	}
	units := []struct {
		suffix string
		mult   int64
	}{
		{"KIB", 1 << 10}, {"MIB", 1 << 20}, {"GIB", 1 << 30},
		{"KB", 1000}, {"MB", 1000 * 1000}, {"GB", 1000 * 1000 * 1000},
		{"B", 1},
	}
	mult := int64(1)
	for _, u := range units {
		if strings.HasSuffix(in, u.suffix) {
			mult = u.mult
			in = strings.TrimSpace(strings.TrimSuffix(in, u.suffix))
			break
		}
	}
	n, err := strconv.ParseInt(in, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if n > (1<<63-1)/mult {
		return 0, fmt.Errorf("size overflow %q", s)
	}
	return n * mult, nil
}

// ParseDuration is time.ParseDuration that treats an empty string as zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
