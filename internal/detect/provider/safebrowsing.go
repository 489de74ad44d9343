package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Smeet2005/PHISHSCAN/internal/detect"
	"github.com/Smeet2005/PHISHSCAN/pkg/observability"
	"github.com/Smeet2005/PHISHSCAN/pkg/ratelimit"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

const (
	defaultSafeBrowsingBaseURL = "https://safebrowsing.googleapis.com"
	defaultClientID            = "phishscan-extension"
	defaultClientVersion       = "1.0"
	threatMatchesPath          = "/v4/threatMatches:find"
)

// ThreatTypes are the Safe Browsing lists every lookup is checked against.
var ThreatTypes = []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE", "POTENTIALLY_HARMFUL_APPLICATION"}

type SafeBrowsingConfig struct {
	APIKey        string
	BaseURL       string
	ClientID      string
	ClientVersion string
	Timeout       time.Duration
	Limiter       *ratelimit.Limiter
	Client        *http.Client
	Logger        *slog.Logger
}

// SafeBrowsing queries the Google Safe Browsing v4 Lookup API.
type SafeBrowsing struct {
	apiKey        string
	baseURL       string
	clientID      string
	clientVersion string
	timeout       time.Duration
	limiter       *ratelimit.Limiter
	client        *http.Client
	logger        *slog.Logger
}

var _ detect.ReputationClient = (*SafeBrowsing)(nil)

func NewSafeBrowsing(cfg SafeBrowsingConfig) *SafeBrowsing {
	s := &SafeBrowsing{
		apiKey:        strings.TrimSpace(cfg.APIKey),
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		clientID:      cfg.ClientID,
		clientVersion: cfg.ClientVersion,
		timeout:       cfg.Timeout,
		limiter:       cfg.Limiter,
		client:        cfg.Client,
		logger:        cfg.Logger,
	}
	if s.baseURL == "" {
		s.baseURL = defaultSafeBrowsingBaseURL
	}
	if s.clientID == "" {
		s.clientID = defaultClientID
	}
	if s.clientVersion == "" {
		s.clientVersion = defaultClientVersion
	}
	if s.timeout <= 0 {
		s.timeout = defaultQueryTimeout
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.logger == nil {
		s.logger = observability.Discard()
	}
	return s
}

func (s *SafeBrowsing) Name() string         { return "safebrowsing" }
func (s *SafeBrowsing) Source() types.Source { return types.SourceReputationB }
func (s *SafeBrowsing) Configured() bool     { return s.apiKey != "" }

type sbRequest struct {
	Client     sbClient     `json:"client"`
	ThreatInfo sbThreatInfo `json:"threatInfo"`
}

type sbClient struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type sbThreatInfo struct {
	ThreatTypes      []string        `json:"threatTypes"`
	PlatformTypes    []string        `json:"platformTypes"`
	ThreatEntryTypes []string        `json:"threatEntryTypes"`
	ThreatEntries    []sbThreatEntry `json:"threatEntries"`
}

type sbThreatEntry struct {
	URL string `json:"url"`
}

type sbResponse struct {
	Matches []sbMatch `json:"matches"`
}

type sbMatch struct {
	ThreatType   string `json:"threatType"`
	PlatformType string `json:"platformType"`
}

func (s *SafeBrowsing) Query(ctx context.Context, u string) detect.Result {
	if !s.Configured() {
		return detect.Result{
			Reason: "API key not configured",
			Error:  detect.KindConfigurationMissing.Tag(),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return s.failure(err)
	}
	if !detect.Proceed(ctx) {
		return sbRateLimited()
	}

	body, err := json.Marshal(sbRequest{
		Client: sbClient{ClientID: s.clientID, ClientVersion: s.clientVersion},
		ThreatInfo: sbThreatInfo{
			ThreatTypes:      ThreatTypes,
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []sbThreatEntry{{URL: u}},
		},
	})
	if err != nil {
		return s.failure(fmt.Errorf("safebrowsing: marshal request: %w", err))
	}

	endpoint := s.baseURL + threatMatchesPath + "?key=" + url.QueryEscape(s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return s.failure(fmt.Errorf("safebrowsing: create request: %w", stripURL(err)))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return s.failure(fmt.Errorf("safebrowsing: request failed: %w", stripURL(err)))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if bytes.Contains(msg, []byte("RESOURCE_EXHAUSTED")) && bytes.Contains(msg, []byte("per day")) {
			s.limiter.Exhaust()
		}
		return sbRateLimited()
	case resp.StatusCode != http.StatusOK:
		s.logger.Warn("safebrowsing: unexpected status", "status", resp.StatusCode)
		return detect.Result{
			Reason: fmt.Sprintf("Google Safe Browsing: API error (%d)", resp.StatusCode),
			Error:  detect.HTTPStatusTag(resp.StatusCode),
		}
	}

	var out sbResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		s.logger.Warn("safebrowsing: decode response", "error", err)
		return detect.Result{Reason: "Google Safe Browsing: Unexpected response", Error: detect.KindUpstreamProtocol.Tag()}
	}
	if len(out.Matches) == 0 {
		return detect.Result{Reason: reasonNoThreats}
	}
	m := out.Matches[0]
	return detect.Result{
		Malicious:    true,
		Reason:       "Google Safe Browsing: " + m.ThreatType,
		ThreatType:   m.ThreatType,
		PlatformType: m.PlatformType,
	}
}

const reasonNoThreats = "No threats detected"

func (s *SafeBrowsing) failure(err error) detect.Result {
	kind := detect.ClassifyError(err)
	s.logger.Debug("safebrowsing: lookup failed", "kind", kind.String(), "error", err)
	switch kind {
	case detect.KindRateLimited:
		return sbRateLimited()
	case detect.KindNetworkTimeout:
		return detect.Result{Reason: "API request timeout", Error: kind.Tag()}
	default:
		return detect.Result{Reason: "Google Safe Browsing: Network error", Error: detect.KindNetworkFailure.Tag()}
	}
}

func sbRateLimited() detect.Result {
	return detect.Result{
		Reason:      "API rate limit exceeded",
		RateLimited: true,
		Error:       detect.KindRateLimited.Tag(),
	}
}
