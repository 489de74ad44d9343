package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Smeet2005/PHISHSCAN/internal/detect"
	"github.com/Smeet2005/PHISHSCAN/pkg/observability"
	"github.com/Smeet2005/PHISHSCAN/pkg/ratelimit"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

const (
	defaultVirusTotalBaseURL = "https://www.virustotal.com"
	defaultMinPositives      = 2
	defaultQueryTimeout      = 7 * time.Second
	maxResponseBytes         = 4 << 20

	reportPath = "/vtapi/v2/url/report"
	scanPath   = "/vtapi/v2/url/scan"
)

// VirusTotalConfig configures the VirusTotal v2 URL report client.
type VirusTotalConfig struct {
	APIKey  string
	BaseURL string
	// MinPositives is how many engines must flag a URL before it counts as
	// malicious.
	MinPositives int
	Timeout      time.Duration
	Limiter      *ratelimit.Limiter
	Client       *http.Client
	Logger       *slog.Logger
}

// VirusTotal queries the VirusTotal URL report API and submits unknown URLs
// for scanning.
type VirusTotal struct {
	apiKey       string
	baseURL      string
	minPositives int
	timeout      time.Duration
	limiter      *ratelimit.Limiter
	client       *http.Client
	logger       *slog.Logger
}

var _ detect.ReputationClient = (*VirusTotal)(nil)

func NewVirusTotal(cfg VirusTotalConfig) *VirusTotal {
	v := &VirusTotal{
		apiKey:       strings.TrimSpace(cfg.APIKey),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		minPositives: cfg.MinPositives,
		timeout:      cfg.Timeout,
		limiter:      cfg.Limiter,
		client:       cfg.Client,
		logger:       cfg.Logger,
	}
	if v.baseURL == "" {
		v.baseURL = defaultVirusTotalBaseURL
	}
	if v.minPositives < 1 {
		v.minPositives = defaultMinPositives
	}
	if v.timeout <= 0 {
		v.timeout = defaultQueryTimeout
	}
	if v.client == nil {
		v.client = &http.Client{}
	}
	if v.logger == nil {
		v.logger = observability.Discard()
	}
	return v
}

func (v *VirusTotal) Name() string         { return "virustotal" }
func (v *VirusTotal) Source() types.Source { return types.SourceReputationA }
func (v *VirusTotal) Configured() bool     { return v.apiKey != "" }

// vtReport is the body of /vtapi/v2/url/report.
type vtReport struct {
	ResponseCode        int               `json:"response_code"`
	VerboseMsg          string            `json:"verbose_msg"`
	Resource            string            `json:"resource"`
	ScanID              string            `json:"scan_id"`
	Positives           int               `json:"positives"`
	Total               int               `json:"total"`
	ScanDate            looseString       `json:"scan_date"`
	FirstSubmissionDate looseString       `json:"first_submission_date"`
	LastSubmissionDate  looseString       `json:"last_submission_date"`
	Permalink           string            `json:"permalink"`
	Scans               map[string]vtScan `json:"scans"`
	Threats             []vtThreat        `json:"threats"`
}

type vtScan struct {
	Detected bool        `json:"detected"`
	Result   string      `json:"result"`
	Version  looseString `json:"version"`
	Update   looseString `json:"update"`
}

type vtThreat struct {
	Category string `json:"category"`
	Label    string `json:"label"`
}

// vtSubmission is the body of /vtapi/v2/url/scan.
type vtSubmission struct {
	ResponseCode int    `json:"response_code"`
	VerboseMsg   string `json:"verbose_msg"`
	ScanID       string `json:"scan_id"`
	Permalink    string `json:"permalink"`
}

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	*s = looseString(b)
	return nil
}

// Query looks up u in VirusTotal. Unknown URLs are submitted for scanning and
// reported clean with a transient result so the next pass asks again.
func (v *VirusTotal) Query(ctx context.Context, u string) detect.Result {
	if !v.Configured() {
		return detect.Result{
			Reason: "VirusTotal API key not configured",
			Error:  detect.KindConfigurationMissing.Tag(),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if err := v.limiter.Wait(ctx); err != nil {
		return v.failure(err)
	}
	if !detect.Proceed(ctx) {
		return rateLimited()
	}

	form := url.Values{"apikey": {v.apiKey}, "resource": {u}, "scan": {"1"}}
	resp, err := v.post(ctx, reportPath, form)
	if err != nil {
		return v.failure(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusNoContent:
		// The public API answers 204 once the per-minute allowance is used up.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if bytes.Contains(body, []byte("QuotaExceeded")) {
			v.limiter.Exhaust()
		}
		return rateLimited()
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		v.logger.Warn("virustotal: unexpected status", "status", resp.StatusCode)
		return detect.Result{
			Reason: fmt.Sprintf("VirusTotal: API error (%d)", resp.StatusCode),
			Error:  detect.HTTPStatusTag(resp.StatusCode),
		}
	}

	var report vtReport
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&report); err != nil {
		v.logger.Warn("virustotal: decode response", "error", err)
		return detect.Result{
			Reason: "VirusTotal: Unexpected response",
			Error:  detect.KindUpstreamProtocol.Tag(),
		}
	}

	switch report.ResponseCode {
	case 1:
		return v.fromReport(report, u)
	case 0:
		return v.submit(ctx, u, report.VerboseMsg)
	default:
		msg := report.VerboseMsg
		if msg == "" {
			msg = "Unknown response code"
		}
		return detect.Result{Reason: "VirusTotal: " + msg}
	}
}

func (v *VirusTotal) fromReport(r vtReport, u string) detect.Result {
	rate := 0.0
	if r.Total > 0 {
		rate = math.Round(float64(r.Positives)/float64(r.Total)*1000) / 10
	}
	malicious := r.Positives >= v.minPositives
	minor := r.Positives > 0 && !malicious

	ev := &types.Evidence{
		Positives:       r.Positives,
		Total:           r.Total,
		DetectionRate:   rate,
		MinorDetections: minor,
		Threshold:       v.minPositives,
		ScanDate:        string(r.ScanDate),
		FirstSubmission: string(r.FirstSubmissionDate),
		LastSubmission:  string(r.LastSubmissionDate),
		Permalink:       r.Permalink,
		Categories:      []string{},
		ThreatLabels:    []string{},
		DetectedBy:      []types.EngineHit{},
		ScanDetails:     make(map[string]types.EngineResult, len(r.Scans)),
		Resource:        r.Resource,
		ResponseCode:    r.ResponseCode,
		VerboseMsg:      r.VerboseMsg,
		ScanID:          r.ScanID,
	}
	if ev.Resource == "" {
		ev.Resource = u
	}

	labels := newOrderedSet()
	for _, t := range r.Threats {
		if t.Category != "" {
			ev.Categories = append(ev.Categories, t.Category)
		}
		labels.add(t.Label)
	}

	engines := make([]string, 0, len(r.Scans))
	for name := range r.Scans {
		engines = append(engines, name)
	}
	sort.Strings(engines)
	for _, name := range engines {
		scan := r.Scans[name]
		result := scan.Result
		if result != "clean" && result != "unrated" {
			labels.add(result)
		}
		if result == "" {
			result = "clean"
		}
		ev.ScanDetails[name] = types.EngineResult{
			Detected: scan.Detected,
			Result:   result,
			Version:  string(scan.Version),
			Update:   string(scan.Update),
		}
		if scan.Detected {
			hit := scan.Result
			if hit == "" {
				hit = "malicious"
			}
			ev.DetectedBy = append(ev.DetectedBy, types.EngineHit{Engine: name, Result: hit})
		}
	}
	ev.ThreatLabels = labels.items

	res := detect.Result{Malicious: malicious, Evidence: ev}
	switch {
	case malicious:
		res.Reason = fmt.Sprintf("VirusTotal: %d/%d engines detected (%s%%)", r.Positives, r.Total, strconv.FormatFloat(rate, 'f', 1, 64))
	case minor:
		res.Reason = fmt.Sprintf("VirusTotal: %d/%d engines flagged (below malicious threshold of %d)", r.Positives, r.Total, v.minPositives)
	default:
		res.Reason = fmt.Sprintf("VirusTotal: Clean (0/%d engines detected)", r.Total)
	}
	return res
}

// submit queues u for scanning. A failed submission is reported as "not in
// database" and may be cached; a successful one is transient.
func (v *VirusTotal) submit(ctx context.Context, u, verbose string) detect.Result {
	notFound := func() detect.Result {
		msg := verbose
		if msg == "" {
			msg = "URL not in database"
		}
		return detect.Result{
			Reason:   "VirusTotal: URL not found in database (not scanned yet)",
			Evidence: &types.Evidence{ResponseCode: 0, VerboseMsg: msg, Resource: u},
		}
	}

	if err := v.limiter.Wait(ctx); err != nil {
		v.logger.Debug("virustotal: submission skipped", "kind", detect.ClassifyError(err).String())
		return notFound()
	}
	if !detect.Proceed(ctx) {
		return notFound()
	}
	resp, err := v.post(ctx, scanPath, url.Values{"apikey": {v.apiKey}, "url": {u}})
	if err != nil {
		v.logger.Debug("virustotal: submission failed", "kind", detect.ClassifyError(err).String())
		return notFound()
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.logger.Debug("virustotal: submission rejected", "status", resp.StatusCode)
		return notFound()
	}

	var sub vtSubmission
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&sub)
	return detect.Result{
		Reason: "Submitted to VirusTotal for scanning. Check again in ~30-90s.",
		Evidence: &types.Evidence{
			ResponseCode: 0,
			Submitted:    true,
			ScanID:       sub.ScanID,
			Permalink:    sub.Permalink,
			Resource:     u,
			VerboseMsg:   "URL submitted for analysis",
		},
		Transient: true,
	}
}

func (v *VirusTotal) post(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("virustotal: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("virustotal: request failed: %w", stripURL(err))
	}
	return resp, nil
}

func (v *VirusTotal) failure(err error) detect.Result {
	kind := detect.ClassifyError(err)
	v.logger.Debug("virustotal: lookup failed", "kind", kind.String(), "error", err)
	switch kind {
	case detect.KindRateLimited:
		return rateLimited()
	case detect.KindNetworkTimeout:
		return detect.Result{Reason: "VirusTotal: Request timeout", Error: kind.Tag()}
	default:
		return detect.Result{Reason: "VirusTotal: Network error", Error: detect.KindNetworkFailure.Tag()}
	}
}

func rateLimited() detect.Result {
	return detect.Result{
		Reason:      "VirusTotal: API rate limit exceeded",
		RateLimited: true,
		Error:       detect.KindRateLimited.Tag(),
	}
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]struct{}{}, items: []string{}}
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
