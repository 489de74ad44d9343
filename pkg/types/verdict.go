package types

import "time"

type Source string

const (
	SourceNone        Source = "none"
	SourceAllowlist   Source = "allowlist"
	SourceFeed        Source = "feed"
	SourceHeuristic   Source = "heuristic"
	SourceReputationA Source = "reputation-A"
	SourceReputationB Source = "reputation-B"
)

// Error tags carried on verdicts when a check was inconclusive.
const (
	TagAPIKeyMissing = "API_KEY_MISSING"
	TagTimeout       = "TIMEOUT"
	TagNetworkError  = "NETWORK_ERROR"
	TagRateLimit     = "RATE_LIMIT"
	TagMalformedURL  = "MALFORMED_URL"
	TagProtocolError = "PROTOCOL_ERROR"
)

type Verdict struct {
	URL              string    `json:"url"`
	Domain           string    `json:"domain,omitempty"`
	Malicious        bool      `json:"malicious"`
	Reason           string    `json:"reason"`
	Source           Source    `json:"source"`
	RiskScore        int       `json:"risk_score"`
	HeuristicReasons []string  `json:"heuristic_reasons,omitempty"`
	ThreatType       string    `json:"threat_type,omitempty"`
	PlatformType     string    `json:"platform_type,omitempty"`
	IsShortened      bool      `json:"is_shortened"`
	ResolvedURL      string    `json:"resolved_url,omitempty"`
	RateLimited      bool      `json:"rate_limited,omitempty"`
	Error            string    `json:"error,omitempty"`
	Evidence         *Evidence `json:"evidence,omitempty"`
	CheckedAt        time.Time `json:"checked_at"`
}

type Evidence struct {
	Positives       int                     `json:"positives"`
	Total           int                     `json:"total"`
	DetectionRate   float64                 `json:"detection_rate"`
	MinorDetections bool                    `json:"minor_detections"`
	Threshold       int                     `json:"threshold,omitempty"`
	ScanDate        string                  `json:"scan_date,omitempty"`
	FirstSubmission string                  `json:"first_submission,omitempty"`
	LastSubmission  string                  `json:"last_submission,omitempty"`
	Permalink       string                  `json:"permalink,omitempty"`
	Categories      []string                `json:"categories,omitempty"`
	ThreatLabels    []string                `json:"threat_labels,omitempty"`
	DetectedBy      []EngineHit             `json:"detected_by,omitempty"`
	ScanDetails     map[string]EngineResult `json:"scan_details,omitempty"`
	Resource        string                  `json:"resource,omitempty"`
	ResponseCode    int                     `json:"response_code"`
	VerboseMsg      string                  `json:"verbose_msg,omitempty"`
	Submitted       bool                    `json:"submitted,omitempty"`
	ScanID          string                  `json:"scan_id,omitempty"`
}

type EngineHit struct {
	Engine string `json:"engine"`
	Result string `json:"result"`
}

type EngineResult struct {
	Detected bool   `json:"detected"`
	Result   string `json:"result"`
	Version  string `json:"version,omitempty"`
	Update   string `json:"update,omitempty"`
}
