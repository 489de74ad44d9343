package types

import "time"

type CandidateKind string

const (
	CandidateLink CandidateKind = "link"
	CandidateForm CandidateKind = "form"
)

type Finding struct {
	URL         string        `json:"url"`
	Kind        CandidateKind `json:"kind"`
	Reason      string        `json:"reason"`
	Source      Source        `json:"source"`
	ThreatType  string        `json:"threat_type,omitempty"`
	IsShortened bool          `json:"is_shortened"`
	ResolvedURL string        `json:"resolved_url,omitempty"`
	Evidence    *Evidence     `json:"evidence,omitempty"`
}

// Snapshot is the per-pass summary written once a scan completes.
type Snapshot struct {
	ID           string     `json:"id"`
	PageURL      string     `json:"page_url,omitempty"`
	Found        []Finding  `json:"found"`
	Clean        []Finding  `json:"clean"`
	TotalScanned int        `json:"total_scanned"`
	Scanning     bool       `json:"scanning"`
	RateLimited  bool       `json:"rate_limited"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type ScanRequest struct {
	PageURL string   `json:"page_url"`
	HTML    string   `json:"html,omitempty"`
	Links   []string `json:"links,omitempty"`
	Forms   []string `json:"forms,omitempty"`
	// Key identifies the page or tab; a new scan with the same key abandons
	// the one in flight.
	Key string `json:"key,omitempty"`
}

type ScanResult struct {
	URL     string        `json:"url"`
	Kind    CandidateKind `json:"kind"`
	Verdict *Verdict      `json:"verdict,omitempty"`
	Skipped bool          `json:"skipped,omitempty"`
}

type ClassifyRequest struct {
	URL     string `json:"url"`
	BaseURL string `json:"base_url,omitempty"`
}

type ClassifyBatchRequest struct {
	URLs    []string `json:"urls"`
	BaseURL string   `json:"base_url,omitempty"`
}

type ClassifyBatchResponse struct {
	Results     []ScanResult `json:"results"`
	RateLimited bool         `json:"rate_limited"`
}

type ResolveRequest struct {
	URL string `json:"url"`
}

type ResolveResponse struct {
	URL         string `json:"url"`
	IsShortened bool   `json:"is_shortened"`
	ResolvedURL string `json:"resolved_url"`
}

type FeedStatus struct {
	Size      int       `json:"size"`
	FetchedAt time.Time `json:"fetched_at"`
	TTL       string    `json:"ttl"`
	Stale     bool      `json:"stale"`
	Fallback  bool      `json:"fallback"`
	Feeds     []string  `json:"feeds,omitempty"`
}
