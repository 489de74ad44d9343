package detect

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"

	"github.com/Smeet2005/PHISHSCAN/pkg/ratelimit"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

// ErrDisabled is returned by Scanner.Scan when detection is switched off in
// settings.
var ErrDisabled = errors.New("detection disabled")

// Strategy selects when metered reputation services are queried.
type Strategy string

const (
	// StrategyAlways queries every configured service for every URL.
	StrategyAlways Strategy = "always"
	// StrategyGated only spends metered quota on URLs that look risky.
	StrategyGated Strategy = "gated"
)

// Thresholds are heuristic score cut-offs.
type Thresholds struct {
	Low     int
	High    int
	Offline int
}

// DefaultThresholds returns the stock cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 20, High: 50, Offline: 25}
}

// Result is the verdict-shaped answer of one reputation lookup. Clients never
// return errors; failures are folded into Reason and Error.
type Result struct {
	Malicious    bool            `json:"malicious"`
	Reason       string          `json:"reason"`
	ThreatType   string          `json:"threat_type,omitempty"`
	PlatformType string          `json:"platform_type,omitempty"`
	RateLimited  bool            `json:"rate_limited,omitempty"`
	Error        string          `json:"error,omitempty"`
	Evidence     *types.Evidence `json:"evidence,omitempty"`
	// Transient results are never cached.
	Transient bool `json:"-"`
}

// Inconclusive reports whether the lookup failed to produce a judgement.
func (r Result) Inconclusive() bool {
	return r.Error != ""
}

// ErrorKind classifies why a lookup was inconclusive.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindConfigurationMissing
	KindNetworkTimeout
	KindNetworkFailure
	KindRateLimited
	KindMalformedURL
	KindUpstreamProtocol
)

// Tag returns the stable error tag carried on verdicts.
func (k ErrorKind) Tag() string {
	switch k {
	case KindConfigurationMissing:
		return types.TagAPIKeyMissing
	case KindNetworkTimeout:
		return types.TagTimeout
	case KindNetworkFailure:
		return types.TagNetworkError
	case KindRateLimited:
		return types.TagRateLimit
	case KindMalformedURL:
		return types.TagMalformedURL
	case KindUpstreamProtocol:
		return types.TagProtocolError
	default:
		return ""
	}
}

func (k ErrorKind) String() string {
	switch k {
	case KindConfigurationMissing:
		return "configuration_missing"
	case KindNetworkTimeout:
		return "network_timeout"
	case KindNetworkFailure:
		return "network_failure"
	case KindRateLimited:
		return "rate_limited"
	case KindMalformedURL:
		return "malformed_url"
	case KindUpstreamProtocol:
		return "upstream_protocol_error"
	default:
		return "none"
	}
}

// HTTPStatusTag is the error tag for an unexpected upstream status.
func HTTPStatusTag(code int) string {
	return "HTTP_" + strconv.Itoa(code)
}

// ClassifyError maps a transport or limiter error onto the taxonomy.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var quota *ratelimit.QuotaExceededError
	if errors.As(err, &quota) {
		return KindRateLimited
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ratelimit.ErrThrottled) {
		return KindNetworkTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindNetworkTimeout
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return KindNetworkTimeout
	}
	return KindNetworkFailure
}
