package detect

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Smeet2005/PHISHSCAN/internal/metrics"
	"github.com/Smeet2005/PHISHSCAN/internal/urlnorm"
	"github.com/Smeet2005/PHISHSCAN/pkg/observability"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

const (
	reasonSafeDomain   = "Safe domain (whitelisted)"
	reasonTestDatabase = "Known phishing site (Test Database)"
	reasonNoThreats    = "No threats detected"
	reasonMalformed    = "Malformed URL (heuristics only)"

	responseFound    = 1
	responseNotFound = 0
)

// Options wires the orchestrator's collaborators. Every collaborator is
// optional; a missing one is treated as returning nothing.
type Options struct {
	Strategy   Strategy
	Thresholds Thresholds
	Allowlist  *Allowlist
	Feed       FeedMatcher
	Shortener  Shortener
	// Services are queried in order; the first malicious answer wins.
	Services []Service
	Cache    VerdictCache
	Metrics  *metrics.Collector
	Logger   *slog.Logger
	Now      func() time.Time
}

// Orchestrator turns a raw URL into a single verdict by running the checks
// in precedence order: allowlist, per-pass dedup, shortener resolution,
// heuristics, threat feed, reputation services, heuristic fallback.
type Orchestrator struct {
	strategy   Strategy
	thresholds Thresholds
	allow      *Allowlist
	feed       FeedMatcher
	shortener  Shortener
	services   []Service
	cache      VerdictCache
	metrics    *metrics.Collector
	logger     *slog.Logger
	now        func() time.Time
	group      singleflight.Group
}

func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		strategy:   opts.Strategy,
		thresholds: opts.Thresholds,
		allow:      opts.Allowlist,
		feed:       opts.Feed,
		shortener:  opts.Shortener,
		services:   opts.Services,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if o.strategy == "" {
		o.strategy = StrategyAlways
	}
	if o.thresholds == (Thresholds{}) {
		o.thresholds = DefaultThresholds()
	}
	if o.logger == nil {
		o.logger = observability.Discard()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Configured reports whether at least one reputation service has credentials.
func (o *Orchestrator) Configured() bool {
	for _, svc := range o.services {
		if svc.Client.Configured() {
			return true
		}
	}
	return false
}

// unmeteredConfigured reports whether a free-to-query service is available.
func (o *Orchestrator) unmeteredConfigured() bool {
	for _, svc := range o.services {
		if !svc.Metered && svc.Client.Configured() {
			return true
		}
	}
	return false
}

// Classify evaluates raw (resolved against base) within pass. The boolean is
// false when the URL was already processed in this pass and there is nothing
// new to report. A nil pass classifies the URL in isolation.
func (o *Orchestrator) Classify(ctx context.Context, pass *Pass, raw, base string) (types.Verdict, bool) {
	if pass == nil {
		pass = NewPass()
	}
	ctx, span := observability.TraceClassification(ctx, raw)
	defer span.End()

	v, ok := o.classify(ctx, pass, raw, base)
	if !ok {
		span.SetName("classify.skipped")
		return types.Verdict{}, false
	}
	observability.RecordVerdict(span, v.Malicious, string(v.Source), v.Reason)
	o.metrics.IncClassification(string(v.Source), v.Malicious)
	return v, true
}

func (o *Orchestrator) classify(ctx context.Context, pass *Pass, raw, base string) (types.Verdict, bool) {
	rec := urlnorm.NewRecord(raw, base)
	v := types.Verdict{URL: rec.Normalized, Source: types.SourceNone, CheckedAt: o.now().UTC()}

	if rec.Malformed {
		o.logger.Debug("classify: malformed url, scoring lexically", "url", raw)
		return o.classifyMalformed(rec, v), true
	}

	v.Domain = rec.Domain
	if o.allow.Allowed(rec.Hostname) {
		return safeDomain(v), true
	}
	if !pass.MarkProcessed(rec.Normalized) {
		return v, false
	}

	target := rec
	if o.shortener != nil && o.shortener.IsShortened(rec.Normalized) {
		rec.IsShortened = true
		resolved := o.resolve(ctx, rec.Normalized)
		if next := urlnorm.NewRecord(resolved, ""); !next.Malformed && next.Normalized != rec.Normalized {
			rec.ResolvedURL = next.Normalized
			target = next
		}
	}
	v.IsShortened = rec.IsShortened
	v.ResolvedURL = rec.ResolvedURL
	if target.Normalized != rec.Normalized {
		v.Domain = target.Domain
		if o.allow.Allowed(target.Hostname) {
			return safeDomain(v), true
		}
		if !pass.MarkProcessed(target.Normalized) {
			return v, false
		}
	}

	score := ScoreURL(rec.Target())
	v.RiskScore = score.Value
	v.HeuristicReasons = score.Reasons

	configured := o.Configured()
	if o.feed != nil {
		if !configured {
			if m := o.feed.MatchFallback(target); m.Malicious {
				v.Malicious = true
				v.Reason = reasonTestDatabase
				v.Source = types.SourceFeed
				return v, true
			}
		}
		if m := o.feed.Match(target); m.Malicious {
			o.logger.Debug("classify: feed match", "url", target.Normalized, "level", m.Level.String(), "entry", m.Entry)
			v.Malicious = true
			v.Reason = m.Reason
			v.Source = types.SourceFeed
			return v, true
		}
	}

	// Clean answers are held back until every service had its say.
	var confirmed, notFound, inconclusive *Result
	var confirmedSrc, notFoundSrc, inconclusiveSrc types.Source
	for _, svc := range o.services {
		c := svc.Client
		if !c.Configured() {
			continue
		}
		if pass.Exhausted(c.Name()) {
			r := exhaustedResult(c.Name())
			inconclusive, inconclusiveSrc = &r, c.Source()
			continue
		}
		if svc.Metered && o.strategy == StrategyGated && !o.worthQuerying(score, v.IsShortened) {
			o.logger.Debug("classify: skipping metered service", "service", c.Name(), "score", score.Value, "threshold", o.thresholds.Low)
			continue
		}

		r := o.query(ctx, pass, c, target.Normalized)
		if r.RateLimited {
			o.logger.Warn("reputation service rate limited, pausing for this pass", "service", c.Name())
			pass.Exhaust(c.Name())
		}
		if r.Malicious {
			applyResult(&v, r, c.Source())
			return v, true
		}
		if r.Inconclusive() {
			inconclusive, inconclusiveSrc = &r, c.Source()
			continue
		}
		if r.Evidence == nil {
			continue
		}
		switch {
		case r.Evidence.ResponseCode == responseFound && r.Evidence.Total > 0:
			confirmed, confirmedSrc = &r, c.Source()
		case r.Evidence.ResponseCode == responseNotFound:
			notFound, notFoundSrc = &r, c.Source()
		}
	}

	if confirmed != nil {
		applyResult(&v, *confirmed, confirmedSrc)
		return v, true
	}

	if o.exceedsFallback(score, configured) {
		v.Malicious = true
		v.Reason = suspiciousPatterns(score)
		v.Source = types.SourceHeuristic
		return v, true
	}

	if notFound != nil {
		applyResult(&v, *notFound, notFoundSrc)
		return v, true
	}
	// Clean, but tagged so the caller can tell nothing actually vouched for it.
	if inconclusive != nil {
		applyResult(&v, *inconclusive, inconclusiveSrc)
		return v, true
	}
	v.Reason = reasonNoThreats
	return v, true
}

func (o *Orchestrator) classifyMalformed(rec urlnorm.Record, v types.Verdict) types.Verdict {
	score := ScoreURL(rec.Raw)
	v.RiskScore = score.Value
	v.HeuristicReasons = score.Reasons
	if o.exceedsFallback(score, o.Configured()) {
		v.Malicious = true
		v.Reason = suspiciousPatterns(score)
		v.Source = types.SourceHeuristic
		return v
	}
	v.Reason = reasonMalformed
	v.Error = KindMalformedURL.Tag()
	return v
}

func (o *Orchestrator) resolve(ctx context.Context, u string) string {
	resolved := o.shortener.Resolve(ctx, u)
	o.logger.Debug("classify: shortened url", "url", u, "resolved", resolved)
	return resolved
}

// worthQuerying is the gate for metered services in the gated strategy.
func (o *Orchestrator) worthQuerying(score Score, shortened bool) bool {
	return score.Value >= o.thresholds.Low || shortened || !o.unmeteredConfigured()
}

func (o *Orchestrator) exceedsFallback(score Score, configured bool) bool {
	threshold := o.thresholds.High
	if !configured {
		threshold = o.thresholds.Offline
	}
	return score.Value > 0 && score.Value >= threshold
}

func exhaustedResult(service string) Result {
	return Result{
		Reason:      "Reputation service " + service + " rate limited for this scan",
		RateLimited: true,
		Error:       KindRateLimited.Tag(),
	}
}

func suspiciousPatterns(score Score) string {
	return "Suspicious patterns: " + strings.Join(score.Reasons, ", ")
}

func safeDomain(v types.Verdict) types.Verdict {
	v.Malicious = false
	v.Reason = reasonSafeDomain
	v.Source = types.SourceAllowlist
	return v
}

func applyResult(v *types.Verdict, r Result, src types.Source) {
	v.Malicious = r.Malicious
	v.Reason = r.Reason
	v.Source = src
	v.ThreatType = r.ThreatType
	v.PlatformType = r.PlatformType
	v.RateLimited = r.RateLimited
	v.Error = r.Error
	v.Evidence = r.Evidence
}
