package detect

import (
	"context"

	"github.com/Smeet2005/PHISHSCAN/internal/urlnorm"
	"github.com/Smeet2005/PHISHSCAN/pkg/observability"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

// query runs one reputation lookup through the verdict cache. Concurrent
// lookups of the same (service, URL) share a single upstream call. A non-nil
// pass gates the call on the service's budget for that pass.
func (o *Orchestrator) query(ctx context.Context, pass *Pass, c ReputationClient, u string) Result {
	name := c.Name()
	if o.cache != nil {
		if r, ok := o.cache.Get(name, u); ok {
			o.metrics.IncCacheHit(name)
			return r
		}
		o.metrics.IncCacheMiss(name)
	}

	v, _, _ := o.group.Do(name+"\x00"+u, func() (any, error) {
		spanCtx, span := observability.TraceReputation(ctx, name, u)
		defer span.End()

		o.metrics.IncReputationCall(name)
		r := c.Query(withGate(spanCtx, pass, name), u)
		switch {
		case r.RateLimited:
			o.metrics.IncRateLimited(name)
			observability.RecordInconclusive(span, r.Error)
		case r.Inconclusive():
			o.metrics.IncReputationError(name)
			observability.RecordInconclusive(span, r.Error)
		default:
			observability.RecordVerdict(span, r.Malicious, string(c.Source()), r.Reason)
		}

		// An abandoned pass must not leave its cancellation behind as a verdict.
		if o.cache != nil && !r.Transient && !r.RateLimited && ctx.Err() == nil {
			o.cache.Put(name, u, r)
		}
		return r, nil
	})
	return v.(Result)
}

// Lookup queries a single named service directly, bypassing the pipeline.
// An unconfigured service answers with its own "not configured" result.
func (o *Orchestrator) Lookup(ctx context.Context, service, u string) Result {
	for _, svc := range o.services {
		c := svc.Client
		if c.Name() != service {
			continue
		}
		if !c.Configured() {
			return c.Query(ctx, u)
		}
		return o.query(ctx, nil, c, u)
	}
	return Result{
		Reason: "Reputation service " + service + " not configured",
		Error:  KindConfigurationMissing.Tag(),
	}
}

// LookupVerdict runs Lookup on the normalized form of raw and shapes the
// answer as a verdict attributed to the service.
func (o *Orchestrator) LookupVerdict(ctx context.Context, service, raw string) types.Verdict {
	rec := urlnorm.NewRecord(raw, "")
	v := types.Verdict{URL: rec.Normalized, Source: types.SourceNone, CheckedAt: o.now().UTC()}
	if rec.Malformed {
		v.Reason = "Malformed URL"
		v.Error = KindMalformedURL.Tag()
		return v
	}
	src := types.SourceNone
	for _, svc := range o.services {
		if svc.Client.Name() == service {
			src = svc.Client.Source()
		}
	}
	applyResult(&v, o.Lookup(ctx, service, rec.Normalized), src)
	return v
}
