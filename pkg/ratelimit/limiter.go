// Package ratelimit paces calls to rate-limited upstream services and tracks
// their daily quotas.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrThrottled is returned by Limiter.Wait when the context ends before a
// token becomes available.
var ErrThrottled = errors.New("rate limit wait cancelled")

// Limiter combines a token bucket with an optional daily quota.
type Limiter struct {
	bucket *rate.Limiter
	quota  *Quota
}

type LimiterConfig struct {
	PerSecond float64
	Burst     int
	// DailyQuota of 0 disables quota tracking.
	DailyQuota int64
}

func NewLimiter(cfg LimiterConfig) *Limiter {
	limit := rate.Inf
	if cfg.PerSecond > 0 {
		limit = rate.Limit(cfg.PerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{bucket: rate.NewLimiter(limit, burst)}
	if cfg.DailyQuota > 0 {
		l.quota = NewQuota(cfg.DailyQuota, 24*time.Hour)
	}
	return l
}

// Wait blocks until a request may be sent, then consumes one unit of quota.
// A nil Limiter never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if l.quota != nil && l.quota.Remaining() <= 0 {
		return l.quota.exceeded(1)
	}
	if err := l.bucket.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(ErrThrottled, ctxErr)
		}
		return errors.Join(ErrThrottled, err)
	}
	if l.quota != nil {
		return l.quota.Consume(1)
	}
	return nil
}

// Allow reports whether a request may be sent now without waiting.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	if l.quota != nil && l.quota.Remaining() <= 0 {
		return false
	}
	return l.bucket.Allow()
}

// Exhaust marks the quota as used up until the next reset. Used when the
// upstream reports a quota error before the local count reaches the limit.
func (l *Limiter) Exhaust() {
	if l == nil || l.quota == nil {
		return
	}
	l.quota.Exhaust()
}

// Quota returns the underlying quota, or nil when none is tracked.
func (l *Limiter) Quota() *Quota {
	if l == nil {
		return nil
	}
	return l.quota
}
