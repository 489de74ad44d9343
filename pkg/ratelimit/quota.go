package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Quota counts usage against a limit that resets every period.
type Quota struct {
	Limit   int64
	period  time.Duration
	now     func() time.Time
	mu      sync.Mutex
	used    int64
	resetAt time.Time

	onWarning func(percentage float64)
}

// QuotaExceededError is returned when a quota is exceeded.
type QuotaExceededError struct {
	Limit     int64
	Used      int64
	Requested int64
	ResetAt   time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: limit=%d, used=%d, requested=%d, resets at %s",
		e.Limit, e.Used, e.Requested, e.ResetAt.Format(time.RFC3339))
}

func NewQuota(limit int64, period time.Duration) *Quota {
	q := &Quota{Limit: limit, period: period, now: time.Now}
	q.resetAt = q.now().Add(period)
	return q
}

// OnWarning sets a callback fired once usage crosses 80%.
func (q *Quota) OnWarning(fn func(percentage float64)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onWarning = fn
}

// Consume records amount units of usage, or returns *QuotaExceededError.
func (q *Quota) Consume(amount int64) error {
	q.mu.Lock()
	q.rollLocked()
	if q.used+amount > q.Limit {
		q.mu.Unlock()
		return q.exceeded(amount)
	}
	oldPct := q.percentLocked()
	q.used += amount
	pct := q.percentLocked()
	onWarning := q.onWarning
	q.mu.Unlock()

	if pct > 80 && oldPct <= 80 && onWarning != nil {
		onWarning(pct)
	}
	return nil
}

func (q *Quota) Remaining() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked()
	return q.Limit - q.used
}

// Usage returns the used count, the limit and the next reset time.
func (q *Quota) Usage() (used, limit int64, resetAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked()
	return q.used, q.Limit, q.resetAt
}

func (q *Quota) Exhaust() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked()
	q.used = q.Limit
}

func (q *Quota) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used = 0
	q.resetAt = q.now().Add(q.period)
}

func (q *Quota) exceeded(amount int64) *QuotaExceededError {
	q.mu.Lock()
	defer q.mu.Unlock()
	return &QuotaExceededError{Limit: q.Limit, Used: q.used, Requested: amount, ResetAt: q.resetAt}
}

func (q *Quota) rollLocked() {
	if now := q.now(); !now.Before(q.resetAt) {
		q.used = 0
		q.resetAt = now.Add(q.period)
	}
}

func (q *Quota) percentLocked() float64 {
	if q.Limit <= 0 {
		return 100
	}
	return float64(q.used) / float64(q.Limit) * 100
}
