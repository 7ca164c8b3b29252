package util

import (
	"context"
	"errors"
	"sync"
	"time"
)

// RateLimiter implements a token-bucket rate limiter that replenishes tokens
// at a fixed rate over a rolling window. Each provider client owns exactly
// one limiter instance; there is no process-global limiter state.
type RateLimiter struct {
	rate     float64 // tokens per second
	burst    float64
	tokens   float64
	lastTime time.Time
	mu       sync.Mutex
}

// NewRateLimiter creates a RateLimiter that allows perWindow operations per
// window, with at most one burst token available at start.
func NewRateLimiter(perWindow int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		rate:     float64(perWindow) / window.Seconds(),
		burst:    1,
		tokens:   1,
		lastTime: time.Now(),
	}
}

// Wait blocks until a rate-limit token is available or the context is
// cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(rl.lastTime).Seconds()
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.burst {
			rl.tokens = rl.burst
		}
		rl.lastTime = now

		if rl.tokens >= 1 {
			rl.tokens -= 1
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// FixedDelay enforces a minimum interval between consecutive calls. It is
// used by providers whose documented contract is a flat requests-per-second
// ceiling (SEC EDGAR, Yahoo Finance) or a strict inter-request delay
// (Alpha Vantage minute window).
type FixedDelay struct {
	interval time.Duration
	last     time.Time
	mu       sync.Mutex
}

// NewFixedDelay creates a FixedDelay with the given minimum interval.
func NewFixedDelay(interval time.Duration) *FixedDelay {
	return &FixedDelay{interval: interval}
}

// Wait sleeps for the remainder of the interval since the previous call, then
// records the current time. The first call returns immediately.
func (d *FixedDelay) Wait(ctx context.Context) error {
	d.mu.Lock()
	remaining := d.interval - time.Since(d.last)
	if d.last.IsZero() {
		remaining = 0
	}
	d.mu.Unlock()

	if remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(remaining):
		}
	}

	d.mu.Lock()
	d.last = time.Now()
	d.mu.Unlock()
	return nil
}

// ErrQuotaExhausted is returned once a DailyQuota has no requests left for
// the current local date. It is terminal for the provider within the run;
// retrying would only guarantee further failures.
var ErrQuotaExhausted = errors.New("daily request quota exhausted")

// DailyQuota counts requests against a per-day ceiling that resets at local
// date rollover.
type DailyQuota struct {
	limit int
	used  int
	date  string
	now   func() time.Time
	mu    sync.Mutex
}

// NewDailyQuota creates a DailyQuota allowing limit requests per local day.
func NewDailyQuota(limit int) *DailyQuota {
	return &DailyQuota{limit: limit, now: time.Now}
}

// Take consumes one request from today's quota. It returns ErrQuotaExhausted
// once the ceiling is reached.
func (q *DailyQuota) Take() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	today := q.now().Format("2006-01-02")
	if today != q.date {
		q.date = today
		q.used = 0
	}
	if q.used >= q.limit {
		return ErrQuotaExhausted
	}
	q.used++
	return nil
}

// Remaining reports how many requests are left for the current local date.
func (q *DailyQuota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	today := q.now().Format("2006-01-02")
	if today != q.date {
		return q.limit
	}
	return q.limit - q.used
}
