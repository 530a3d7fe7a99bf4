package owm

import (
	"context"
	"sync"
	"time"

	"github.com/WatchBeam/clock"
)

const rateWindow = time.Minute

// RateLimiter enforces a sliding-window cap on outbound API calls: at most
// limit admissions within any trailing 60 seconds. Reserve blocks until a
// slot is available and records the admission timestamp.
type RateLimiter struct {
	clk   clock.Clock
	limit int

	mu     sync.Mutex
	stamps []time.Time
}

// NewRateLimiter returns a limiter admitting at most limit calls per minute.
func NewRateLimiter(limit int, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.C
	}
	return &RateLimiter{clk: clk, limit: limit}
}

// Reserve blocks until one more call can be admitted, then records it. It
// returns early with the context error if ctx is cancelled while waiting.
func (l *RateLimiter) Reserve(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.clk.Now()
		l.prune(now)

		if len(l.stamps) < l.limit {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}

		wait := rateWindow - now.Sub(l.stamps[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clk.After(wait):
		}
	}
}

// Record appends an admission timestamp without blocking. Used for retry
// attempts: the call went out on the wire, so it counts against the window
// even though admission was only checked once.
func (l *RateLimiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clk.Now()
	l.prune(now)
	l.stamps = append(l.stamps, now)
}

// prune drops timestamps older than the trailing window. Callers hold mu.
func (l *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

// UsageStats summarizes recent request activity for the admin API.
type UsageStats struct {
	RequestsLastMinute int `json:"requests_last_minute"`
	TotalTracked       int `json:"total_requests_tracked"`
	LimitPerMinute     int `json:"rate_limit_per_minute"`
}

// Stats reports current window occupancy.
func (l *RateLimiter) Stats() UsageStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clk.Now()
	cutoff := now.Add(-rateWindow)
	recent := 0
	for _, ts := range l.stamps {
		if ts.After(cutoff) {
			recent++
		}
	}

	return UsageStats{
		RequestsLastMinute: recent,
		TotalTracked:       len(l.stamps),
		LimitPerMinute:     l.limit,
	}
}
