// Package ratelimit spaces consecutive requests to the same host with a
// token bucket holding a single token. The bucket is drained when a request
// completes, so the full interval separates the end of one request from the
// start of the next.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/quotes-crawler/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	// Interval is the pause between the end of one request and the start of
	// the next to the same host. Zero or less disables pacing.
	Interval time.Duration
}

// Limiter keeps one single-token bucket per host.
type Limiter struct {
	limit rate.Limit

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	metrics.Init()
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
	}
}

// Wait blocks until a request to rawURL's host may be issued. The first
// request to a host never waits.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	bucket := l.bucketFor(metrics.HostLabel(rawURL))
	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("politeness wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePolitenessDelay(rawURL, waited)
	}
	return nil
}

// Done marks the request to rawURL as finished and restarts the host's
// interval from now.
func (l *Limiter) Done(rawURL string) {
	b := rate.NewLimiter(l.limit, 1)
	b.Allow()
	l.mu.Lock()
	l.limiters[metrics.HostLabel(rawURL)] = b
	l.mu.Unlock()
}

func (l *Limiter) bucketFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.limiters[host]; ok {
		return b
	}
	b := rate.NewLimiter(l.limit, 1)
	l.limiters[host] = b
	return b
}
