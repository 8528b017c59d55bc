package model

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterOptions configures a RateLimiter.
type RateLimiterOptions struct {
	// RequestsPerMinute is the externally imposed ceiling.
	RequestsPerMinute float64
	// SafetyMargin scales the ceiling down, e.g. 0.8 uses 80% of it.
	SafetyMargin float64
	// Burst is the number of calls allowed back to back.
	Burst int
}

// RateLimiter gates outbound model calls. One instance is shared by every
// concurrent run of a process; callers block until a slot is free.
type RateLimiter struct {
	limiter *rate.Limiter
	opts    RateLimiterOptions
}

// NewRateLimiter creates a limiter running at RequestsPerMinute*SafetyMargin.
func NewRateLimiter(optFns ...func(o *RateLimiterOptions)) *RateLimiter {
	opts := RateLimiterOptions{
		RequestsPerMinute: 60,
		SafetyMargin:      0.8,
		Burst:             2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SafetyMargin <= 0 || opts.SafetyMargin > 1 {
		opts.SafetyMargin = 1
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(opts.RequestsPerMinute * opts.SafetyMargin / time.Minute.Seconds())
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, opts.Burst), opts: opts}
}

// Wait blocks until a call may proceed or ctx is done.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return nil
}

// Limit returns the effective requests per second.
func (l *RateLimiter) Limit() float64 { return float64(l.limiter.Limit()) }

// Burst returns the burst allowance.
func (l *RateLimiter) Burst() int { return l.limiter.Burst() }
