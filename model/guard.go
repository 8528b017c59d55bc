package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/domgolonka/ai-investment-agent-sub001/logging"
)

// GuardOptions configures a Guard.
type GuardOptions struct {
	// Timeout bounds a single attempt. Zero disables the per-attempt deadline.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after the first failure.
	MaxRetries int
	// Backoff is the wait before the first retry; it doubles on each retry.
	Backoff time.Duration
	// Limiter, when set, is waited on before every attempt.
	Limiter *RateLimiter
	Logger  logging.Logger
}

// Guard wraps a Model with rate limiting, a per-attempt timeout and bounded
// retries on transient failures. It is itself a Model.
type Guard struct {
	next   Model
	opts   GuardOptions
	logger logging.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

var _ Model = (*Guard)(nil)

// NewGuard wraps next.
func NewGuard(next Model, optFns ...func(o *GuardOptions)) *Guard {
	opts := GuardOptions{
		Timeout:    2 * time.Minute,
		MaxRetries: 2,
		Backoff:    time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Guard{
		next:   next,
		opts:   opts,
		logger: logging.OrNoOp(opts.Logger),
		sleep:  sleepCtx,
	}
}

// Info implements Model.
func (g *Guard) Info() Info { return g.next.Info() }

// Generate implements Model. The wrapped call is collected so a failed
// attempt can be retried without leaking partial output.
func (g *Guard) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		resp, err := g.Call(ctx, req)
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()
	return respCh, errCh
}

// Call runs one guarded request and returns the final response.
func (g *Guard) Call(ctx context.Context, req Request) (Response, error) {
	name := g.next.Info().Name
	start := time.Now()
	backoff := g.opts.Backoff

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= g.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("model.call.retry",
				"model", name,
				"attempt", attempt+1,
				"backoff", backoff,
				"error", lastErr,
			)
			if err := g.sleep(ctx, backoff); err != nil {
				return Response{}, err
			}
			backoff *= 2
		}

		if g.opts.Limiter != nil {
			if err := g.opts.Limiter.Wait(ctx); err != nil {
				return Response{}, err
			}
		}

		attempts++
		resp, err := g.attempt(ctx, req)
		if err == nil {
			logging.LogModelCall(g.logger, name, attempts, time.Since(start), nil)
			return resp, nil
		}
		lastErr = err

		// The caller's own deadline or cancellation is not ours to retry.
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		if !IsTransient(err) {
			logging.LogModelCall(g.logger, name, attempts, time.Since(start), err)
			return Response{}, err
		}
	}

	err := fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
	logging.LogModelCall(g.logger, name, attempts, time.Since(start), err)
	return Response{}, err
}

func (g *Guard) attempt(ctx context.Context, req Request) (Response, error) {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}
	resp, err := Collect(ctx, g.next, req)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Response{}, fmt.Errorf("model call timed out after %s: %w", g.opts.Timeout, context.DeadlineExceeded)
	}
	return resp, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
