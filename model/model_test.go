package model

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/internal/testutil"
)

func noSleep(g *Guard) *Guard {
	g.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return g
}

func TestMockModelScript(t *testing.T) {
	ctx := context.Background()
	m := NewMockModel("scripted").
		Enqueue(ToolCalls(core.ToolCall{ID: "call_1", Name: "get_news", Arguments: `{}`})).
		Enqueue(Text("done"))

	first, err := Collect(ctx, m, Request{Instructions: "a"})
	require.NoError(t, err)
	assert.True(t, first.Message.HasToolCalls())
	assert.Equal(t, "tool_calls", first.FinishReason)

	second, err := Collect(ctx, m, Request{Instructions: "b"})
	require.NoError(t, err)
	assert.Equal(t, "done", second.Message.Content)

	third, err := Collect(ctx, m, Request{})
	require.NoError(t, err)
	assert.Equal(t, "Mock response from scripted", third.Message.Content)

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "a", reqs[0].Instructions)
	assert.Equal(t, "mock", m.Info().Provider)
}

func TestCollectPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockModel("m").EnqueueError(boom)
	_, err := Collect(context.Background(), m, Request{})
	assert.ErrorIs(t, err, boom)
}

func TestCollectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, NewMockModel("m"), Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate limited", &ProviderError{Provider: "openai", StatusCode: http.StatusTooManyRequests}, true},
		{"server error", &ProviderError{Provider: "anthropic", StatusCode: http.StatusBadGateway}, true},
		{"bad request", &ProviderError{Provider: "openai", StatusCode: http.StatusBadRequest}, false},
		{"plain", errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestGuardRetriesTransient(t *testing.T) {
	m := NewMockModel("m").
		EnqueueError(&ProviderError{Provider: "openai", StatusCode: 503, Err: errors.New("unavailable")}).
		Enqueue(Text("ok"))
	logger := &testutil.RecordingLogger{}
	g := noSleep(NewGuard(m, func(o *GuardOptions) { o.Logger = logger }))

	resp, err := g.Call(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
	assert.Len(t, m.Requests(), 2)
	assert.Equal(t, 1, logger.Count("WARN", "model.call.retry"))
	assert.Equal(t, 1, logger.Count("INFO", "model.call.completed"))
}

func TestGuardDoesNotRetryPermanent(t *testing.T) {
	bad := &ProviderError{Provider: "openai", StatusCode: 401, Err: errors.New("unauthorized")}
	m := NewMockModel("m").EnqueueError(bad)
	g := noSleep(NewGuard(m))

	_, err := g.Call(context.Background(), Request{})
	assert.ErrorIs(t, err, bad)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Len(t, m.Requests(), 1)
}

func TestGuardExhausted(t *testing.T) {
	m := NewMockModel("m").OnRequest(func(Request) (Response, error) {
		return Response{}, &ProviderError{Provider: "openai", StatusCode: 429, Err: errors.New("slow down")}
	})
	logger := &testutil.RecordingLogger{}
	g := noSleep(NewGuard(m, func(o *GuardOptions) {
		o.MaxRetries = 3
		o.Logger = logger
	}))

	_, err := g.Call(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Len(t, m.Requests(), 4)
	assert.Equal(t, 1, logger.Count("ERROR", "model.call.failed"))
	assert.Equal(t, 0, logger.Count("INFO", "model.call.completed"))
}

func TestGuardTimeout(t *testing.T) {
	slow := NewMockModel("slow").OnRequest(func(Request) (Response, error) {
		time.Sleep(200 * time.Millisecond)
		return Text("late"), nil
	})
	g := noSleep(NewGuard(slow, func(o *GuardOptions) {
		o.Timeout = 10 * time.Millisecond
		o.MaxRetries = 1
	}))

	_, err := g.Call(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuardAsModel(t *testing.T) {
	g := NewGuard(NewMockModel("inner").Enqueue(Text("hi")), func(o *GuardOptions) {
		o.Limiter = NewRateLimiter(func(o *RateLimiterOptions) { o.RequestsPerMinute = 0 })
	})
	resp, err := Collect(context.Background(), g, Request{})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Message.Content)
	assert.Equal(t, "inner", g.Info().Name)
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(func(o *RateLimiterOptions) {
		o.RequestsPerMinute = 600
		o.SafetyMargin = 0.5
		o.Burst = 3
	})
	assert.InDelta(t, 5.0, l.Limit(), 1e-9)
	assert.Equal(t, 3, l.Burst())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, l.Wait(canceled))
}
