package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrRetriesExhausted is returned by Guard when every attempt failed.
var ErrRetriesExhausted = errors.New("model call retries exhausted")

// ProviderError is an API failure reported by a model provider. Adapters wrap
// SDK errors in it so the guard can classify them without importing SDKs.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %v", e.Provider, e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying: deadline hits, rate
// limiting and server side failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode == http.StatusTooManyRequests ||
			pe.StatusCode == http.StatusRequestTimeout ||
			pe.StatusCode >= http.StatusInternalServerError
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
