package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStepBudgetExceeded is returned when a run executes more nodes than its
// step budget allows.
var ErrStepBudgetExceeded = errors.New("step budget exceeded")

// StepLimiter enforces a maximum number of node executions per run.
type StepLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewStepLimiter creates a new limiter with a max number of steps.
// If max == 0, unlimited steps are allowed.
func NewStepLimiter(max int) *StepLimiter {
	return &StepLimiter{max: max}
}

// Increment records one step and returns ErrStepBudgetExceeded once the
// budget is used up.
func (sl *StepLimiter) Increment() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.count++
	if sl.max > 0 && sl.count > sl.max {
		return fmt.Errorf("%w: %d", ErrStepBudgetExceeded, sl.max)
	}

	return nil
}

// Count returns the number of steps taken so far.
func (sl *StepLimiter) Count() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	return sl.count
}
