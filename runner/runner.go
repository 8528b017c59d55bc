package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	investagent "github.com/domgolonka/ai-investment-agent-sub001"
	"github.com/domgolonka/ai-investment-agent-sub001/artifact"
	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/logging"
)

// Pipeline executes one run. *investagent.Pipeline satisfies it.
type Pipeline interface {
	Run(ctx context.Context, subject, date string, cfg *core.RunConfig) (investagent.Result, error)
}

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits how many runs execute at once; the rest queue.
	MaxConcurrentRuns int
	// RunTimeout bounds a single run including its time in the queue. Zero
	// disables the deadline.
	RunTimeout time.Duration
	// Config is used for requests that carry no run configuration.
	Config *core.RunConfig
	// Archive, when set, receives the reports of every successful run.
	Archive artifact.Store
	Logger  logging.Logger
}

// Request names one subject to analyse.
type Request struct {
	Subject string
	Date    string
	Config  *core.RunConfig
}

// Result is the outcome of one request. Err is set when the run failed or
// was stopped; Outcome then holds the partial state.
type Result struct {
	RunID   string
	Request Request
	Outcome investagent.Result
	Err     error
	// Reports lists the archived report names.
	Reports []string
}

// ErrRunNotFound is returned by Stop for unknown or finished runs.
var ErrRunNotFound = errors.New("run not found")

// Runner executes pipeline runs for many subjects concurrently. Public
// methods are safe for concurrent use.
type Runner struct {
	pipeline Pipeline
	opts     Options
	logger   logging.Logger
	sem      chan struct{}

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(p Pipeline, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrentRuns < 1 {
		opts.MaxConcurrentRuns = 1
	}

	return &Runner{
		pipeline:   p,
		opts:       opts,
		logger:     logging.OrNoOp(opts.Logger),
		sem:        make(chan struct{}, opts.MaxConcurrentRuns),
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Run executes every request and blocks until all are done. Results are
// returned in request order.
func (r *Runner) Run(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	chans := make([]<-chan Result, len(reqs))
	for i, req := range reqs {
		_, chans[i] = r.Start(ctx, req)
	}
	for i, ch := range chans {
		results[i] = <-ch
	}
	return results
}

// Start queues one request and returns its run ID immediately. The channel
// delivers exactly one Result and is then closed.
func (r *Runner) Start(ctx context.Context, req Request) (string, <-chan Result) {
	runID := uuid.NewString()
	out := make(chan Result, 1)

	ctx, cancel := context.WithCancel(ctx)
	if r.opts.RunTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, r.opts.RunTimeout)
		parent := cancel
		cancel = func() { cancelTimeout(); parent() }
	}

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	r.logger.Debug("runner.run.queued", "run_id", runID, "subject", req.Subject)

	go func() {
		defer close(out)
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
		}()

		out <- r.execute(ctx, runID, req)
	}()

	return runID, out
}

func (r *Runner) execute(ctx context.Context, runID string, req Request) (res Result) {
	res = Result{RunID: runID, Request: req}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		res.Err = ctx.Err()
		r.logger.Warn("runner.run.dropped", "run_id", runID, "subject", req.Subject, "error", res.Err.Error())
		return res
	}
	defer func() { <-r.sem }()

	defer func() {
		if rec := recover(); rec != nil {
			res.Err = fmt.Errorf("run %s panicked: %v", runID, rec)
			r.logger.Error("runner.run.panic", "run_id", runID, "subject", req.Subject, "panic", fmt.Sprint(rec))
		}
	}()

	cfg := req.Config
	if cfg == nil {
		cfg = r.opts.Config
	}

	start := time.Now()
	res.Outcome, res.Err = r.pipeline.Run(investagent.WithRunID(ctx, runID), req.Subject, req.Date, cfg)
	if res.Err != nil {
		r.logger.Error("runner.run.failed", "run_id", runID, "subject", req.Subject, "error", res.Err.Error())
		return res
	}
	if r.opts.Archive != nil {
		names, err := artifact.SaveReports(r.opts.Archive, runID, res.Outcome.State)
		if err != nil {
			r.logger.Warn("runner.run.archive_failed", "run_id", runID, "error", err.Error())
		}
		res.Reports = names
	}
	r.logger.Info("runner.run.completed",
		"run_id", runID,
		"subject", req.Subject,
		"decision", string(res.Outcome.Decision),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// Stop cancels a queued or running run by ID.
func (r *Runner) Stop(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	cancel()
	r.logger.Info("runner.run.stopped", "run_id", runID)
	return nil
}

// ActiveRuns returns the IDs of queued and running runs, sorted.
func (r *Runner) ActiveRuns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.activeRuns))
	for id := range r.activeRuns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
