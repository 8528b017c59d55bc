package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/logging"
)

// Compiled is an immutable, validated graph. It is safe for concurrent use;
// each Invoke owns its state and step counter.
type Compiled[S, U any] struct {
	nodes  map[string]NodeFunc[S, U]
	edges  map[string]edge[S]
	order  []string
	entry  string
	merge  func(*S, U)
	logger logging.Logger
	onStep func(StepInfo)
}

// Nodes returns the node names in registration order.
func (c *Compiled[S, U]) Nodes() []string { return append([]string(nil), c.order...) }

// Entry returns the entry node name.
func (c *Compiled[S, U]) Entry() string { return c.entry }

// WithOptions returns a copy sharing nodes and edges but with its own
// logger and step observer.
func (c *Compiled[S, U]) WithOptions(optFns ...func(o *Options)) *Compiled[S, U] {
	opts := Options{Logger: c.logger, OnStep: c.onStep}
	for _, fn := range optFns {
		fn(&opts)
	}
	cp := *c
	cp.logger = logging.OrNoOp(opts.Logger)
	cp.onStep = opts.OnStep
	return &cp
}

// Invoke runs the graph from the entry node until END. Node failures are
// returned as *NodeError; exceeding cfg's step budget returns an error
// matching ErrStepBudgetExceeded. The partially accumulated state is returned
// alongside any error.
func (c *Compiled[S, U]) Invoke(ctx context.Context, state S, cfg *core.RunConfig) (S, error) {
	limiter := core.NewStepLimiter(cfg.Budget())
	current := c.entry

	c.logger.Debug("graph.run.start", "entry", current, "step_budget", cfg.Budget())

	for {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		if err := limiter.Increment(); err != nil {
			c.logger.Error("graph.run.budget_exceeded", "node", current, "steps", limiter.Count()-1)
			return state, err
		}
		step := limiter.Count()

		start := time.Now()
		update, err := c.nodes[current](ctx, state, cfg)
		if err != nil {
			c.logger.Error("graph.node.failed", "node", current, "step", step, "error", err.Error())
			return state, &NodeError{Node: current, Step: step, Err: err}
		}
		c.merge(&state, update)

		next, branch, err := c.resolve(current, state, cfg)
		if err != nil {
			return state, err
		}

		dur := time.Since(start)
		c.logger.Debug("graph.node.executed", "node", current, "step", step, "next", next, "branch", string(branch), "duration_ms", dur.Milliseconds())
		if c.onStep != nil {
			c.onStep(StepInfo{Step: step, Node: current, Next: next, Branch: branch, Duration: dur})
		}

		if next == END {
			c.logger.Debug("graph.run.end", "steps", step)
			return state, nil
		}
		current = next
	}
}

func (c *Compiled[S, U]) resolve(from string, state S, cfg *core.RunConfig) (string, Branch, error) {
	e := c.edges[from]
	if !e.conditional() {
		return e.to, "", nil
	}

	b := e.route.Decide(state, cfg)
	to, ok := e.branches[b]
	if !ok {
		c.logger.Error("graph.route.unmapped", "node", from, "route", e.route.Name, "branch", string(b))
		return "", b, fmt.Errorf("%w: route %q from node %q produced %q", ErrUnmappedBranch, e.route.Name, from, b)
	}
	return to, b, nil
}
