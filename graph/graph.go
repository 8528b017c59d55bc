package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/logging"
)

// END is the terminal marker. An edge pointing at END finishes the run.
const END = "__end__"

var (
	// ErrStepBudgetExceeded is returned when a run exceeds its step budget.
	ErrStepBudgetExceeded = core.ErrStepBudgetExceeded
	// ErrUnmappedBranch is returned when a route yields a branch key missing
	// from the edge's declared branch map.
	ErrUnmappedBranch = errors.New("branch not declared in branch map")
	// ErrInvalidGraph is returned by Compile for structural defects.
	ErrInvalidGraph = errors.New("invalid graph")
)

// NodeError reports the node that failed and the underlying cause.
type NodeError struct {
	Node string
	Step int
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q failed at step %d: %v", e.Node, e.Step, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// NodeFunc is one node of the graph. It reads the state and returns a
// partial update; it must not mutate the state it receives.
type NodeFunc[S, U any] func(ctx context.Context, state S, cfg *core.RunConfig) (U, error)

// Branch is a routing outcome key.
type Branch string

// BranchMap maps routing outcomes to destination node names.
type BranchMap map[Branch]string

// Route is a pure routing decision with its closed set of outcomes.
type Route[S any] struct {
	Name     string
	Outcomes []Branch
	Decide   func(state S, cfg *core.RunConfig) Branch
}

type edge[S any] struct {
	to       string
	route    *Route[S]
	branches BranchMap
}

func (e edge[S]) conditional() bool { return e.route != nil }

// StateGraph is a directed graph of named nodes joined by static or
// conditional edges. Build it with the Add* methods, then Compile.
type StateGraph[S, U any] struct {
	nodes map[string]NodeFunc[S, U]
	order []string
	edges map[string]edge[S]
	entry string
	merge func(*S, U)
	errs  []error
}

// New creates an empty graph whose node updates are folded into state by merge.
func New[S, U any](merge func(*S, U)) *StateGraph[S, U] {
	return &StateGraph[S, U]{
		nodes: map[string]NodeFunc[S, U]{},
		edges: map[string]edge[S]{},
		merge: merge,
	}
}

// AddNode registers a named node.
func (g *StateGraph[S, U]) AddNode(name string, fn NodeFunc[S, U]) *StateGraph[S, U] {
	switch {
	case name == "" || name == END:
		g.errs = append(g.errs, fmt.Errorf("reserved or empty node name %q", name))
	case fn == nil:
		g.errs = append(g.errs, fmt.Errorf("node %q has nil function", name))
	case g.nodes[name] != nil:
		g.errs = append(g.errs, fmt.Errorf("duplicate node %q", name))
	default:
		g.nodes[name] = fn
		g.order = append(g.order, name)
	}
	return g
}

// SetEntry sets the node a run starts at.
func (g *StateGraph[S, U]) SetEntry(name string) *StateGraph[S, U] {
	g.entry = name
	return g
}

// AddEdge adds a static edge from -> to.
func (g *StateGraph[S, U]) AddEdge(from, to string) *StateGraph[S, U] {
	return g.addEdge(from, edge[S]{to: to})
}

// AddConditionalEdge routes from a node through route; the branch key it
// returns is resolved through branches.
func (g *StateGraph[S, U]) AddConditionalEdge(from string, route Route[S], branches BranchMap) *StateGraph[S, U] {
	if route.Decide == nil {
		g.errs = append(g.errs, fmt.Errorf("conditional edge from %q has nil route", from))
		return g
	}
	r := route
	return g.addEdge(from, edge[S]{route: &r, branches: branches})
}

func (g *StateGraph[S, U]) addEdge(from string, e edge[S]) *StateGraph[S, U] {
	if _, dup := g.edges[from]; dup {
		g.errs = append(g.errs, fmt.Errorf("node %q already has an outgoing edge", from))
		return g
	}
	g.edges[from] = e
	return g
}

// Options configures a compiled graph.
type Options struct {
	Logger logging.Logger
	// OnStep is called after every merged step.
	OnStep func(StepInfo)
}

// StepInfo describes one executed step.
type StepInfo struct {
	Step     int
	Node     string
	Next     string
	Branch   Branch
	Duration time.Duration
}

// Compile validates the graph and returns an executable pipeline.
func (g *StateGraph[S, U]) Compile(optFns ...func(o *Options)) (*Compiled[S, U], error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	errs := append([]error(nil), g.errs...)
	if g.merge == nil {
		errs = append(errs, errors.New("merge function is nil"))
	}
	if g.entry == "" {
		errs = append(errs, errors.New("entry node not set"))
	} else if g.nodes[g.entry] == nil {
		errs = append(errs, fmt.Errorf("entry node %q not registered", g.entry))
	}

	for from, e := range g.edges {
		if g.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}
		if !e.conditional() {
			if !g.known(e.to) {
				errs = append(errs, fmt.Errorf("edge %q -> unknown node %q", from, e.to))
			}
			continue
		}
		errs = append(errs, g.checkBranches(from, e)...)
	}

	for _, name := range g.order {
		if _, ok := g.edges[name]; !ok {
			errs = append(errs, fmt.Errorf("node %q has no outgoing edge", name))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(errs...))
	}

	c := &Compiled[S, U]{
		nodes:  make(map[string]NodeFunc[S, U], len(g.nodes)),
		edges:  make(map[string]edge[S], len(g.edges)),
		order:  append([]string(nil), g.order...),
		entry:  g.entry,
		merge:  g.merge,
		logger: opts.Logger,
		onStep: opts.OnStep,
	}
	for k, v := range g.nodes {
		c.nodes[k] = v
	}
	for k, v := range g.edges {
		c.edges[k] = v
	}
	return c, nil
}

func (g *StateGraph[S, U]) known(name string) bool {
	return name == END || g.nodes[name] != nil
}

func (g *StateGraph[S, U]) checkBranches(from string, e edge[S]) []error {
	var errs []error
	if len(e.branches) == 0 {
		return []error{fmt.Errorf("conditional edge from %q has empty branch map", from)}
	}
	for b, to := range e.branches {
		if !g.known(to) {
			errs = append(errs, fmt.Errorf("branch %q of %q -> unknown node %q", b, from, to))
		}
	}
	if len(e.route.Outcomes) == 0 {
		return errs
	}
	declared := make(map[Branch]bool, len(e.route.Outcomes))
	for _, o := range e.route.Outcomes {
		declared[o] = true
		if _, ok := e.branches[o]; !ok {
			errs = append(errs, fmt.Errorf("route %q from %q: outcome %q not in branch map", e.route.Name, from, o))
		}
	}
	for b := range e.branches {
		if !declared[b] {
			errs = append(errs, fmt.Errorf("route %q from %q: branch %q is never produced", e.route.Name, from, b))
		}
	}
	return errs
}
