// Package investagent provides the high-level façade over the trading
// pipeline. Most applications interact with it by:
//  1. Creating a Pipeline via New() with a quick and a deep model, the data
//     tools of each analyst and optionally a memory registry
//  2. Calling Propagate for a subject and trade date
//  3. Optionally calling Reflect once the outcome of the decision is known
//
// The façade wires node factories, routing policies and the tool dispatch
// node into one compiled graph. A Pipeline is safe for concurrent use; every
// Propagate call owns its state.
package investagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/domgolonka/ai-investment-agent-sub001/agent"
	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/graph"
	"github.com/domgolonka/ai-investment-agent-sub001/logging"
	"github.com/domgolonka/ai-investment-agent-sub001/memory"
	"github.com/domgolonka/ai-investment-agent-sub001/model"
	"github.com/domgolonka/ai-investment-agent-sub001/routing"
	"github.com/domgolonka/ai-investment-agent-sub001/tool"
)

// Options configures a Pipeline.
type Options struct {
	// QuickModel drives analysts, researchers, the trader and risk debaters.
	QuickModel model.Model
	// DeepModel drives the pre-screen, the research manager and the risk judge.
	// Defaults to QuickModel.
	DeepModel model.Model

	// Guard, when set, wraps both models with timeout and retry handling.
	// Zero fields keep the guard defaults; a negative MaxRetries disables
	// retries.
	Guard *model.GuardOptions

	// Toolkit holds the tools of each analyst keyed by analyst id.
	Toolkit tool.Toolkit
	// Analysts selects and orders the analysts. Defaults to all four.
	Analysts []routing.Analyst
	// Fallback receives tool results when the sender is unknown. Defaults to
	// the market analyst if selected, else the first selected analyst.
	Fallback routing.Analyst
	// MaxParallelTools caps concurrent tool calls per turn.
	MaxParallelTools int

	// SkipPreScreen wires the analysts straight into the debate.
	SkipPreScreen bool

	// Registry provides subject scoped memory. Nil disables memory regardless
	// of Config.EnableMemory.
	Registry *memory.Registry
	// Config is the default run configuration.
	Config *core.RunConfig

	Logger logging.Logger
	// OnStep observes every executed graph step.
	OnStep func(runID string, info graph.StepInfo)
}

// Pipeline is a compiled trading pipeline.
type Pipeline struct {
	opts     Options
	logger   logging.Logger
	compiled *graph.Compiled[core.AgentState, core.Update]
	selected []routing.Analyst
}

// Result is the outcome of one Propagate call.
type Result struct {
	RunID    string
	State    core.AgentState
	Decision agent.Decision
	Duration time.Duration
}

// ErrNoModel is returned by New when no model is configured.
var ErrNoModel = errors.New("investagent: a quick model is required")

// New builds and compiles the pipeline graph.
func New(optFns ...func(o *Options)) (*Pipeline, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.QuickModel == nil {
		return nil, ErrNoModel
	}
	if opts.DeepModel == nil {
		opts.DeepModel = opts.QuickModel
	}
	if opts.Guard != nil {
		guard := guardOptions(*opts.Guard, opts.Logger)
		opts.QuickModel = model.NewGuard(opts.QuickModel, guard)
		opts.DeepModel = model.NewGuard(opts.DeepModel, guard)
	}
	if opts.Toolkit == nil {
		opts.Toolkit = tool.Toolkit{}
	}
	if len(opts.Analysts) == 0 {
		opts.Analysts = routing.Analysts()
	}
	if opts.Fallback == "" {
		opts.Fallback = defaultFallback(opts.Analysts)
	}

	p := &Pipeline{opts: opts, logger: logging.OrNoOp(opts.Logger)}
	if err := p.build(); err != nil {
		return nil, err
	}
	return p, nil
}

// guardOptions overrides the guard defaults with the non-zero fields of g.
func guardOptions(g model.GuardOptions, logger logging.Logger) func(o *model.GuardOptions) {
	return func(o *model.GuardOptions) {
		if g.Timeout > 0 {
			o.Timeout = g.Timeout
		}
		if g.MaxRetries != 0 {
			o.MaxRetries = g.MaxRetries
		}
		if g.Backoff > 0 {
			o.Backoff = g.Backoff
		}
		if g.Limiter != nil {
			o.Limiter = g.Limiter
		}
		o.Logger = g.Logger
		if o.Logger == nil {
			o.Logger = logger
		}
	}
}

func defaultFallback(selected []routing.Analyst) routing.Analyst {
	for _, a := range selected {
		if a == routing.MarketAnalyst {
			return a
		}
	}
	return selected[0]
}

func (p *Pipeline) nodeOptions(o *agent.Options) {
	o.Logger = p.logger
	if p.opts.Registry != nil {
		o.Memory = p.opts.Registry
	}
}

// build wires the graph:
//
//	analysts (each looping through tools) -> pre-screen -> bull/bear debate ->
//	research manager -> trader -> risky -> safe -> neutral -> risk judge
//
// A rejected pre-screen jumps straight to the risk judge.
func (p *Pipeline) build() error {
	quick, deep := p.opts.QuickModel, p.opts.DeepModel
	g := graph.New(core.Merge)

	toolReturn, err := routing.NewToolReturn(p.opts.Analysts, p.opts.Fallback, p.logger)
	if err != nil {
		return err
	}

	seen := map[routing.Analyst]bool{}
	for _, a := range p.opts.Analysts {
		if seen[a] {
			continue
		}
		seen[a] = true
		p.selected = append(p.selected, a)
	}

	afterAnalysts := routing.NodeBullResearcher
	if !p.opts.SkipPreScreen {
		afterAnalysts = routing.NodePreScreen
	}

	for i, a := range p.selected {
		node, err := agent.NewAnalyst(a, quick, p.opts.Toolkit[a.String()], p.nodeOptions)
		if err != nil {
			return err
		}
		next := afterAnalysts
		if i+1 < len(p.selected) {
			next = p.selected[i+1].NodeName()
		}
		g.AddNode(a.NodeName(), node).
			AddConditionalEdge(a.NodeName(), routing.ShouldContinueRoute(), graph.BranchMap{
				routing.BranchTools:    routing.NodeTools,
				routing.BranchContinue: next,
			})
	}
	g.SetEntry(p.selected[0].NodeName())

	g.AddNode(routing.NodeTools, tool.NewNode(p.opts.Toolkit, func(o *tool.NodeOptions) {
		o.MaxParallel = p.opts.MaxParallelTools
		o.Logger = p.logger
	})).AddConditionalEdge(routing.NodeTools, toolReturn.Route(), toolReturn.Branches())

	if !p.opts.SkipPreScreen {
		g.AddNode(routing.NodePreScreen, agent.NewPreScreen(deep, p.nodeOptions)).
			AddConditionalEdge(routing.NodePreScreen, routing.PreScreenRoute(), graph.BranchMap{
				routing.BranchPass:   routing.NodeBullResearcher,
				routing.BranchReject: routing.NodeRiskJudge,
			})
	}

	g.AddNode(routing.NodeBullResearcher, agent.NewBullResearcher(quick, p.nodeOptions)).
		AddConditionalEdge(routing.NodeBullResearcher, routing.DebateRoute(), routing.DebateBranches())
	g.AddNode(routing.NodeBearResearcher, agent.NewBearResearcher(quick, p.nodeOptions)).
		AddConditionalEdge(routing.NodeBearResearcher, routing.DebateRoute(), routing.DebateBranches())

	g.AddNode(routing.NodeResearchManager, agent.NewResearchManager(deep, p.nodeOptions)).
		AddEdge(routing.NodeResearchManager, routing.NodeTrader)
	g.AddNode(routing.NodeTrader, agent.NewTrader(quick, p.nodeOptions)).
		AddEdge(routing.NodeTrader, routing.NodeRiskyAnalyst)

	risk := map[string]agent.Node{
		routing.NodeRiskyAnalyst:   agent.NewRiskyAnalyst(quick, p.nodeOptions),
		routing.NodeSafeAnalyst:    agent.NewSafeAnalyst(quick, p.nodeOptions),
		routing.NodeNeutralAnalyst: agent.NewNeutralAnalyst(quick, p.nodeOptions),
		routing.NodeRiskJudge:      agent.NewRiskJudge(deep, p.nodeOptions),
	}
	seq := routing.RiskSequence()
	for i, name := range seq {
		next := graph.END
		if i+1 < len(seq) {
			next = seq[i+1]
		}
		g.AddNode(name, risk[name]).AddEdge(name, next)
	}

	compiled, err := g.Compile(func(o *graph.Options) { o.Logger = p.logger })
	if err != nil {
		return fmt.Errorf("compiling pipeline: %w", err)
	}
	p.compiled = compiled
	return nil
}

// Graph returns the compiled graph for callers that drive Invoke directly.
func (p *Pipeline) Graph() *graph.Compiled[core.AgentState, core.Update] { return p.compiled }

// Analysts returns the selected analysts in pipeline order.
func (p *Pipeline) Analysts() []routing.Analyst { return append([]routing.Analyst(nil), p.selected...) }

// Config returns the default run configuration.
func (p *Pipeline) Config() *core.RunConfig { return p.opts.Config }

// Propagate runs the pipeline for subject on date with the default run
// configuration.
func (p *Pipeline) Propagate(ctx context.Context, subject, date string) (*core.AgentState, agent.Decision, error) {
	res, err := p.Run(ctx, subject, date, p.opts.Config)
	if err != nil {
		return &res.State, "", err
	}
	return &res.State, res.Decision, nil
}

// Run executes one pipeline run with an explicit run configuration. On
// failure the partially accumulated state is returned with the error.
func (p *Pipeline) Run(ctx context.Context, subject, date string, cfg *core.RunConfig) (Result, error) {
	res := Result{RunID: runIDFrom(ctx)}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return res, errors.New("investagent: subject is required")
	}
	if date == "" {
		date = time.Now().Format(time.DateOnly)
	}

	logger := p.logger
	if pl, ok := logger.(*logging.PipelineLogger); ok {
		logger = pl.WithRun(res.RunID, subject)
	}

	if err := p.prepareMemory(ctx, subject, cfg, logger); err != nil {
		return res, err
	}

	start := time.Now()
	logger.Info("pipeline.run.start", "run_id", res.RunID, "subject", subject, "date", date)

	compiled := p.compiled
	if p.opts.OnStep != nil {
		compiled = p.withStepHook(res.RunID)
	}
	final, err := compiled.Invoke(ctx, core.NewAgentState(subject, date), cfg)
	res.State = final
	res.Duration = time.Since(start)
	if err != nil {
		logger.Error("pipeline.run.failed", "run_id", res.RunID, "subject", subject, "error", err.Error())
		return res, err
	}

	res.Decision = agent.ExtractDecision(final.FinalTradeDecision)
	logger.Info("pipeline.run.completed",
		"run_id", res.RunID,
		"subject", subject,
		"decision", string(res.Decision),
		"pre_screen", string(final.PreScreen),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

type runIDKey struct{}

// WithRunID makes Run use id as the run identifier instead of generating one.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// withStepHook derives a graph carrying a per-run step observer.
func (p *Pipeline) withStepHook(runID string) *graph.Compiled[core.AgentState, core.Update] {
	return p.compiled.WithOptions(func(o *graph.Options) {
		o.Logger = p.logger
		o.OnStep = func(info graph.StepInfo) { p.opts.OnStep(runID, info) }
	})
}

// prepareMemory creates the subject's role stores and clears old entries
// when asked to.
func (p *Pipeline) prepareMemory(ctx context.Context, subject string, cfg *core.RunConfig, logger logging.Logger) error {
	if p.opts.Registry == nil || !cfg.MemoryEnabled() {
		return nil
	}
	scope := cfg.MemoryScope(subject)
	if _, err := p.opts.Registry.CreateInstances(ctx, scope); err != nil {
		return fmt.Errorf("creating memory for %s: %w", scope, err)
	}
	if cfg.CleanupPrevious {
		deleted := p.opts.Registry.CleanupAll(ctx, cfg.CleanupDays, scope)
		total := 0
		for _, n := range deleted {
			total += n
		}
		logger.Info("pipeline.memory.cleanup", "subject", scope, "days", cfg.CleanupDays, "deleted", total)
	}
	return nil
}

// Reflect records the observed outcome of a finished run in the subject's
// role stores. It returns which roles were written.
func (p *Pipeline) Reflect(ctx context.Context, state core.AgentState, outcome string) map[memory.Role]bool {
	if p.opts.Registry == nil {
		return map[memory.Role]bool{}
	}
	return agent.Reflect(ctx, p.opts.Registry, state, p.opts.Config, outcome)
}
