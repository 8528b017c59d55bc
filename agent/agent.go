package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/graph"
	"github.com/domgolonka/ai-investment-agent-sub001/logging"
	"github.com/domgolonka/ai-investment-agent-sub001/memory"
	"github.com/domgolonka/ai-investment-agent-sub001/model"
)

// Node is the node signature of the pipeline graph.
type Node = graph.NodeFunc[core.AgentState, core.Update]

// Identifiers nodes write into Message.Name.
const (
	IDBullResearcher  = "bull_researcher"
	IDBearResearcher  = "bear_researcher"
	IDResearchManager = "research_manager"
	IDTrader          = "trader"
	IDRiskyAnalyst    = "risky_analyst"
	IDSafeAnalyst     = "safe_analyst"
	IDNeutralAnalyst  = "neutral_analyst"
	IDRiskJudge       = "risk_judge"
	IDPreScreen       = "pre_screen"
)

// Memories resolves the memory store of a role for a subject.
// *memory.Registry satisfies it.
type Memories interface {
	Store(subject string, role memory.Role) (*memory.Store, bool)
}

// Options configures a node factory.
type Options struct {
	// Instruction overrides the default prompt template of the node.
	Instruction Instruction
	// Memory is consulted when the run config enables memory.
	Memory Memories
	// MemoryMatches is the number of past situations put into prompts.
	MemoryMatches int
	Logger        logging.Logger
}

func buildOptions(def string, optFns []func(o *Options)) Options {
	opts := Options{
		Instruction:   NewInstructionFromText(def),
		MemoryMatches: 2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Instruction.IsZero() {
		opts.Instruction = NewInstructionFromText(def)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return opts
}

// call renders the instruction and runs one model turn for node id.
func call(ctx context.Context, m model.Model, opts Options, id string, s core.AgentState, vars map[string]any, req model.Request) (core.Message, string, error) {
	instr, err := opts.Instruction.Resolve(s, vars)
	if err != nil {
		return core.Message{}, "", fmt.Errorf("rendering %s instruction: %w", id, err)
	}
	req.Instructions = instr
	if len(req.Messages) == 0 {
		req.Messages = []core.Message{{Role: core.RoleUser, Content: fmt.Sprintf("Continue the analysis of %s for %s.", s.Subject, s.TradeDate)}}
	}

	start := time.Now()
	resp, err := model.Collect(ctx, m, req)
	if err != nil {
		return core.Message{}, instr, fmt.Errorf("%s model call: %w", id, err)
	}
	opts.Logger.Debug("agent.model.response",
		"node", id,
		"model", m.Info().Name,
		"tool_calls", len(resp.Message.ToolCalls),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	msg := resp.Message
	msg.Role = core.RoleAssistant
	msg.Name = id
	return msg, instr, nil
}

// recall returns the formatted past memories of role for the run, or the
// no-memories sentinel when memory is off or unavailable.
func recall(ctx context.Context, opts Options, s core.AgentState, cfg *core.RunConfig, role memory.Role, situation string) string {
	if !cfg.MemoryEnabled() || opts.Memory == nil {
		return memory.NoRelevantMemories
	}
	subject := cfg.MemoryScope(s.Subject)
	store, ok := opts.Memory.Store(subject, role)
	if !ok {
		opts.Logger.Warn("agent.memory.missing", "subject", subject, "role", string(role))
		return memory.NoRelevantMemories
	}
	return store.GetRelevantMemory(ctx, subject, situation, opts.MemoryMatches)
}

// turn prefixes a debate contribution with its speaker.
func turn(speaker, text string) string { return speaker + ": " + text }

func appendLine(history, line string) string {
	if history == "" {
		return line
	}
	return history + "\n" + line
}
