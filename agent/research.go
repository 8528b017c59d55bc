package agent

import (
	"context"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/memory"
	"github.com/domgolonka/ai-investment-agent-sub001/model"
)

type side struct {
	id      string
	speaker string
	stance  string
	role    memory.Role
	own     func(*core.InvestDebateState) *string
}

var (
	bullSide = side{
		id:      IDBullResearcher,
		speaker: "Bull Analyst",
		stance:  bullStance,
		role:    memory.RoleBull,
		own:     func(d *core.InvestDebateState) *string { return &d.BullHistory },
	}
	bearSide = side{
		id:      IDBearResearcher,
		speaker: "Bear Analyst",
		stance:  bearStance,
		role:    memory.RoleBear,
		own:     func(d *core.InvestDebateState) *string { return &d.BearHistory },
	}
)

// NewBullResearcher returns the node arguing for the investment.
func NewBullResearcher(m model.Model, optFns ...func(o *Options)) Node {
	return newResearcher(bullSide, m, optFns)
}

// NewBearResearcher returns the node arguing against the investment.
func NewBearResearcher(m model.Model, optFns ...func(o *Options)) Node {
	return newResearcher(bearSide, m, optFns)
}

// newResearcher builds one debate side. Each turn appends the argument to
// the side's history and the combined history and counts one round.
func newResearcher(sd side, m model.Model, optFns []func(o *Options)) Node {
	opts := buildOptions(researcherPrompt, optFns)

	return func(ctx context.Context, s core.AgentState, cfg *core.RunConfig) (core.Update, error) {
		debate := s.InvestmentDebate.Normalize()
		reports := s.Reports()

		vars := map[string]any{
			"side":     sd.speaker,
			"stance":   sd.stance,
			"reports":  reports,
			"history":  debate.History,
			"opponent": debate.CurrentResponse,
			"memory":   recall(ctx, opts, s, cfg, sd.role, reports),
		}
		msg, instr, err := call(ctx, m, opts, sd.id, s, vars, model.Request{})
		if err != nil {
			return core.Update{}, err
		}

		argument := turn(sd.speaker, msg.Content)
		*sd.own(&debate) = appendLine(*sd.own(&debate), argument)
		debate.History = appendLine(debate.History, argument)
		debate.CurrentResponse = argument

		return core.Update{
			Messages:          []core.Message{msg},
			InvestmentDebate:  core.Set(debate),
			InvestDebateTurns: 1,
			PromptsUsed:       map[string]string{sd.id: instr},
		}, nil
	}
}

// NewResearchManager returns the node that judges the investment debate and
// writes the investment plan.
func NewResearchManager(m model.Model, optFns ...func(o *Options)) Node {
	opts := buildOptions(managerPrompt, optFns)

	return func(ctx context.Context, s core.AgentState, cfg *core.RunConfig) (core.Update, error) {
		debate := s.InvestmentDebate.Normalize()
		reports := s.Reports()

		vars := map[string]any{
			"reports": reports,
			"history": debate.History,
			"memory":  recall(ctx, opts, s, cfg, memory.RoleInvestJudge, reports),
		}
		msg, instr, err := call(ctx, m, opts, IDResearchManager, s, vars, model.Request{})
		if err != nil {
			return core.Update{}, err
		}

		debate.JudgeDecision = msg.Content
		debate.CurrentResponse = msg.Content

		return core.Update{
			Messages:         []core.Message{msg},
			InvestmentDebate: core.Set(debate),
			InvestmentPlan:   core.Set(msg.Content),
			PromptsUsed:      map[string]string{IDResearchManager: instr},
		}, nil
	}
}

// NewTrader returns the node that turns the investment plan into a concrete
// transaction proposal.
func NewTrader(m model.Model, optFns ...func(o *Options)) Node {
	opts := buildOptions(traderPrompt, optFns)

	return func(ctx context.Context, s core.AgentState, cfg *core.RunConfig) (core.Update, error) {
		vars := map[string]any{
			"subject": s.Subject,
			"plan":    s.InvestmentPlan,
			"memory":  recall(ctx, opts, s, cfg, memory.RoleTrader, s.Reports()),
		}
		msg, instr, err := call(ctx, m, opts, IDTrader, s, vars, model.Request{
			Messages: []core.Message{{
				Role:    core.RoleUser,
				Content: "Based on a comprehensive analysis by a team of analysts, here is an investment plan tailored for " + s.Subject + ". Use it as a foundation for your trading decision.",
			}},
		})
		if err != nil {
			return core.Update{}, err
		}

		return core.Update{
			Messages:    []core.Message{msg},
			TraderPlan:  core.Set(msg.Content),
			PromptsUsed: map[string]string{IDTrader: instr},
		}, nil
	}
}
