package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/memory"
	"github.com/domgolonka/ai-investment-agent-sub001/model"
)

type riskSeat struct {
	id      string
	speaker string
	stance  string
	own     func(*core.RiskDebateState) *string
	current func(*core.RiskDebateState) *string
}

var (
	riskySeat = riskSeat{
		id:      IDRiskyAnalyst,
		speaker: "Risky Analyst",
		stance:  riskyStance,
		own:     func(d *core.RiskDebateState) *string { return &d.RiskyHistory },
		current: func(d *core.RiskDebateState) *string { return &d.CurrentRiskyResponse },
	}
	safeSeat = riskSeat{
		id:      IDSafeAnalyst,
		speaker: "Safe Analyst",
		stance:  safeStance,
		own:     func(d *core.RiskDebateState) *string { return &d.SafeHistory },
		current: func(d *core.RiskDebateState) *string { return &d.CurrentSafeResponse },
	}
	neutralSeat = riskSeat{
		id:      IDNeutralAnalyst,
		speaker: "Neutral Analyst",
		stance:  neutralStance,
		own:     func(d *core.RiskDebateState) *string { return &d.NeutralHistory },
		current: func(d *core.RiskDebateState) *string { return &d.CurrentNeutralResponse },
	}
)

// NewRiskyAnalyst returns the aggressive risk debater.
func NewRiskyAnalyst(m model.Model, optFns ...func(o *Options)) Node {
	return newRiskDebater(riskySeat, m, optFns)
}

// NewSafeAnalyst returns the conservative risk debater.
func NewSafeAnalyst(m model.Model, optFns ...func(o *Options)) Node {
	return newRiskDebater(safeSeat, m, optFns)
}

// NewNeutralAnalyst returns the balanced risk debater.
func NewNeutralAnalyst(m model.Model, optFns ...func(o *Options)) Node {
	return newRiskDebater(neutralSeat, m, optFns)
}

func newRiskDebater(seat riskSeat, m model.Model, optFns []func(o *Options)) Node {
	opts := buildOptions(riskDebaterPrompt, optFns)

	return func(ctx context.Context, s core.AgentState, cfg *core.RunConfig) (core.Update, error) {
		debate := s.RiskDebate.Normalize()

		vars := map[string]any{
			"stance":  seat.stance,
			"plan":    s.TraderPlan,
			"reports": s.Reports(),
			"history": debate.History,
			"others":  otherResponses(seat, debate),
			"round":   debate.Count/3 + 1,
			"rounds":  cfg.RiskRounds(),
		}
		msg, instr, err := call(ctx, m, opts, seat.id, s, vars, model.Request{})
		if err != nil {
			return core.Update{}, err
		}

		argument := turn(seat.speaker, msg.Content)
		*seat.own(&debate) = appendLine(*seat.own(&debate), argument)
		*seat.current(&debate) = argument
		debate.History = appendLine(debate.History, argument)
		debate.LatestSpeaker = seat.speaker

		return core.Update{
			Messages:        []core.Message{msg},
			RiskDebate:      core.Set(debate),
			RiskDebateTurns: 1,
			PromptsUsed:     map[string]string{seat.id: instr},
		}, nil
	}
}

func otherResponses(self riskSeat, d core.RiskDebateState) string {
	var parts []string
	for _, seat := range []riskSeat{riskySeat, safeSeat, neutralSeat} {
		if seat.id == self.id {
			continue
		}
		if resp := *seat.current(&d); resp != "" {
			parts = append(parts, resp)
		}
	}
	if len(parts) == 0 {
		return "None yet."
	}
	return strings.Join(parts, "\n")
}

// NewRiskJudge returns the node that closes the risk debate and writes the
// final trade decision. A subject rejected by pre-screening reaches the judge
// directly; the red flags are then put in front of it instead of a debate.
func NewRiskJudge(m model.Model, optFns ...func(o *Options)) Node {
	opts := buildOptions(judgePrompt, optFns)

	return func(ctx context.Context, s core.AgentState, cfg *core.RunConfig) (core.Update, error) {
		debate := s.RiskDebate.Normalize()
		situation := s.Reports()

		vars := map[string]any{
			"plan":    s.TraderPlan,
			"history": debate.History,
			"memory":  recall(ctx, opts, s, cfg, memory.RoleRiskManager, situation),
			"screen":  screenSummary(s),
		}
		msg, instr, err := call(ctx, m, opts, IDRiskJudge, s, vars, model.Request{})
		if err != nil {
			return core.Update{}, err
		}

		debate.JudgeDecision = msg.Content

		return core.Update{
			Messages:           []core.Message{msg},
			RiskDebate:         core.Set(debate),
			FinalTradeDecision: core.Set(msg.Content),
			PromptsUsed:        map[string]string{IDRiskJudge: instr},
		}, nil
	}
}

func screenSummary(s core.AgentState) string {
	if s.PreScreen != core.PreScreenReject {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s was REJECTED by pre-screening; no debate took place. Red flags:\n", s.Subject)
	for _, f := range s.RedFlags {
		fmt.Fprintf(&b, "- [%s/%s] %s\n", f.Severity, f.Action, f.Description)
	}
	b.WriteString("Unless the red flags are clearly immaterial, recommend SELL or HOLD.")
	return b.String()
}
