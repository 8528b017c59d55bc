package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/internal/util"
	"github.com/domgolonka/ai-investment-agent-sub001/model"
	"github.com/domgolonka/ai-investment-agent-sub001/routing"
	"github.com/domgolonka/ai-investment-agent-sub001/tool"
)

var analystRoles = map[routing.Analyst]string{
	routing.MarketAnalyst:       marketRole,
	routing.SocialAnalyst:       socialRole,
	routing.NewsAnalyst:         newsRole,
	routing.FundamentalsAnalyst: fundamentalsRole,
}

// NewAnalyst returns the node of one analyst. The analyst sees only the seed
// message plus its own turns and tool results. A turn with tool calls marks
// the analyst as Sender so the tool return route finds its way back; a final
// turn writes the analyst's report.
func NewAnalyst(id routing.Analyst, m model.Model, tools *tool.Set, optFns ...func(o *Options)) (Node, error) {
	role, ok := analystRoles[id]
	if !ok {
		return nil, fmt.Errorf("unknown analyst %q", id)
	}
	opts := buildOptions(analystPreamble, optFns)
	name := id.String()

	return func(ctx context.Context, s core.AgentState, _ *core.RunConfig) (core.Update, error) {
		toolNames := "none"
		if tools.Len() > 0 {
			toolNames = strings.Join(tools.Names(), ", ")
		}
		vars := map[string]any{
			"subject": s.Subject,
			"date":    s.TradeDate,
			"tools":   toolNames,
		}
		rolePrompt, err := util.RenderTemplate(role, vars)
		if err != nil {
			return core.Update{}, fmt.Errorf("rendering %s role: %w", name, err)
		}
		vars["role"] = rolePrompt

		msg, instr, err := call(ctx, m, opts, name, s, vars, model.Request{
			Messages: s.MessagesFor(name),
			Tools:    tools.Definitions(),
		})
		if err != nil {
			return core.Update{}, err
		}

		u := core.Update{
			Messages:    []core.Message{msg},
			PromptsUsed: map[string]string{name: instr},
		}
		if msg.HasToolCalls() {
			u.Sender = core.Set(name)
			return u, nil
		}

		report := core.Set(msg.Content)
		switch id {
		case routing.MarketAnalyst:
			u.MarketReport = report
		case routing.SocialAnalyst:
			u.SentimentReport = report
		case routing.NewsAnalyst:
			u.NewsReport = report
		case routing.FundamentalsAnalyst:
			u.FundamentalsReport = report
		}
		return u, nil
	}, nil
}
