package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/memory"
)

// Reflect records the outcome of a finished run in every role store of the
// memory subject: one situation per role made of the analyst reports, the
// role's own decision and the observed outcome. It returns which roles were
// written.
func Reflect(ctx context.Context, mem Memories, s core.AgentState, cfg *core.RunConfig, outcome string) map[memory.Role]bool {
	written := make(map[memory.Role]bool, len(memory.Roles()))
	if mem == nil {
		return written
	}
	subject := cfg.MemoryScope(s.Subject)
	reports := s.Reports()

	for _, role := range memory.Roles() {
		store, ok := mem.Store(subject, role)
		if !ok {
			written[role] = false
			continue
		}
		written[role] = store.AddSituations(ctx, []string{situation(reports, roleDecision(s, role), outcome)})
	}
	return written
}

func roleDecision(s core.AgentState, role memory.Role) string {
	switch role {
	case memory.RoleBull:
		return s.InvestmentDebate.BullHistory
	case memory.RoleBear:
		return s.InvestmentDebate.BearHistory
	case memory.RoleTrader:
		return s.TraderPlan
	case memory.RoleInvestJudge:
		return s.InvestmentDebate.JudgeDecision
	case memory.RoleRiskManager:
		return s.RiskDebate.JudgeDecision
	}
	return ""
}

func situation(reports, decision, outcome string) string {
	var b strings.Builder
	b.WriteString(reports)
	if decision != "" {
		fmt.Fprintf(&b, "\n\nDecision:\n%s", decision)
	}
	fmt.Fprintf(&b, "\n\nOutcome:\n%s", outcome)
	return strings.TrimSpace(b.String())
}
