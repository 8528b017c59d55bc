package routing

import (
	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/graph"
)

// Routing outcomes. Each route declares the subset it can produce.
const (
	BranchTools           graph.Branch = "tools"
	BranchContinue        graph.Branch = "continue"
	BranchBull            graph.Branch = "bull"
	BranchBear            graph.Branch = "bear"
	BranchResearchManager graph.Branch = "research_manager"
	BranchPass            graph.Branch = "pass"
	BranchReject          graph.Branch = "reject"
)

// Node names of the pipeline graph.
const (
	NodeMarketAnalyst       = "Market Analyst"
	NodeSocialAnalyst       = "Social Analyst"
	NodeNewsAnalyst         = "News Analyst"
	NodeFundamentalsAnalyst = "Fundamentals Analyst"
	NodeTools               = "tools"
	NodePreScreen           = "Pre-Screen"
	NodeBullResearcher      = "Bull Researcher"
	NodeBearResearcher      = "Bear Researcher"
	NodeResearchManager     = "Research Manager"
	NodeTrader              = "Trader"
	NodeRiskyAnalyst        = "Risky Analyst"
	NodeSafeAnalyst         = "Safe Analyst"
	NodeNeutralAnalyst      = "Neutral Analyst"
	NodeRiskJudge           = "Risk Judge"
)

// ShouldContinue routes to the tool dispatch node while the trailing message
// carries pending tool calls.
func ShouldContinue(s core.AgentState, _ *core.RunConfig) graph.Branch {
	if last, ok := s.LastMessage(); ok && last.HasToolCalls() {
		return BranchTools
	}
	return BranchContinue
}

// ShouldContinueRoute wraps ShouldContinue with its declared outcomes.
func ShouldContinueRoute() graph.Route[core.AgentState] {
	return graph.Route[core.AgentState]{
		Name:     "should_continue",
		Outcomes: []graph.Branch{BranchTools, BranchContinue},
		Decide:   ShouldContinue,
	}
}

// Debate alternates bull and bear by the parity of the round count until
// 2*max_debate_rounds turns were taken, then hands over to the research manager.
func Debate(s core.AgentState, cfg *core.RunConfig) graph.Branch {
	count := s.InvestmentDebate.Normalize().Count
	if count >= cfg.DebateRounds()*2 {
		return BranchResearchManager
	}
	if count%2 == 0 {
		return BranchBull
	}
	return BranchBear
}

// DebateRoute wraps Debate with its declared outcomes.
func DebateRoute() graph.Route[core.AgentState] {
	return graph.Route[core.AgentState]{
		Name:     "debate",
		Outcomes: []graph.Branch{BranchBull, BranchBear, BranchResearchManager},
		Decide:   Debate,
	}
}

// DebateBranches maps the debate outcomes to their nodes.
func DebateBranches() graph.BranchMap {
	return graph.BranchMap{
		BranchBull:            NodeBullResearcher,
		BranchBear:            NodeBearResearcher,
		BranchResearchManager: NodeResearchManager,
	}
}

// PreScreen skips the debate for rejected subjects. UNKNOWN is treated as a pass.
func PreScreen(s core.AgentState, _ *core.RunConfig) graph.Branch {
	if s.PreScreen == core.PreScreenReject {
		return BranchReject
	}
	return BranchPass
}

// PreScreenRoute wraps PreScreen with its declared outcomes.
func PreScreenRoute() graph.Route[core.AgentState] {
	return graph.Route[core.AgentState]{
		Name:     "pre_screen",
		Outcomes: []graph.Branch{BranchPass, BranchReject},
		Decide:   PreScreen,
	}
}

// RiskSequence is the fixed order of the risk debate. Each debater advances
// unconditionally to the next entry; the last entry is the judge.
func RiskSequence() []string {
	return []string{NodeRiskyAnalyst, NodeSafeAnalyst, NodeNeutralAnalyst, NodeRiskJudge}
}
