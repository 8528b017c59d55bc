package routing

import (
	"fmt"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/graph"
	"github.com/domgolonka/ai-investment-agent-sub001/logging"
)

// Analyst is the canonical identifier an analyst node writes into Sender.
type Analyst string

const (
	MarketAnalyst       Analyst = "market_analyst"
	SocialAnalyst       Analyst = "social_analyst"
	NewsAnalyst         Analyst = "news_analyst"
	FundamentalsAnalyst Analyst = "fundamentals_analyst"
)

var analystNodes = map[Analyst]string{
	MarketAnalyst:       NodeMarketAnalyst,
	SocialAnalyst:       NodeSocialAnalyst,
	NewsAnalyst:         NodeNewsAnalyst,
	FundamentalsAnalyst: NodeFundamentalsAnalyst,
}

// Analysts returns every known analyst in pipeline order.
func Analysts() []Analyst {
	return []Analyst{MarketAnalyst, SocialAnalyst, NewsAnalyst, FundamentalsAnalyst}
}

// ParseAnalyst accepts a canonical identifier or its short form ("news").
func ParseAnalyst(s string) (Analyst, bool) {
	if _, ok := analystNodes[Analyst(s)]; ok {
		return Analyst(s), true
	}
	a := Analyst(s + "_analyst")
	if _, ok := analystNodes[a]; ok {
		return a, true
	}
	return "", false
}

// NodeName returns the graph node that hosts the analyst.
func (a Analyst) NodeName() string { return analystNodes[a] }

// String returns the canonical identifier.
func (a Analyst) String() string { return string(a) }

// ToolReturn sends the tool dispatch node back to the analyst that requested
// the calls. An unset or unrecognised sender falls back to a designated
// analyst; the fallback is logged at warn level on every use.
type ToolReturn struct {
	known    map[Analyst]bool
	order    []Analyst
	fallback Analyst
	logger   logging.Logger
}

// NewToolReturn builds the router for the selected analysts. The fallback must
// be one of them.
func NewToolReturn(selected []Analyst, fallback Analyst, logger logging.Logger) (*ToolReturn, error) {
	r := &ToolReturn{known: map[Analyst]bool{}, fallback: fallback, logger: logging.OrNoOp(logger)}
	for _, a := range selected {
		if _, ok := analystNodes[a]; !ok {
			return nil, fmt.Errorf("unknown analyst %q", a)
		}
		if !r.known[a] {
			r.known[a] = true
			r.order = append(r.order, a)
		}
	}
	if !r.known[fallback] {
		return nil, fmt.Errorf("fallback analyst %q is not selected", fallback)
	}
	return r, nil
}

// Fallback returns the designated fallback analyst.
func (r *ToolReturn) Fallback() Analyst { return r.fallback }

// Decide returns the branch of the analyst named by Sender.
func (r *ToolReturn) Decide(s core.AgentState, _ *core.RunConfig) graph.Branch {
	if a := Analyst(s.Sender); r.known[a] {
		return graph.Branch(a)
	}
	r.logger.Warn("routing.tool_return.fallback", "sender", s.Sender, "fallback", string(r.fallback))
	return graph.Branch(r.fallback)
}

// Route wraps Decide with its declared outcomes.
func (r *ToolReturn) Route() graph.Route[core.AgentState] {
	outcomes := make([]graph.Branch, 0, len(r.order))
	for _, a := range r.order {
		outcomes = append(outcomes, graph.Branch(a))
	}
	return graph.Route[core.AgentState]{Name: "tool_return", Outcomes: outcomes, Decide: r.Decide}
}

// Branches maps every selected analyst to its node.
func (r *ToolReturn) Branches() graph.BranchMap {
	m := make(graph.BranchMap, len(r.order))
	for _, a := range r.order {
		m[graph.Branch(a)] = a.NodeName()
	}
	return m
}
