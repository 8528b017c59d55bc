package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/graph"
	"github.com/domgolonka/ai-investment-agent-sub001/internal/testutil"
)

func TestShouldContinue(t *testing.T) {
	plain := testutil.NewStateBuilder("AAPL").AssistantText("market_analyst", "report").Build()
	assert.Equal(t, BranchContinue, ShouldContinue(plain, nil))

	pending := testutil.NewStateBuilder("AAPL").ToolCall("market_analyst", "get_prices", `{"days":30}`).Build()
	assert.Equal(t, BranchTools, ShouldContinue(pending, nil))

	answered := testutil.NewStateBuilder("AAPL").
		ToolCall("market_analyst", "get_prices", `{}`).
		ToolResult("market_analyst", "[]").
		Build()
	assert.Equal(t, BranchContinue, ShouldContinue(answered, nil))

	assert.Equal(t, BranchContinue, ShouldContinue(core.AgentState{}, nil))
}

func TestDebateSequenceWithTwoRounds(t *testing.T) {
	cfg := &core.RunConfig{MaxDebateRounds: 2}
	s := core.NewAgentState("AAPL", "2024-05-10")

	var got []graph.Branch
	for {
		b := Debate(s, cfg)
		got = append(got, b)
		if b == BranchResearchManager {
			break
		}
		s.InvestmentDebate.Count++
	}

	assert.Equal(t, []graph.Branch{BranchBull, BranchBear, BranchBull, BranchBear, BranchResearchManager}, got)
}

func TestDebateDefaultsWithoutConfig(t *testing.T) {
	s := testutil.NewStateBuilder("AAPL").DebateCount(3).Build()
	assert.Equal(t, BranchBear, Debate(s, nil))

	s = testutil.NewStateBuilder("AAPL").DebateCount(4).Build()
	assert.Equal(t, BranchResearchManager, Debate(s, nil))
	assert.Equal(t, BranchResearchManager, Debate(s, &core.RunConfig{}))
}

func TestDebateParityIsStateless(t *testing.T) {
	cfg := &core.RunConfig{MaxDebateRounds: 3}
	s := testutil.NewStateBuilder("AAPL").DebateCount(2).Build()
	for i := 0; i < 5; i++ {
		assert.Equal(t, BranchBull, Debate(s, cfg))
	}
	s.InvestmentDebate.Count = -1 // drifted record is normalised, not rejected
	assert.Equal(t, BranchBull, Debate(s, cfg))
}

func TestDebateThroughGraph(t *testing.T) {
	var visits []string
	turn := func(name string) graph.NodeFunc[core.AgentState, core.Update] {
		return func(_ context.Context, s core.AgentState, _ *core.RunConfig) (core.Update, error) {
			visits = append(visits, name)
			return core.Update{InvestmentDebate: core.Set(s.InvestmentDebate), InvestDebateTurns: 1}, nil
		}
	}
	done := func(_ context.Context, _ core.AgentState, _ *core.RunConfig) (core.Update, error) {
		visits = append(visits, NodeResearchManager)
		return core.Update{InvestmentPlan: core.Set("hold")}, nil
	}

	c, err := graph.New(core.Merge).
		AddNode(NodeBullResearcher, turn(NodeBullResearcher)).
		AddNode(NodeBearResearcher, turn(NodeBearResearcher)).
		AddNode(NodeResearchManager, done).
		SetEntry(NodeBullResearcher).
		AddConditionalEdge(NodeBullResearcher, DebateRoute(), DebateBranches()).
		AddConditionalEdge(NodeBearResearcher, DebateRoute(), DebateBranches()).
		AddEdge(NodeResearchManager, graph.END).
		Compile()
	require.NoError(t, err)

	final, err := c.Invoke(context.Background(), core.NewAgentState("AAPL", "2024-05-10"), &core.RunConfig{MaxDebateRounds: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{NodeBullResearcher, NodeBearResearcher, NodeBullResearcher, NodeBearResearcher, NodeResearchManager}, visits)
	assert.Equal(t, 4, final.InvestmentDebate.Count)
	assert.Equal(t, "hold", final.InvestmentPlan)
}

func TestToolReturnRoutesToSender(t *testing.T) {
	logger := &testutil.RecordingLogger{}
	r, err := NewToolReturn(Analysts(), MarketAnalyst, logger)
	require.NoError(t, err)

	s := testutil.NewStateBuilder("AAPL").
		AssistantText("market_analyst", "done").
		AssistantText("social_analyst", "done").
		Sender("news_analyst").
		ToolCall("news_analyst", "get_news", "{}").
		Build()

	b := r.Decide(s, nil)
	assert.Equal(t, graph.Branch(NewsAnalyst), b)
	assert.Equal(t, NodeNewsAnalyst, r.Branches()[b])
	assert.Zero(t, logger.Count("WARN", "routing.tool_return.fallback"))
}

func TestToolReturnFallbackIsLogged(t *testing.T) {
	logger := &testutil.RecordingLogger{}
	r, err := NewToolReturn([]Analyst{NewsAnalyst, FundamentalsAnalyst}, FundamentalsAnalyst, logger)
	require.NoError(t, err)

	for _, sender := range []string{"", "mystery_analyst", "market_analyst"} {
		s := testutil.NewStateBuilder("AAPL").Sender(sender).Build()
		assert.Equal(t, graph.Branch(FundamentalsAnalyst), r.Decide(s, nil), sender)
	}
	assert.Equal(t, 3, logger.Count("WARN", "routing.tool_return.fallback"))
	assert.Equal(t, FundamentalsAnalyst, r.Fallback())
}

func TestToolReturnConstruction(t *testing.T) {
	_, err := NewToolReturn([]Analyst{NewsAnalyst}, MarketAnalyst, nil)
	assert.Error(t, err)

	_, err = NewToolReturn([]Analyst{"bogus"}, "bogus", nil)
	assert.Error(t, err)

	r, err := NewToolReturn([]Analyst{NewsAnalyst, NewsAnalyst, MarketAnalyst}, MarketAnalyst, nil)
	require.NoError(t, err)
	route := r.Route()
	assert.Equal(t, []graph.Branch{graph.Branch(NewsAnalyst), graph.Branch(MarketAnalyst)}, route.Outcomes)
	assert.Len(t, r.Branches(), 2)
}

func TestParseAnalyst(t *testing.T) {
	a, ok := ParseAnalyst("news")
	assert.True(t, ok)
	assert.Equal(t, NewsAnalyst, a)

	a, ok = ParseAnalyst("fundamentals_analyst")
	assert.True(t, ok)
	assert.Equal(t, NodeFundamentalsAnalyst, a.NodeName())

	_, ok = ParseAnalyst("astrology")
	assert.False(t, ok)
}

func TestPreScreen(t *testing.T) {
	assert.Equal(t, BranchPass, PreScreen(testutil.NewStateBuilder("X").PreScreen(core.PreScreenPass).Build(), nil))
	assert.Equal(t, BranchPass, PreScreen(testutil.NewStateBuilder("X").PreScreen(core.PreScreenUnknown).Build(), nil))
	assert.Equal(t, BranchReject, PreScreen(testutil.NewStateBuilder("X").PreScreen(core.PreScreenReject).Build(), nil))
}

func TestRiskSequenceIsFixed(t *testing.T) {
	assert.Equal(t, []string{NodeRiskyAnalyst, NodeSafeAnalyst, NodeNeutralAnalyst, NodeRiskJudge}, RiskSequence())
}
