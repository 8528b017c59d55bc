package investagent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domgolonka/ai-investment-agent-sub001/agent"
	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/graph"
	"github.com/domgolonka/ai-investment-agent-sub001/internal/testutil"
	"github.com/domgolonka/ai-investment-agent-sub001/memory"
	"github.com/domgolonka/ai-investment-agent-sub001/model"
	"github.com/domgolonka/ai-investment-agent-sub001/routing"
	"github.com/domgolonka/ai-investment-agent-sub001/tool"
)

// scriptedQuick answers every analyst with one tool round, then a report.
// Other quick nodes get a short text.
func scriptedQuick() *model.MockModel {
	var mu sync.Mutex
	seq := 0
	return model.NewMockModel("quick").OnRequest(func(req model.Request) (model.Response, error) {
		if len(req.Tools) > 0 {
			last := req.Messages[len(req.Messages)-1]
			if last.Role != core.RoleTool {
				mu.Lock()
				seq++
				id := "call_" + string(rune('a'+seq))
				mu.Unlock()
				return model.ToolCalls(core.ToolCall{ID: id, Name: req.Tools[0].Function.Name, Arguments: `{}`}), nil
			}
			return model.Text("report based on " + last.Content), nil
		}
		if strings.Contains(req.Instructions, "trading agent") {
			return model.Text("FINAL TRANSACTION PROPOSAL: **BUY**"), nil
		}
		return model.Text("argument"), nil
	})
}

func scriptedDeep(verdict string) *model.MockModel {
	return model.NewMockModel("deep").OnRequest(func(req model.Request) (model.Response, error) {
		switch {
		case strings.Contains(req.Instructions, "risk screener"):
			return model.Text(verdict), nil
		case strings.Contains(req.Instructions, "risk management judge"):
			return model.Text("Scale in carefully. FINAL TRANSACTION PROPOSAL: **BUY**"), nil
		default:
			return model.Text("Plan: accumulate on dips."), nil
		}
	})
}

func dataToolkit(t *testing.T) tool.Toolkit {
	t.Helper()
	kit := tool.Toolkit{}
	for _, a := range routing.Analysts() {
		name := "get_" + strings.TrimSuffix(a.String(), "_analyst") + "_data"
		set, err := tool.NewSet(tool.NewFunctionTool(name, "data feed", map[string]any{"type": "object"},
			func(tc *core.ToolContext, _ map[string]any) (any, error) {
				return tc.Caller() + " data for " + tc.Subject(), nil
			}))
		require.NoError(t, err)
		kit[a.String()] = set
	}
	return kit
}

func TestPropagateFullPipeline(t *testing.T) {
	var steps []string
	p, err := New(func(o *Options) {
		o.QuickModel = scriptedQuick()
		o.DeepModel = scriptedDeep(`{"verdict":"PASS","red_flags":[]}`)
		o.Toolkit = dataToolkit(t)
		o.OnStep = func(_ string, info graph.StepInfo) { steps = append(steps, info.Node) }
	})
	require.NoError(t, err)

	state, decision, err := p.Propagate(context.Background(), "AAPL", "2024-05-10")
	require.NoError(t, err)
	assert.Equal(t, agent.Buy, decision)

	assert.Equal(t, "report based on market_analyst data for AAPL", state.MarketReport)
	assert.Equal(t, "report based on social_analyst data for AAPL", state.SentimentReport)
	assert.Equal(t, "report based on news_analyst data for AAPL", state.NewsReport)
	assert.Equal(t, "report based on fundamentals_analyst data for AAPL", state.FundamentalsReport)
	assert.Equal(t, core.PreScreenPass, state.PreScreen)
	assert.Equal(t, 4, state.InvestmentDebate.Count)
	assert.Equal(t, 3, state.RiskDebate.Count)
	assert.Equal(t, "Plan: accumulate on dips.", state.InvestmentPlan)
	assert.Equal(t, "FINAL TRANSACTION PROPOSAL: **BUY**", state.TraderPlan)
	assert.Equal(t, []string{"get_news_data"}, state.ToolsUsed["news_analyst"])
	assert.Contains(t, state.PromptsUsed, agent.IDRiskJudge)

	want := []string{
		routing.NodeMarketAnalyst, routing.NodeTools, routing.NodeMarketAnalyst,
		routing.NodeSocialAnalyst, routing.NodeTools, routing.NodeSocialAnalyst,
		routing.NodeNewsAnalyst, routing.NodeTools, routing.NodeNewsAnalyst,
		routing.NodeFundamentalsAnalyst, routing.NodeTools, routing.NodeFundamentalsAnalyst,
		routing.NodePreScreen,
		routing.NodeBullResearcher, routing.NodeBearResearcher, routing.NodeBullResearcher, routing.NodeBearResearcher,
		routing.NodeResearchManager, routing.NodeTrader,
		routing.NodeRiskyAnalyst, routing.NodeSafeAnalyst, routing.NodeNeutralAnalyst, routing.NodeRiskJudge,
	}
	assert.Equal(t, want, steps)
}

func TestPropagateRejectedSkipsDebate(t *testing.T) {
	verdict := `{"verdict":"PASS","red_flags":[{"severity":"CRITICAL","action":"AUTO_REJECT","description":"auditor resigned"}]}`
	var steps []string
	p, err := New(func(o *Options) {
		o.QuickModel = scriptedQuick()
		o.DeepModel = scriptedDeep(verdict)
		o.Toolkit = dataToolkit(t)
		o.Analysts = []routing.Analyst{routing.FundamentalsAnalyst}
		o.OnStep = func(_ string, info graph.StepInfo) { steps = append(steps, info.Node) }
	})
	require.NoError(t, err)

	state, _, err := p.Propagate(context.Background(), "XYZ", "2024-05-10")
	require.NoError(t, err)
	assert.Equal(t, core.PreScreenReject, state.PreScreen)
	require.Len(t, state.RedFlags, 1)
	assert.Empty(t, state.InvestmentPlan)
	assert.Empty(t, state.TraderPlan)
	assert.NotEmpty(t, state.FinalTradeDecision)
	assert.Equal(t, []string{
		routing.NodeFundamentalsAnalyst, routing.NodeTools, routing.NodeFundamentalsAnalyst,
		routing.NodePreScreen, routing.NodeRiskJudge,
	}, steps)
}

func TestPropagateInfiniteToolLoopHitsBudget(t *testing.T) {
	loop := model.NewMockModel("loop").OnRequest(func(req model.Request) (model.Response, error) {
		return model.ToolCalls(core.ToolCall{ID: "again", Name: "get_market_data", Arguments: `{}`}), nil
	})
	p, err := New(func(o *Options) {
		o.QuickModel = loop
		o.Toolkit = dataToolkit(t)
		o.Config = &core.RunConfig{StepBudget: 10}
	})
	require.NoError(t, err)

	state, _, err := p.Propagate(context.Background(), "AAPL", "2024-05-10")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStepBudgetExceeded)
	var nodeErr *graph.NodeError
	assert.False(t, errors.As(err, &nodeErr), "budget exhaustion is not a node failure")
	assert.Len(t, loop.Requests(), 5, "analyst and tools alternate for ten steps")
	assert.NotEmpty(t, state.Messages)
}

func TestPropagateNodeFailure(t *testing.T) {
	boom := errors.New("provider down")
	p, err := New(func(o *Options) {
		o.QuickModel = model.NewMockModel("quick").EnqueueError(boom)
		o.SkipPreScreen = true
	})
	require.NoError(t, err)

	_, _, err = p.Propagate(context.Background(), "AAPL", "")
	var nodeErr *graph.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, routing.NodeMarketAnalyst, nodeErr.Node)
	assert.ErrorIs(t, err, boom)
}

func TestPropagateGuardRetries(t *testing.T) {
	quick := scriptedQuick()
	flaky := model.NewMockModel("flaky").
		EnqueueError(&model.ProviderError{Provider: "openai", StatusCode: 503, Err: errors.New("overloaded")})
	flaky.OnRequest(func(req model.Request) (model.Response, error) {
		resp, err := model.Collect(context.Background(), quick, req)
		return resp, err
	})

	p, err := New(func(o *Options) {
		o.QuickModel = flaky
		o.DeepModel = scriptedDeep(`{"verdict":"PASS"}`)
		o.Toolkit = dataToolkit(t)
		o.Guard = &model.GuardOptions{MaxRetries: 1, Backoff: time.Millisecond}
	})
	require.NoError(t, err)

	_, decision, err := p.Propagate(context.Background(), "AAPL", "2024-05-10")
	require.NoError(t, err)
	assert.Equal(t, agent.Buy, decision)
}

func TestPropagateWithMemory(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry(func(o *memory.RegistryOptions) { o.Embedder = memory.NewHashEmbedder(32) })
	quick := scriptedQuick()
	p, err := New(func(o *Options) {
		o.QuickModel = quick
		o.DeepModel = scriptedDeep(`{"verdict":"PASS"}`)
		o.Toolkit = dataToolkit(t)
		o.Registry = reg
		o.Config = &core.RunConfig{EnableMemory: true, MaxDebateRounds: 1}
	})
	require.NoError(t, err)

	state, _, err := p.Propagate(ctx, "BRK.B", "2024-05-10")
	require.NoError(t, err)
	for _, role := range memory.Roles() {
		assert.Contains(t, reg.Names(), memory.CollectionName("BRK.B", role))
	}

	written := p.Reflect(ctx, *state, "lost 3% in a week")
	assert.True(t, written[memory.RoleBull])

	_, _, err = p.Propagate(ctx, "BRK.B", "2024-05-17")
	require.NoError(t, err)
	var sawLesson bool
	for _, req := range quick.Requests() {
		if strings.Contains(req.Instructions, "lost 3% in a week") {
			sawLesson = true
		}
	}
	assert.True(t, sawLesson, "second run recalls the reflected outcome")

	cleanup, err := New(func(o *Options) {
		o.QuickModel = scriptedQuick()
		o.DeepModel = scriptedDeep(`{"verdict":"PASS"}`)
		o.Registry = reg
		o.Config = &core.RunConfig{EnableMemory: true, CleanupPrevious: true, MaxDebateRounds: 1}
	})
	require.NoError(t, err)
	_, _, err = cleanup.Propagate(ctx, "BRK.B", "2024-05-24")
	require.NoError(t, err)
	assert.Equal(t, 0, reg.AllStats(ctx)[memory.CollectionName("BRK.B", memory.RoleBull)].Count)
}

func TestNewValidation(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrNoModel)

	_, err = New(func(o *Options) {
		o.QuickModel = model.NewMockModel("m")
		o.Analysts = []routing.Analyst{routing.NewsAnalyst}
		o.Fallback = routing.MarketAnalyst
	})
	assert.Error(t, err, "fallback must be selected")

	p, err := New(func(o *Options) {
		o.QuickModel = model.NewMockModel("m")
		o.Analysts = []routing.Analyst{routing.NewsAnalyst, routing.SocialAnalyst, routing.NewsAnalyst}
	})
	require.NoError(t, err)
	assert.Equal(t, []routing.Analyst{routing.NewsAnalyst, routing.SocialAnalyst}, p.Analysts())
	assert.Equal(t, routing.NodeNewsAnalyst, p.Graph().Entry())

	_, _, err = p.Propagate(context.Background(), "  ", "2024-05-10")
	assert.Error(t, err)
}

func TestPropagateSubsetWithoutPreScreen(t *testing.T) {
	logger := &testutil.RecordingLogger{}
	var steps []string
	p, err := New(func(o *Options) {
		o.QuickModel = scriptedQuick()
		o.DeepModel = scriptedDeep(`{"verdict":"PASS"}`)
		o.Toolkit = dataToolkit(t)
		o.Analysts = []routing.Analyst{routing.NewsAnalyst}
		o.SkipPreScreen = true
		o.Logger = logger
		o.Config = &core.RunConfig{MaxDebateRounds: 1}
		o.OnStep = func(runID string, info graph.StepInfo) {
			assert.NotEmpty(t, runID)
			steps = append(steps, info.Node)
		}
	})
	require.NoError(t, err)
	assert.NotContains(t, p.Graph().Nodes(), routing.NodePreScreen)

	res, err := p.Run(context.Background(), "MSFT", "2024-05-10", p.Config())
	require.NoError(t, err)
	assert.Equal(t, agent.Buy, res.Decision)
	assert.Equal(t, core.PreScreenUnknown, res.State.PreScreen)
	assert.NotEmpty(t, res.State.NewsReport)
	assert.Empty(t, res.State.MarketReport)
	assert.Equal(t, []string{
		routing.NodeNewsAnalyst, routing.NodeTools, routing.NodeNewsAnalyst,
		routing.NodeBullResearcher, routing.NodeBearResearcher,
		routing.NodeResearchManager, routing.NodeTrader,
		routing.NodeRiskyAnalyst, routing.NodeSafeAnalyst, routing.NodeNeutralAnalyst, routing.NodeRiskJudge,
	}, steps)
	assert.Equal(t, 1, logger.Count("INFO", "pipeline.run.completed"))
}

func TestRunUsesContextRunID(t *testing.T) {
	var seen []string
	p, err := New(func(o *Options) {
		o.QuickModel = scriptedQuick()
		o.DeepModel = scriptedDeep(`{"verdict":"PASS"}`)
		o.SkipPreScreen = true
		o.Analysts = []routing.Analyst{routing.MarketAnalyst}
		o.OnStep = func(runID string, _ graph.StepInfo) { seen = append(seen, runID) }
	})
	require.NoError(t, err)

	res, err := p.Run(WithRunID(context.Background(), "run-42"), "AAPL", "2024-05-10", nil)
	require.NoError(t, err)
	assert.Equal(t, "run-42", res.RunID)
	require.NotEmpty(t, seen)
	for _, id := range seen {
		assert.Equal(t, "run-42", id)
	}
}
