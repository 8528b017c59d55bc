package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/internal/testutil"
	"github.com/domgolonka/ai-investment-agent-sub001/memory"
	"github.com/domgolonka/ai-investment-agent-sub001/model"
	"github.com/domgolonka/ai-investment-agent-sub001/routing"
	"github.com/domgolonka/ai-investment-agent-sub001/tool"
)

func newsTools(t *testing.T) *tool.Set {
	t.Helper()
	set, err := tool.NewSet(tool.NewFunctionTool("get_news", "Latest headlines", map[string]any{"type": "object"},
		func(tc *core.ToolContext, _ map[string]any) (any, error) { return "headlines for " + tc.Subject(), nil }))
	require.NoError(t, err)
	return set
}

func TestAnalystToolCallSetsSender(t *testing.T) {
	m := model.NewMockModel("quick").Enqueue(model.ToolCalls(core.ToolCall{ID: "c1", Name: "get_news", Arguments: "{}"}))
	node, err := NewAnalyst(routing.NewsAnalyst, m, newsTools(t))
	require.NoError(t, err)

	s := testutil.NewStateBuilder("AAPL").AssistantText("market_analyst", "not mine").Build()
	u, err := node(context.Background(), s, nil)
	require.NoError(t, err)

	sender, ok := u.Sender.Get()
	require.True(t, ok)
	assert.Equal(t, "news_analyst", sender)
	require.Len(t, u.Messages, 1)
	assert.Equal(t, "news_analyst", u.Messages[0].Name)
	assert.False(t, u.NewsReport.IsSet())

	req := m.Requests()[0]
	require.Len(t, req.Messages, 1, "only the seed message, not other analysts' turns")
	assert.Equal(t, "AAPL", req.Messages[0].Content)
	require.Len(t, req.Tools, 1)
	assert.Contains(t, req.Instructions, "get_news")
	assert.Contains(t, req.Instructions, "news researcher")
	assert.Contains(t, req.Instructions, "2024-05-10")
	assert.Contains(t, u.PromptsUsed, "news_analyst")
}

func TestAnalystWritesReport(t *testing.T) {
	m := model.NewMockModel("quick").Enqueue(model.Text("Fundamentals look solid."))
	node, err := NewAnalyst(routing.FundamentalsAnalyst, m, nil)
	require.NoError(t, err)

	u, err := node(context.Background(), core.NewAgentState("MSFT", "2024-05-10"), nil)
	require.NoError(t, err)
	report, ok := u.FundamentalsReport.Get()
	require.True(t, ok)
	assert.Equal(t, "Fundamentals look solid.", report)
	assert.False(t, u.Sender.IsSet())
	assert.Contains(t, m.Requests()[0].Instructions, "tools: none")

	_, err = NewAnalyst("crypto_analyst", m, nil)
	assert.Error(t, err)
}

func TestAnalystCustomInstruction(t *testing.T) {
	m := model.NewMockModel("quick")
	node, err := NewAnalyst(routing.MarketAnalyst, m, nil, func(o *Options) {
		o.Instruction = NewInstructionFromFunc(func(s core.AgentState, vars map[string]any) (string, error) {
			return "custom for " + s.Subject + " " + vars["date"].(string), nil
		})
	})
	require.NoError(t, err)

	_, err = node(context.Background(), core.NewAgentState("NVDA", "2024-01-02"), nil)
	require.NoError(t, err)
	assert.Equal(t, "custom for NVDA 2024-01-02", m.Requests()[0].Instructions)
}

func TestAnalystModelError(t *testing.T) {
	boom := errors.New("provider down")
	node, err := NewAnalyst(routing.SocialAnalyst, model.NewMockModel("quick").EnqueueError(boom), nil)
	require.NoError(t, err)
	_, err = node(context.Background(), core.NewAgentState("AAPL", "2024-05-10"), nil)
	assert.ErrorIs(t, err, boom)
}

func TestResearchersDebate(t *testing.T) {
	ctx := context.Background()
	bull := NewBullResearcher(model.NewMockModel("quick").Enqueue(model.Text("Growth is accelerating.")))
	bear := NewBearResearcher(model.NewMockModel("quick").Enqueue(model.Text("Valuation is stretched.")))

	s := testutil.NewStateBuilder("AAPL").Reports().Build()
	u, err := bull(ctx, s, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, u.InvestDebateTurns)
	core.Merge(&s, u)

	u, err = bear(ctx, s, nil)
	require.NoError(t, err)
	core.Merge(&s, u)

	d := s.InvestmentDebate
	assert.Equal(t, 2, d.Count)
	assert.Equal(t, "Bull Analyst: Growth is accelerating.", d.BullHistory)
	assert.Equal(t, "Bear Analyst: Valuation is stretched.", d.BearHistory)
	assert.Equal(t, "Bull Analyst: Growth is accelerating.\nBear Analyst: Valuation is stretched.", d.History)
	assert.Equal(t, "Bear Analyst: Valuation is stretched.", d.CurrentResponse)
}

func TestBearSeesBullArgument(t *testing.T) {
	m := model.NewMockModel("quick")
	bear := NewBearResearcher(m)
	s := testutil.NewStateBuilder("AAPL").Build()
	s.InvestmentDebate.CurrentResponse = "Bull Analyst: margins expanding"

	_, err := bear(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Contains(t, m.Requests()[0].Instructions, "Bull Analyst: margins expanding")
	assert.Contains(t, m.Requests()[0].Instructions, memory.NoRelevantMemories)
}

func TestManagerAndTrader(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStateBuilder("AAPL").Reports().DebateCount(4).Build()

	u, err := NewResearchManager(model.NewMockModel("deep").Enqueue(model.Text("Buy with a trailing stop.")))(ctx, s, nil)
	require.NoError(t, err)
	core.Merge(&s, u)
	assert.Equal(t, "Buy with a trailing stop.", s.InvestmentPlan)
	assert.Equal(t, "Buy with a trailing stop.", s.InvestmentDebate.JudgeDecision)
	assert.Equal(t, 4, s.InvestmentDebate.Count, "judging does not count as a round")

	tm := model.NewMockModel("quick").Enqueue(model.Text("FINAL TRANSACTION PROPOSAL: **BUY**"))
	u, err = NewTrader(tm)(ctx, s, nil)
	require.NoError(t, err)
	core.Merge(&s, u)
	assert.Equal(t, "FINAL TRANSACTION PROPOSAL: **BUY**", s.TraderPlan)
	assert.Contains(t, tm.Requests()[0].Instructions, "Buy with a trailing stop.")
}

func TestRiskDebateAndJudge(t *testing.T) {
	ctx := context.Background()
	cfg := &core.RunConfig{MaxRiskRounds: 2}
	s := testutil.NewStateBuilder("AAPL").Reports().Build()
	s.TraderPlan = "Buy 100 shares"

	for _, node := range []Node{
		NewRiskyAnalyst(model.NewMockModel("q").Enqueue(model.Text("Go bigger."))),
		NewSafeAnalyst(model.NewMockModel("q").Enqueue(model.Text("Halve it."))),
		NewNeutralAnalyst(model.NewMockModel("q").Enqueue(model.Text("Scale in."))),
	} {
		u, err := node(ctx, s, cfg)
		require.NoError(t, err)
		core.Merge(&s, u)
	}

	d := s.RiskDebate
	assert.Equal(t, 3, d.Count)
	assert.Equal(t, "Neutral Analyst", d.LatestSpeaker)
	assert.Equal(t, "Risky Analyst: Go bigger.", d.CurrentRiskyResponse)
	assert.Equal(t, "Safe Analyst: Halve it.", d.SafeHistory)
	assert.Len(t, strings.Split(d.History, "\n"), 3)

	second := model.NewMockModel("q")
	_, err := NewRiskyAnalyst(second)(ctx, s, cfg)
	require.NoError(t, err)
	instr := second.Requests()[0].Instructions
	assert.Contains(t, instr, "round 2 of 2")
	assert.Contains(t, instr, "Safe Analyst: Halve it.")
	assert.Contains(t, instr, "Neutral Analyst: Scale in.")

	judge := model.NewMockModel("deep").Enqueue(model.Text("Scale in. FINAL TRANSACTION PROPOSAL: **HOLD**"))
	u, err := NewRiskJudge(judge)(ctx, s, cfg)
	require.NoError(t, err)
	core.Merge(&s, u)
	assert.Equal(t, Hold, ExtractDecision(s.FinalTradeDecision))
	assert.Equal(t, s.FinalTradeDecision, s.RiskDebate.JudgeDecision)
	assert.Equal(t, 3, s.RiskDebate.Count)
	assert.NotContains(t, judge.Requests()[0].Instructions, "REJECTED")
}

func TestRiskJudgeAfterRejection(t *testing.T) {
	judge := model.NewMockModel("deep")
	s := testutil.NewStateBuilder("XYZ").PreScreen(core.PreScreenReject).Build()
	s.RedFlags = []core.RedFlag{{Severity: "CRITICAL", Action: core.ActionAutoReject, Description: "going concern doubt"}}

	_, err := NewRiskJudge(judge)(context.Background(), s, nil)
	require.NoError(t, err)
	instr := judge.Requests()[0].Instructions
	assert.Contains(t, instr, "XYZ was REJECTED")
	assert.Contains(t, instr, "going concern doubt")
}

func TestParseScreen(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   core.PreScreenResult
		flags  int
		parsed bool
	}{
		{"pass", `{"verdict":"PASS","red_flags":[]}`, core.PreScreenPass, 0, true},
		{"fenced reject", "```json\n{\"verdict\": \"reject\", \"red_flags\": [{\"severity\":\"high\",\"action\":\"monitor\",\"description\":\"debt\"}]}\n```", core.PreScreenReject, 1, true},
		{"auto reject overrides pass", `Result: {"verdict":"PASS","red_flags":[{"severity":"CRITICAL","action":"AUTO_REJECT","description":"fraud"}]}`, core.PreScreenReject, 1, true},
		{"odd verdict", `{"verdict":"MAYBE"}`, core.PreScreenUnknown, 0, true},
		{"prose", "Looks fine to me.", core.PreScreenUnknown, 0, false},
		{"broken json", `{"verdict": PASS`, core.PreScreenUnknown, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, flags, ok := ParseScreen(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Len(t, flags, tt.flags)
			assert.Equal(t, tt.parsed, ok)
		})
	}

	_, flags, _ := ParseScreen(`{"verdict":"REJECT","red_flags":[{"severity":"high","action":"monitor","description":"debt"}]}`)
	assert.Equal(t, core.RedFlag{Severity: "HIGH", Action: "MONITOR", Description: "debt"}, flags[0])
}

func TestPreScreenNode(t *testing.T) {
	logger := &testutil.RecordingLogger{}
	m := model.NewMockModel("deep").Enqueue(model.Text("no idea"))
	node := NewPreScreen(m, func(o *Options) { o.Logger = logger })

	s := testutil.NewStateBuilder("AAPL").Reports().Build()
	u, err := node(context.Background(), s, nil)
	require.NoError(t, err)
	res, _ := u.PreScreen.Get()
	assert.Equal(t, core.PreScreenUnknown, res)
	assert.Equal(t, 1, logger.Count("WARN", "agent.prescreen.unparseable"))
	assert.Contains(t, m.Requests()[0].Instructions, "revenue growing 8% yoy")
}

func TestExtractDecision(t *testing.T) {
	tests := map[string]Decision{
		"FINAL TRANSACTION PROPOSAL: **SELL**":                       Sell,
		"final transaction proposal: buy":                            Buy,
		"We considered a sell but FINAL TRANSACTION PROPOSAL: **HOLD**": Hold,
		"I would buy more.":                                          Buy,
		"Sell now, not buy... actually sell.":                        Sell,
		"No signal here, buyback announced.":                         Hold,
		"":                                                           Hold,
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractDecision(in), in)
	}
}

func TestMemoryIsConsultedWhenEnabled(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry(func(o *memory.RegistryOptions) { o.Embedder = memory.NewHashEmbedder(32) })
	stores, err := reg.CreateInstances(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, stores["AAPL_bull_memory"].AddSituations(ctx, []string{"iphone cycle peaked, bull was wrong"}))

	m := model.NewMockModel("quick")
	bull := NewBullResearcher(m, func(o *Options) { o.Memory = reg })
	s := testutil.NewStateBuilder("AAPL").Reports().Build()

	_, err = bull(ctx, s, nil)
	require.NoError(t, err)
	assert.Contains(t, m.Requests()[0].Instructions, memory.NoRelevantMemories, "memory off by default")

	_, err = bull(ctx, s, &core.RunConfig{EnableMemory: true})
	require.NoError(t, err)
	assert.Contains(t, m.Requests()[1].Instructions, "iphone cycle peaked")

	_, err = bull(ctx, testutil.NewStateBuilder("MSFT").Reports().Build(), &core.RunConfig{EnableMemory: true})
	require.NoError(t, err)
	assert.Contains(t, m.Requests()[2].Instructions, memory.NoRelevantMemories)
}

func TestReflect(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry(func(o *memory.RegistryOptions) { o.Embedder = memory.NewHashEmbedder(32) })
	_, err := reg.CreateInstances(ctx, "AAPL")
	require.NoError(t, err)

	s := testutil.NewStateBuilder("AAPL").Reports().Build()
	s.TraderPlan = "Buy"
	written := Reflect(ctx, reg, s, nil, "Returned +4% over 5 days")
	for _, role := range memory.Roles() {
		assert.True(t, written[role], role)
	}

	trader, _ := reg.Store("AAPL", memory.RoleTrader)
	matches := trader.QuerySimilarSituations(ctx, "anything", 5)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0].Document, "Decision:\nBuy")
	assert.Contains(t, matches[0].Document, "Outcome:\nReturned +4% over 5 days")

	none := Reflect(ctx, reg, testutil.NewStateBuilder("TSLA").Build(), nil, "flat")
	assert.False(t, none[memory.RoleBull])
	assert.Empty(t, Reflect(ctx, nil, s, nil, "x"))
}

func TestInstructionResolve(t *testing.T) {
	static := NewInstructionFromText("Hello {{.subject}}")
	assert.True(t, static.IsStatic())
	got, err := static.Resolve(core.AgentState{}, map[string]any{"subject": "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "Hello AAPL", got)

	boom := errors.New("no prompt")
	dyn := NewInstructionFromProvider(Func(func(core.AgentState, map[string]any) (string, error) { return "", boom }))
	assert.False(t, dyn.IsStatic())
	_, err = dyn.Resolve(core.AgentState{}, nil)
	assert.ErrorIs(t, err, boom)

	assert.True(t, Instruction{}.IsZero())
}
