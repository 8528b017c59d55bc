package core

import (
	"maps"
	"slices"
)

// MergeStrategy is how an Update field is folded into AgentState.
type MergeStrategy int

const (
	// Overwrite replaces the state value when the update sets the field.
	Overwrite MergeStrategy = iota
	// Append adds the update's elements (or map entries) after the existing ones.
	Append
	// Increment adds the update's delta to the state counter.
	Increment
)

// String returns the strategy name.
func (m MergeStrategy) String() string {
	switch m {
	case Overwrite:
		return "overwrite"
	case Append:
		return "append"
	case Increment:
		return "increment"
	default:
		return "unknown"
	}
}

// Opt is an optional overwrite value. The zero value is "not set".
type Opt[T any] struct {
	value T
	set   bool
}

// Set wraps v as a present value.
func Set[T any](v T) Opt[T] { return Opt[T]{value: v, set: true} }

// Get returns the value and whether it was set.
func (o Opt[T]) Get() (T, bool) { return o.value, o.set }

// IsSet reports whether the value was set.
func (o Opt[T]) IsSet() bool { return o.set }

// Update is the partial update a node returns. Every field has exactly one
// merge strategy, declared in the schema below.
type Update struct {
	Subject   Opt[string]
	TradeDate Opt[string]

	Messages []Message
	Sender   Opt[string]

	MarketReport       Opt[string]
	SentimentReport    Opt[string]
	NewsReport         Opt[string]
	FundamentalsReport Opt[string]

	// InvestmentDebate replaces the debate record except its Count, which is
	// owned by InvestDebateTurns.
	InvestmentDebate  Opt[InvestDebateState]
	InvestDebateTurns int

	// RiskDebate replaces the risk record except its Count, which is owned by
	// RiskDebateTurns.
	RiskDebate      Opt[RiskDebateState]
	RiskDebateTurns int

	InvestmentPlan     Opt[string]
	TraderPlan         Opt[string]
	FinalTradeDecision Opt[string]

	RedFlags  []RedFlag
	PreScreen Opt[PreScreenResult]

	PromptsUsed map[string]string
	ToolsUsed   map[string][]string
}

type field struct {
	name     string
	strategy MergeStrategy
	apply    func(s *AgentState, u *Update)
}

func overwrite[T any](name string, dst func(*AgentState) *T, src func(*Update) Opt[T]) field {
	return field{name: name, strategy: Overwrite, apply: func(s *AgentState, u *Update) {
		if v, ok := src(u).Get(); ok {
			*dst(s) = v
		}
	}}
}

func appendSlice[T any](name string, dst func(*AgentState) *[]T, src func(*Update) []T) field {
	return field{name: name, strategy: Append, apply: func(s *AgentState, u *Update) {
		// Clipping forces a fresh backing array, so a caller's seed state is
		// never written through.
		if add := src(u); len(add) > 0 {
			*dst(s) = append(slices.Clip(*dst(s)), add...)
		}
	}}
}

func appendMap[V any](name string, dst func(*AgentState) *map[string]V, src func(*Update) map[string]V) field {
	return field{name: name, strategy: Append, apply: func(s *AgentState, u *Update) {
		add := src(u)
		if len(add) == 0 {
			return
		}
		m := make(map[string]V, len(*dst(s))+len(add))
		maps.Copy(m, *dst(s))
		for k, v := range add {
			m[k] = v
		}
		*dst(s) = m
	}}
}

func increment(name string, dst func(*AgentState) *int, src func(*Update) int) field {
	return field{name: name, strategy: Increment, apply: func(s *AgentState, u *Update) {
		*dst(s) += src(u)
	}}
}

// schema is applied in order; debate records are overwritten before their
// counters are incremented.
var schema = []field{
	overwrite("subject", func(s *AgentState) *string { return &s.Subject }, func(u *Update) Opt[string] { return u.Subject }),
	overwrite("trade_date", func(s *AgentState) *string { return &s.TradeDate }, func(u *Update) Opt[string] { return u.TradeDate }),
	appendSlice("messages", func(s *AgentState) *[]Message { return &s.Messages }, func(u *Update) []Message { return u.Messages }),
	overwrite("sender", func(s *AgentState) *string { return &s.Sender }, func(u *Update) Opt[string] { return u.Sender }),
	overwrite("market_report", func(s *AgentState) *string { return &s.MarketReport }, func(u *Update) Opt[string] { return u.MarketReport }),
	overwrite("sentiment_report", func(s *AgentState) *string { return &s.SentimentReport }, func(u *Update) Opt[string] { return u.SentimentReport }),
	overwrite("news_report", func(s *AgentState) *string { return &s.NewsReport }, func(u *Update) Opt[string] { return u.NewsReport }),
	overwrite("fundamentals_report", func(s *AgentState) *string { return &s.FundamentalsReport }, func(u *Update) Opt[string] { return u.FundamentalsReport }),
	{name: "investment_debate_state", strategy: Overwrite, apply: func(s *AgentState, u *Update) {
		if v, ok := u.InvestmentDebate.Get(); ok {
			v.Count = s.InvestmentDebate.Count
			s.InvestmentDebate = v
		}
	}},
	increment("investment_debate_state.count", func(s *AgentState) *int { return &s.InvestmentDebate.Count }, func(u *Update) int { return u.InvestDebateTurns }),
	{name: "risk_debate_state", strategy: Overwrite, apply: func(s *AgentState, u *Update) {
		if v, ok := u.RiskDebate.Get(); ok {
			v.Count = s.RiskDebate.Count
			s.RiskDebate = v
		}
	}},
	increment("risk_debate_state.count", func(s *AgentState) *int { return &s.RiskDebate.Count }, func(u *Update) int { return u.RiskDebateTurns }),
	overwrite("investment_plan", func(s *AgentState) *string { return &s.InvestmentPlan }, func(u *Update) Opt[string] { return u.InvestmentPlan }),
	overwrite("trader_investment_plan", func(s *AgentState) *string { return &s.TraderPlan }, func(u *Update) Opt[string] { return u.TraderPlan }),
	overwrite("final_trade_decision", func(s *AgentState) *string { return &s.FinalTradeDecision }, func(u *Update) Opt[string] { return u.FinalTradeDecision }),
	appendSlice("red_flags", func(s *AgentState) *[]RedFlag { return &s.RedFlags }, func(u *Update) []RedFlag { return u.RedFlags }),
	overwrite("pre_screening_result", func(s *AgentState) *PreScreenResult { return &s.PreScreen }, func(u *Update) Opt[PreScreenResult] { return u.PreScreen }),
	appendMap("prompts_used", func(s *AgentState) *map[string]string { return &s.PromptsUsed }, func(u *Update) map[string]string { return u.PromptsUsed }),
	appendMap("tools_used", func(s *AgentState) *map[string][]string { return &s.ToolsUsed }, func(u *Update) map[string][]string { return u.ToolsUsed }),
}

// Merge folds u into s using the declared per-field strategies.
func Merge(s *AgentState, u Update) {
	for _, f := range schema {
		f.apply(s, &u)
	}
}

// Schema returns the declared merge strategy of every state field.
func Schema() map[string]MergeStrategy {
	out := make(map[string]MergeStrategy, len(schema))
	for _, f := range schema {
		out[f.name] = f.strategy
	}
	return out
}
