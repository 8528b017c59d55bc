package testutil

import (
	"fmt"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
)

// StateBuilder provides a fluent helper for constructing AgentState values in tests.
// Example:
//
//	s := NewStateBuilder("AAPL").Sender("news_analyst").ToolCall("news_analyst", "get_news", "{}").Build()
//
// Chain only the parts you need; the state starts as core.NewAgentState would.
type StateBuilder struct {
	state core.AgentState
	seq   int
}

// NewStateBuilder creates a builder for subject with a fixed trade date.
func NewStateBuilder(subject string) *StateBuilder {
	return &StateBuilder{state: core.NewAgentState(subject, "2024-05-10")}
}

// Date overrides the trade date (chainable).
func (b *StateBuilder) Date(d string) *StateBuilder { b.state.TradeDate = d; return b }

// Sender sets the sender field (chainable).
func (b *StateBuilder) Sender(s string) *StateBuilder { b.state.Sender = s; return b }

// AssistantText appends an assistant message authored by name (chainable).
func (b *StateBuilder) AssistantText(name, text string) *StateBuilder {
	b.state.Messages = append(b.state.Messages, core.Message{Role: core.RoleAssistant, Name: name, Content: text})
	return b
}

// ToolCall appends an assistant message carrying one pending tool call (chainable).
func (b *StateBuilder) ToolCall(name, tool, args string) *StateBuilder {
	b.seq++
	b.state.Messages = append(b.state.Messages, core.Message{
		Role:      core.RoleAssistant,
		Name:      name,
		ToolCalls: []core.ToolCall{{ID: callID(b.seq), Name: tool, Arguments: args}},
	})
	return b
}

// ToolResult appends a tool message answering the most recent call (chainable).
func (b *StateBuilder) ToolResult(name, content string) *StateBuilder {
	b.state.Messages = append(b.state.Messages, core.Message{Role: core.RoleTool, Name: name, Content: content, ToolCallID: callID(b.seq)})
	return b
}

// DebateCount sets the investment debate round count (chainable).
func (b *StateBuilder) DebateCount(n int) *StateBuilder { b.state.InvestmentDebate.Count = n; return b }

// Reports fills all four analyst reports with short placeholder text (chainable).
func (b *StateBuilder) Reports() *StateBuilder {
	b.state.MarketReport = "market: uptrend above 50-day average"
	b.state.SentimentReport = "sentiment: mildly positive"
	b.state.NewsReport = "news: product launch announced"
	b.state.FundamentalsReport = "fundamentals: revenue growing 8% yoy"
	return b
}

// PreScreen sets the pre-screening result (chainable).
func (b *StateBuilder) PreScreen(r core.PreScreenResult) *StateBuilder { b.state.PreScreen = r; return b }

// Build returns the constructed state.
func (b *StateBuilder) Build() core.AgentState { return b.state }

func callID(n int) string {
	return fmt.Sprintf("call_%d", n)
}
