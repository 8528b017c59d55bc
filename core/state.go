package core

import "strings"

// Role identifies the author kind of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a pending function invocation requested by a model turn.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}

// Message is one entry of the append-only message log.
type Message struct {
	Role       Role       `json:"role"`
	Name       string     `json:"name,omitempty"` // emitting node identifier
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// HasToolCalls reports whether the message carries pending tool calls.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// PreScreenResult is the outcome of the fundamentals red-flag screen.
type PreScreenResult string

const (
	PreScreenUnknown PreScreenResult = "UNKNOWN"
	PreScreenPass    PreScreenResult = "PASS"
	PreScreenReject  PreScreenResult = "REJECT"
)

// ParsePreScreen maps free text onto the closed result set, defaulting to UNKNOWN.
func ParsePreScreen(s string) PreScreenResult {
	switch PreScreenResult(strings.ToUpper(strings.TrimSpace(s))) {
	case PreScreenPass:
		return PreScreenPass
	case PreScreenReject:
		return PreScreenReject
	default:
		return PreScreenUnknown
	}
}

// RedFlag is one finding raised during pre-screening.
type RedFlag struct {
	Severity    string `json:"severity"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// ActionAutoReject marks a red flag that rejects the subject outright.
const ActionAutoReject = "AUTO_REJECT"

// InvestDebateState is the bull/bear debate record.
type InvestDebateState struct {
	BullHistory     string `json:"bull_history"`
	BearHistory     string `json:"bear_history"`
	History         string `json:"history"`
	CurrentResponse string `json:"current_response"`
	JudgeDecision   string `json:"judge_decision"`
	Count           int    `json:"count"`
}

// Normalize returns a fully defaulted copy. Partial records are expected early
// in a run and are repaired rather than rejected.
func (d InvestDebateState) Normalize() InvestDebateState {
	if d.Count < 0 {
		d.Count = 0
	}
	if d.History == "" && (d.BullHistory != "" || d.BearHistory != "") {
		d.History = joinNonEmpty(d.BullHistory, d.BearHistory)
	}
	return d
}

// RiskDebateState is the three-way risk debate record.
type RiskDebateState struct {
	RiskyHistory           string `json:"risky_history"`
	SafeHistory            string `json:"safe_history"`
	NeutralHistory         string `json:"neutral_history"`
	History                string `json:"history"`
	LatestSpeaker          string `json:"latest_speaker"`
	CurrentRiskyResponse   string `json:"current_risky_response"`
	CurrentSafeResponse    string `json:"current_safe_response"`
	CurrentNeutralResponse string `json:"current_neutral_response"`
	JudgeDecision          string `json:"judge_decision"`
	Count                  int    `json:"count"`
}

// Normalize returns a fully defaulted copy.
func (d RiskDebateState) Normalize() RiskDebateState {
	if d.Count < 0 {
		d.Count = 0
	}
	if d.History == "" {
		d.History = joinNonEmpty(d.RiskyHistory, d.SafeHistory, d.NeutralHistory)
	}
	return d
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

// AgentState is the record threaded through one pipeline run. It is only
// mutated by merging node updates (see Merge) and is discarded afterwards.
type AgentState struct {
	Subject   string `json:"subject"`
	TradeDate string `json:"trade_date"`

	Messages []Message `json:"messages"`
	Sender   string    `json:"sender"`

	MarketReport       string `json:"market_report"`
	SentimentReport    string `json:"sentiment_report"`
	NewsReport         string `json:"news_report"`
	FundamentalsReport string `json:"fundamentals_report"`

	InvestmentDebate InvestDebateState `json:"investment_debate_state"`
	RiskDebate       RiskDebateState   `json:"risk_debate_state"`

	InvestmentPlan     string `json:"investment_plan"`
	TraderPlan         string `json:"trader_investment_plan"`
	FinalTradeDecision string `json:"final_trade_decision"`

	RedFlags  []RedFlag       `json:"red_flags"`
	PreScreen PreScreenResult `json:"pre_screening_result"`

	PromptsUsed map[string]string   `json:"prompts_used"`
	ToolsUsed   map[string][]string `json:"tools_used"`
}

// NewAgentState returns the state a run starts from: only subject and date set,
// seeded with the user message naming the subject.
func NewAgentState(subject, tradeDate string) AgentState {
	return AgentState{
		Subject:   subject,
		TradeDate: tradeDate,
		Messages: []Message{{
			Role:    RoleUser,
			Content: subject,
		}},
		PreScreen:   PreScreenUnknown,
		PromptsUsed: map[string]string{},
		ToolsUsed:   map[string][]string{},
	}
}

// LastMessage returns the trailing message of the log.
func (s AgentState) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// MessagesFor returns the user seed message plus every message emitted by, or
// answering tool calls of, the given node identifier.
func (s AgentState) MessagesFor(name string) []Message {
	out := make([]Message, 0, len(s.Messages))
	for i, m := range s.Messages {
		if (i == 0 && m.Role == RoleUser) || m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Reports concatenates the analyst reports in a stable order.
func (s AgentState) Reports() string {
	var b strings.Builder
	for _, r := range []struct{ title, body string }{
		{"Market research report", s.MarketReport},
		{"Social media sentiment report", s.SentimentReport},
		{"Latest world affairs news", s.NewsReport},
		{"Company fundamentals report", s.FundamentalsReport},
	} {
		if r.body == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(r.title)
		b.WriteString(":\n")
		b.WriteString(r.body)
	}
	return b.String()
}
