package core

import (
	"context"
	"fmt"

	"github.com/domgolonka/ai-investment-agent-sub001/logging"
)

// ToolContext provides a constrained, read-only surface for tool
// implementations invoked by the tool dispatch node. Tools see the run's
// subject and date plus the call that triggered them; they never mutate
// AgentState directly, their result becomes a tool message instead.
type ToolContext struct {
	ctx        context.Context
	toolCallID string
	subject    string
	tradeDate  string
	caller     string
	logger     logging.Logger
}

// NewToolContext constructs a tool context for one tool call of a run.
func NewToolContext(ctx context.Context, state AgentState, toolCallID string, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ToolContext{
		ctx:        ctx,
		toolCallID: toolCallID,
		subject:    state.Subject,
		tradeDate:  state.TradeDate,
		caller:     state.Sender,
		logger:     logging.OrNoOp(logger),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// ToolCallID returns the id of the tool call being executed.
func (tc *ToolContext) ToolCallID() string { return tc.toolCallID }

// Subject returns the subject (ticker) of the run.
func (tc *ToolContext) Subject() string { return tc.subject }

// TradeDate returns the analysis date of the run.
func (tc *ToolContext) TradeDate() string { return tc.tradeDate }

// Caller returns the analyst identifier that requested the call.
func (tc *ToolContext) Caller() string { return tc.caller }

// Logger returns the run logger; never nil.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.toolCallID == "" || tc.subject == "" {
		return fmt.Errorf("invalid ToolContext: call id and subject are required")
	}
	return nil
}
