package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/internal/util"
)

// FunctionTool exposes a plain Go function as a Tool.
//
// Arguments are validated against the declared schema before the function
// runs. Failures surface as *ToolError:
//
//	VALIDATION_ERROR  argument mismatch
//	EXECUTION_ERROR   the function returned a non ToolError error
//
// A FunctionTool holds no mutable state and is safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and function.
//
// Example:
//
//	prices := NewFunctionTool(
//	  "get_stock_prices",
//	  "Daily OHLCV history for the run's subject",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "lookback_days": map[string]any{"type": "integer"},
//	    },
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return feed.History(tc.Context(), tc.Subject(), tc.TradeDate())
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name implements Tool.
func (t *FunctionTool) Name() string { return t.name }

// Description implements Tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args then invokes the wrapped function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "call_id", toolCtx.ToolCallID(), "subject", toolCtx.Subject())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}
		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
