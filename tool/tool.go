package tool

import (
	"fmt"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/internal/util"
)

// Tool is a callable data source exposed to analyst models.
//
// Implementations must be safe for concurrent use: the dispatch node runs the
// calls of one model turn in parallel.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description is shown to the model to decide when to call the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeBadArgs    = "BAD_ARGUMENTS"
	CodePanic      = "PANIC"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
