package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/graph"
	"github.com/domgolonka/ai-investment-agent-sub001/logging"
)

// NodeOptions configures the tool dispatch node.
type NodeOptions struct {
	// MaxParallel caps concurrent calls of one turn. <1 means one goroutine per call.
	MaxParallel int
	Logger      logging.Logger
}

// NewNode returns the graph node that executes the pending tool calls of the
// trailing message. Calls run concurrently, results are appended in the
// order the model requested them, one tool message per call. Failures never
// abort the run: they are reported back to the model as the call's result.
//
// The node leaves Sender untouched so the tool return route can hand control
// back to the requesting analyst.
func NewNode(kit Toolkit, optFns ...func(o *NodeOptions)) graph.NodeFunc[core.AgentState, core.Update] {
	opts := NodeOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)
	all := kit.Union()

	return func(ctx context.Context, s core.AgentState, _ *core.RunConfig) (core.Update, error) {
		last, ok := s.LastMessage()
		if !ok || !last.HasToolCalls() {
			logger.Warn("tool.dispatch.no_calls", "sender", s.Sender)
			return core.Update{}, nil
		}

		tools := all
		if set, ok := kit[s.Sender]; ok && set != nil {
			tools = set
		}

		calls := last.ToolCalls
		results := make([]core.Message, len(calls))

		maxPar := opts.MaxParallel
		if maxPar <= 0 || maxPar > len(calls) {
			maxPar = len(calls)
		}
		sem := make(chan struct{}, maxPar)
		var wg sync.WaitGroup

		batchStart := time.Now()
		for i, call := range calls {
			wg.Add(1)
			sem <- struct{}{}
			go func(idx int, call core.ToolCall) {
				defer wg.Done()
				defer func() { <-sem }()

				toolCtx := core.NewToolContext(ctx, s, call.ID, logger)
				start := time.Now()
				result, err := execute(tools, toolCtx, call, logger)

				logging.LogToolCall(logger, s.Sender, call.Name, call.ID, time.Since(start), err)

				results[idx] = core.Message{
					Role:       core.RoleTool,
					Name:       s.Sender,
					Content:    render(result, err),
					ToolCallID: call.ID,
				}
			}(i, call)
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return core.Update{}, err
		}

		logger.Debug("tool.dispatch.batch.complete",
			"sender", s.Sender,
			"count", len(calls),
			"parallelism", maxPar,
			"duration_ms", time.Since(batchStart).Milliseconds(),
		)

		return core.Update{
			Messages:  results,
			ToolsUsed: map[string][]string{s.Sender: usedTools(s.ToolsUsed[s.Sender], calls)},
		}, nil
	}
}

// execute looks the tool up, decodes the arguments and calls it with panic
// recovery.
func execute(tools *Set, toolCtx *core.ToolContext, call core.ToolCall, logger logging.Logger) (result any, err error) {
	impl, ok := tools.Get(call.Name)
	if !ok {
		return nil, NewToolError(call.Name, "tool not found", CodeNotFound)
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, NewToolError(call.Name, fmt.Sprintf("failed to decode arguments: %v", err), CodeBadArgs)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool.dispatch.panic", "tool", call.Name, "recover", r, "stack", string(debug.Stack()))
			result, err = nil, &ToolError{Tool: call.Name, Message: fmt.Sprintf("panic: %v", r), Code: CodePanic}
		}
	}()

	return impl.Call(toolCtx, args)
}

// render turns a tool outcome into message content.
func render(result any, err error) string {
	if err != nil {
		return "Error: " + err.Error()
	}
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	b, mErr := json.Marshal(result)
	if mErr != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(b)
}

func usedTools(prev []string, calls []core.ToolCall) []string {
	seen := make(map[string]bool, len(prev)+len(calls))
	out := make([]string, 0, len(prev)+len(calls))
	for _, n := range prev {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, c := range calls {
		if !seen[c.Name] {
			seen[c.Name] = true
			out = append(out, c.Name)
		}
	}
	return out
}
