// Package anthropic provides a model.Model wrapper for the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/model"
)

// Options configures the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind model.Model.
type Model struct {
	client *anthropic.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   4096,
	}
}

// Generate implements model.Model with a single non-streaming call.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(req.Messages),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}
		if system := systemBlocks(req); len(system) > 0 {
			params.System = system
		}
		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- wrapError(err)
			return
		}
		out <- toResponse(resp)
	}()

	return out, errCh
}

func toResponse(resp *anthropic.Message) model.Response {
	msg := core.Message{Role: core.RoleAssistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			msg.Content += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			args := "{}"
			if tu.Input != nil {
				if raw, err := json.Marshal(tu.Input); err == nil {
					args = string(raw)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{ID: tu.ID, Name: tu.Name, Arguments: args})
		}
	}

	finishReason := "stop"
	if msg.HasToolCalls() {
		finishReason = "tool_calls"
	} else if resp.StopReason != "" {
		finishReason = string(resp.StopReason)
	}

	return model.Response{
		ID:           resp.ID,
		Message:      msg,
		FinishReason: finishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

// buildMessages converts the message log. Anthropic expects tool results as
// user turns, so consecutive tool messages collapse into one user message.
func buildMessages(log []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	var pending []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pending) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, msg := range log {
		switch msg.Role {
		case core.RoleSystem:
			// Lifted into params.System.
		case core.RoleTool:
			pending = append(pending, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		case core.RoleAssistant:
			flush()
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input any = map[string]any{}
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
						input = tc.Arguments
					}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		default:
			flush()
			if msg.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}
	flush()
	return messages
}

func systemBlocks(req model.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if req.Instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Instructions})
	}
	for _, msg := range req.Messages {
		if msg.Role == core.RoleSystem && msg.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	return blocks
}

func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if params := tool.Function.Parameters; params != nil {
			if props, ok := params["properties"]; ok {
				schema.Properties = props
			}
			schema.Required = requiredFields(params["required"])
		}
		out[i] = anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
		if out[i].OfTool != nil && tool.Function.Description != "" {
			out[i].OfTool.Description = anthropic.String(tool.Function.Description)
		}
	}
	return out
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &model.ProviderError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Err: err}
	}
	return fmt.Errorf("anthropic api error: %w", err)
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
