// Package openai implements model.Model on the OpenAI Chat Completions API,
// translating the pipeline message log (including tool calls and tool
// results) into SDK params and back.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/model"
)

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
}

// Model wraps the OpenAI Chat Completions API behind model.Model.
type Model struct {
	client *openai.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates a new OpenAI model using the official client. The key is
// read from OPENAI_API_KEY unless Options.APIKey is set.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var reqOpts []option.RequestOption
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	// Retries are owned by model.Guard.
	reqOpts = append(reqOpts, option.WithMaxRetries(0))
	client := openai.NewClient(reqOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 4096,
	}
}

// Generate implements model.Model with a single non-streaming completion.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := m.client.Chat.Completions.New(ctx, m.buildParams(req))
		if err != nil {
			errCh <- wrapError(err)
			return
		}
		if len(resp.Choices) == 0 {
			errCh <- errors.New("openai: no choices returned")
			return
		}
		out <- toResponse(resp)
	}()
	return out, errCh
}

// buildMessages converts the message log into chat messages. Tool results
// already follow their assistant turn in the log, so order is kept as is.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case core.RoleAssistant:
			if !msg.HasToolCalls() {
				messages = append(messages, openai.AssistantMessage(msg.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				calls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{Role: "assistant", ToolCalls: calls}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case core.RoleTool:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			if msg.Content != "" {
				messages = append(messages, openai.UserMessage(msg.Content))
			}
		}
	}
	return messages
}

// buildParams assembles the request parameters including tool definitions.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  tdef.Function.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

func toResponse(resp *openai.ChatCompletion) model.Response {
	ch0 := resp.Choices[0]
	msg := core.Message{Role: core.RoleAssistant, Content: ch0.Message.Content}
	for _, tc := range ch0.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return model.Response{
		ID:           resp.ID,
		Message:      msg,
		FinishReason: ch0.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}

func wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &model.ProviderError{Provider: "openai", StatusCode: apiErr.StatusCode, Err: err}
	}
	return fmt.Errorf("openai api error: %w", err)
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
