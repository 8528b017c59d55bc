package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by node factories.
type Request struct {
	Instructions string           `json:"instructions"` // system prompt
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is one event emitted by a model. Adapters emit a single final
// response per call.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface node factories use to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoResponse is returned by Collect when a model closes without a final response.
var ErrNoResponse = errors.New("model returned no response")

// Collect drains a Generate call and returns the final (non-partial) response.
func Collect(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var final *Response
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !r.Partial {
				rr := r
				final = &rr
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if final == nil {
		return Response{}, ErrNoResponse
	}
	if final.Message.Role == "" {
		final.Message.Role = core.RoleAssistant
	}
	return *final, nil
}

// MockModel is a scripted in-memory Model for tests and offline runs. It
// replays queued responses in order and records every request it receives.
type MockModel struct {
	info Info

	mu       sync.Mutex
	script   []func(Request) (Response, error)
	fallback func(Request) (Response, error)
	requests []Request
}

// NewMockModel constructs a MockModel with tool support enabled. Once the
// script is exhausted it answers with a fixed "Mock response" text.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{Name: name, Provider: "mock", SupportsTools: true},
		fallback: func(req Request) (Response, error) {
			return Text(fmt.Sprintf("Mock response from %s", name)), nil
		},
	}
}

// Text builds a final assistant text response.
func Text(content string) Response {
	return Response{
		Message:      core.Message{Role: core.RoleAssistant, Content: content},
		FinishReason: "stop",
	}
}

// ToolCalls builds a final assistant response requesting tool calls.
func ToolCalls(calls ...core.ToolCall) Response {
	return Response{
		Message:      core.Message{Role: core.RoleAssistant, ToolCalls: calls},
		FinishReason: "tool_calls",
	}
}

// Enqueue appends fixed responses to the script (chainable).
func (m *MockModel) Enqueue(responses ...Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range responses {
		r := r
		m.script = append(m.script, func(Request) (Response, error) { return r, nil })
	}
	return m
}

// EnqueueError appends a failing turn to the script (chainable).
func (m *MockModel) EnqueueError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, func(Request) (Response, error) { return Response{}, err })
	return m
}

// OnRequest replaces the fallback used once the script is exhausted (chainable).
func (m *MockModel) OnRequest(fn func(Request) (Response, error)) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = fn
	return m
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	next := m.fallback
	if len(m.script) > 0 {
		next = m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		resp, err := next(req)
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
