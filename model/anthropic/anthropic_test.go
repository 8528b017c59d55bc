package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/model"
)

func TestBuildMessagesGroupsToolResults(t *testing.T) {
	log := []core.Message{
		{Role: core.RoleUser, Content: "MSFT"},
		{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{
			{ID: "a", Name: "get_news", Arguments: `{}`},
			{ID: "b", Name: "get_social", Arguments: `{"days":3}`},
		}},
		{Role: core.RoleTool, ToolCallID: "a", Content: "headline"},
		{Role: core.RoleTool, ToolCallID: "b", Content: "sentiment"},
		{Role: core.RoleAssistant, Content: "Neutral."},
	}

	msgs := buildMessages(log)
	require.Len(t, msgs, 4)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Len(t, msgs[1].Content, 2)
	assert.Equal(t, "user", string(msgs[2].Role))
	assert.Len(t, msgs[2].Content, 2, "both tool results share one user turn")
	assert.Equal(t, "assistant", string(msgs[3].Role))
}

func TestSystemBlocksAndTools(t *testing.T) {
	req := model.Request{
		Instructions: "judge",
		Messages:     []core.Message{{Role: core.RoleSystem, Content: "extra"}},
		Tools: []model.ToolDefinition{{Function: model.FunctionDefinition{
			Name:       "get_fundamentals",
			Parameters: map[string]any{"properties": map[string]any{}, "required": []any{"symbol"}},
		}}},
	}
	assert.Len(t, systemBlocks(req), 2)

	tools := buildTools(req.Tools)
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "get_fundamentals", tools[0].OfTool.Name)
	assert.Equal(t, []string{"symbol"}, tools[0].OfTool.InputSchema.Required)
}
