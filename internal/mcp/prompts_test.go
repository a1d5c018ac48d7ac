package mcp

import (
	"context"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPrompts(t *testing.T) {
	// testServer is initialized in TestMain (tools_test.go).
	assert.NotNil(t, testServer, "testServer should be initialized by TestMain")
	assert.NotNil(t, testServer.MCPServer(), "MCPServer should be initialized")
}

func TestSizeTankPrompt(t *testing.T) {
	result, err := testServer.handleSizeTankPrompt(context.Background(), mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{
			Name:      "size-tank",
			Arguments: map[string]string{"dataset": "brisbane", "target_fraction": "0.75"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Contains(t, result.Description, "brisbane")
	require.NotEmpty(t, result.Messages, "expected at least one message")

	msg := result.Messages[0]
	assert.Equal(t, mcplib.RoleUser, msg.Role)

	tc, ok := msg.Content.(mcplib.TextContent)
	require.True(t, ok, "message content should be TextContent")
	assert.Contains(t, tc.Text, "harvest_simulate")
	assert.Contains(t, tc.Text, "harvest_runs")
	assert.Contains(t, tc.Text, "0.75")
}

func TestSizeTankPrompt_DefaultTarget(t *testing.T) {
	result, err := testServer.handleSizeTankPrompt(context.Background(), mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{
			Name:      "size-tank",
			Arguments: map[string]string{"dataset": "brisbane"},
		},
	})
	require.NoError(t, err)
	tc := result.Messages[0].Content.(mcplib.TextContent)
	assert.Contains(t, tc.Text, "at least 0.9")
}

func TestSizeTankPrompt_MissingDataset(t *testing.T) {
	_, err := testServer.handleSizeTankPrompt(context.Background(), mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{
			Name:      "size-tank",
			Arguments: map[string]string{},
		},
	})
	require.Error(t, err, "should error when dataset is missing")
	assert.Contains(t, err.Error(), "dataset")
}

func TestSetupPrompt(t *testing.T) {
	result, err := testServer.handleSetupPrompt(context.Background(), mcplib.GetPromptRequest{})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)

	tc, ok := result.Messages[0].Content.(mcplib.TextContent)
	require.True(t, ok)
	for _, tool := range []string{"harvest_datasets", "harvest_simulate", "harvest_runs"} {
		assert.Contains(t, tc.Text, tool)
	}
}
