package mcpapi

import (
	"context"
	"encoding/json"
	"testing"

	"agentcluster/internal/campaign"
	"agentcluster/internal/mcp"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *campaign.Orchestrator) {
	t.Helper()
	cfg := campaign.DefaultConfig()
	cfg.Timings = campaign.Timings{}
	o := campaign.NewOrchestrator(cfg)
	t.Cleanup(o.Close)
	return New(o, "test"), o
}

func callTool(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// parseToolText extracts the first TextContent text from a CallToolResult.
func parseToolText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no TextContent found in tool result")
	return ""
}

func TestStartBuild(t *testing.T) {
	s, o := newTestServer(t)

	result, err := s.handleStartBuild(context.Background(), callTool("cluster_start_build", map[string]any{
		"requirement": "Build a todo app",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &body))
	assert.NotEmpty(t, body["run_id"])

	o.Wait()
	assert.Equal(t, campaign.PhaseComplete, o.Snapshot().Phase)
}

func TestStartBuild_MissingRequirement(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleStartBuild(context.Background(), callTool("cluster_start_build", map[string]any{}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "requirement is required")
}

func TestStopBuild_Idle(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleStopBuild(context.Background(), callTool("cluster_stop_build", nil))
	require.NoError(t, err)
	assert.Contains(t, parseToolText(t, result), `"phase": "idle"`)
}

func TestSubmitIntent(t *testing.T) {
	s, o := newTestServer(t)

	result, err := s.handleSubmitIntent(context.Background(), callTool("cluster_submit_intent", map[string]any{
		"prompt": "refactor the app",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	o.Wait()

	snap := o.Snapshot()
	require.NotNil(t, snap.IntentResult)
	assert.Equal(t, []string{`refactor_code(path="src/App.js", instructions="Improve performance")`}, snap.IntentResult.Calls)

	result, err = s.handleSubmitIntent(context.Background(), callTool("cluster_submit_intent", map[string]any{"prompt": " "}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSnapshot_LogTail(t *testing.T) {
	s, o := newTestServer(t)
	require.NoError(t, o.Start("Build a todo app"))
	o.Wait()

	result, err := s.handleSnapshot(context.Background(), callTool("cluster_snapshot", map[string]any{"log_tail": 2}))
	require.NoError(t, err)

	var snap campaign.Snapshot
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &snap))
	require.Len(t, snap.BuildLog, 2)
	assert.Equal(t, "Application package ready for download", snap.BuildLog[1].Message)
	assert.Equal(t, campaign.PhaseComplete, snap.Phase)
	assert.Len(t, snap.Agents, 10)
}

func TestServersResource(t *testing.T) {
	s, _ := newTestServer(t)

	contents, err := s.handleServers(context.Background(), mcplib.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, ServersURI, text.URI)

	var servers []mcp.Server
	require.NoError(t, json.Unmarshal([]byte(text.Text), &servers))
	assert.Equal(t, mcp.Catalog(), servers)
}
