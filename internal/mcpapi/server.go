// Package mcpapi exposes the cluster over the Model Context Protocol so MCP
// clients can start builds, submit intents and read state.
package mcpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agentcluster/internal/campaign"
	"agentcluster/internal/logging"
	"agentcluster/internal/mcp"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ServersURI is the resource holding the static server catalog.
const ServersURI = "cluster://servers"

// Cluster is the orchestrator surface exposed over MCP.
type Cluster interface {
	Start(requirement string) error
	Stop()
	SubmitIntent(prompt string) error
	Snapshot() campaign.Snapshot
}

// Server wraps the mcp-go server.
type Server struct {
	mcpServer *mcpserver.MCPServer
	cluster   Cluster
}

// New creates an MCP server with the cluster tools and resources registered.
func New(cluster Cluster, version string) *Server {
	s := &Server{cluster: cluster}
	s.mcpServer = mcpserver.NewMCPServer(
		"agentcluster",
		version,
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithToolCapabilities(false),
	)
	s.registerResources()
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			ServersURI,
			"MCP Servers",
			mcplib.WithResourceDescription("Static catalog of MCP servers available to the cluster"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleServers,
	)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("cluster_start_build",
			mcplib.WithDescription("Start a build run for a project requirement"),
			mcplib.WithString("requirement", mcplib.Description("Project requirement text"), mcplib.Required()),
		),
		s.handleStartBuild,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("cluster_stop_build",
			mcplib.WithDescription("Stop the running build, if any"),
		),
		s.handleStopBuild,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("cluster_submit_intent",
			mcplib.WithDescription("Compile a free-text instruction into tool calls; the result appears in the next snapshots"),
			mcplib.WithString("prompt", mcplib.Description("Instruction text"), mcplib.Required()),
		),
		s.handleSubmitIntent,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("cluster_snapshot",
			mcplib.WithDescription("Return the current agents, tools, log, metrics and phase"),
			mcplib.WithNumber("log_tail", mcplib.Description("Only include the last N log entries (0 for all)")),
		),
		s.handleSnapshot,
	)
}

func (s *Server) handleServers(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(mcp.Catalog(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal servers: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      ServersURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleStartBuild(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	requirement := request.GetString("requirement", "")
	if err := s.cluster.Start(requirement); err != nil {
		switch {
		case errors.Is(err, campaign.ErrEmptyRequirement):
			return errorResult("requirement is required"), nil
		case errors.Is(err, campaign.ErrAlreadyRunning):
			return errorResult("a build is already running; stop it first"), nil
		default:
			return errorResult(fmt.Sprintf("start failed: %v", err)), nil
		}
	}
	logging.Get(logging.CategoryMCP).Info("Build started over MCP: %q", requirement)
	snap := s.cluster.Snapshot()
	return jsonResult(map[string]any{"run_id": snap.RunID, "phase": snap.Phase})
}

func (s *Server) handleStopBuild(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	s.cluster.Stop()
	snap := s.cluster.Snapshot()
	return jsonResult(map[string]any{"phase": snap.Phase, "running": snap.Running})
}

func (s *Server) handleSubmitIntent(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	prompt := request.GetString("prompt", "")
	if err := s.cluster.SubmitIntent(prompt); err != nil {
		if errors.Is(err, campaign.ErrEmptyPrompt) {
			return errorResult("prompt is required"), nil
		}
		return errorResult(fmt.Sprintf("submit failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"accepted": true, "prompt": prompt})
}

func (s *Server) handleSnapshot(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	snap := s.cluster.Snapshot()
	if tail := request.GetInt("log_tail", 0); tail > 0 && tail < len(snap.BuildLog) {
		snap.BuildLog = snap.BuildLog[len(snap.BuildLog)-tail:]
	}
	return jsonResult(snap)
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
