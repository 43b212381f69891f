// Package mcp provides an MCP (Model Context Protocol) server for flowpad.
// This lets AI agents read and inspect flowcharts through the REST API.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alpkeskin/gotoon"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flowpad/flowpad/client"
	"github.com/flowpad/flowpad/graph"
)

// API is the part of the flowchart client the tools use.
type API interface {
	List(ctx context.Context) ([]graph.Summary, error)
	Fetch(ctx context.Context, id string) (*graph.Flowchart, error)
	Create(ctx context.Context, doc graph.Document) (*graph.Flowchart, error)
	Rename(ctx context.Context, id, title string) (*graph.Flowchart, error)
	Validate(ctx context.Context, id string) error
	OutgoingEdges(ctx context.Context, id, nodeID string) ([]graph.Edge, error)
	ConnectedNodes(ctx context.Context, id, nodeID string) ([]graph.Node, error)
}

// Server wraps the MCP server with flowpad functionality.
type Server struct {
	mcpServer *server.MCPServer
	api       API
}

// FlowchartOverview is the compact description returned by flowpad_get when
// compact output is requested.
type FlowchartOverview struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
	CreatedAt string `json:"created_at"`
}

// ValidationReport is the result of flowpad_validate.
type ValidationReport struct {
	Valid        bool         `json:"valid"`
	Message      string       `json:"message"`
	Problems     []string     `json:"errors,omitempty"`
	InvalidEdges []graph.Edge `json:"invalid_edges,omitempty"`
}

// encodeOutput encodes data in the specified format (json or toon).
func encodeOutput(data any, format string) (string, error) {
	switch format {
	case "toon":
		return gotoon.Encode(data)
	default: // "json"
		jsonBytes, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(jsonBytes), nil
	}
}

// NewServer creates a new MCP server backed by api.
func NewServer(api API) *Server {
	s := &Server{api: api}

	s.mcpServer = server.NewMCPServer(
		"flowpad",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	return s
}

func formatParam() mcp.ToolOption {
	return mcp.WithString("format",
		mcp.Description("Output format: 'json' (default) or 'toon' (token-efficient)"),
	)
}

func (s *Server) registerTools() {
	listTool := mcp.NewTool("flowpad_list",
		mcp.WithDescription("List every flowchart with its id, title and creation time."),
		formatParam(),
	)
	s.mcpServer.AddTool(listTool, s.handleList)

	getTool := mcp.NewTool("flowpad_get",
		mcp.WithDescription("Fetch a flowchart with all of its nodes and edges."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Flowchart id as returned by flowpad_list"),
		),
		mcp.WithBoolean("compact",
			mcp.Description("Return only title and node/edge counts (default: false)"),
		),
		formatParam(),
	)
	s.mcpServer.AddTool(getTool, s.handleGet)

	validateTool := mcp.NewTool("flowpad_validate",
		mcp.WithDescription("Check that every edge of a flowchart joins two existing nodes and that ids are unique."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Flowchart id"),
		),
		formatParam(),
	)
	s.mcpServer.AddTool(validateTool, s.handleValidate)

	outgoingTool := mcp.NewTool("flowpad_outgoing_edges",
		mcp.WithDescription("List the edges leaving a node."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Flowchart id"),
		),
		mcp.WithString("node_id",
			mcp.Required(),
			mcp.Description("Node id inside the flowchart"),
		),
		formatParam(),
	)
	s.mcpServer.AddTool(outgoingTool, s.handleOutgoingEdges)

	connectedTool := mcp.NewTool("flowpad_connected_nodes",
		mcp.WithDescription("List every node reachable from a node by following edges forward, starting with the node itself."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Flowchart id"),
		),
		mcp.WithString("node_id",
			mcp.Required(),
			mcp.Description("Node id to start from"),
		),
		formatParam(),
	)
	s.mcpServer.AddTool(connectedTool, s.handleConnectedNodes)

	createTool := mcp.NewTool("flowpad_create",
		mcp.WithDescription("Create an empty flowchart."),
		mcp.WithString("title",
			mcp.Description("Title (default: 'New Flowchart')"),
		),
		formatParam(),
	)
	s.mcpServer.AddTool(createTool, s.handleCreate)

	renameTool := mcp.NewTool("flowpad_rename",
		mcp.WithDescription("Change a flowchart's title. Nodes and edges are kept."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Flowchart id"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("New title"),
		),
		formatParam(),
	)
	s.mcpServer.AddTool(renameTool, s.handleRename)
}

// requireFormat reads and checks the format argument.
func requireFormat(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	format := request.GetString("format", "json")
	if format != "json" && format != "toon" {
		return "", mcp.NewToolResultError("format must be 'json' or 'toon'")
	}
	return format, nil
}

func result(data any, format string) (*mcp.CallToolResult, error) {
	output, err := encodeOutput(data, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode results: %v", err)), nil
	}
	return mcp.NewToolResultText(output), nil
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, errResult := requireFormat(request)
	if errResult != nil {
		return errResult, nil
	}

	list, err := s.api.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list flowcharts: %v", err)), nil
	}
	return result(list, format)
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	format, errResult := requireFormat(request)
	if errResult != nil {
		return errResult, nil
	}

	f, err := s.api.Fetch(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch flowchart: %v", err)), nil
	}

	if request.GetBool("compact", false) {
		return result(FlowchartOverview{
			ID:        f.ID,
			Title:     f.Title,
			NodeCount: len(f.Data.Nodes),
			EdgeCount: len(f.Data.Edges),
			CreatedAt: f.CreatedAt.Format("2006-01-02 15:04:05"),
		}, format)
	}
	return result(f, format)
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	format, errResult := requireFormat(request)
	if errResult != nil {
		return errResult, nil
	}

	report := ValidationReport{Valid: true, Message: "Graph is valid."}
	if err := s.api.Validate(ctx, id); err != nil {
		var verr *client.ValidationError
		if !errors.As(err, &verr) {
			return mcp.NewToolResultError(fmt.Sprintf("failed to validate flowchart: %v", err)), nil
		}
		report = ValidationReport{
			Message:      verr.Message,
			Problems:     verr.Problems,
			InvalidEdges: verr.InvalidEdges,
		}
	}
	return result(report, format)
}

func (s *Server) handleOutgoingEdges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	nodeID, err := request.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError("node_id parameter is required"), nil
	}
	format, errResult := requireFormat(request)
	if errResult != nil {
		return errResult, nil
	}

	edges, err := s.api.OutgoingEdges(ctx, id, nodeID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get outgoing edges: %v", err)), nil
	}
	return result(edges, format)
}

func (s *Server) handleConnectedNodes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	nodeID, err := request.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError("node_id parameter is required"), nil
	}
	format, errResult := requireFormat(request)
	if errResult != nil {
		return errResult, nil
	}

	nodes, err := s.api.ConnectedNodes(ctx, id, nodeID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get connected nodes: %v", err)), nil
	}
	return result(nodes, format)
}

func (s *Server) handleCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, errResult := requireFormat(request)
	if errResult != nil {
		return errResult, nil
	}
	title := request.GetString("title", graph.DefaultTitle)
	if title == "" {
		title = graph.DefaultTitle
	}

	f, err := s.api.Create(ctx, graph.Document{Title: title})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create flowchart: %v", err)), nil
	}
	return result(f.Summary(), format)
}

func (s *Server) handleRename(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title parameter is required"), nil
	}
	format, errResult := requireFormat(request)
	if errResult != nil {
		return errResult, nil
	}

	f, err := s.api.Rename(ctx, id, title)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to rename flowchart: %v", err)), nil
	}
	return result(f.Summary(), format)
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}
