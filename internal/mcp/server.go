// Package mcp exposes the course search tools over the Model Context
// Protocol so external MCP clients can query the same vector store the
// chat assistant uses.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/tools"
)

// Server wraps the MCP SDK server around the course tools.
type Server struct {
	mcpServer *mcp.Server
	search    *tools.SearchTool
	outline   *tools.OutlineTool
	logger    log.Logger
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	Search  *tools.SearchTool
	Outline *tools.OutlineTool
	Logger  log.Logger
}

// NewServer creates a new MCP server with both course tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Search == nil || cfg.Outline == nil {
		return nil, fmt.Errorf("both course tools are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		search:  cfg.Search,
		outline: cfg.Outline,
		logger:  logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport.
// This is a blocking call that handles all MCP protocol communication.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	searchSchema, err := jsonschema.For[tools.SearchInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", tools.SearchToolName, err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: tools.SearchToolName,
		Description: "Search course materials with smart course name matching " +
			"and optional lesson filtering.",
		InputSchema: searchSchema,
	}, s.handleSearch)

	outlineSchema, err := jsonschema.For[tools.OutlineInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", tools.OutlineToolName, err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: tools.OutlineToolName,
		Description: "Get a course outline: title, link and the complete " +
			"numbered lesson list. Course name accepts partial matches.",
		InputSchema: outlineSchema,
	}, s.handleOutline)

	return nil
}

// handleSearch handles the search_course_content MCP tool call.
// Expected conditions (no matches, unknown course) come back as plain
// text from the tool, so everything non-error is a successful result.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in tools.SearchInput) (*mcp.CallToolResult, any, error) {
	args, err := toArgs(in)
	if err != nil {
		return nil, nil, err
	}
	text, err := s.search.Execute(ctx, args)
	if err != nil {
		return nil, nil, fmt.Errorf("%s failed: %w", tools.SearchToolName, err)
	}
	return textResult(text), nil, nil
}

// handleOutline handles the get_course_outline MCP tool call.
func (s *Server) handleOutline(ctx context.Context, _ *mcp.CallToolRequest, in tools.OutlineInput) (*mcp.CallToolResult, any, error) {
	args, err := toArgs(in)
	if err != nil {
		return nil, nil, err
	}
	text, err := s.outline.Execute(ctx, args)
	if err != nil {
		return nil, nil, fmt.Errorf("%s failed: %w", tools.OutlineToolName, err)
	}
	return textResult(text), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// toArgs converts a typed tool input to the argument map form.
func toArgs(in any) (map[string]any, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encoding tool input: %w", err)
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decoding tool input: %w", err)
	}
	return args, nil
}
