package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/coursechat/coursechat/internal/app"
	"github.com/coursechat/coursechat/internal/config"
	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/mcp"
	"github.com/coursechat/coursechat/internal/tools"
	"github.com/coursechat/coursechat/internal/vectorstore"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the course search tools over MCP (stdio)",
	Long: `Serve the course search tools over the Model Context Protocol.

Exposes search_course_content and get_course_outline on stdio so MCP
clients (editors, agents) can query the ingested course materials
directly.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runMCP()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logs must not touch stdout: that is the MCP transport.
	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	srv, err := newMCPServer(a.Store, logger)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	logger.Info("MCP server ready", "name", "coursechat", "transport", "stdio")
	if err := srv.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

func newMCPServer(store *vectorstore.Store, logger log.Logger) (*mcp.Server, error) {
	return mcp.NewServer(mcp.Config{
		Name:    "coursechat",
		Version: AppVersion,
		Search:  tools.NewSearchTool(store, logger),
		Outline: tools.NewOutlineTool(store, logger),
		Logger:  logger,
	})
}
