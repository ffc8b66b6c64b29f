package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coursechat/coursechat/api"
	"github.com/coursechat/coursechat/internal/app"
	"github.com/coursechat/coursechat/internal/config"
)

var flagServeAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server.

Ingests any new course documents from the configured docs directory,
then serves /api/query and /api/courses until interrupted.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "",
		"listen address (defaults to the configured addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	logger.Info("starting coursechat", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// Sync the store with the docs directory before serving.
	if cfg.DocsDir != "" {
		courses, chunks, err := a.RAG.IngestDirectory(ctx, cfg.DocsDir, false)
		if err != nil {
			logger.Warn("startup ingestion failed", "error", err)
		} else if courses > 0 {
			logger.Info("loaded course documents", "courses", courses, "chunks", chunks)
		}
	}

	addr := flagServeAddr
	if addr == "" {
		addr = cfg.Addr
	}

	srv := api.NewServer(a.RAG, logger)
	return srv.Run(ctx, addr)
}
