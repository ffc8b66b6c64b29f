package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coursechat/coursechat/internal/app"
	"github.com/coursechat/coursechat/internal/config"
)

var flagIngestClear bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Load course documents into the vector store",
	Long: `Load course documents into the vector store.

Reads every .txt file in the given directory (or the configured docs
directory) and indexes its chunks for search. Courses already present
are replaced with the file's current content; use --clear to drop
everything first and rebuild from scratch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runIngest(args)
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&flagIngestClear, "clear", false,
		"clear existing data before ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	dir := cfg.DocsDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no docs directory: pass one as an argument or set docs_dir")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	courses, chunks, err := a.RAG.IngestDirectory(ctx, dir, flagIngestClear)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	fmt.Printf("Ingested %d courses (%d chunks) from %s\n", courses, chunks, dir)
	return nil
}
