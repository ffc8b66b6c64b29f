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

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "List ingested courses",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runCourses()
	},
}

func init() {
	rootCmd.AddCommand(coursesCmd)
}

func runCourses() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, newLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	total, titles := a.RAG.Stats()
	fmt.Printf("Courses (%d):\n", total)
	for _, title := range titles {
		fmt.Printf("  - %s\n", title)
	}
	return nil
}
