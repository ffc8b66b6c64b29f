// Package cmd wires the CLI commands for the course assistant.
package cmd

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/coursechat/coursechat/internal/log"
)

var (
	flagLogLevel string
	flagLogJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "coursechat",
	Short: "RAG-powered assistant for course materials",
	Long: `coursechat answers questions about course materials.

It ingests course documents into a local vector store and serves a
chat API where the model searches that store with tools before
answering. Run 'coursechat ingest' to load documents, then
'coursechat serve' to start the API.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// .env is optional; real env vars take precedence anyway.
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file found, using environment variables")
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false,
		"emit logs as JSON")
}

// newLogger builds the process logger from the persistent flags.
// Unrecognized levels fall back to info.
func newLogger() log.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(flagLogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return log.New(log.Config{
		Level: level,
		JSON:  flagLogJSON,
	})
}
