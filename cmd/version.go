package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/coursechat/coursechat/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		printVersion(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printVersion(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "coursechat %s\n", AppVersion)
	fmt.Fprintf(w, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", GitCommit)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Provider: %s\n", cfg.Provider)
	fmt.Fprintf(w, "  Model: %s\n", cfg.ModelName)
	fmt.Fprintf(w, "  Embedder: %s\n", cfg.EmbedderModel)
	fmt.Fprintf(w, "  Data dir: %s\n", cfg.DataDir)
	fmt.Fprintf(w, "  Docs dir: %s\n", cfg.DocsDir)

	// Show key presence without leaking the full value.
	if key := os.Getenv("GEMINI_API_KEY"); len(key) >= 8 {
		fmt.Fprintf(w, "  GEMINI_API_KEY: %s...%s (configured)\n", key[:4], key[len(key)-4:])
	} else if key != "" {
		fmt.Fprintln(w, "  GEMINI_API_KEY: (configured)")
	} else {
		fmt.Fprintln(w, "  GEMINI_API_KEY: Not set")
	}
}
