package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lewtec/dupclassifier/internal/logger"
	"github.com/spf13/cobra"
)

// log is replaced in PersistentPreRunE once the flags are parsed
var log = slog.Default()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dupclassifier",
	Short: "Report frames that differ from the last reported one",
	Long: strings.TrimSpace(`
Watches a camera, or compares images you give it, and reports a frame as
different only when it differs enough from the last frame that was reported.
Duplicate frames are dropped, changes can be recorded, uploaded and published.
    `),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := logger.DefaultConfig()
		cfg.Level, _ = cmd.Flags().GetString("log-level")
		cfg.Format, _ = cmd.Flags().GetString("log-format")
		if file, _ := cmd.Flags().GetString("log-file"); file != "" {
			cfg.Output = "both"
			cfg.FilePath = file
		}
		l, err := logger.New(cfg, cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		log = l
		slog.SetDefault(l)
		return nil
	},
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file, rotated")
}
