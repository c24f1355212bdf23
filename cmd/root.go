package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmprep/interview-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "interview-cli",
	Short: "PM interview training content pipeline",
	Long:  "Extracts structured intelligence from podcast interview transcripts via LLM, caches it, and assembles a bank of grounded product-management interview questions.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
