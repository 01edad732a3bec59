package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leadscraper",
	Short: "Local-business lead ingestion and enrichment",
	Long:  "Ingests US local-business listings, deduplicates them, and enriches each record with website, contact, social, review and tech-stack data discovered on the public web.",
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
