package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miriamhowe1992-eng/smilemap/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "smilemap",
	Short: "UK dental practice directory pipeline",
	Long:  "Crawls the NHS dental directory, classifies patient availability, snapshots the dataset nightly, and serves the searchable practice API.",
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
