package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/miriamhowe1992-eng/smilemap/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml with default settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		const path = "config.yaml"

		if !initForce {
			if _, err := os.Stat(path); err == nil {
				return eris.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}

		starter := config.Config{
			Store: config.StoreConfig{
				Driver:      "sqlite",
				DatabaseURL: "smilemap.db",
			},
			Crawl: config.CrawlConfig{
				SeedFile:      "outputs/practice-index.json",
				Concurrency:   6,
				TimeoutSecs:   15,
				MaxAttempts:   3,
				PacingMS:      250,
				UserAgent:     "Mozilla/5.0 (compatible; SmileMapBot/1.0; +https://www.smilemap.co.uk)",
				DirectoryHost: "nhs.uk",
			},
			Geocode: config.GeocodeConfig{
				BaseURL:     "https://api.postcodes.io",
				TimeoutSecs: 25,
				RateRPS:     10,
			},
			Output: config.OutputConfig{Dir: "outputs"},
			Server: config.ServerConfig{Port: 8080},
			Log:    config.LogConfig{Level: "info", Format: "json"},
		}

		data, err := yaml.Marshal(starter)
		if err != nil {
			return eris.Wrap(err, "marshal starter config")
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", path)
		}

		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config.yaml")
	rootCmd.AddCommand(initCmd)
}
