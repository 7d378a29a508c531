package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/faultline-systems/faultline/internal/seeder"
)

var (
	seedConfigFile string
	seedURL        string
	seedProject    string
	seedKey        string
	seedCount      int
	seedInterval   time.Duration
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Post synthetic envelopes to a running ingest server",
	Long: `seed generates realistic error and transaction envelopes and posts
them to an ingest endpoint. Scenario mix and volume come from a YAML file,
with flags overriding individual values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := seeder.LoadConfig(seedConfigFile)
		if err != nil {
			return fmt.Errorf("load seed config: %w", err)
		}

		if cmd.Flags().Changed("url") {
			cfg.URL = seedURL
		}
		if cmd.Flags().Changed("project") {
			cfg.Project = seedProject
		}
		if cmd.Flags().Changed("key") {
			cfg.Key = seedKey
		}
		if cmd.Flags().Changed("count") {
			cfg.Count = seedCount
		}
		if cmd.Flags().Changed("interval") {
			cfg.Interval = seedInterval
		}

		return seeder.NewRunner(cfg).Run()
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedConfigFile, "scenarios", "", "YAML scenario file (default: built-in mix)")
	seedCmd.Flags().StringVar(&seedURL, "url", "http://localhost:8200", "ingest server base URL")
	seedCmd.Flags().StringVar(&seedProject, "project", "backend", "project slug to post as")
	seedCmd.Flags().StringVar(&seedKey, "key", "dev-public-key", "project public key")
	seedCmd.Flags().IntVar(&seedCount, "count", 100, "number of envelopes to send")
	seedCmd.Flags().DurationVar(&seedInterval, "interval", 0, "pause between envelopes")

	rootCmd.AddCommand(seedCmd)
}
