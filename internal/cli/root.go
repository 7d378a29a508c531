// Package cli wires the faultline subcommands: serve, worker, migrate, seed.
package cli

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "faultline",
	Short: "Faultline error-tracking pipeline",
	Long: `faultline ingests SDK envelopes, groups errors into issues, and
derives performance analytics from transactions.

Run the HTTP ingest surface with "serve" and the async processors with
"worker". Both can run in multiple instances.`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}
