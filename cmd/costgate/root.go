package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "costgate",
	Short: "Session cost guard for paid AI upstreams",
	Long: `CostGate meters per-caller spend on paid upstream services (text to
speech, language models) and blocks further billed operations once a
session reaches the configured cost threshold.

Quick start:
  costgate init      # Write a default config file
  costgate serve     # Start the guard server

Management:
  costgate costs     # Inspect archived cost records
  costgate validate  # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "costgate.yaml", "config file path")
}
