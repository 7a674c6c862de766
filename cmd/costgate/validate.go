package main

import (
	"fmt"
	"os"

	"github.com/artpar/costgate/adapters/sqlite"
	"github.com/artpar/costgate/config"
	"github.com/spf13/cobra"
)

const (
	checkMark = "✓"
	crossMark = "✗"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the CostGate configuration file.

Checks:
  - YAML syntax is valid
  - Threshold and pricing parse as decimal USD
  - Database is writable (optional)

Examples:
  costgate validate
  costgate validate --config /etc/costgate/config.yaml`,
	RunE: runValidate,
}

var validateCheckDatabase bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if database is writable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config valid\n", crossMark)
		return err
	}
	fmt.Printf("  %s Config valid\n", checkMark)

	threshold, _ := cfg.Guard.ThresholdAmount()
	fmt.Printf("  %s Threshold: %s USD\n", checkMark, threshold)
	if cfg.Guard.DisableCostCheck {
		fmt.Printf("  %s Cost checking is DISABLED\n", crossMark)
	}
	if cfg.Speech.URL != "" {
		fmt.Printf("  %s Speech upstream: %s\n", checkMark, cfg.Speech.URL)
	}

	if validateCheckDatabase {
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			fmt.Printf("  %s Database writable\n", crossMark)
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			fmt.Printf("  %s Database writable\n", crossMark)
			return fmt.Errorf("migrate database: %w", err)
		}
		fmt.Printf("  %s Database writable: %s\n", checkMark, cfg.Database.DSN)
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}
