package main

import (
	"fmt"
	"os"

	"github.com/artpar/costgate/bootstrap"
	"github.com/artpar/costgate/config"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cost guard server",
	Long: `Start the CostGate server.

The server will:
  - Load configuration from costgate.yaml (or --config)
  - Or load configuration from COSTGATE_* environment variables
  - Expose the session cost ledger at /api/cost
  - Guard the paid speech upstream at /api/tts

Environment variables (for Docker deployments):
  COSTGATE_GUARD_THRESHOLD  - Session cost threshold in USD (default: 2.00)
  COSTGATE_GUARD_SALT       - Salt for anonymous identity hashing
  COSTGATE_SPEECH_URL       - Speech upstream base URL
  COSTGATE_SPEECH_API_KEY   - Speech upstream API key
  COSTGATE_DATABASE_DSN     - Database path (default: costgate.db)
  COSTGATE_SERVER_PORT      - Server port (default: 8080)
  COSTGATE_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  costgate serve
  costgate serve --config /etc/costgate/config.yaml
  costgate serve --hot-reload=false

  # Docker (env vars only):
  COSTGATE_SPEECH_URL=https://api.openai.com costgate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	if !hasConfigFile && !config.HasEnvConfig() {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Run 'costgate init' to create %s\n", cfgFile)
		fmt.Println("Option 2: Set COSTGATE_* environment variables")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  COSTGATE_GUARD_THRESHOLD=2.00 costgate serve")
		return nil
	}

	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		HotReload:  hasConfigFile && hotReload,
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	return app.Run()
}
