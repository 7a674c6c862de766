package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Initialize CostGate with a default configuration file.

A random salt for anonymous identity hashing is generated so that
hashed caller ids are not guessable across deployments.

Examples:
  costgate init
  costgate init --config /etc/costgate/config.yaml`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

const configTemplate = `# CostGate configuration
server:
  host: 0.0.0.0
  port: 8080

guard:
  # Per-session cost threshold in USD. Sessions at or above this spend
  # are blocked from further billed operations.
  threshold: "2.00"
  disable_cost_check: false
  anon_salt: "%s"
  anon_prefix: public

speech:
  # Base URL of an OpenAI-compatible speech endpoint. Leave empty to
  # disable the /api/tts surface.
  url: ""
  api_key: "${OPENAI_API_KEY}"
  model: tts-1
  voice: alloy
  price_per_1k_chars: "0.015"

archive:
  enabled: true
  batch_size: 100
  flush_interval: 10s

database:
  driver: sqlite
  dsn: costgate.db

admin:
  # "production" requires a bearer token (bcrypt hash below) for the
  # global ledger reset.
  environment: development
  # token_hash: "$2a$10$..."

logging:
  level: info
  format: json

metrics:
  enabled: true
`

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err == nil && !initForce {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgFile)
	}

	saltBytes := make([]byte, 16)
	if _, err := rand.Read(saltBytes); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	salt := hex.EncodeToString(saltBytes)

	content := fmt.Sprintf(configTemplate, salt)
	if err := os.WriteFile(cfgFile, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", cfgFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Set speech.url to your provider endpoint (optional)")
	fmt.Println("  2. Run 'costgate serve'")
	return nil
}
