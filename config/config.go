// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/costgate/domain/money"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Guard    GuardConfig    `yaml:"guard"`
	Speech   SpeechConfig   `yaml:"speech"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Database DatabaseConfig `yaml:"database"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// GuardConfig configures the session cost guard.
type GuardConfig struct {
	Threshold        string `yaml:"threshold"`          // decimal USD, e.g. "2.00"
	DisableCostCheck bool   `yaml:"disable_cost_check"` // skip admission checks entirely
	AnonSalt         string `yaml:"anon_salt"`          // salt for anonymous identity hashing
	AnonPrefix       string `yaml:"anon_prefix"`        // namespace tag, e.g. "public"
}

// ThresholdAmount parses the configured threshold.
func (g GuardConfig) ThresholdAmount() (money.Amount, error) {
	return money.Parse(g.Threshold)
}

// SpeechConfig configures the text-to-speech upstream.
type SpeechConfig struct {
	URL           string        `yaml:"url"`
	APIKey        string        `yaml:"api_key,omitempty"`
	Model         string        `yaml:"model"`
	Voice         string        `yaml:"voice"`
	PricePer1K    string        `yaml:"price_per_1k_chars"` // decimal USD per 1000 input characters
	Timeout       time.Duration `yaml:"timeout"`
}

// PriceAmount parses the configured per-1k-characters price.
func (s SpeechConfig) PriceAmount() (money.Amount, error) {
	return money.Parse(s.PricePer1K)
}

// ArchiveConfig configures write-behind archival of cost records.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite"
	DSN    string `yaml:"dsn"`
}

// AdminConfig configures administrative actions (global ledger reset).
type AdminConfig struct {
	// Environment gates destructive admin actions; "production" requires a token.
	Environment string `yaml:"environment"`
	// TokenHash is the bcrypt hash of the admin bearer token.
	TokenHash string `yaml:"token_hash,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Environment variables always override file-based configuration
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	COSTGATE_SERVER_HOST        - Server host (default: 0.0.0.0)
//	COSTGATE_SERVER_PORT        - Server port (default: 8080)
//	COSTGATE_GUARD_THRESHOLD    - Session cost threshold in USD (default: 2.00)
//	COSTGATE_GUARD_DISABLE      - Disable cost checking (default: false)
//	COSTGATE_GUARD_SALT         - Salt for anonymous identity hashing
//	COSTGATE_GUARD_ANON_PREFIX  - Anonymous identity prefix (default: public)
//	COSTGATE_SPEECH_URL         - Speech upstream base URL
//	COSTGATE_SPEECH_API_KEY     - Speech upstream API key
//	COSTGATE_SPEECH_PRICE       - USD per 1000 characters (default: 0.015)
//	COSTGATE_DATABASE_DSN       - Database path (default: costgate.db)
//	COSTGATE_ADMIN_ENVIRONMENT  - Deployment environment (default: development)
//	COSTGATE_LOG_LEVEL          - Log level: debug, info, warn, error
//	COSTGATE_LOG_FORMAT         - Log format: json or console
//	COSTGATE_METRICS_ENABLED    - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// HasEnvConfig reports whether any COSTGATE_* environment variable is set.
func HasEnvConfig() bool {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "COSTGATE_") {
			return true
		}
	}
	return false
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies COSTGATE_* environment variables to the config.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("COSTGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("COSTGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("COSTGATE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("COSTGATE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Guard configuration
	if v := os.Getenv("COSTGATE_GUARD_THRESHOLD"); v != "" {
		cfg.Guard.Threshold = v
	}
	if v := os.Getenv("COSTGATE_GUARD_DISABLE"); v != "" {
		cfg.Guard.DisableCostCheck = parseBool(v)
	}
	if v := os.Getenv("COSTGATE_GUARD_SALT"); v != "" {
		cfg.Guard.AnonSalt = v
	}
	if v := os.Getenv("COSTGATE_GUARD_ANON_PREFIX"); v != "" {
		cfg.Guard.AnonPrefix = v
	}

	// Speech configuration
	if v := os.Getenv("COSTGATE_SPEECH_URL"); v != "" {
		cfg.Speech.URL = v
	}
	if v := os.Getenv("COSTGATE_SPEECH_API_KEY"); v != "" {
		cfg.Speech.APIKey = v
	}
	if v := os.Getenv("COSTGATE_SPEECH_MODEL"); v != "" {
		cfg.Speech.Model = v
	}
	if v := os.Getenv("COSTGATE_SPEECH_VOICE"); v != "" {
		cfg.Speech.Voice = v
	}
	if v := os.Getenv("COSTGATE_SPEECH_PRICE"); v != "" {
		cfg.Speech.PricePer1K = v
	}
	if v := os.Getenv("COSTGATE_SPEECH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Speech.Timeout = d
		}
	}

	// Archive configuration
	if v := os.Getenv("COSTGATE_ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = parseBool(v)
	}

	// Database configuration
	if v := os.Getenv("COSTGATE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("COSTGATE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Admin configuration
	if v := os.Getenv("COSTGATE_ADMIN_ENVIRONMENT"); v != "" {
		cfg.Admin.Environment = v
	}
	if v := os.Getenv("COSTGATE_ADMIN_TOKEN_HASH"); v != "" {
		cfg.Admin.TokenHash = v
	}

	// Logging configuration
	if v := os.Getenv("COSTGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("COSTGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("COSTGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("COSTGATE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}

	if cfg.Guard.Threshold == "" {
		cfg.Guard.Threshold = "2.00"
	}
	if cfg.Guard.AnonPrefix == "" {
		cfg.Guard.AnonPrefix = "public"
	}

	if cfg.Speech.Model == "" {
		cfg.Speech.Model = "tts-1"
	}
	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = "alloy"
	}
	if cfg.Speech.PricePer1K == "" {
		cfg.Speech.PricePer1K = "0.015"
	}
	if cfg.Speech.Timeout == 0 {
		cfg.Speech.Timeout = 60 * time.Second
	}

	if cfg.Archive.BatchSize == 0 {
		cfg.Archive.BatchSize = 100
	}
	if cfg.Archive.FlushInterval == 0 {
		cfg.Archive.FlushInterval = 10 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "costgate.db"
	}

	if cfg.Admin.Environment == "" {
		cfg.Admin.Environment = "development"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if _, err := cfg.Guard.ThresholdAmount(); err != nil {
		return fmt.Errorf("guard.threshold: %w", err)
	}
	if t, _ := cfg.Guard.ThresholdAmount(); t.IsNegative() {
		return fmt.Errorf("guard.threshold must not be negative")
	}

	if _, err := cfg.Speech.PriceAmount(); err != nil {
		return fmt.Errorf("speech.price_per_1k_chars: %w", err)
	}

	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[cfg.Admin.Environment] {
		return fmt.Errorf("admin.environment must be development, staging or production, got %q", cfg.Admin.Environment)
	}

	if cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be 'sqlite', got %q", cfg.Database.Driver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}

	if cfg.Admin.Environment == "production" && cfg.Guard.AnonSalt == "" {
		return fmt.Errorf("guard.anon_salt is required in production")
	}

	return nil
}
