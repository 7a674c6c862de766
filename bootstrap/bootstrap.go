// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/costgate/adapters/clock"
	gatehttp "github.com/artpar/costgate/adapters/http"
	"github.com/artpar/costgate/adapters/idgen"
	"github.com/artpar/costgate/adapters/memory"
	"github.com/artpar/costgate/adapters/metrics"
	speechclient "github.com/artpar/costgate/adapters/speech"
	"github.com/artpar/costgate/adapters/sqlite"
	"github.com/artpar/costgate/app"
	"github.com/artpar/costgate/config"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Config     *config.Holder
	Logger     zerolog.Logger
	Costs      *app.CostService
	Speech     *app.SpeechService
	Handler    *gatehttp.Handler
	HTTPServer *http.Server
	DB         *sqlite.DB
	Metrics    *metrics.Collector

	recorder *ArchiveRecorder
}

// Options provides optional configuration for application initialization.
type Options struct {
	ConfigPath string // YAML config file; falls back to environment variables
	HotReload  bool   // Watch the config file and SIGHUP for reloads
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	var holder *config.Holder
	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			h, err := config.NewHolder(opts.ConfigPath, bootLogger)
			if err != nil {
				return nil, err
			}
			holder = h
		}
	}
	if holder == nil {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			return nil, err
		}
		holder = config.NewStaticHolder(cfg, bootLogger)
	}

	cfg := holder.Get()
	logger := setupLogger(cfg.Logging)

	a := &App{
		Config: holder,
		Logger: logger,
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
		a.Metrics = collector
	}

	settings, err := guardSettings(cfg)
	if err != nil {
		return nil, err
	}

	costDeps := app.CostDeps{
		Ledger:  memory.NewLedger(memory.LedgerConfig{}),
		Clock:   clock.Real{},
		IDGen:   idgen.UUID{},
		Metrics: collector,
		Logger:  logger,
	}

	if cfg.Archive.Enabled {
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.DB = db
		a.recorder = NewArchiveRecorder(sqlite.NewCostArchive(db), cfg.Archive.BatchSize, cfg.Archive.FlushInterval, logger)
		costDeps.Recorder = a.recorder
		logger.Info().Str("dsn", cfg.Database.DSN).Msg("cost archive enabled")
	}

	a.Costs = app.NewCostService(costDeps, settings)

	if cfg.Speech.URL != "" {
		price, err := cfg.Speech.PriceAmount()
		if err != nil {
			return nil, err
		}
		provider := speechclient.New(speechclient.Config{
			URL:        cfg.Speech.URL,
			APIKey:     cfg.Speech.APIKey,
			Model:      cfg.Speech.Model,
			Voice:      cfg.Speech.Voice,
			PricePer1K: price,
			Timeout:    cfg.Speech.Timeout,
			Logger:     logger,
		})
		a.Speech = app.NewSpeechService(app.SpeechDeps{
			Costs:    a.Costs,
			Provider: provider,
			Metrics:  collector,
			Logger:   logger,
		})
		logger.Info().Str("url", cfg.Speech.URL).Msg("speech upstream configured")
	}

	a.Handler = gatehttp.NewHandler(a.Costs, a.Speech, adminPolicy(cfg), logger)

	router := gatehttp.NewRouterWithConfig(a.Handler, logger, gatehttp.RouterConfig{
		Metrics:     collector,
		MetricsPath: cfg.Metrics.Path,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Guard settings and the admin policy follow config reloads
	holder.OnChange(func(newCfg *config.Config) {
		newSettings, err := guardSettings(newCfg)
		if err != nil {
			logger.Error().Err(err).Msg("reloaded config has invalid guard settings, keeping old ones")
			return
		}
		a.Costs.UpdateSettings(newSettings)
		a.Handler.SetAdminPolicy(adminPolicy(newCfg))
	})

	if opts.HotReload && opts.ConfigPath != "" {
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watching unavailable")
		}
	}
	holder.WatchSignals()

	return a, nil
}

func guardSettings(cfg *config.Config) (app.GuardSettings, error) {
	threshold, err := cfg.Guard.ThresholdAmount()
	if err != nil {
		return app.GuardSettings{}, fmt.Errorf("guard threshold: %w", err)
	}
	return app.GuardSettings{
		Threshold:        threshold,
		DisableCostCheck: cfg.Guard.DisableCostCheck,
		AnonSalt:         cfg.Guard.AnonSalt,
		AnonPrefix:       cfg.Guard.AnonPrefix,
	}, nil
}

func adminPolicy(cfg *config.Config) gatehttp.AdminPolicy {
	return gatehttp.AdminPolicy{
		Environment: cfg.Admin.Environment,
		TokenHash:   cfg.Admin.TokenHash,
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	// Flush buffered cost records before the database goes away
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("archive recorder close error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	if a.Config != nil {
		a.Config.Stop()
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}
