// Package cli provides the initialization shared by the ledger commands:
// environment, configuration, logging and the backend store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ledger/internal/backend"
	"ledger/internal/config"
	"ledger/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig(file string) (*config.Config, error) {
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the application logger from cfg and installs it as
// the slog default.
func SetupLogger(cfg *config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logCfg := log.DefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.LogFormat

	logger := log.New(logCfg)
	log.SetDefault(logger)
	return logger, nil
}

// App bundles what every command needs once bootstrapped.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	backend *backend.BackendResult
}

// Bootstrap loads the environment and configuration and sets up logging.
// The backend is opened on first use; callers must Close the returned App.
func Bootstrap(configFile string) (*App, error) {
	LoadEnvFile()

	cfg, err := LoadAndValidateConfig(configFile)
	if err != nil {
		return nil, err
	}
	logger, err := SetupLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Logger: logger}, nil
}

// Store opens the configured backend, once.
func (a *App) Store(ctx context.Context) (backend.Backend, error) {
	if a.backend != nil {
		return a.backend.Backend, nil
	}

	backendCfg, err := backend.FromAppConfig(a.Config)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(a.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		a.Logger.Error("Failed to open backend", log.FieldBackend, backendCfg.Type, log.FieldError, err)
		return nil, fmt.Errorf("open %s backend: %w", backendCfg.Type, err)
	}
	a.backend = result
	return result.Backend, nil
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	return a.backend.Close()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// IsCancelled reports whether err stems from an interrupted run.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
