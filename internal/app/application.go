package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raysh454/secboard/internal/cache"
	"github.com/raysh454/secboard/internal/identity"
	"github.com/raysh454/secboard/internal/logging"
	"github.com/raysh454/secboard/internal/metrics"
	"github.com/raysh454/secboard/internal/scanapi"
	"github.com/raysh454/secboard/internal/webclient"
)

// Application is the global runtime state container. It holds config and the
// services shared across modules. Pass Application into modules that need
// access to the global state rather than using package-level variables.
type Application struct {
	Config *Config
	Logger logging.Logger

	Metrics   *metrics.Collector
	WebClient webclient.WebClient
	API       *scanapi.Client
	Cache     *cache.SQLiteStore
	Sessions  *Sessions

	// Verifier is nil when no token key is configured.
	Verifier *identity.Verifier
}

// NewApplication builds every shared service from cfg.
func NewApplication(ctx context.Context, cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("app")
	}

	a := &Application{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(nil),
	}

	wc, err := webclient.NewNetHTTPClient(cfg.WebClient, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("new webclient: %w", err)
	}
	a.WebClient = wc

	api, err := scanapi.New(cfg.API, wc, logger)
	if err != nil {
		_ = wc.Close()
		return nil, fmt.Errorf("new scan api client: %w", err)
	}
	a.API = api

	if cfg.CachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o755); err != nil {
			logger.Warn("creating cache directory", logging.Field{Key: "path", Value: cfg.CachePath}, logging.Field{Key: "error", Value: err.Error()})
		}
		store, err := cache.OpenSQLite(ctx, cfg.CachePath, logger, cache.WithMetrics(a.Metrics))
		if err != nil {
			_ = wc.Close()
			return nil, fmt.Errorf("open cache: %w", err)
		}
		a.Cache = store
	}

	if cfg.Auth.HMACSecret != "" || cfg.AuthKeyFile != "" {
		v, err := identity.NewVerifierFromFiles(cfg.Auth, cfg.AuthKeyFile)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("new token verifier: %w", err)
		}
		a.Verifier = v
	}

	a.Sessions = NewSessions(cfg.Scan, api, a.Cache, logger, a.Metrics)
	return a, nil
}

// Shutdown stops every scan session and releases the cache and HTTP client.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Sessions.Close() }()
	select {
	case err := <-done:
		if err != nil {
			a.Logger.Info("sessions shutdown returned error", logging.Field{Key: "error", Value: err.Error()})
		}
	case <-shutdownCtx.Done():
		a.Logger.Warn("sessions shutdown timed out")
	}

	return a.closeResources()
}

func (a *Application) closeResources() error {
	var firstErr error
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			firstErr = fmt.Errorf("close cache: %w", err)
		}
	}
	if a.WebClient != nil {
		if err := a.WebClient.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close webclient: %w", err)
		}
	}
	return firstErr
}
