package server

import (
	"context"
	"encoding/json"

	"github.com/raysh454/secboard/internal/app"
	"github.com/raysh454/secboard/internal/identity"
	"github.com/raysh454/secboard/internal/logging"
	"github.com/raysh454/secboard/internal/metrics"
)

// SummarySource serves the upstream dashboard summary.
type SummarySource interface {
	DashboardSummary(ctx context.Context) (json.RawMessage, error)
}

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	Sessions *app.Sessions
	Verifier *identity.Verifier

	// Metrics and Summary are optional.
	Metrics *metrics.Collector
	Summary SummarySource

	Logger logging.Logger
}

// ConfigFromApplication wires a Config from the shared services.
func ConfigFromApplication(a *app.Application) Config {
	cfg := Config{
		ListenAddr: a.Config.ListenAddr,
		Sessions:   a.Sessions,
		Verifier:   a.Verifier,
		Metrics:    a.Metrics,
		Logger:     a.Logger,
	}
	if a.API != nil {
		cfg.Summary = a.API
	}
	return cfg
}
