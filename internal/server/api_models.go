package server

import (
	"github.com/raysh454/secboard/internal/model"
	"github.com/raysh454/secboard/internal/results"
	"github.com/raysh454/secboard/internal/scan"
)

// StartScanResponse identifies the session a POST /api/scan started.
type StartScanResponse struct {
	SessionID string `json:"session_id" example:"6f1c1e9a-3a53-4b8e-9b8e-2f3c0d1b7a10"`
}

// CancelScanResponse reports whether a running session was stopped.
type CancelScanResponse struct {
	Canceled bool `json:"canceled" example:"true"`
}

// ModuleResponse is one module of the current result with its derived views.
type ModuleResponse struct {
	Module    string                  `json:"module" example:"dnsSecurity"`
	Label     string                  `json:"label" example:"DNS Security"`
	HasErrors bool                    `json:"has_errors"`
	Severity  []results.SeverityCount `json:"severity_counts"`
	Data      model.ModuleResult      `json:"data"`
}

// StreamMessage is the first frame on /ws/scan: the full state snapshot.
// Later frames are scan.Event values.
type StreamMessage struct {
	Type  string     `json:"type" example:"snapshot"`
	State scan.State `json:"state"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status   string `json:"status" example:"ok"`
	Sessions int    `json:"sessions" example:"3"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}
