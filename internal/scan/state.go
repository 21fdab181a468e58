package scan

import (
	"time"

	"github.com/raysh454/secboard/internal/model"
	"github.com/raysh454/secboard/internal/results"
)

// Status is the coordinator-level status the presentation layer renders.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// SessionStatus tracks one start-and-poll run.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCanceled  SessionStatus = "canceled"
)

// Session is the ephemeral in-flight state of one scan request.
type Session struct {
	ID         string        `json:"id"`
	Status     SessionStatus `json:"status"`
	ScanID     string        `json:"scan_id,omitempty"`
	Domain     string        `json:"domain"`
	RetryCount int           `json:"retry_count"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at,omitempty"`
}

// State is a read-only snapshot of the coordinator.
type State struct {
	Status       Status            `json:"status"`
	Result       *model.ScanResult `json:"result"`
	ErrorMessage string            `json:"error,omitempty"`
	LastScanTime *time.Time        `json:"last_scan_time,omitempty"`
	Session      *Session          `json:"session,omitempty"`

	// Changes lists email-record edits relative to the result replaced by
	// the latest scan.
	Changes []results.RecordChange `json:"changes,omitempty"`
}

type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
)

// Event is pushed to subscribers on every state transition.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`

	RetryCount int `json:"retry_count,omitempty"`
	MaxRetries int `json:"max_retries,omitempty"`

	Domain string    `json:"domain,omitempty"`
	Time   time.Time `json:"time"`
}
