package scan

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/raysh454/secboard/internal/scanapi"
)

func TestStartErrorMessage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"service message", fmt.Errorf("wrap: %w", &scanapi.APIError{Op: "start scan", StatusCode: 400, Message: "Domain not allowed"}), "Domain not allowed"},
		{"plain error", errors.New("dial tcp: refused"), "dial tcp: refused"},
		{"empty error", errors.New(""), MsgStartFallback},
		{"nil", nil, MsgStartFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := startErrorMessage(tt.err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()
	fallback := mustTime(t, "2026-01-01T00:00:00Z")
	if got := parseTimestamp("", fallback); !got.Equal(fallback) {
		t.Errorf("empty: expected fallback, got %v", got)
	}
	if got := parseTimestamp("yesterday", fallback); !got.Equal(fallback) {
		t.Errorf("garbage: expected fallback, got %v", got)
	}
	want := mustTime(t, "2026-10-18T08:00:00.5Z")
	if got := parseTimestamp("2026-10-18T08:00:00.5Z", fallback); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}
