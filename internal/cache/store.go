// Package cache keeps the last completed scan result across restarts.
//
// Every operation is best effort: write failures are logged and swallowed,
// and a missing or corrupt entry loads as nil. Callers never see an error.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raysh454/secboard/internal/model"
)

// DefaultKey is the fixed key the last scan is stored under.
const DefaultKey = "secboard.lastScan"

// Entry is a cached scan result with the time it was produced.
type Entry struct {
	Result    *model.ScanResult
	Timestamp time.Time
}

// Store persists at most one Entry per key.
type Store interface {
	Save(ctx context.Context, result *model.ScanResult, timestamp time.Time)
	Load(ctx context.Context) *Entry
	Clear(ctx context.Context)
}

// NamespacedKey scopes DefaultKey to one domain.
func NamespacedKey(domain string) string {
	if domain == "" {
		return DefaultKey
	}
	return DefaultKey + ":" + domain
}

// persisted is the on-disk layout: {"result": ..., "timestamp": "..."}.
type persisted struct {
	Result    *model.ScanResult `json:"result"`
	Timestamp string            `json:"timestamp"`
}

func encodeEntry(result *model.ScanResult, timestamp time.Time) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("nil result")
	}
	return json.Marshal(persisted{
		Result:    result,
		Timestamp: timestamp.UTC().Format(time.RFC3339Nano),
	})
}

func decodeEntry(data []byte) (*Entry, error) {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Result == nil {
		return nil, fmt.Errorf("entry has no result")
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("entry timestamp: %w", err)
	}
	if err := p.Result.Normalize(); err != nil {
		return nil, err
	}
	return &Entry{Result: p.Result, Timestamp: ts}, nil
}
