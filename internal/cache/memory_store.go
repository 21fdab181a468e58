package cache

import (
	"context"
	"sync"
	"time"

	"github.com/raysh454/secboard/internal/model"
)

// MemoryStore keeps the entry as encoded JSON so loads return independent
// copies, the same way a durable store would.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Save(_ context.Context, result *model.ScanResult, timestamp time.Time) {
	raw, err := encodeEntry(result, timestamp)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.data = raw
	m.mu.Unlock()
}

func (m *MemoryStore) Load(context.Context) *Entry {
	m.mu.Lock()
	raw := m.data
	m.mu.Unlock()
	if raw == nil {
		return nil
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		return nil
	}
	return entry
}

func (m *MemoryStore) Clear(context.Context) {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
}
