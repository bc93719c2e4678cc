package token

import (
	"context"
	"sync"
	"time"
)

// Record is one device's persisted token set.
type Record struct {
	Access    string    `json:"access"`
	Refresh   string    `json:"refresh,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Fallback is the durable secondary token store, read when the auth cookies
// are absent (cleared by browser privacy settings, for example). Records are
// keyed by the device ID cookie.
type Fallback interface {
	Get(ctx context.Context, deviceID string) (*Record, error)
	Put(ctx context.Context, deviceID string, rec Record) error
	Delete(ctx context.Context, deviceID string) error
}

// MemoryFallback is an in-process Fallback for development and tests.
type MemoryFallback struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time // injectable clock for testing
}

type memoryEntry struct {
	rec     Record
	touched time.Time
}

// NewMemoryFallback creates a MemoryFallback whose records live as long as
// the auth cookies do.
func NewMemoryFallback() *MemoryFallback {
	return &MemoryFallback{
		records: make(map[string]memoryEntry),
		ttl:     CookieMaxAge,
		now:     time.Now,
	}
}

func (m *MemoryFallback) Get(_ context.Context, deviceID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.records[deviceID]
	if !ok {
		return nil, nil
	}
	if m.now().Sub(e.touched) > m.ttl {
		delete(m.records, deviceID)
		return nil, nil
	}
	rec := e.rec
	return &rec, nil
}

func (m *MemoryFallback) Put(_ context.Context, deviceID string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[deviceID] = memoryEntry{rec: rec, touched: m.now()}
	return nil
}

func (m *MemoryFallback) Delete(_ context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, deviceID)
	return nil
}
