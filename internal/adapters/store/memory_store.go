package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mikey/decoy-alerts/internal/core"
)

// MemoryStore is an in-memory registry and event log
type MemoryStore struct {
	mu     sync.RWMutex
	decoys map[string]core.Decoy
	events []core.Event
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		decoys: make(map[string]core.Decoy),
	}
}

// LookupDecoy returns the decoy registered for address
func (m *MemoryStore) LookupDecoy(_ context.Context, address string) (*core.Decoy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.decoys[NormalizeAddress(address)]
	if !ok {
		return nil, core.ErrDecoyNotFound
	}
	return &d, nil
}

// UpsertDecoy creates or replaces a decoy
func (m *MemoryStore) UpsertDecoy(_ context.Context, decoy *core.Decoy) error {
	key := NormalizeAddress(decoy.Address)
	if key == "" {
		return fmt.Errorf("decoy address is required")
	}

	d := *decoy
	d.Address = key
	d.CustomerEmail = strings.TrimSpace(d.CustomerEmail)
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	m.decoys[key] = d
	m.mu.Unlock()
	return nil
}

// ListDecoys returns every decoy with its event count, newest first
func (m *MemoryStore) ListDecoys(_ context.Context) ([]*core.DecoyStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int64)
	for _, e := range m.events {
		counts[NormalizeAddress(e.DecoyAddress)]++
	}

	decoys := make([]*core.DecoyStats, 0, len(m.decoys))
	for key, d := range m.decoys {
		decoys = append(decoys, &core.DecoyStats{Decoy: d, Alerts: counts[key]})
	}
	sort.Slice(decoys, func(i, j int) bool {
		return decoys[i].CreatedAt.After(decoys[j].CreatedAt)
	})
	return decoys, nil
}

// RecordEvent appends an event and returns its id
func (m *MemoryStore) RecordEvent(_ context.Context, event *core.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := *event
	e.ID = int64(len(m.events) + 1)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.events = append(m.events, e)
	event.ID = e.ID
	return e.ID, nil
}

// RecentEvents returns up to limit events, newest first
func (m *MemoryStore) RecentEvents(_ context.Context, limit int) ([]*core.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	events := make([]*core.Event, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(events) < limit; i-- {
		e := m.events[i]
		events = append(events, &e)
	}
	return events, nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
