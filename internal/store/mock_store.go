// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows recorder and console tests to run without SQLite

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.RWMutex
	events    []*FleetEvent
	sightings []*Sighting
	closed    bool
	// Err, when set, is returned by every write.
	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// AppendEvent stores a copy of ev.
func (m *MockStore) AppendEvent(_ context.Context, ev *FleetEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writableLocked(); err != nil {
		return err
	}
	if ev.Identity == "" || ev.Kind == "" {
		return fmt.Errorf("%w: event needs identity and kind", ErrInvalid)
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	e := *ev
	m.events = append(m.events, &e)
	return nil
}

// RecordSighting stores a copy of sg.
func (m *MockStore) RecordSighting(_ context.Context, sg *Sighting) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writableLocked(); err != nil {
		return err
	}
	if sg.Identity == "" || sg.Target == "" {
		return fmt.Errorf("%w: sighting needs identity and target", ErrInvalid)
	}
	if sg.Source == "" {
		sg.Source = SourceMessage
	}
	if sg.ID == "" {
		sg.ID = uuid.New().String()
	}
	if sg.Timestamp.IsZero() {
		sg.Timestamp = time.Now()
	}
	s := *sg
	m.sightings = append(m.sightings, &s)
	return nil
}

// ListSightings returns copies, newest first.
func (m *MockStore) ListSightings(_ context.Context, limit int) ([]*Sighting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Sighting, 0, len(m.sightings))
	for _, sg := range m.sightings {
		s := *sg
		out = append(out, &s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// ListEvents returns copies, newest first.
func (m *MockStore) ListEvents(_ context.Context, identity string, limit int) ([]*FleetEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*FleetEvent
	for _, ev := range m.events {
		if identity != "" && ev.Identity != identity {
			continue
		}
		e := *ev
		out = append(out, &e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Close marks the store closed; later writes fail.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockStore) writableLocked() error {
	if m.closed {
		return errors.New("store is closed")
	}
	return m.Err
}
