// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers schema creation, event and sighting persistence, ordering and limits

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "ledger.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was created in nested directory")
}

func TestNewSQLiteStore_Memory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.AppendEvent(ctx, &FleetEvent{Identity: "bot1@example.com", Kind: "success", Detail: "connected"}))
	events, err := s.ListEvents(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.RecordSighting(ctx, &Sighting{Identity: "bot1@example.com", Target: "Notch", Lobby: "mini42A"}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	sightings, err := s.ListSightings(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sightings, 1)
	assert.Equal(t, "mini42A", sightings[0].Lobby)
	assert.Equal(t, SourceMessage, sightings[0].Source)
}

func TestSQLiteStore_Sightings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC)

	for i, src := range []string{SourceMessage, SourcePlayerJoined, SourceEntitySpawn} {
		require.NoError(t, s.RecordSighting(ctx, &Sighting{
			Identity:  "bot1@example.com",
			Target:    "Notch",
			Lobby:     "mini42A",
			Source:    src,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := s.ListSightings(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, SourceEntitySpawn, got[0].Source, "newest first")
	assert.Equal(t, SourcePlayerJoined, got[1].Source)
	assert.True(t, got[0].Timestamp.Equal(base.Add(2*time.Second)))
	assert.NotEmpty(t, got[0].ID)
}

func TestSQLiteStore_SightingOrderAcrossSubsecondTimes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordSighting(ctx, &Sighting{Identity: "a", Target: "Notch", Lobby: "whole", Timestamp: base}))
	require.NoError(t, s.RecordSighting(ctx, &Sighting{Identity: "a", Target: "Notch", Lobby: "fraction", Timestamp: base.Add(-100 * time.Millisecond)}))

	got, err := s.ListSightings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "whole", got[0].Lobby)
}

func TestSQLiteStore_RejectsUnknownSource(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordSighting(context.Background(), &Sighting{Identity: "a", Target: "Notch", Source: "telepathy"})
	assert.Error(t, err)
}

func TestSQLiteStore_Events(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendEvent(ctx, &FleetEvent{Identity: "bot1@example.com", Kind: "success", Detail: "connected", Timestamp: base}))
	require.NoError(t, s.AppendEvent(ctx, &FleetEvent{Identity: "bot2@example.com", Kind: "failure", Detail: "kicked", Timestamp: base.Add(time.Second)}))
	require.NoError(t, s.AppendEvent(ctx, &FleetEvent{Identity: "bot1@example.com", Kind: "failure", Detail: "disconnected", Timestamp: base.Add(2 * time.Second)}))

	all, err := s.ListEvents(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bot1, err := s.ListEvents(ctx, "bot1@example.com", 10)
	require.NoError(t, err)
	require.Len(t, bot1, 2)
	assert.Equal(t, "disconnected", bot1[0].Detail)
	assert.Equal(t, "connected", bot1[1].Detail)
}

func TestSQLiteStore_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.AppendEvent(ctx, &FleetEvent{Kind: "success"}), ErrInvalid)
	assert.ErrorIs(t, s.RecordSighting(ctx, &Sighting{Identity: "a"}), ErrInvalid)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, clampLimit(0))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, maxListLimit, clampLimit(10_000))
}
