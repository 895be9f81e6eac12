// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides fleet event and sighting persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS fleet_events (
			id TEXT PRIMARY KEY,
			identity TEXT NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL,
			ts TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_fleet_events_identity_ts
			ON fleet_events(identity, ts);

		CREATE TABLE IF NOT EXISTS sightings (
			id TEXT PRIMARY KEY,
			identity TEXT NOT NULL,
			target TEXT NOT NULL,
			lobby TEXT NOT NULL,
			source TEXT NOT NULL,
			ts TEXT NOT NULL,

			CHECK (source IN ('message', 'player_joined', 'entity_spawn'))
		);

		CREATE INDEX IF NOT EXISTS idx_sightings_ts ON sightings(ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendEvent stores a fleet event, filling ID and Timestamp when unset
func (s *SQLiteStore) AppendEvent(ctx context.Context, ev *FleetEvent) error {
	if ev.Identity == "" || ev.Kind == "" {
		return fmt.Errorf("%w: event needs identity and kind", ErrInvalid)
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fleet_events (id, identity, kind, detail, ts) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.Identity, ev.Kind, ev.Detail, ev.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting fleet event: %w", err)
	}
	return nil
}

// RecordSighting stores a sighting, filling ID and Timestamp when unset
func (s *SQLiteStore) RecordSighting(ctx context.Context, sg *Sighting) error {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sightings (id, identity, target, lobby, source, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		sg.ID, sg.Identity, sg.Target, sg.Lobby, sg.Source, sg.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting sighting: %w", err)
	}
	s.logger.Debug("sighting recorded", "identity", sg.Identity, "lobby", sg.Lobby, "source", sg.Source)
	return nil
}

// ListSightings returns the newest sightings first
func (s *SQLiteStore) ListSightings(ctx context.Context, limit int) ([]*Sighting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, identity, target, lobby, source, ts FROM sightings ORDER BY ts DESC, id LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying sightings: %w", err)
	}
	defer rows.Close()

	var out []*Sighting
	for rows.Next() {
		var sg Sighting
		var ts string
		if err := rows.Scan(&sg.ID, &sg.Identity, &sg.Target, &sg.Lobby, &sg.Source, &ts); err != nil {
			return nil, fmt.Errorf("scanning sighting: %w", err)
		}
		if sg.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parsing sighting time: %w", err)
		}
		out = append(out, &sg)
	}
	return out, rows.Err()
}

// ListEvents returns the newest events first, optionally for one identity
func (s *SQLiteStore) ListEvents(ctx context.Context, identity string, limit int) ([]*FleetEvent, error) {
	query := `SELECT id, identity, kind, detail, ts FROM fleet_events`
	args := []any{}
	if identity != "" {
		query += ` WHERE identity = ?`
		args = append(args, identity)
	}
	query += ` ORDER BY ts DESC, id LIMIT ?`
	args = append(args, clampLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying fleet events: %w", err)
	}
	defer rows.Close()

	var out []*FleetEvent
	for rows.Next() {
		var ev FleetEvent
		var ts string
		if err := rows.Scan(&ev.ID, &ev.Identity, &ev.Kind, &ev.Detail, &ts); err != nil {
			return nil, fmt.Errorf("scanning fleet event: %w", err)
		}
		if ev.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parsing fleet event time: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}
