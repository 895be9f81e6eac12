// ABOUTME: Store interface and data types for the fleet history ledger
// ABOUTME: Defines FleetEvent and Sighting plus the operations the recorder and console need

package store

import (
	"context"
	"errors"
	"time"
)

// ErrInvalid is returned for records missing required fields
var ErrInvalid = errors.New("invalid record")

// Sighting sources.
const (
	SourceMessage      = "message"
	SourcePlayerJoined = "player_joined"
	SourceEntitySpawn  = "entity_spawn"
)

// FleetEvent is one lifecycle entry for an agent
type FleetEvent struct {
	ID        string
	Identity  string
	Kind      string // notice kind: success, warning, failure
	Detail    string
	Timestamp time.Time
}

// Sighting records an agent seeing the target
type Sighting struct {
	ID        string
	Identity  string
	Target    string
	Lobby     string
	Source    string
	Timestamp time.Time
}

// Store is the history ledger.
type Store interface {
	AppendEvent(ctx context.Context, ev *FleetEvent) error
	RecordSighting(ctx context.Context, s *Sighting) error
	// ListSightings returns the most recent sightings, newest first.
	ListSightings(ctx context.Context, limit int) ([]*Sighting, error)
	// ListEvents returns the most recent events for identity, newest
	// first. An empty identity lists every agent.
	ListEvents(ctx context.Context, identity string, limit int) ([]*FleetEvent, error)
	Close() error
}

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
