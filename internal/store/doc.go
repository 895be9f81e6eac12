// Package store persists the fleet's history using SQLite.
//
// Two tables are kept: fleet_events, a per-agent log of lifecycle
// notices, and sightings, one row per time an agent spotted the target.
// The ledger is append-mostly history for the operator; fleet state is
// never restored from it.
//
// SQLiteStore is backed by modernc.org/sqlite in WAL mode and creates its
// schema on open. MockStore is an in-memory implementation for tests.
// Recorder subscribes to the notice hub and writes the notices worth
// keeping.
package store
