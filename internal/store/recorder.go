// ABOUTME: Persists fleet notices from the notify hub into the ledger.
// ABOUTME: Sightings become sighting rows; agent lifecycle notices become fleet events.

package store

import (
	"context"
	"log/slog"

	"github.com/2389/lobby-scout/internal/notify"
)

// Recorder writes notices to a Store.
type Recorder struct {
	store  Store
	target string
	logger *slog.Logger
}

// NewRecorder returns a Recorder attributing sightings to target.
func NewRecorder(s Store, target string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, target: target, logger: logger.With("component", "recorder")}
}

// Run consumes notices until the channel closes or ctx is done.
func (r *Recorder) Run(ctx context.Context, notices <-chan notify.Notice) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			if err := r.Record(ctx, n); err != nil {
				r.logger.Warn("failed to record notice", "kind", n.Kind, "agent", n.Agent, "error", err)
			}
		}
	}
}

// Record persists one notice. Fleet-wide notices, chat and info lines are
// skipped.
func (r *Recorder) Record(ctx context.Context, n notify.Notice) error {
	if n.Agent == "" {
		return nil
	}
	switch n.Kind {
	case notify.KindSighting:
		return r.store.RecordSighting(ctx, &Sighting{
			Identity:  n.Agent,
			Target:    r.target,
			Lobby:     n.Lobby,
			Source:    n.Source,
			Timestamp: n.At,
		})
	case notify.KindSuccess, notify.KindWarning, notify.KindFailure:
		return r.store.AppendEvent(ctx, &FleetEvent{
			Identity:  n.Agent,
			Kind:      string(n.Kind),
			Detail:    n.Text,
			Timestamp: n.At,
		})
	default:
		return nil
	}
}
