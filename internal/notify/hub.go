// ABOUTME: In-memory fan-out of operator notices from the fleet to its observers.
// ABOUTME: Subscribers get buffered channels; slow subscribers drop notices instead of stalling the fleet.

package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 256

// Kind classifies a notice for display and persistence.
type Kind string

const (
	KindInfo     Kind = "info"
	KindSuccess  Kind = "success"
	KindWarning  Kind = "warning"
	KindFailure  Kind = "failure"
	KindChat     Kind = "chat"
	KindSighting Kind = "sighting"
)

// SourceSwapFailure marks the warning published when the server refuses a
// lobby move.
const SourceSwapFailure = "swap_failure"

// Notice is one operator-visible event. Agent and Ordinal are empty for
// fleet-wide notices.
type Notice struct {
	Kind    Kind
	Agent   string
	Ordinal int
	Text    string
	// Lobby is set on sightings and chat lines.
	Lobby string
	// Source names what produced the notice: the detection path on
	// sightings ("message", "player_joined", "entity_spawn") or
	// SourceSwapFailure.
	Source string
	At     time.Time
}

// Hub provides in-memory pub/sub for notices.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Notice
	closed      bool
	logger      *slog.Logger

	dropped atomic.Uint64
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]chan Notice),
		logger:      logger.With("component", "notify"),
	}
}

// Subscribe registers a subscriber and returns its channel and ID. The
// subscription is removed when ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context) (<-chan Notice, string) {
	return h.SubscribeBuffered(ctx, subscriberBufferSize)
}

// SubscribeBuffered is Subscribe with a caller-chosen channel buffer, for
// subscribers such as the ledger that must ride out bursts. A size below
// one uses the default.
func (h *Hub) SubscribeBuffered(ctx context.Context, size int) (<-chan Notice, string) {
	if size < 1 {
		size = subscriberBufferSize
	}
	subID := uuid.New().String()
	ch := make(chan Notice, size)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, subID
	}
	h.subscribers[subID] = ch
	h.mu.Unlock()

	h.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		h.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish delivers n to every subscriber without blocking. A zero At is
// stamped with the current time.
func (h *Hub) Publish(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- n:
		default:
			total := h.dropped.Add(1)
			h.logger.Warn("dropped notice for slow subscriber", "sub_id", id, "kind", n.Kind, "agent", n.Agent, "dropped_total", total)
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Unsubscribe removes a subscription and closes its channel.
func (h *Hub) Unsubscribe(subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subscribers[subID]
	if !ok {
		return
	}
	delete(h.subscribers, subID)
	close(ch)

	h.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close closes every subscriber channel. Later subscriptions receive an
// already closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	h.closed = true
}
