// ABOUTME: Agent record, connection states and the read-only view handed to observers.
// ABOUTME: Also holds timerSlot, the cancellable single-occupancy timer used for search timers.

package fleet

import (
	"time"

	"github.com/2389/lobby-scout/internal/clock"
	"github.com/2389/lobby-scout/internal/session"
)

// UnknownLobby is the lobby of an agent before the server has told it
// where it is.
const UnknownLobby = "unknown"

// ConnState is an agent's connection state.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateConnected
	StateDisconnected
	StateKicked
	StateErrored
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateKicked:
		return "kicked"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions happen for the record.
func (s ConnState) Terminal() bool {
	return s == StateDisconnected || s == StateKicked || s == StateErrored
}

// agent is the mutable record for one live identity. Guarded by
// Controller.mu.
type agent struct {
	identity string
	ordinal  int
	session  session.Session

	state  ConnState
	reason string
	lobby  string

	searching     bool
	targetFound   bool
	swapFailed    bool
	retryDeadline time.Time

	// cycle holds the initial staggered move and then the recurring
	// search tick. retry holds the pending swap retry.
	cycle timerSlot
	retry timerSlot
}

func newAgent(identity string, ordinal int, sess session.Session) *agent {
	return &agent{
		identity: identity,
		ordinal:  ordinal,
		session:  sess,
		state:    StateConnecting,
		lobby:    UnknownLobby,
	}
}

// online reports whether commands can be sent through the agent.
func (a *agent) online() bool {
	return a.state == StateConnected && a.session.Connected()
}

func (a *agent) cancelTimers() {
	a.cycle.cancel()
	a.retry.cancel()
}

// resetSearch clears every search field except targetFound and cancels the
// search timers.
func (a *agent) resetSearch() {
	a.searching = false
	a.swapFailed = false
	a.retryDeadline = time.Time{}
	a.cancelTimers()
}

func (a *agent) view() AgentView {
	return AgentView{
		Identity:      a.identity,
		Ordinal:       a.ordinal,
		State:         a.state,
		Reason:        a.reason,
		Lobby:         a.lobby,
		Searching:     a.searching,
		TargetFound:   a.targetFound,
		SwapFailed:    a.swapFailed,
		RetryDeadline: a.retryDeadline,
	}
}

// AgentView is a copy of one agent record at a point in time.
type AgentView struct {
	Identity      string
	Ordinal       int
	State         ConnState
	Reason        string
	Lobby         string
	Searching     bool
	TargetFound   bool
	SwapFailed    bool
	RetryDeadline time.Time
}

// timerSlot holds at most one pending timer. gen increases on every arm
// and cancel; a callback only runs if the generation it was armed with is
// still current.
type timerSlot struct {
	timer *clock.Timer
	gen   uint64
}

func (s *timerSlot) active() bool { return s.timer != nil }

func (s *timerSlot) cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}
