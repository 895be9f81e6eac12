// ABOUTME: Shared test harness for the fleet package.
// ABOUTME: Wires a Controller to a fake dialer, a fake clock and a notice log.

package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/lobby-scout/internal/clock"
	"github.com/2389/lobby-scout/internal/notify"
	"github.com/2389/lobby-scout/internal/session"
)

const testTarget = "Notch"

type noticeLog struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (l *noticeLog) Publish(n notify.Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, n)
}

func (l *noticeLog) count(kind notify.Kind, substr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, notice := range l.notices {
		if notice.Kind == kind && strings.Contains(notice.Text, substr) {
			n++
		}
	}
	return n
}

func (l *noticeLog) ofKind(kind notify.Kind) []notify.Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []notify.Notice
	for _, notice := range l.notices {
		if notice.Kind == kind {
			out = append(out, notice)
		}
	}
	return out
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	settings Settings
	c        *Controller
	dialer   *session.FakeDialer
	clk      *clock.FakeClock
	notices  *noticeLog

	mu         sync.Mutex
	changes    int
	violations []string
}

func newHarness(t *testing.T, n int, mutate ...func(*Settings)) *harness {
	t.Helper()

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("bot%d@example.com", i+1)
	}
	s := Settings{
		Server:         "play.example.net",
		Target:         testTarget,
		Identities:     ids,
		AuthEndpoint:   "localhost:12345",
		ConnectStagger: 2 * time.Second,
		ChatStagger:    time.Second,
		SearchStagger:  500 * time.Millisecond,
		SearchCycle:    10 * time.Second,
		SwapRetry:      10 * time.Second,
		ReconnectDelay: 3 * time.Second,
	}
	for _, m := range mutate {
		m(&s)
	}

	h := &harness{
		t:        t,
		ctx:      context.Background(),
		settings: s,
		dialer:   session.NewFakeDialer(),
		clk:      clock.Fake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
		notices:  &noticeLog{},
	}
	h.dialer.OnDial = func(fs *session.FakeSession) {
		if fs.Opts.AuthOnly {
			fs.Emit(session.Failure(errors.New("connect ECONNREFUSED 127.0.0.1:12345"), true))
		}
	}
	h.c = NewController(Params{
		Settings: s,
		Dialer:   h.dialer,
		Clock:    h.clk,
		Notifier: h.notices,
		OnChange: h.observe,
	})

	t.Cleanup(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		assert.Empty(t, h.violations, "targetFound implies not searching")
	})
	return h
}

// observe runs under the controller lock after every change.
func (h *harness) observe(views []AgentView) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changes++
	for _, v := range views {
		if v.TargetFound && v.Searching {
			h.violations = append(h.violations, v.Identity)
		}
	}
}

func (h *harness) identity(ordinal int) string {
	return h.settings.Identities[ordinal-1]
}

func (h *harness) authenticate() {
	h.t.Helper()
	h.c.AuthenticateAll(h.ctx)
	require.Eventually(h.t, h.c.Ready, 2*time.Second, time.Millisecond)
}

// connect authenticates if needed, connects n agents, confirms every login
// and waits until the whole fleet is Connected.
func (h *harness) connect(n int) {
	h.t.Helper()
	if !h.c.Ready() {
		h.authenticate()
	}
	got, err := h.c.ConnectAll(h.ctx, n)
	require.NoError(h.t, err)
	for i := 1; i < got; i++ {
		h.clk.Advance(h.settings.ConnectStagger)
	}
	for i := 1; i <= got; i++ {
		h.session(i).Emit(session.Login())
	}
	require.Eventually(h.t, func() bool {
		views := h.c.Snapshot()
		if len(views) != got {
			return false
		}
		for _, v := range views {
			if v.State != StateConnected {
				return false
			}
		}
		return true
	}, 2*time.Second, time.Millisecond)
}

func (h *harness) session(ordinal int) *session.FakeSession {
	return h.dialer.Session(h.identity(ordinal))
}

func (h *harness) view(ordinal int) (AgentView, bool) {
	id := h.identity(ordinal)
	for _, v := range h.c.Snapshot() {
		if v.Identity == id {
			return v, true
		}
	}
	return AgentView{}, false
}

// waitView blocks until the agent's view satisfies cond.
func (h *harness) waitView(ordinal int, cond func(AgentView) bool) AgentView {
	h.t.Helper()
	var last AgentView
	require.Eventually(h.t, func() bool {
		v, ok := h.view(ordinal)
		last = v
		return ok && cond(v)
	}, 2*time.Second, time.Millisecond)
	return last
}

// waitGone blocks until the agent has left the fleet.
func (h *harness) waitGone(ordinal int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		_, ok := h.view(ordinal)
		return !ok
	}, 2*time.Second, time.Millisecond)
}

func (h *harness) changeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.changes
}

// sync waits until every event emitted so far on the agent's session has
// been handled. Events are pumped in order, so once a marker message
// surfaces as a chat notice everything before it has been processed.
func (h *harness) sync(ordinal int) {
	h.t.Helper()
	h.mu.Lock()
	h.changes++
	marker := fmt.Sprintf("sync marker %d", h.changes)
	h.mu.Unlock()

	h.session(ordinal).Emit(session.Message(marker))
	require.Eventually(h.t, func() bool {
		return h.notices.count(notify.KindChat, marker) == 1
	}, 2*time.Second, time.Millisecond)
}
