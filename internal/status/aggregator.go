// ABOUTME: Fingerprint-gated redraw of the dashboard from fleet snapshots.
// ABOUTME: Snapshots whose display-relevant fields are unchanged never reach the renderer.

package status

import (
	"encoding/binary"
	"strconv"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/2389/lobby-scout/internal/clock"
	"github.com/2389/lobby-scout/internal/fleet"
)

// Line is one rendered dashboard row.
type Line struct {
	Ordinal int
	Name    string
	Label   Label
}

// Renderer draws a complete dashboard.
type Renderer interface {
	Render(lines []Line)
}

// Fingerprint digests every display-relevant field of views in order.
func Fingerprint(views []fleet.AgentView) [32]byte {
	h := blake3.New()
	var buf [8]byte
	writeInt := func(n int64) {
		binary.BigEndian.PutUint64(buf[:], uint64(n))
		_, _ = h.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(int64(len(s)))
		_, _ = h.Write([]byte(s))
	}
	writeBool := func(b bool) {
		if b {
			writeInt(1)
		} else {
			writeInt(0)
		}
	}

	writeInt(int64(len(views)))
	for _, v := range views {
		writeInt(int64(v.Ordinal))
		writeString(v.Identity)
		writeInt(int64(v.State))
		writeString(v.Reason)
		writeString(v.Lobby)
		writeBool(v.Searching)
		writeBool(v.TargetFound)
		writeBool(v.SwapFailed)
		if v.RetryDeadline.IsZero() {
			writeInt(0)
		} else {
			writeInt(v.RetryDeadline.UnixNano())
		}
	}

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Aggregator renders fleet snapshots when they change. It is safe for
// concurrent use.
type Aggregator struct {
	opts     Options
	renderer Renderer
	clock    clock.Clock

	mu      sync.Mutex
	last    [32]byte
	drawn   bool
	renders int
}

// NewAggregator returns an Aggregator that draws through r. clk defaults
// to clock.Real().
func NewAggregator(opts Options, r Renderer, clk clock.Clock) *Aggregator {
	if clk == nil {
		clk = clock.Real()
	}
	return &Aggregator{opts: opts, renderer: r, clock: clk}
}

// FleetChanged redraws if views differ from the last drawn snapshot and
// reports whether it did.
func (a *Aggregator) FleetChanged(views []fleet.AgentView) bool {
	sum := Fingerprint(views)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.drawn && sum == a.last {
		return false
	}
	a.last = sum
	a.drawn = true
	a.renders++
	a.renderer.Render(a.lines(views))
	return true
}

// Redraw draws views unconditionally, for the operator's status command.
func (a *Aggregator) Redraw(views []fleet.AgentView) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.last = Fingerprint(views)
	a.drawn = true
	a.renders++
	a.renderer.Render(a.lines(views))
}

// Renders returns how many times the renderer has been called.
func (a *Aggregator) Renders() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.renders
}

func (a *Aggregator) lines(views []fleet.AgentView) []Line {
	now := a.clock.Now()
	lines := make([]Line, len(views))
	for i, v := range views {
		lines[i] = Line{
			Ordinal: v.Ordinal,
			Name:    "Bot" + strconv.Itoa(v.Ordinal),
			Label:   ComputeStatus(v, a.opts, now),
		}
	}
	return lines
}
