// ABOUTME: Terminal renderer for the dashboard block using fatih/color.
// ABOUTME: Optionally clears the screen so the block redraws in place.

package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

const (
	dashboardTitle = "Dashboard"
	clearSequence  = "\x1b[2J\x1b[0f"
)

var border = strings.Repeat("_", 38)

// TerminalRenderer writes the dashboard block to a writer.
type TerminalRenderer struct {
	mu    sync.Mutex
	w     io.Writer
	clear bool

	ok      *color.Color
	pending *color.Color
	alert   *color.Color
}

// NewTerminalRenderer returns a renderer writing to w. clear redraws in
// place; colors enables ANSI colors regardless of what fatih/color
// detected for the process.
func NewTerminalRenderer(w io.Writer, clear, colors bool) *TerminalRenderer {
	r := &TerminalRenderer{
		w:       w,
		clear:   clear,
		ok:      color.New(color.FgGreen),
		pending: color.New(color.FgYellow),
		alert:   color.New(color.FgRed),
	}
	for _, c := range []*color.Color{r.ok, r.pending, r.alert} {
		if colors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Render implements Renderer.
func (r *TerminalRenderer) Render(lines []Line) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	if r.clear {
		b.WriteString(clearSequence)
	}
	b.WriteString(dashboardTitle + "\n")
	b.WriteString(border + "\n")
	if len(lines) == 0 {
		b.WriteString("No bots connected\n")
	}
	for _, line := range lines {
		fmt.Fprintf(&b, "%s - %s\n", line.Name, r.paint(line.Label))
	}
	b.WriteString(border + "\n")

	_, _ = io.WriteString(r.w, b.String())
}

func (r *TerminalRenderer) paint(l Label) string {
	switch l.Tier {
	case TierOK:
		return r.ok.Sprint(l.Text)
	case TierPending:
		return r.pending.Sprint(l.Text)
	default:
		return r.alert.Sprint(l.Text)
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ShouldClear resolves the clear-screen preference: an explicit setting
// wins, otherwise the block redraws in place only on a terminal.
func ShouldClear(pref *bool, f *os.File) bool {
	if pref != nil {
		return *pref
	}
	return IsTerminal(f)
}
