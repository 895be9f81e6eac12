// ABOUTME: Prints fleet notices as console lines with "[+]"/"[-]"/"[/]" markers.
// ABOUTME: Chat heard by several agents in the same lobby is echoed once per window.

package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/2389/lobby-scout/internal/dedupe"
	"github.com/2389/lobby-scout/internal/notify"
)

// Printer writes notices to the operator's terminal.
type Printer struct {
	mu   sync.Mutex
	out  io.Writer
	echo *dedupe.Cache
}

// NewPrinter returns a printer writing to out. A nil echo cache prints
// every chat line.
func NewPrinter(out io.Writer, echo *dedupe.Cache) *Printer {
	return &Printer{out: out, echo: echo}
}

// Print writes one notice.
func (p *Printer) Print(n notify.Notice) {
	line, ok := p.format(n)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func (p *Printer) format(n notify.Notice) (string, bool) {
	switch n.Kind {
	case notify.KindChat:
		if p.echo != nil && p.echo.CheckAndMark(dedupe.EchoKey(n.Lobby, n.Text)) {
			return "", false
		}
		return fmt.Sprintf("[Bot %d] %s", n.Ordinal, n.Text), true
	case notify.KindSuccess:
		return "[+] " + n.Text, true
	case notify.KindWarning, notify.KindFailure:
		return "[-] " + n.Text, true
	case notify.KindSighting:
		return "[!] " + n.Text, true
	default:
		return "[/] " + n.Text, true
	}
}

// Run prints notices until the channel closes or ctx is done.
func (p *Printer) Run(ctx context.Context, notices <-chan notify.Notice) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			p.Print(n)
		}
	}
}

// SyncWriter serializes writes to w so lines from the printer, the
// dispatcher and the dashboard do not interleave mid-line.
func SyncWriter(w io.Writer) io.Writer {
	return &syncWriter{w: w}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
