// ABOUTME: The interactive read-execute loop over a line source.
// ABOUTME: Production input comes from readline with a persistent history file.

package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chzyer/readline"
)

// LineReader is a source of operator input lines.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// Run reads lines from r and executes them until the operator quits,
// input ends, Ctrl+C is pressed on an empty line or ctx is done. r is
// closed before Run returns.
func (d *Dispatcher) Run(ctx context.Context, r LineReader) error {
	var once sync.Once
	closeReader := func() { once.Do(func() { r.Close() }) }
	stop := context.AfterFunc(ctx, closeReader)
	defer func() {
		stop()
		closeReader()
	}()

	for {
		line, err := r.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		if ctx.Err() != nil {
			return nil
		}
		if d.Execute(ctx, line) {
			return nil
		}
	}
}

// NewReadline opens a readline instance on the process terminal.
// historyFile may be empty to disable history.
func NewReadline(historyFile string) (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		UniqueEditLine:    true,

		Stdin:  readline.NewCancelableStdin(os.Stdin),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing readline: %w", err)
	}
	return rl, nil
}
