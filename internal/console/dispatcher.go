// ABOUTME: Operator command dispatch: parses one console line and drives the fleet.
// ABOUTME: Misuse is reported as a "[-]" line and never changes fleet state.

package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/2389/lobby-scout/internal/fleet"
	"github.com/2389/lobby-scout/internal/store"
)

// ErrUnknownCommand is returned by Parse for input no command matches.
var ErrUnknownCommand = errors.New("unknown command")

// ErrInvalidCount is returned by Parse when start gets a bad agent count.
var ErrInvalidCount = errors.New("invalid number")

const historyLimit = 10

const helpText = `[/] Available commands:
   - start <number>: Connect specified number of bots (default: all)
   - stop: Disconnect all bots
   - find: Search the lobbies for the target
   - unfind: Stop searching
   - chat <message>: Send message from all bots
   - status: Show connected bots
   - list: Show available accounts
   - reconnect: Reconnect all bots
   - history: Show recent target sightings
   - quit/exit: Exit program
`

// Fleet is the part of the fleet controller the console drives.
type Fleet interface {
	Ready() bool
	Identities() []string
	Snapshot() []fleet.AgentView
	Searching() bool
	ConnectAll(ctx context.Context, n int) (int, error)
	DisconnectAll() int
	Reconnect(ctx context.Context) (int, error)
	BroadcastChat(text string) error
	StartSearching() error
	StopSearching()
}

// History lists recorded sightings.
type History interface {
	ListSightings(ctx context.Context, limit int) ([]*store.Sighting, error)
}

// CommandCounter counts executed commands.
type CommandCounter interface {
	IncCommand(name string)
}

// Dashboard redraws the status block on demand.
type Dashboard interface {
	Redraw(views []fleet.AgentView)
}

// Command is one parsed console line.
type Command struct {
	Name  string
	Count int
	Text  string
}

// Parse splits a console line into a command. The verb is matched case
// insensitively; chat text keeps its case.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	verb, rest, _ := strings.Cut(line, " ")
	verb = strings.ToLower(verb)
	rest = strings.TrimSpace(rest)

	switch verb {
	case "start":
		cmd := Command{Name: verb}
		if rest == "" {
			return cmd, nil
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return Command{}, fmt.Errorf("%w: %q", ErrInvalidCount, rest)
		}
		cmd.Count = n
		return cmd, nil
	case "chat":
		return Command{Name: verb, Text: rest}, nil
	case "stop", "find", "unfind", "status", "list", "reconnect", "history", "help":
		return Command{Name: verb}, nil
	case "quit", "exit":
		return Command{Name: "quit"}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
}

// Dispatcher executes console commands against a fleet.
type Dispatcher struct {
	fleet   Fleet
	history History
	counter CommandCounter
	board   Dashboard
	logger  *slog.Logger

	mu  sync.Mutex
	out io.Writer
}

// Params configures a Dispatcher. History, Commands and Dashboard are
// optional.
type Params struct {
	Fleet     Fleet
	History   History
	Commands  CommandCounter
	Dashboard Dashboard
	Out       io.Writer
	Logger    *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(p Params) *Dispatcher {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := p.Out
	if out == nil {
		out = io.Discard
	}
	return &Dispatcher{
		fleet:   p.Fleet,
		history: p.History,
		counter: p.Commands,
		board:   p.Dashboard,
		logger:  logger.With("component", "console"),
		out:     out,
	}
}

// Execute runs one console line and reports whether the operator asked to
// quit. Blank lines do nothing.
func (d *Dispatcher) Execute(ctx context.Context, line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}

	cmd, err := Parse(line)
	switch {
	case errors.Is(err, ErrInvalidCount):
		d.printf("[-] Invalid number. Usage: start <number>\n")
		return false
	case err != nil:
		d.logger.Debug("unrecognized input", "line", line)
		d.printf("%s", helpText)
		return false
	}

	if d.counter != nil {
		d.counter.IncCommand(cmd.Name)
	}
	d.logger.Debug("executing command", "command", cmd.Name)

	switch cmd.Name {
	case "start":
		d.start(ctx, cmd.Count)
	case "stop":
		d.printf("[/] Disconnecting all bots...\n")
		d.fleet.DisconnectAll()
	case "find":
		d.find()
	case "unfind":
		if !d.fleet.Searching() {
			d.printf("[/] No search in progress\n")
		}
		d.fleet.StopSearching()
	case "chat":
		d.chat(cmd.Text)
	case "status":
		d.status()
	case "list":
		d.list()
	case "reconnect":
		d.reconnect(ctx)
	case "history":
		d.showHistory(ctx)
	case "help":
		d.printf("%s", helpText)
	case "quit":
		d.printf("[/] Disconnecting all bots and shutting down...\n")
		return true
	}
	return false
}

func (d *Dispatcher) start(ctx context.Context, n int) {
	if _, err := d.fleet.ConnectAll(ctx, n); err != nil {
		d.report(err)
	}
}

func (d *Dispatcher) find() {
	if err := d.fleet.StartSearching(); err != nil {
		d.report(err)
	}
}

func (d *Dispatcher) chat(text string) {
	if text == "" {
		d.printf("[-] Usage: chat <message>\n")
		return
	}
	if err := d.fleet.BroadcastChat(text); err != nil {
		d.report(err)
	}
}

func (d *Dispatcher) reconnect(ctx context.Context) {
	d.printf("[/] Reconnecting all bots...\n")
	if _, err := d.fleet.Reconnect(ctx); err != nil {
		d.report(err)
	}
}

func (d *Dispatcher) status() {
	views := d.fleet.Snapshot()
	d.printf("[/] Connected bots: %d/%d\n", len(views), len(d.fleet.Identities()))
	for _, v := range views {
		d.printf("   Bot %d: %s (%s)\n", v.Ordinal, v.Identity, v.State)
	}
	if d.board != nil {
		d.board.Redraw(views)
	}
}

func (d *Dispatcher) list() {
	live := make(map[string]bool)
	for _, v := range d.fleet.Snapshot() {
		live[v.Identity] = true
	}
	ids := d.fleet.Identities()
	d.printf("[/] Available accounts: %d\n", len(ids))
	for i, id := range ids {
		mark := ""
		if live[id] {
			mark = " [CONNECTED]"
		}
		d.printf("   %d. %s%s\n", i+1, id, mark)
	}
}

func (d *Dispatcher) showHistory(ctx context.Context) {
	if d.history == nil {
		d.printf("[-] Sightings ledger is disabled (set database.path)\n")
		return
	}
	sightings, err := d.history.ListSightings(ctx, historyLimit)
	if err != nil {
		d.logger.Error("listing sightings", "error", err)
		d.printf("[-] Could not read sightings: %v\n", err)
		return
	}
	if len(sightings) == 0 {
		d.printf("[/] No sightings recorded\n")
		return
	}
	d.printf("[/] Recent sightings:\n")
	for _, s := range sightings {
		d.printf("   %s  %s saw %s in %s (%s)\n",
			s.Timestamp.Local().Format("2006-01-02 15:04:05"), s.Identity, s.Target, s.Lobby, s.Source)
	}
}

func (d *Dispatcher) report(err error) {
	switch {
	case errors.Is(err, fleet.ErrNotReady):
		d.printf("[/] Please wait for authentication to complete first\n")
	case errors.Is(err, fleet.ErrNoAgents):
		d.printf("[-] No bots connected. Use \"start\" first.\n")
	case errors.Is(err, fleet.ErrSearchActive):
		d.printf("[-] Search already in progress. Use \"unfind\" to stop it.\n")
	case errors.Is(err, fleet.ErrShutdown):
		d.printf("[-] Shutting down\n")
	default:
		d.printf("[-] %v\n", err)
	}
}

func (d *Dispatcher) printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, format, args...)
}
