// ABOUTME: Fleet Controller: owns the agent collection and every lifecycle transition.
// ABOUTME: Staggered connect, broadcast chat and disconnect-all, plus the per-session event pump.

package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/lobby-scout/internal/clock"
	"github.com/2389/lobby-scout/internal/config"
	"github.com/2389/lobby-scout/internal/notify"
	"github.com/2389/lobby-scout/internal/session"
)

var (
	// ErrNotReady is returned by ConnectAll before authentication completed.
	ErrNotReady = errors.New("authentication has not completed")
	// ErrNoAgents is returned by operations that need a live fleet.
	ErrNoAgents = errors.New("no agents connected")
	// ErrSearchActive is returned by StartSearching while a search runs.
	ErrSearchActive = errors.New("search is already active")
	// ErrShutdown is returned once Shutdown has been called.
	ErrShutdown = errors.New("fleet is shut down")
	// ErrUnknownIdentity is returned by ConnectOne for identities not in
	// the configuration.
	ErrUnknownIdentity = errors.New("identity is not configured")
)

// Settings are the fleet's policy parameters.
type Settings struct {
	Server          string
	Target          string
	Identities      []string
	ProtocolVersion string

	AuthEndpoint string
	AuthMode     string
	AuthTimeout  time.Duration

	ConnectStagger time.Duration
	ChatStagger    time.Duration
	SearchStagger  time.Duration
	SearchCycle    time.Duration
	SwapRetry      time.Duration
	ReconnectDelay time.Duration
	CheckTimeout   time.Duration

	Zone        string
	Hub         string
	ZoneCommand string
	HubCommand  string
	Match       string
	// SwapFailurePhrases defaults to config.DefaultSwapFailurePhrases.
	SwapFailurePhrases []string
}

// SettingsFromConfig maps a loaded configuration onto fleet settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Server:             cfg.Server,
		Target:             cfg.Target,
		Identities:         append([]string(nil), cfg.Emails...),
		ProtocolVersion:    cfg.ProtocolVersion,
		AuthEndpoint:       cfg.Auth.Endpoint,
		AuthMode:           cfg.Auth.Mode,
		AuthTimeout:        cfg.Auth.Timeout,
		ConnectStagger:     cfg.Timing.ConnectStagger,
		ChatStagger:        cfg.Timing.ChatStagger,
		SearchStagger:      cfg.Timing.SearchStagger,
		SearchCycle:        cfg.Timing.SearchCycle,
		SwapRetry:          cfg.Timing.SwapRetry,
		ReconnectDelay:     cfg.Timing.ReconnectDelay,
		Zone:               cfg.Search.Zone,
		Hub:                cfg.Search.Hub,
		ZoneCommand:        cfg.Search.ZoneCommand,
		HubCommand:         cfg.Search.HubCommand,
		Match:              cfg.Search.Match,
		SwapFailurePhrases: cfg.Search.SwapFailurePhrases,
	}
}

func (s *Settings) applyDefaults() {
	if s.ProtocolVersion == "" {
		s.ProtocolVersion = "1.8.9"
	}
	if s.AuthMode == "" {
		s.AuthMode = "microsoft"
	}
	if s.SearchCycle <= 0 {
		s.SearchCycle = 10 * time.Second
	}
	if s.CheckTimeout <= 0 {
		s.CheckTimeout = 60 * time.Second
	}
	if s.Zone == "" {
		s.Zone = "Pit"
	}
	if s.Hub == "" {
		s.Hub = "Hub"
	}
	if s.ZoneCommand == "" {
		s.ZoneCommand = "/play pit"
	}
	if s.HubCommand == "" {
		s.HubCommand = "/hub"
	}
}

// Notifier receives operator-visible notices. *notify.Hub implements it.
type Notifier interface {
	Publish(n notify.Notice)
}

// Params configures a Controller.
type Params struct {
	Settings Settings
	Dialer   session.Dialer
	// Clock defaults to clock.Real().
	Clock  clock.Clock
	Logger *slog.Logger
	// Notifier may be nil.
	Notifier Notifier
	// OnChange, when set, receives a snapshot after every state change.
	OnChange func([]AgentView)
}

// Controller owns the fleet. It is safe for concurrent use.
type Controller struct {
	settings Settings
	dialer   session.Dialer
	clock    clock.Clock
	logger   *slog.Logger
	notifier Notifier
	onChange func([]AgentView)
	detector *Detector

	mu         sync.Mutex
	ctx        context.Context
	agents     []*agent
	byIdentity map[string]*agent
	searching  bool
	lastCount  int
	closed     bool
	auth       authState

	// deferred holds fleet-level one-shot timers (connect and chat
	// staggers, delayed reconnect) keyed by id.
	deferred  map[uint64]*clock.Timer
	nextTimer uint64
}

// NewController creates a Controller with an empty fleet.
func NewController(p Params) *Controller {
	p.Settings.applyDefaults()
	if p.Clock == nil {
		p.Clock = clock.Real()
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	s := p.Settings
	return &Controller{
		settings:   s,
		dialer:     p.Dialer,
		clock:      p.Clock,
		logger:     p.Logger.With("component", "fleet"),
		notifier:   p.Notifier,
		onChange:   p.OnChange,
		detector:   NewDetector(s.Target, s.Match, s.SwapFailurePhrases, s.Zone, s.Hub),
		ctx:        context.Background(),
		byIdentity: make(map[string]*agent),
		deferred:   make(map[uint64]*clock.Timer),
		auth:       newAuthState(),
	}
}

// Identities returns the configured identities in order.
func (c *Controller) Identities() []string {
	return append([]string(nil), c.settings.Identities...)
}

// Target returns the identity being searched for.
func (c *Controller) Target() string { return c.settings.Target }

// Snapshot returns a view of every live agent in connection order.
func (c *Controller) Snapshot() []AgentView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() []AgentView {
	views := make([]AgentView, len(c.agents))
	for i, a := range c.agents {
		views[i] = a.view()
	}
	return views
}

// Len returns the number of live agents.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.agents)
}

// ConnectAll replaces the fleet with the first n configured identities,
// dialing them ConnectStagger apart. n <= 0 means every identity; n above
// the configured count is clamped. It returns the number of agents being
// connected.
func (c *Controller) ConnectAll(ctx context.Context, n int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrShutdown
	}
	if !c.auth.ready {
		return 0, ErrNotReady
	}
	n = c.clampLocked(n)
	c.connectAllLocked(ctx, n)
	return n, nil
}

func (c *Controller) clampLocked(n int) int {
	total := len(c.settings.Identities)
	if n > total {
		c.publish(notify.Notice{
			Kind: notify.KindWarning,
			Text: fmt.Sprintf("Only %d bots available, but %d requested; connecting %d instead", total, n, total),
		})
	}
	if n <= 0 || n > total {
		n = total
	}
	return n
}

func (c *Controller) connectAllLocked(ctx context.Context, n int) {
	if len(c.agents) > 0 || len(c.deferred) > 0 {
		c.disconnectAllLocked("fleet restarting")
	}
	if ctx != nil {
		c.ctx = ctx
	}
	c.lastCount = n

	c.logger.Info("connecting fleet", "count", n, "stagger", c.settings.ConnectStagger)
	c.publish(notify.Notice{Kind: notify.KindInfo, Text: fmt.Sprintf("Connecting %d bots to server...", n)})

	for i := 0; i < n; i++ {
		identity, ordinal := c.settings.Identities[i], i+1
		c.later(time.Duration(i)*c.settings.ConnectStagger, func() {
			c.connectOneLocked(identity, ordinal)
		})
	}
	c.changedLocked()
}

// ConnectOne opens a session for identity and adds its record to the
// fleet immediately. A live record for the same identity is replaced.
func (c *Controller) ConnectOne(identity string, ordinal int) (AgentView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return AgentView{}, ErrShutdown
	}
	if !c.configured(identity) {
		return AgentView{}, fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
	}
	a, err := c.connectOneLocked(identity, ordinal)
	if err != nil {
		return AgentView{}, err
	}
	c.changedLocked()
	return a.view(), nil
}

func (c *Controller) configured(identity string) bool {
	for _, id := range c.settings.Identities {
		if id == identity {
			return true
		}
	}
	return false
}

func (c *Controller) connectOneLocked(identity string, ordinal int) (*agent, error) {
	if old, ok := c.byIdentity[identity]; ok {
		c.removeLocked(old)
		old.cancelTimers()
		old.session.End("replaced")
	}

	c.publish(notify.Notice{
		Kind:    notify.KindInfo,
		Agent:   identity,
		Ordinal: ordinal,
		Text:    fmt.Sprintf("Connecting bot %d: %s", ordinal, identity),
	})

	sess, err := c.dialer.Dial(c.ctx, session.Options{
		Address:         c.settings.Server,
		Identity:        identity,
		ProtocolVersion: c.settings.ProtocolVersion,
		Auth:            c.settings.AuthMode,
		CheckTimeout:    c.settings.CheckTimeout,
	})
	if err != nil {
		c.logger.Error("dial failed", "identity", identity, "error", err)
		c.publish(notify.Notice{
			Kind:    notify.KindFailure,
			Agent:   identity,
			Ordinal: ordinal,
			Text:    fmt.Sprintf("Bot %d (%s) error: %v", ordinal, identity, err),
		})
		return nil, fmt.Errorf("dialing %s: %w", identity, err)
	}

	a := newAgent(identity, ordinal, sess)
	c.agents = append(c.agents, a)
	c.byIdentity[identity] = a
	go c.pump(a)
	return a, nil
}

// DisconnectAll cancels every timer, ends every session and empties the
// fleet. Pending staggered connects and chat lines are dropped.
func (c *Controller) DisconnectAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.agents)
	c.disconnectAllLocked("disconnect requested")
	c.changedLocked()
	return n
}

func (c *Controller) disconnectAllLocked(reason string) {
	for id, t := range c.deferred {
		t.Stop()
		delete(c.deferred, id)
	}
	for _, a := range c.agents {
		a.cancelTimers()
		a.searching = false
		a.swapFailed = false
		a.state = StateDisconnected
		a.session.End(reason)
	}
	if len(c.agents) > 0 {
		c.logger.Info("fleet disconnected", "count", len(c.agents), "reason", reason)
	}
	c.agents = nil
	c.byIdentity = make(map[string]*agent)
	c.searching = false
}

// Reconnect ends the live fleet and, after ReconnectDelay, connects the
// same number of agents again.
func (c *Controller) Reconnect(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrShutdown
	}
	n := len(c.agents)
	if n == 0 {
		return 0, ErrNoAgents
	}
	c.disconnectAllLocked("reconnecting")
	c.later(c.settings.ReconnectDelay, func() {
		if c.closed {
			return
		}
		c.connectAllLocked(ctx, n)
	})
	c.changedLocked()
	return n, nil
}

// BroadcastChat sends text from every agent, ChatStagger apart. Agents
// that are not connected when their turn comes are skipped.
func (c *Controller) BroadcastChat(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.agents) == 0 {
		return ErrNoAgents
	}
	for i, a := range c.agents {
		c.later(time.Duration(i)*c.settings.ChatStagger, func() {
			if c.byIdentity[a.identity] != a || !a.online() {
				return
			}
			if err := a.session.Chat(text); err != nil {
				c.logger.Warn("chat failed", "identity", a.identity, "error", err)
				return
			}
			c.publish(notify.Notice{
				Kind:    notify.KindInfo,
				Agent:   a.identity,
				Ordinal: a.ordinal,
				Text:    fmt.Sprintf("[Bot %d] Sent: %s", a.ordinal, text),
			})
		})
	}
	return nil
}

// Shutdown stops searching, ends every session including pending
// authentication sessions and refuses further work.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.disconnectAllLocked("shutting down")
	c.abandonAuthLocked("shutting down")
	c.changedLocked()
}

// pump feeds one session's events into the controller until the stream
// closes. Events for a record that has left the fleet are dropped.
func (c *Controller) pump(a *agent) {
	for ev := range a.session.Events() {
		c.mu.Lock()
		if c.byIdentity[a.identity] == a {
			c.handleEventLocked(a, ev)
			c.changedLocked()
		}
		c.mu.Unlock()
	}
}

func (c *Controller) handleEventLocked(a *agent, ev session.Event) {
	switch ev.Kind {
	case session.KindLogin:
		if a.state != StateConnecting {
			c.logger.Warn("login ignored", "identity", a.identity, "state", a.state)
			return
		}
		a.state = StateConnected
		a.reason = ""
		c.logger.Info("agent connected", "identity", a.identity, "ordinal", a.ordinal)
		c.publish(c.agentNotice(a, notify.KindSuccess, "Bot %d (%s) connected to server", a.ordinal, a.identity))

	case session.KindSpawn:
		c.logger.Debug("agent spawned", "identity", a.identity)

	case session.KindError:
		a.state = StateErrored
		a.reason = errorText(ev.Err)
		a.resetSearch()
		c.logger.Warn("agent error", "identity", a.identity, "error", a.reason)
		c.publish(c.agentNotice(a, notify.KindFailure, "Bot %d (%s) error: %s", a.ordinal, a.identity, a.reason))

	case session.KindKicked:
		a.state = StateKicked
		a.reason = ev.Reason
		a.resetSearch()
		c.logger.Warn("agent kicked", "identity", a.identity, "reason", ev.Reason)
		c.publish(c.agentNotice(a, notify.KindFailure, "Bot %d (%s) kicked: %s", a.ordinal, a.identity, ev.Reason))

	case session.KindEnd:
		a.state = StateDisconnected
		a.resetSearch()
		c.removeLocked(a)
		c.logger.Info("agent disconnected", "identity", a.identity, "reason", ev.Reason, "remaining", len(c.agents))
		c.publish(c.agentNotice(a, notify.KindFailure, "Bot %d (%s) disconnected: %s", a.ordinal, a.identity, ev.Reason))

	case session.KindMessage:
		if chatWorthy(ev.Text) {
			n := c.agentNotice(a, notify.KindChat, "%s", ev.Text)
			n.Lobby = a.lobby
			c.publish(n)
		}
		c.onMessageLocked(a, ev.Text)

	case session.KindPlayerJoined:
		if a.searching && c.detector.IsTarget(ev.Player) {
			c.targetFoundLocked(a, "player_joined")
		}

	case session.KindEntitySpawn:
		if a.searching && ev.Entity.Type == session.EntityTypePlayer && c.detector.IsTarget(ev.Entity.Username) {
			c.targetFoundLocked(a, "entity_spawn")
		}
	}
}

func (c *Controller) removeLocked(a *agent) {
	if c.byIdentity[a.identity] == a {
		delete(c.byIdentity, a.identity)
	}
	for i, other := range c.agents {
		if other == a {
			c.agents = append(c.agents[:i], c.agents[i+1:]...)
			break
		}
	}
	if len(c.agents) == 0 {
		c.searching = false
	}
}

// arm places fn in slot to run after d with the lock held. Any timer
// already in the slot is cancelled. A non-positive d runs fn now.
func (c *Controller) arm(slot *timerSlot, d time.Duration, fn func()) {
	slot.cancel()
	if d <= 0 {
		fn()
		return
	}
	gen := slot.gen
	slot.timer = c.clock.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if slot.gen != gen {
			return
		}
		slot.timer = nil
		fn()
		c.changedLocked()
	})
}

// later runs fn after d with the lock held, unless DisconnectAll or
// Shutdown intervenes. A non-positive d runs fn now.
func (c *Controller) later(d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}
	c.nextTimer++
	id := c.nextTimer
	c.deferred[id] = c.clock.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.deferred[id]; !ok {
			return
		}
		delete(c.deferred, id)
		fn()
		c.changedLocked()
	})
}

func (c *Controller) changedLocked() {
	if c.onChange != nil {
		c.onChange(c.snapshotLocked())
	}
}

func (c *Controller) publish(n notify.Notice) {
	if c.notifier == nil {
		return
	}
	if n.At.IsZero() {
		n.At = c.clock.Now()
	}
	c.notifier.Publish(n)
}

func (c *Controller) agentNotice(a *agent, kind notify.Kind, format string, args ...any) notify.Notice {
	return notify.Notice{
		Kind:    kind,
		Agent:   a.identity,
		Ordinal: a.ordinal,
		Text:    fmt.Sprintf(format, args...),
	}
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
