// ABOUTME: Session implementation that drives a game client hosted by a websocket bridge.
// ABOUTME: One socket per session; JSON frames in both directions, single writer goroutine.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	frameConnect      = "connect"
	frameChat         = "chat"
	frameEnd          = "end"
	frameLogin        = "login"
	frameSpawn        = "spawn"
	frameError        = "error"
	frameKicked       = "kicked"
	frameMessage      = "message"
	framePlayerJoined = "player_joined"
	frameEntitySpawn  = "entity_spawn"

	codeConnRefused = "ECONNREFUSED"

	outboundQueue   = 32
	eventBuffer     = 64
	writeTimeout    = 5 * time.Second
	defaultSilence  = 60 * time.Second
	handshakeWindow = 5 * time.Second
)

// frame is the bridge wire envelope. Only the fields relevant to Type are set.
type frame struct {
	Type string `json:"type"`

	// connect
	Host           string `json:"host,omitempty"`
	Username       string `json:"username,omitempty"`
	Auth           string `json:"auth,omitempty"`
	Version        string `json:"version,omitempty"`
	AuthOnly       bool   `json:"auth_only,omitempty"`
	CheckTimeoutMS int64  `json:"check_timeout_ms,omitempty"`

	// chat, message
	Text string `json:"text,omitempty"`

	// end, kicked
	Reason string `json:"reason,omitempty"`

	// error
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`

	// entity_spawn
	Entity *frameEntity `json:"entity,omitempty"`
}

type frameEntity struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// event converts an inbound frame. ok is false for frames the fleet does
// not consume.
func (f frame) event() (Event, bool) {
	switch f.Type {
	case frameLogin:
		return Login(), true
	case frameSpawn:
		return Spawn(), true
	case frameError:
		return Failure(errors.New(f.Message), f.Code == codeConnRefused), true
	case frameEnd:
		return End(f.Reason), true
	case frameKicked:
		return Kicked(f.Reason), true
	case frameMessage:
		return Message(f.Text), true
	case framePlayerJoined:
		return PlayerJoined(f.Username), true
	case frameEntitySpawn:
		if f.Entity == nil {
			return Event{}, false
		}
		return EntitySpawn(Entity{Type: f.Entity.Type, Username: f.Entity.Username}), true
	default:
		return Event{}, false
	}
}

// WSDialer opens sessions through a websocket bridge.
type WSDialer struct {
	URL    string
	Logger *slog.Logger
}

// NewWSDialer returns a dialer for the bridge at url.
func NewWSDialer(url string, logger *slog.Logger) *WSDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSDialer{URL: url, Logger: logger.With("component", "session")}
}

// Dial implements Dialer. The socket is opened in the background.
func (d *WSDialer) Dial(ctx context.Context, opts Options) (Session, error) {
	if d.URL == "" {
		return nil, errors.New("bridge url is empty")
	}
	s := &wsSession{
		url:    d.URL,
		opts:   opts,
		logger: d.Logger.With("identity", opts.Identity, "auth_only", opts.AuthOnly),
		events: make(chan Event, eventBuffer),
		out:    make(chan frame, outboundQueue),
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s, nil
}

type wsSession struct {
	url    string
	opts   Options
	logger *slog.Logger

	events chan Event
	out    chan frame
	done   chan struct{}

	finishOnce sync.Once

	mu        sync.Mutex
	conn      *websocket.Conn
	loggedIn  bool
	ending    bool
	finished  bool
	endReason string
}

func (s *wsSession) Events() <-chan Event { return s.events }

func (s *wsSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn && !s.finished
}

func (s *wsSession) Chat(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ending || s.finished {
		return ErrClosed
	}
	if !s.loggedIn {
		return ErrNotConnected
	}
	select {
	case s.out <- frame{Type: frameChat, Text: text}:
		return nil
	default:
		return fmt.Errorf("outbound queue full for %s", s.opts.Identity)
	}
}

func (s *wsSession) End(reason string) {
	s.mu.Lock()
	if s.ending || s.finished {
		s.mu.Unlock()
		return
	}
	s.ending = true
	s.endReason = reason
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		// run notices ending once the dial returns
		return
	}
	select {
	case s.out <- frame{Type: frameEnd, Reason: reason}:
	default:
		_ = conn.Close()
	}
}

func (s *wsSession) run(ctx context.Context) {
	d := websocket.Dialer{HandshakeTimeout: handshakeWindow, EnableCompression: true}
	conn, resp, err := d.DialContext(ctx, s.url, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		s.logger.Debug("bridge dial failed", "error", err)
		s.events <- Failure(fmt.Errorf("dialing bridge: %w", err), false)
		s.finish("bridge unreachable")
		return
	}

	s.mu.Lock()
	if s.ending {
		reason := s.endReason
		s.mu.Unlock()
		_ = conn.Close()
		s.finish(reason)
		return
	}
	s.conn = conn
	s.mu.Unlock()

	go s.writeLoop(conn)

	silence := s.opts.CheckTimeout
	if silence <= 0 {
		silence = defaultSilence
	}
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(silence))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
	})

	s.out <- frame{
		Type:           frameConnect,
		Host:           s.opts.Address,
		Username:       s.opts.Identity,
		Auth:           s.opts.Auth,
		Version:        s.opts.ProtocolVersion,
		AuthOnly:       s.opts.AuthOnly,
		CheckTimeoutMS: s.opts.CheckTimeout.Milliseconds(),
	}

	go func() {
		select {
		case <-ctx.Done():
			s.End("shutting down")
		case <-s.done:
		}
	}()

	s.readLoop(conn, silence)
}

func (s *wsSession) readLoop(conn *websocket.Conn, silence time.Duration) {
	defer conn.Close()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(silence))
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.finish(s.reasonFor(err))
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Debug("dropping malformed frame", "error", err)
			continue
		}
		ev, ok := f.event()
		if !ok {
			continue
		}
		if ev.Kind == KindEnd {
			s.finish(ev.Reason)
			return
		}
		if ev.Kind == KindLogin {
			s.mu.Lock()
			s.loggedIn = true
			s.mu.Unlock()
		}
		s.events <- ev
	}
}

func (s *wsSession) writeLoop(conn *websocket.Conn) {
	for {
		select {
		case <-s.done:
			return
		case f := <-s.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(f); err != nil {
				s.logger.Debug("write failed", "type", f.Type, "error", err)
				_ = conn.Close()
				return
			}
			if f.Type == frameEnd {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, f.Reason),
					time.Now().Add(writeTimeout))
				return
			}
		}
	}
}

func (s *wsSession) reasonFor(err error) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ending {
		return s.endReason
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Text != "" {
		return closeErr.Text
	}
	return err.Error()
}

// finish emits the terminal event and closes the stream. Only the run
// goroutine sends on events, so closing here is safe.
func (s *wsSession) finish(reason string) {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.finished = true
		s.mu.Unlock()
		close(s.done)
		s.events <- End(reason)
		close(s.events)
	})
}
