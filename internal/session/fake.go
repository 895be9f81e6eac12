// ABOUTME: In-memory Dialer and Session doubles for exercising the fleet without a network.
// ABOUTME: Tests inject events with Emit and inspect chat lines with Sent.

package session

import (
	"context"
	"sync"
)

const fakeBuffer = 256

// FakeSession is a Session driven entirely by the test.
type FakeSession struct {
	Opts Options

	mu        sync.Mutex
	events    chan Event
	connected bool
	closed    bool
	ended     bool
	sent      []string
}

// NewFakeSession returns a FakeSession for opts.
func NewFakeSession(opts Options) *FakeSession {
	return &FakeSession{Opts: opts, events: make(chan Event, fakeBuffer)}
}

// Events implements Session.
func (s *FakeSession) Events() <-chan Event { return s.events }

// Emit delivers ev to the session's consumer. A KindLogin event marks the
// session connected; a KindEnd event closes the stream. Events emitted
// after the stream closed are dropped.
func (s *FakeSession) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLocked(ev)
}

func (s *FakeSession) emitLocked(ev Event) {
	if s.closed {
		return
	}
	switch ev.Kind {
	case KindLogin:
		s.connected = true
	case KindEnd:
		s.connected = false
	}
	s.events <- ev
	if ev.Kind == KindEnd {
		s.closed = true
		close(s.events)
	}
}

// Chat implements Session and records text.
func (s *FakeSession) Chat(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.connected {
		return ErrNotConnected
	}
	s.sent = append(s.sent, text)
	return nil
}

// End implements Session. It emits the terminal KindEnd event.
func (s *FakeSession) End(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	s.emitLocked(End(reason))
}

// Connected implements Session.
func (s *FakeSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Sent returns a copy of every chat line accepted so far.
func (s *FakeSession) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

// Ended reports whether End was called on the session.
func (s *FakeSession) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// FakeDialer hands out FakeSessions and remembers every dial.
type FakeDialer struct {
	// OnDial, when set, runs after each dial. Auth tests use it to answer
	// immediately with a login or a refused connection.
	OnDial func(s *FakeSession)
	// Err, when set, is returned by every Dial.
	Err error

	mu       sync.Mutex
	dials    []Options
	sessions map[string][]*FakeSession
}

// NewFakeDialer returns an empty FakeDialer.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{sessions: make(map[string][]*FakeSession)}
}

// Dial implements Dialer.
func (d *FakeDialer) Dial(_ context.Context, opts Options) (Session, error) {
	d.mu.Lock()
	d.dials = append(d.dials, opts)
	if d.Err != nil {
		err := d.Err
		d.mu.Unlock()
		return nil, err
	}
	s := NewFakeSession(opts)
	d.sessions[opts.Identity] = append(d.sessions[opts.Identity], s)
	hook := d.OnDial
	d.mu.Unlock()

	if hook != nil {
		hook(s)
	}
	return s, nil
}

// Dials returns the options of every Dial call in order.
func (d *FakeDialer) Dials() []Options {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Options(nil), d.dials...)
}

// Session returns the most recent session dialed for identity, or nil.
func (d *FakeDialer) Session(identity string) *FakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.sessions[identity]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// Sessions returns every session dialed for identity, oldest first.
func (d *FakeDialer) Sessions(identity string) []*FakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeSession(nil), d.sessions[identity]...)
}
