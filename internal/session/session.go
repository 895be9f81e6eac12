// ABOUTME: Session adapter contract: tagged-union events, Session and Dialer interfaces.
// ABOUTME: The fleet consumes only these types, never a concrete transport.

package session

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Chat once the session has ended.
var ErrClosed = errors.New("session closed")

// ErrNotConnected is returned by Chat before the login confirmation.
var ErrNotConnected = errors.New("session not connected")

// Kind identifies which variant of Event is populated.
type Kind int

const (
	KindLogin Kind = iota
	KindSpawn
	KindError
	KindEnd
	KindKicked
	KindMessage
	KindPlayerJoined
	KindEntitySpawn
)

func (k Kind) String() string {
	switch k {
	case KindLogin:
		return "login"
	case KindSpawn:
		return "spawn"
	case KindError:
		return "error"
	case KindEnd:
		return "end"
	case KindKicked:
		return "kicked"
	case KindMessage:
		return "message"
	case KindPlayerJoined:
		return "player_joined"
	case KindEntitySpawn:
		return "entity_spawn"
	default:
		return "unknown"
	}
}

// EntityTypePlayer is the Entity.Type reported for player entities.
const EntityTypePlayer = "player"

// Entity describes something that appeared in the agent's world.
type Entity struct {
	Type     string
	Username string
}

// Event is one inbound occurrence on a session.
type Event struct {
	Kind    Kind
	Text    string // KindMessage
	Reason  string // KindEnd, KindKicked
	Err     error  // KindError
	Refused bool   // KindError: the remote endpoint refused the connection
	Player  string // KindPlayerJoined
	Entity  Entity // KindEntitySpawn
}

// Login returns a login confirmation event.
func Login() Event { return Event{Kind: KindLogin} }

// Spawn returns a spawn event.
func Spawn() Event { return Event{Kind: KindSpawn} }

// Failure returns an error event.
func Failure(err error, refused bool) Event {
	return Event{Kind: KindError, Err: err, Refused: refused}
}

// End returns a disconnect event.
func End(reason string) Event { return Event{Kind: KindEnd, Reason: reason} }

// Kicked returns a kick event.
func Kicked(reason string) Event { return Event{Kind: KindKicked, Reason: reason} }

// Message returns a text-message event.
func Message(text string) Event { return Event{Kind: KindMessage, Text: text} }

// PlayerJoined returns a world-join event for the named player.
func PlayerJoined(name string) Event { return Event{Kind: KindPlayerJoined, Player: name} }

// EntitySpawn returns an entity-appeared event.
func EntitySpawn(e Entity) Event { return Event{Kind: KindEntitySpawn, Entity: e} }

// Options describe one session to open.
type Options struct {
	Address         string
	Identity        string
	ProtocolVersion string
	Auth            string
	// AuthOnly marks a short-lived session whose only purpose is to run
	// the account login flow.
	AuthOnly bool
	// CheckTimeout bounds how long the remote may stay silent.
	CheckTimeout time.Duration
}

// Session is one live connection owned by a single agent.
type Session interface {
	// Events returns the inbound stream. It is closed after the final
	// KindEnd event.
	Events() <-chan Event
	// Chat sends a chat line or slash command.
	Chat(text string) error
	// End asks the remote to terminate the session. The stream still
	// delivers a KindEnd event.
	End(reason string)
	// Connected reports whether the login confirmation has arrived and
	// the session has not ended.
	Connected() bool
}

// Dialer opens sessions. Dial does not wait for the connection; its
// outcome arrives on the returned session's event stream.
type Dialer interface {
	Dial(ctx context.Context, opts Options) (Session, error)
}
