// Package session defines the contract between the fleet and one live
// game-client session, plus the implementations of that contract.
//
// # Events
//
// A Session emits a single ordered stream of Event values on Events().
// Event is a tagged union; Kind selects which payload fields are set:
//
//	KindLogin         login confirmed by the server
//	KindSpawn         agent spawned into a world
//	KindError         Err set; Refused marks a refused connection
//	KindEnd           Reason set; the stream is closed afterwards
//	KindKicked        Reason set
//	KindMessage       Text set (chat or system line, formatting stripped)
//	KindPlayerJoined  Player set
//	KindEntitySpawn   Entity set
//
// The stream cannot be restarted. Reconnecting means dialing a new Session.
//
// # Dialers
//
// WSDialer speaks JSON frames over a websocket to a bridge process that
// hosts the real game client. FakeDialer hands out FakeSession values that
// tests drive with Emit.
package session
