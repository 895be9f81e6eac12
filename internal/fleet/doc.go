// Package fleet owns the live set of agents and everything that happens
// to them.
//
// A Controller drives the authentication pre-flight, staggered connects,
// staggered chat broadcasts and disconnects. The same Controller runs the
// lobby search: agents rotate between the hub and the search zone, scan
// inbound text and world events for the target, and retry refused lobby
// moves after a delay.
//
// Every mutation happens under one mutex. Each session has a goroutine
// that pumps its events into the Controller in order, so events for one
// agent are handled FIFO while different agents interleave freely.
// Timers are generation-checked slots owned by the agent record; arming a
// slot cancels its predecessor and a fired callback whose slot was
// cancelled in the meantime does nothing.
//
// Observers (OnChange and the Notifier) are called with the lock held and
// must not call back into the Controller.
package fleet
