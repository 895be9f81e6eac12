// Package clock abstracts timers so fleet scheduling can be driven
// deterministically in tests.
//
// Production code receives Real(). Tests receive Fake(start) and move time
// with Advance; AfterFunc callbacks registered on a FakeClock run
// synchronously inside Advance, in deadline order.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	ctl := fleet.NewController(fleet.Params{Clock: c, ...})
//	c.Advance(2 * time.Second) // fires the second staggered connect
//
// PendingCount reports how many timers are still armed, which is how the
// fleet tests assert that disconnecting or stopping a search leaves no
// timers behind.
package clock
