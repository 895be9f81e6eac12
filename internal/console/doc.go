// Package console is the operator's command line.
//
// A Dispatcher turns one typed line into a call on the fleet and prints
// the immediate outcome. Everything that happens later (connections,
// sightings, chat heard by the agents) reaches the operator through the
// notice Printer instead.
package console
