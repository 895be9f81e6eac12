// Package dedupe suppresses repeats of the same key inside a time window.
//
// The console uses it to print a chat line once when several agents
// standing in the same lobby all hear it.
package dedupe
