// Package notify fans operator-visible notices out to in-process
// subscribers.
//
// The fleet publishes a Notice for every lifecycle change, search outcome
// and chat line worth showing. The console prints them, the ledger
// recorder persists a subset and the metrics collector counts them.
// Publishing never blocks: a subscriber whose buffer is full misses the
// notice.
package notify
