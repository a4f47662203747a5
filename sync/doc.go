// Package sync adapts core/state.State into a stream-to-stream driver: it
// consumes an input channel of keyed messages, drives push and drain, and
// produces a stream of groups alongside a stream of feedback records,
// following the {Idle, Running, Draining, Closed} lifecycle of a single
// synchronization session.
package sync
