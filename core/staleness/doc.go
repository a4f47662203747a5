// Package staleness implements a two-tier detector for deciding when a
// buffered message has waited too long for its match partners and should be
// dropped.
//
// Tier one is a constrained min-heap: bounded in size and restricted to
// expirations within a short time horizon, so it stays cheap to probe on
// every push. Near-simultaneous expirations coalesce onto a single heap
// node instead of each claiming their own slot. Tier two is a timer wheel
// that absorbs everything tier one rejects — entries too far in the future,
// or arriving once the heap is already full — at coarser, slot-granularity
// precision.
//
// A Detector can be driven cooperatively, by calling Tick from the caller's
// own hot path, or preemptively, via an internal goroutine that sleeps until
// the next known deadline and delivers expirations on a channel.
package staleness
