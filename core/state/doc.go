// Package state implements the synchronization engine's façade: one buffer
// per stream key, the inf/sup window matcher that aligns their fronts into
// groups, and the bookkeeping (stats, feedback, staleness) that surrounds
// them.
//
// State runs no goroutines except in preemptive staleness mode, where the
// detector's background task and a goroutine relaying its expirations into
// the buffers are started; every other operation runs synchronously on the
// caller's goroutine, guarded by an internal mutex.
package state
