// Package metrics wraps a Prometheus registry with the counters and gauges
// the synchronization engine can report against. Stats() on core/state
// remains the authoritative source of truth; a Recorder is a secondary,
// optional export path for the same events.
package metrics
