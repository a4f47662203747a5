package types

import "time"

// Timestamp is a non-negative duration relative to an implicit epoch,
// monotonic within a single stream. Resolution is nanoseconds.
type Timestamp = time.Duration

// Message is the capability the engine requires of a payload: a timestamp.
// The engine never inspects anything else about T.
type Message interface {
	Timestamp() Timestamp
}

// Expirable is an optional capability a Message may additionally satisfy to
// override the staleness detector's default timeout for that one message.
// State probes for it with a type assertion; messages that don't implement
// it fall back to the configured staleness preset's timeout.
type Expirable interface {
	// Timeout returns the message's own staleness TTL. The second return
	// value is false when the message has no override.
	Timeout() (time.Duration, bool)
}
