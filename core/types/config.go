package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/jerry73204/conflux/core/staleness"
)

// ErrConfigInvalid is wrapped with the offending field name and returned by
// Config.Validate.
var ErrConfigInvalid = errors.New("invalid config")

// Config tunes one State instance: its window semantics, buffer capacity,
// drop policy, and optional staleness detection.
type Config struct {
	// WindowSize bounds how far apart the earliest and latest buffered
	// fronts may be for a group to be emitted. Nil means infinite: a group
	// is always produced once every buffer is non-empty.
	WindowSize *time.Duration
	// BufferSize caps each stream's buffer. Zero means unbounded.
	BufferSize int
	// StartTime, if set, causes any message timestamped earlier to be
	// silently discarded on push.
	StartTime *time.Duration
	// DropPolicy selects what happens when a full buffer receives a push.
	DropPolicy DropPolicy
	// Staleness configures the staleness detector. Nil disables staleness
	// expiry entirely.
	Staleness *staleness.Config
	// StalenessTTL is the default residency limit applied to a message that
	// does not implement Expirable. Ignored when Staleness is nil.
	StalenessTTL time.Duration
}

// Validate rejects configurations that can never behave sensibly:
// negative buffer sizes, negative window sizes, and, when Staleness is set,
// a non-positive HeapMaxSize or TimerWheelSlots.
func (c Config) Validate() error {
	if c.BufferSize < 0 {
		return fmt.Errorf("%w: BufferSize must be >= 0, got %d", ErrConfigInvalid, c.BufferSize)
	}
	if c.WindowSize != nil && *c.WindowSize < 0 {
		return fmt.Errorf("%w: WindowSize must be >= 0, got %s", ErrConfigInvalid, *c.WindowSize)
	}
	if c.Staleness != nil {
		if c.Staleness.HeapMaxSize <= 0 {
			return fmt.Errorf("%w: Staleness.HeapMaxSize must be > 0, got %d", ErrConfigInvalid, c.Staleness.HeapMaxSize)
		}
		if c.Staleness.TimerWheelSlots <= 0 {
			return fmt.Errorf("%w: Staleness.TimerWheelSlots must be > 0, got %d", ErrConfigInvalid, c.Staleness.TimerWheelSlots)
		}
	}
	return nil
}

// InWindow reports whether span (sup - inf) fits within the configured
// window, treating a nil WindowSize as infinite.
func (c Config) InWindow(span time.Duration) bool {
	if c.WindowSize == nil {
		return true
	}
	return span <= *c.WindowSize
}
