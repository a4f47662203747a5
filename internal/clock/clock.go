// Package clock defines a named injectable time capability. No other
// package imports it: core/staleness and core/state take the same shape as a
// plain func() time.Time, and the sync driver takes no clock.
package clock

import "time"

// Clock returns the current time. The zero value is not usable; use
// clock.Wall or a test double.
type Clock func() time.Time

// Wall is the production Clock, backed by time.Now.
func Wall() Clock {
	return time.Now
}
