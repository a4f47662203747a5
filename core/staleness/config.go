package staleness

import "time"

// Config tunes the two-tier staleness detector: a constrained min-heap for
// near-term expirations and a timer wheel for everything beyond the heap's
// horizon.
type Config struct {
	// HeapMaxSize caps the number of entries held in the constrained heap.
	HeapMaxSize int
	// HeapTimeHorizon caps how far into the future a heap entry's expiry
	// may lie; anything further is delegated to the timer wheel.
	HeapTimeHorizon time.Duration
	// PrecisionGap is the window within which a new entry coalesces onto
	// the heap's current top instead of creating a new node.
	PrecisionGap time.Duration
	// TimerWheelSlots is the number of slots in the overflow ring.
	TimerWheelSlots int
	// SlotDuration is the wall-clock span covered by one wheel slot.
	SlotDuration time.Duration
	// Preemptive enables the background expiration goroutine. When false,
	// the detector only advances when Tick is called (cooperative mode).
	Preemptive bool
}

// DefaultConfig mirrors the bare tier-1 defaults documented for the
// constrained heap: 256 entries, 100ms horizon, 500us precision gap, a
// 128-slot wheel sized to the same horizon, cooperative driving.
func DefaultConfig() Config {
	return Config{
		HeapMaxSize:     256,
		HeapTimeHorizon: 100 * time.Millisecond,
		PrecisionGap:    500 * time.Microsecond,
		TimerWheelSlots: 128,
		SlotDuration:    (100 * time.Millisecond) / 128,
		Preemptive:      false,
	}
}

// HighFrequency is tuned for sub-millisecond, real-time streams.
func HighFrequency() Config {
	return Config{
		HeapMaxSize:     256,
		HeapTimeHorizon: 100 * time.Millisecond,
		PrecisionGap:    100 * time.Microsecond,
		TimerWheelSlots: 128,
		SlotDuration:    (100 * time.Millisecond) / 128,
		Preemptive:      true,
	}
}

// LowFrequency is tuned for near real-time streams with millisecond
// precision requirements.
func LowFrequency() Config {
	return Config{
		HeapMaxSize:     64,
		HeapTimeHorizon: time.Second,
		PrecisionGap:    time.Millisecond,
		TimerWheelSlots: 64,
		SlotDuration:    time.Second / 64,
		Preemptive:      true,
	}
}

// Batch is tuned for relaxed-precision, lazily-checked offline processing.
func Batch() Config {
	return Config{
		HeapMaxSize:     32,
		HeapTimeHorizon: 10 * time.Second,
		PrecisionGap:    10 * time.Millisecond,
		TimerWheelSlots: 32,
		SlotDuration:    10 * time.Second / 32,
		Preemptive:      false,
	}
}

// Override is a functional option applied over a copy of a base Config
// (typically one of the presets above), implementing field-wise
// replacement: every field an Override sets wins outright, there is no
// merge-by-zero-value behavior.
type Override func(*Config)

// Custom applies overrides over a copy of base and returns the result,
// leaving base untouched.
func Custom(base Config, overrides ...Override) Config {
	cfg := base
	for _, o := range overrides {
		o(&cfg)
	}
	return cfg
}

func WithHeapMaxSize(n int) Override { return func(c *Config) { c.HeapMaxSize = n } }
func WithHeapTimeHorizon(d time.Duration) Override {
	return func(c *Config) { c.HeapTimeHorizon = d }
}
func WithPrecisionGap(d time.Duration) Override { return func(c *Config) { c.PrecisionGap = d } }
func WithTimerWheelSlots(n int) Override        { return func(c *Config) { c.TimerWheelSlots = n } }
func WithSlotDuration(d time.Duration) Override { return func(c *Config) { c.SlotDuration = d } }
func WithPreemptive(b bool) Override            { return func(c *Config) { c.Preemptive = b } }
