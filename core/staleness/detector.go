package staleness

import (
	"log/slog"
	"sync"
	"time"
)

// command is sent to the preemptive goroutine to wake it early, either to
// reschedule its sleep around a new nearest deadline or to shut it down.
type command int

const (
	cmdReschedule command = iota
	cmdShutdown
)

// Detector is a two-tier staleness detector: a constrained min-heap handles
// near-term expirations precisely, and a timer wheel absorbs overflow — both
// entries too far in the future for the heap's horizon and entries that
// arrive once the heap is already full. Driving is either cooperative, via
// Tick from the caller's own hot path, or preemptive, via an internal
// goroutine that sleeps until the next known deadline.
type Detector[K comparable] struct {
	mu     sync.Mutex
	heap   *constrainedHeap[K]
	wheel  *timerWheel[K]
	clock  func() time.Time
	logger *slog.Logger

	preemptive bool
	cmd        chan command
	expiredCh  chan Entry[K]
	stopped    chan struct{}
	wg         sync.WaitGroup
}

// NewDetector builds a Detector from cfg. clock defaults to time.Now when
// nil. If cfg.Preemptive is true, call Start to launch the background
// goroutine; otherwise drive the detector by calling Tick.
func NewDetector[K comparable](cfg Config, clock func() time.Time, logger *slog.Logger) *Detector[K] {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	now := clock()
	return &Detector[K]{
		heap:       newConstrainedHeap[K](cfg.HeapMaxSize, cfg.HeapTimeHorizon, cfg.PrecisionGap),
		wheel:      newTimerWheel[K](cfg.TimerWheelSlots, cfg.SlotDuration, now),
		clock:      clock,
		logger:     logger,
		preemptive: cfg.Preemptive,
		cmd:        make(chan command, 1),
		expiredCh:  make(chan Entry[K], 256),
		stopped:    make(chan struct{}),
	}
}

// Add registers key/handle to expire after ttl from now. It tries the
// constrained heap first and falls back to the timer wheel.
func (d *Detector[K]) Add(key K, handle uint64, ttl time.Duration) {
	now := d.clock()
	expiresAt := now.Add(ttl)

	d.mu.Lock()
	ok := d.heap.TryAdd(now, key, handle, expiresAt)
	if !ok {
		d.wheel.Add(now, key, handle, expiresAt)
	}
	d.mu.Unlock()

	if d.preemptive {
		select {
		case d.cmd <- cmdReschedule:
		default:
		}
	}
}

// Cancel removes a pending registration from the constrained heap before it
// fires. Safe to call for an entry that has already expired or was never
// registered. An entry that was delegated to the timer wheel is not removed:
// it stays registered and is still returned by Tick when it expires.
func (d *Detector[K]) Cancel(key K, handle uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.heap.Cancel(key, handle)
}

// Tick cooperatively advances both tiers to now and returns every entry that
// has expired. Callers in cooperative (non-preemptive) mode should call this
// regularly — e.g. once per Push — to bound detection latency.
func (d *Detector[K]) Tick(now time.Time) []Entry[K] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tickLocked(now)
}

func (d *Detector[K]) tickLocked(now time.Time) []Entry[K] {
	expired := d.heap.PopExpired(now)

	wheelExpired, retry := d.wheel.Advance(now)
	expired = append(expired, wheelExpired...)

	for _, se := range retry {
		if !d.heap.TryAdd(now, se.entry.Key, se.entry.Handle, se.expiresAt) {
			// Heap still can't take it (unlikely: it just left the wheel
			// because it's within range); put it back in the wheel.
			d.wheel.Add(now, se.entry.Key, se.entry.Handle, se.expiresAt)
		}
	}

	return expired
}

// NextDeadline reports the nearest expiry held in the constrained heap, if
// any. Entries held only in the timer wheel are not considered.
func (d *Detector[K]) NextDeadline() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.heap.Peek()
}

// Len returns the number of entries currently tracked across both tiers.
func (d *Detector[K]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.heap.byEntry) + d.wheel.Len()
}

// Start launches the preemptive background goroutine. It is a no-op unless
// the detector was configured with Preemptive; expired entries are
// delivered on Expired(). Call Stop to shut it down.
func (d *Detector[K]) Start() {
	if !d.preemptive {
		return
	}
	d.wg.Add(1)
	go d.run()
}

// Expired returns the channel on which the preemptive goroutine delivers
// expirations. Only meaningful after Start; unused in cooperative mode.
func (d *Detector[K]) Expired() <-chan Entry[K] {
	return d.expiredCh
}

// Stop shuts down the preemptive goroutine and waits for it to exit. Safe to
// call even if Start was never called.
func (d *Detector[K]) Stop() {
	if !d.preemptive {
		return
	}
	select {
	case d.cmd <- cmdShutdown:
	case <-d.stopped:
		return
	}
	d.wg.Wait()
}

func (d *Detector[K]) run() {
	defer d.wg.Done()
	defer close(d.stopped)

	for {
		wait := d.sleepDuration()
		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
			now := d.clock()
			d.mu.Lock()
			expired := d.tickLocked(now)
			d.mu.Unlock()
			for _, e := range expired {
				d.expiredCh <- e
			}

		case c := <-d.cmd:
			timer.Stop()
			if c == cmdShutdown {
				return
			}
			// cmdReschedule: loop around and recompute sleepDuration against
			// the newly added deadline.
		}
	}
}

func (d *Detector[K]) sleepDuration() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	deadline, ok := d.heap.Peek()
	if !ok {
		return d.wheel.slotDuration
	}
	now := d.clock()
	wait := deadline.Sub(now)
	if wait <= 0 {
		return time.Nanosecond
	}
	return wait
}
