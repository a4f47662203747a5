package sync

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jerry73204/conflux/core/state"
	"github.com/jerry73204/conflux/core/types"
)

// Phase names a point in the driver's lifecycle.
type Phase int32

const (
	Idle Phase = iota
	Running
	Draining
	Closed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Draining:
		return "Draining"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Entry is one item on a Driver's input channel: a stream key paired with
// its message.
type Entry[K comparable, T types.Message] struct {
	Key   K
	Value T
}

// Driver wraps a *state.State as a push/pull stream-to-stream transform. It
// owns no buffering of its own beyond Go channel capacity; State remains
// the single logical owner of all matching state, per base spec §5.
type Driver[K comparable, T types.Message] struct {
	state     *state.State[K, T]
	sessionID string
	logger    *slog.Logger
	phase     atomic.Int32
	errs      chan error
}

// New wraps state for streaming. A UUIDv7 session id is assigned for log
// correlation across a single Run.
func New[K comparable, T types.Message](s *state.State[K, T], logger *slog.Logger) *Driver[K, T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver[K, T]{
		state:     s,
		sessionID: uuid.Must(uuid.NewV7()).String(),
		logger:    logger,
		errs:      make(chan error, 1),
	}
}

// Phase returns the driver's current lifecycle state.
func (d *Driver[K, T]) Phase() Phase {
	return Phase(d.phase.Load())
}

// Errors returns the channel push errors (ErrUnknownKey, ErrShutdown) are
// propagated on. It holds one error; further errors are dropped while it is
// full. Callers should drain it alongside the group and feedback channels
// returned by Run.
func (d *Driver[K, T]) Errors() <-chan error {
	return d.errs
}

// Run consumes in until it closes or ctx is done, pushing every entry into
// State and forwarding whatever groups and feedback that unlocks. On input
// close it depletes the remaining buffers (State.Deplete), sends the groups
// that yields and a final feedback record, and transitions to Closed,
// closing both output channels.
func (d *Driver[K, T]) Run(ctx context.Context, in <-chan Entry[K, T]) (<-chan types.Group[K, T], <-chan types.Feedback[K]) {
	groups := make(chan types.Group[K, T])
	feedback := make(chan types.Feedback[K])

	d.phase.Store(int32(Idle))
	d.logger.Debug("driver run started", "component", "sync", "event_type", "run_started", "session_id", d.sessionID)

	go func() {
		defer close(groups)
		defer close(feedback)
		defer d.phase.Store(int32(Closed))
		defer d.logger.Debug("driver run closed", "component", "sync", "event_type", "run_closed", "session_id", d.sessionID)

		for {
			select {
			case <-ctx.Done():
				return

			case e, ok := <-in:
				if !ok {
					d.drainOnClose(ctx, groups, feedback)
					return
				}
				if d.phase.CompareAndSwap(int32(Idle), int32(Running)) {
					d.logger.Debug("driver transitioned", "component", "sync", "event_type", "phase_change", "phase", Running.String())
				}
				if !d.push(ctx, e, groups, feedback) {
					return
				}
			}
		}
	}()

	return groups, feedback
}

func (d *Driver[K, T]) push(ctx context.Context, e Entry[K, T], groups chan<- types.Group[K, T], feedback chan<- types.Feedback[K]) bool {
	res, fb, err := d.state.Push(e.Key, e.Value)
	if err != nil {
		select {
		case d.errs <- err:
		default:
		}
		d.logger.Warn("push failed", "component", "sync", "event_type", "push_error", "error", err)
		return true
	}
	switch res {
	case types.OutOfOrder, types.BufferFull, types.BeforeStart:
		d.logger.Debug("push counted", "component", "sync", "event_type", "push_counted", "result", res.String())
	}

	if !d.emit(ctx, groups) {
		return false
	}
	select {
	case feedback <- fb:
	case <-ctx.Done():
		return false
	}
	return true
}

func (d *Driver[K, T]) emit(ctx context.Context, groups chan<- types.Group[K, T]) bool {
	for _, g := range d.state.Drain() {
		select {
		case groups <- g:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (d *Driver[K, T]) drainOnClose(ctx context.Context, groups chan<- types.Group[K, T], feedback chan<- types.Feedback[K]) {
	d.phase.Store(int32(Draining))
	d.logger.Debug("driver transitioned", "component", "sync", "event_type", "phase_change", "phase", Draining.String())

	for _, g := range d.state.Deplete() {
		select {
		case groups <- g:
		case <-ctx.Done():
			return
		}
	}

	select {
	case feedback <- d.state.Feedback():
	case <-ctx.Done():
	}
}
