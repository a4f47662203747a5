package state

import (
	"log/slog"
	"time"
)

// Recorder is the metrics hook State calls into at each observation point.
// The metrics package's Recorder satisfies this interface; State only
// depends on the shape, not on Prometheus, so tests can supply a stub.
type Recorder[K comparable] interface {
	ObserveReceived(k K)
	ObserveRejected(k K)
	ObserveOutOfOrder(k K)
	ObserveBeforeStart(k K)
	ObserveDroppedCapacity(k K)
	ObserveDroppedStale(k K)
	ObserveDroppedWindow(k K)
	ObserveGroupEmitted()
	ObserveOccupancy(k K, length, capacity int)
}

type options[K comparable] struct {
	clock    func() time.Time
	logger   *slog.Logger
	recorder Recorder[K]
}

func defaultOptions[K comparable]() options[K] {
	return options[K]{
		clock:  time.Now,
		logger: slog.Default(),
	}
}

// Option configures a State at construction time.
type Option[K comparable] func(*options[K])

// WithClock injects a capability for the current time, letting tests
// substitute a virtual clock instead of wall time.
func WithClock[K comparable](clock func() time.Time) Option[K] {
	return func(o *options[K]) { o.clock = clock }
}

// WithLogger overrides the default slog logger.
func WithLogger[K comparable](logger *slog.Logger) Option[K] {
	return func(o *options[K]) { o.logger = logger }
}

// WithRecorder attaches a metrics recorder. State calls into it from the
// same points it updates its own Stats; Stats remains the source of truth.
func WithRecorder[K comparable](r Recorder[K]) Option[K] {
	return func(o *options[K]) { o.recorder = r }
}
