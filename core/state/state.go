package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jerry73204/conflux/core/buffer"
	"github.com/jerry73204/conflux/core/staleness"
	"github.com/jerry73204/conflux/core/types"
)

// State owns one Buffer per stream key, the matcher that aligns their
// fronts into groups, and the optional staleness detector that expires
// messages that wait too long for a partner.
type State[K comparable, T types.Message] struct {
	mu sync.Mutex

	keys    []K
	buffers map[K]*buffer.Buffer[T]
	cfg     types.Config
	stats   types.Stats[K]

	detector *staleness.Detector[K]
	spaceCh  chan struct{}

	clock    func() time.Time
	logger   *slog.Logger
	recorder Recorder[K]

	seq        uint64
	lastCommit *types.Timestamp

	shutdown bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New validates keys and cfg, allocates one buffer per key, and starts the
// staleness detector if cfg.Staleness is set.
func New[K comparable, T types.Message](keys []K, cfg types.Config, opts ...Option[K]) (*State[K, T], error) {
	if len(keys) == 0 {
		return nil, ErrEmptyKeys
	}
	seen := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateKey, k)
		}
		seen[k] = struct{}{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions[K]()
	for _, opt := range opts {
		opt(&o)
	}

	s := &State[K, T]{
		keys:     append([]K(nil), keys...),
		buffers:  make(map[K]*buffer.Buffer[T], len(keys)),
		cfg:      cfg,
		stats:    types.NewStats(keys),
		spaceCh:  make(chan struct{}),
		clock:    o.clock,
		logger:   o.logger,
		recorder: o.recorder,
		stopCh:   make(chan struct{}),
	}
	for _, k := range keys {
		s.buffers[k] = buffer.New[T](cfg.BufferSize)
	}

	if cfg.Staleness != nil {
		s.detector = staleness.NewDetector[K](*cfg.Staleness, o.clock, o.logger)
		if cfg.Staleness.Preemptive {
			s.detector.Start()
			s.wg.Add(1)
			go s.drainExpirations()
		}
	}

	s.logger.Debug("state created", "component", "state", "event_type", "created", "keys", len(keys))
	return s, nil
}

// Push attempts to enqueue msg for key k, applying the drop policy, start
// time filter, and staleness registration, then reports the result and a
// feedback snapshot.
func (s *State[K, T]) Push(k K, msg T) (types.PushResult, types.Feedback[K], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushLocked(k, msg)
}

// PushBlocking behaves like Push but, under RejectNew with a full buffer,
// blocks until space frees up or ctx is done instead of returning
// BufferFull immediately.
func (s *State[K, T]) PushBlocking(ctx context.Context, k K, msg T) (types.PushResult, types.Feedback[K], error) {
	for {
		s.mu.Lock()
		if s.shutdown {
			s.mu.Unlock()
			return 0, types.Feedback[K]{}, ErrShutdown
		}
		buf, ok := s.buffers[k]
		if !ok {
			s.mu.Unlock()
			return 0, types.Feedback[K]{}, fmt.Errorf("%w: %v", ErrUnknownKey, k)
		}
		if !buf.IsFull() || s.cfg.DropPolicy == types.DropOldest {
			res, fb, err := s.pushLocked(k, msg)
			s.mu.Unlock()
			return res, fb, err
		}
		wait := s.spaceCh
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, types.Feedback[K]{}, ctx.Err()
		case <-wait:
		}
	}
}

// pushLocked implements base spec §4.4 push(k, msg) semantics. Caller must
// hold s.mu.
func (s *State[K, T]) pushLocked(k K, msg T) (types.PushResult, types.Feedback[K], error) {
	if s.shutdown {
		return 0, types.Feedback[K]{}, ErrShutdown
	}

	buf, ok := s.buffers[k]
	if !ok {
		return 0, types.Feedback[K]{}, fmt.Errorf("%w: %v", ErrUnknownKey, k)
	}

	ts := msg.Timestamp()
	if s.cfg.StartTime != nil && ts < *s.cfg.StartTime {
		s.stats.BeforeStart[k]++
		if s.recorder != nil {
			s.recorder.ObserveBeforeStart(k)
		}
		return types.BeforeStart, s.feedbackLocked(), nil
	}

	if buf.IsFull() {
		switch s.cfg.DropPolicy {
		case types.RejectNew:
			s.stats.Rejected[k]++
			if s.recorder != nil {
				s.recorder.ObserveRejected(k)
			}
			return types.BufferFull, s.feedbackLocked(), nil
		case types.DropOldest:
			if _, poppedSeq, ok := buf.PopFront(); ok {
				if s.detector != nil {
					s.detector.Cancel(k, poppedSeq)
				}
				s.stats.DroppedCapacity[k]++
				if s.recorder != nil {
					s.recorder.ObserveDroppedCapacity(k)
				}
				s.signalSpaceLocked()
			}
		}
	}

	seq, res := buf.PushBack(msg)
	if res == types.OutOfOrder {
		s.stats.OutOfOrder[k]++
		if s.recorder != nil {
			s.recorder.ObserveOutOfOrder(k)
		}
		return types.OutOfOrder, s.feedbackLocked(), nil
	}

	if s.detector != nil {
		ttl := s.cfg.StalenessTTL
		if exp, ok := any(msg).(types.Expirable); ok {
			if override, has := exp.Timeout(); has {
				ttl = override
			}
		}
		s.detector.Add(k, seq, ttl)
	}

	now := s.clock()
	if s.detector != nil && (s.cfg.Staleness == nil || !s.cfg.Staleness.Preemptive) {
		for _, e := range s.detector.Tick(now) {
			s.applyExpiryLocked(e)
		}
	}

	s.stats.Received[k]++
	if s.recorder != nil {
		s.recorder.ObserveReceived(k)
	}
	return types.Accepted, s.feedbackLocked(), nil
}

// Poll calls tryMatch once.
func (s *State[K, T]) Poll() (types.Group[K, T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tryMatch()
}

// Drain repeats Poll until it returns false, collecting every emitted
// group.
func (s *State[K, T]) Drain() []types.Group[K, T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	var groups []types.Group[K, T]
	for {
		g, ok := s.tryMatch()
		if !ok {
			return groups
		}
		groups = append(groups, g)
	}
}

// tryMatch implements base spec §4.2 verbatim: laggard-drop, not
// window-start trim. Caller must hold s.mu.
func (s *State[K, T]) tryMatch() (types.Group[K, T], bool) {
	var zero types.Group[K, T]

	fronts := make(map[K]T, len(s.keys))
	for _, k := range s.keys {
		v, ok := s.buffers[k].Front()
		if !ok {
			return zero, false
		}
		fronts[k] = v
	}

	inf := fronts[s.keys[0]].Timestamp()
	sup := inf
	for _, k := range s.keys[1:] {
		ts := fronts[k].Timestamp()
		if ts < inf {
			inf = ts
		}
		if ts > sup {
			sup = ts
		}
	}

	if s.cfg.InWindow(sup - inf) {
		group := types.Group[K, T]{
			Timestamp: inf,
			Keys:      append([]K(nil), s.keys...),
			Values:    make([]T, len(s.keys)),
		}
		for i, k := range s.keys {
			v, seq, _ := s.buffers[k].PopFront()
			group.Values[i] = v
			if s.detector != nil {
				s.detector.Cancel(k, seq)
			}
		}
		s.stats.GroupsEmitted++
		if s.recorder != nil {
			s.recorder.ObserveGroupEmitted()
		}
		ts := group.Timestamp
		s.lastCommit = &ts
		s.signalSpaceLocked()
		return group, true
	}

	for _, k := range s.keys {
		if fronts[k].Timestamp() == inf {
			if _, seq, ok := s.buffers[k].PopFront(); ok {
				if s.detector != nil {
					s.detector.Cancel(k, seq)
				}
				s.stats.DroppedWindow[k]++
				if s.recorder != nil {
					s.recorder.ObserveDroppedWindow(k)
				}
			}
		}
	}
	s.signalSpaceLocked()
	return zero, false
}

// Flush trims every buffer's front strictly before windowStart, for callers
// tracking an external watermark, and then depletes whatever that trim
// unblocks. Distinct from tryMatch's own laggard-drop and from Deplete,
// which runs the same drain loop without an upfront trim.
func (s *State[K, T]) Flush(windowStart types.Timestamp) []types.Group[K, T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.keys {
		dropped := s.buffers[k].DropBefore(windowStart)
		for _, seq := range dropped {
			if s.detector != nil {
				s.detector.Cancel(k, seq)
			}
			s.stats.DroppedWindow[k]++
			if s.recorder != nil {
				s.recorder.ObserveDroppedWindow(k)
			}
		}
	}
	s.signalSpaceLocked()
	return s.depleteLocked()
}

// Deplete calls tryMatch repeatedly, carrying on past each laggard-drop and
// collecting every group that emerges, until some buffer runs empty. Unlike
// Flush it trims nothing on its
// own; it is what the sync driver calls on input close, when no more data
// is coming and any remaining laggard can never be matched anyway.
func (s *State[K, T]) Deplete() []types.Group[K, T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depleteLocked()
}

// depleteLocked is Deplete's body, shared with Flush. Caller must hold s.mu.
func (s *State[K, T]) depleteLocked() []types.Group[K, T] {
	var groups []types.Group[K, T]
	for s.allFrontsPresentLocked() {
		g, ok := s.tryMatch()
		if !ok {
			// tryMatch dropped a laggard rather than matching; the new
			// fronts may match (or drop again) on the next pass.
			continue
		}
		groups = append(groups, g)
	}
	return groups
}

// allFrontsPresentLocked reports whether every buffer has at least one
// message, i.e. whether tryMatch has anything to work with. Caller must
// hold s.mu.
func (s *State[K, T]) allFrontsPresentLocked() bool {
	for _, k := range s.keys {
		if _, ok := s.buffers[k].Front(); !ok {
			return false
		}
	}
	return true
}

// Feedback returns an occupancy and backpressure snapshot.
func (s *State[K, T]) Feedback() types.Feedback[K] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedbackLocked()
}

func (s *State[K, T]) feedbackLocked() types.Feedback[K] {
	s.seq++
	occ := make(map[K]types.Occupancy, len(s.keys))
	bp := make(map[K]bool, len(s.keys))
	for _, k := range s.keys {
		buf := s.buffers[k]
		length, capacity := buf.Len(), buf.Cap()
		occ[k] = types.Occupancy{Len: length, Cap: capacity}
		backpressured := false
		if capacity > 0 {
			backpressured = float64(length)/float64(capacity) >= 0.75
		}
		bp[k] = backpressured
		if s.recorder != nil {
			s.recorder.ObserveOccupancy(k, length, capacity)
		}
	}
	var commit *types.Timestamp
	if s.lastCommit != nil {
		ts := *s.lastCommit
		commit = &ts
	}
	return types.Feedback[K]{Seq: s.seq, Occupancy: occ, Backpressure: bp, CommitTimestamp: commit}
}

// Stats returns a snapshot of the conservation counters.
func (s *State[K, T]) Stats() types.Stats[K] {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := types.NewStats(s.keys)
	for _, k := range s.keys {
		out.Received[k] = s.stats.Received[k]
		out.Rejected[k] = s.stats.Rejected[k]
		out.OutOfOrder[k] = s.stats.OutOfOrder[k]
		out.BeforeStart[k] = s.stats.BeforeStart[k]
		out.DroppedCapacity[k] = s.stats.DroppedCapacity[k]
		out.DroppedStale[k] = s.stats.DroppedStale[k]
		out.DroppedWindow[k] = s.stats.DroppedWindow[k]
	}
	out.GroupsEmitted = s.stats.GroupsEmitted
	return out
}

// Shutdown stops the staleness detector and marks the State closed. Push
// and PushBlocking return ErrShutdown afterward. Idempotent.
func (s *State[K, T]) Shutdown() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	if s.detector != nil {
		s.detector.Stop()
	}
	close(s.stopCh)
	s.wg.Wait()

	s.logger.Debug("state shut down", "component", "state", "event_type", "shutdown")
	return nil
}

// applyExpiryLocked removes the buffered item named by e if it is still the
// front of its buffer. If a match already consumed it, this is a no-op per
// base spec §4.3. Caller must hold s.mu.
func (s *State[K, T]) applyExpiryLocked(e staleness.Entry[K]) {
	buf, ok := s.buffers[e.Key]
	if !ok {
		return
	}
	frontSeq, ok := buf.FrontSeq()
	if !ok || frontSeq != e.Handle {
		return
	}
	buf.PopFront()
	s.stats.DroppedStale[e.Key]++
	if s.recorder != nil {
		s.recorder.ObserveDroppedStale(e.Key)
	}
	s.signalSpaceLocked()
}

// drainExpirations relays preemptive-mode expirations from the detector's
// channel into the same removal path Push uses cooperatively.
func (s *State[K, T]) drainExpirations() {
	defer s.wg.Done()
	for {
		select {
		case e, ok := <-s.detector.Expired():
			if !ok {
				return
			}
			s.mu.Lock()
			s.applyExpiryLocked(e)
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

// signalSpaceLocked wakes every PushBlocking waiter. Caller must hold s.mu.
func (s *State[K, T]) signalSpaceLocked() {
	close(s.spaceCh)
	s.spaceCh = make(chan struct{})
}
