package types

// Occupancy describes how full one stream's buffer is.
type Occupancy struct {
	Len int
	Cap int
}

// Feedback is emitted after every push attempt. It carries per-stream
// occupancy, a backpressure flag per stream (>=75% full by default), a
// monotonically increasing sequence number, and the synchronizer's last
// committed group timestamp so producers can discard messages that can
// never match.
type Feedback[K comparable] struct {
	Seq             uint64
	Occupancy       map[K]Occupancy
	Backpressure    map[K]bool
	CommitTimestamp *Timestamp
}

// Stats are the engine's conservation counters. Received counts accepted
// pushes only; Rejected, OutOfOrder and BeforeStart count pushes that were
// not accepted. For every key, Received == GroupsEmitted + DroppedCapacity +
// DroppedStale + DroppedWindow + the number of messages still buffered.
type Stats[K comparable] struct {
	Received        map[K]uint64
	Rejected        map[K]uint64
	OutOfOrder      map[K]uint64
	BeforeStart     map[K]uint64
	DroppedCapacity map[K]uint64
	DroppedStale    map[K]uint64
	DroppedWindow   map[K]uint64
	GroupsEmitted   uint64
}

// NewStats returns a Stats value with every per-key map allocated and
// zeroed for the given keys.
func NewStats[K comparable](keys []K) Stats[K] {
	s := Stats[K]{
		Received:        make(map[K]uint64, len(keys)),
		Rejected:        make(map[K]uint64, len(keys)),
		OutOfOrder:      make(map[K]uint64, len(keys)),
		BeforeStart:     make(map[K]uint64, len(keys)),
		DroppedCapacity: make(map[K]uint64, len(keys)),
		DroppedStale:    make(map[K]uint64, len(keys)),
		DroppedWindow:   make(map[K]uint64, len(keys)),
	}
	for _, k := range keys {
		s.Received[k] = 0
		s.Rejected[k] = 0
		s.OutOfOrder[k] = 0
		s.BeforeStart[k] = 0
		s.DroppedCapacity[k] = 0
		s.DroppedStale[k] = 0
		s.DroppedWindow[k] = 0
	}
	return s
}
