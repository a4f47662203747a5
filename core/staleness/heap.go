package staleness

import "time"

// Entry names one staleness registration: the stream it belongs to and the
// opaque handle (a per-key monotonic sequence number in practice) that lets
// the owner correlate an expiration back to a specific buffered item.
type Entry[K comparable] struct {
	Key    K
	Handle uint64
}

type entryLocator[K comparable] struct {
	key    K
	handle uint64
}

// node is one slot in the constrained heap. A node can hold more than one
// Entry when insertions coalesce within the precision gap.
type node[K comparable] struct {
	expiresAt time.Time
	entries   []Entry[K]
	index     int
}

// constrainedHeap is an indexed min-heap bounded by size and by how far into
// the future an entry's expiry may lie, with near-simultaneous expirations
// coalesced onto a single node. It is adapted from the teacher's
// priority.Queue (array-backed binary heap with an index map for O(log n)
// removal), generalized so that one heap node can carry several coalesced
// entries instead of exactly one value.
type constrainedHeap[K comparable] struct {
	nodes    []*node[K]
	byEntry  map[entryLocator[K]]*node[K]
	maxSize  int
	horizon  time.Duration
	precGap  time.Duration
}

func newConstrainedHeap[K comparable](maxSize int, horizon, precisionGap time.Duration) *constrainedHeap[K] {
	return &constrainedHeap[K]{
		nodes:   make([]*node[K], 0, maxSize),
		byEntry: make(map[entryLocator[K]]*node[K]),
		maxSize: maxSize,
		horizon: horizon,
		precGap: precisionGap,
	}
}

func (h *constrainedHeap[K]) Len() int { return len(h.nodes) }

func (h *constrainedHeap[K]) IsEmpty() bool { return len(h.nodes) == 0 }

// Peek returns the nearest expiry time tracked by the heap.
func (h *constrainedHeap[K]) Peek() (time.Time, bool) {
	if len(h.nodes) == 0 {
		return time.Time{}, false
	}
	return h.nodes[0].expiresAt, true
}

// TryAdd attempts to register key/handle expiring at expiresAt. It returns
// false when the entry must be delegated to the timer wheel instead: either
// expiresAt lies beyond the heap's time horizon, or the heap is already at
// its size cap and no coalescing slot is available.
func (h *constrainedHeap[K]) TryAdd(now time.Time, key K, handle uint64, expiresAt time.Time) bool {
	if expiresAt.Sub(now) > h.horizon {
		return false
	}

	if len(h.nodes) > 0 {
		top := h.nodes[0]
		diff := top.expiresAt.Sub(expiresAt)
		if diff < 0 {
			diff = -diff
		}
		if diff <= h.precGap {
			top.entries = append(top.entries, Entry[K]{Key: key, Handle: handle})
			h.byEntry[entryLocator[K]{key, handle}] = top
			return true
		}
	}

	if len(h.nodes) >= h.maxSize {
		return false
	}

	n := &node[K]{expiresAt: expiresAt, entries: []Entry[K]{{Key: key, Handle: handle}}, index: len(h.nodes)}
	h.nodes = append(h.nodes, n)
	h.byEntry[entryLocator[K]{key, handle}] = n
	h.up(n.index)
	return true
}

// PopExpired removes and returns every entry whose node has expired by now.
func (h *constrainedHeap[K]) PopExpired(now time.Time) []Entry[K] {
	var expired []Entry[K]
	for len(h.nodes) > 0 && !h.nodes[0].expiresAt.After(now) {
		n := h.removeAt(0)
		expired = append(expired, n.entries...)
	}
	return expired
}

// Cancel removes a single entry (identified by key+handle) from whichever
// node holds it, without disturbing the rest of that node's coalesced
// entries. Returns false if the entry was not found (already expired,
// already cancelled, or never registered — all no-ops).
func (h *constrainedHeap[K]) Cancel(key K, handle uint64) bool {
	loc := entryLocator[K]{key, handle}
	n, ok := h.byEntry[loc]
	if !ok {
		return false
	}
	delete(h.byEntry, loc)

	for i, e := range n.entries {
		if e.Key == key && e.Handle == handle {
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
			break
		}
	}
	if len(n.entries) == 0 {
		h.removeAt(n.index)
	}
	return true
}

func (h *constrainedHeap[K]) removeAt(i int) *node[K] {
	n := h.nodes[i]
	last := len(h.nodes) - 1
	h.swap(i, last)
	h.nodes = h.nodes[:last]
	if i < last {
		h.down(i)
		h.up(i)
	}
	for _, e := range n.entries {
		delete(h.byEntry, entryLocator[K]{e.Key, e.Handle})
	}
	return n
}

func (h *constrainedHeap[K]) swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.nodes[i].index = i
	h.nodes[j].index = j
}

func (h *constrainedHeap[K]) less(i, j int) bool {
	return h.nodes[i].expiresAt.Before(h.nodes[j].expiresAt)
}

func (h *constrainedHeap[K]) up(i int) {
	for {
		parent := (i - 1) / 2
		if parent == i || !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *constrainedHeap[K]) down(i int) {
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < len(h.nodes) && h.less(left, smallest) {
			smallest = left
		}
		if right < len(h.nodes) && h.less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.swap(i, smallest)
		i = smallest
	}
}
