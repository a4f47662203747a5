package staleness

import "time"

type slotEntry[K comparable] struct {
	entry     Entry[K]
	expiresAt time.Time
}

// timerWheel is a ring of slots covering TimerWheelSlots*SlotDuration of
// wall-clock time, with an overflow list for expirations beyond one full
// rotation. It absorbs everything the constrained heap rejects: entries too
// far out, or arriving when the heap is already at capacity.
type timerWheel[K comparable] struct {
	slots        [][]slotEntry[K]
	slotDuration time.Duration
	numSlots     int
	origin       time.Time
	cursor       int
	overflow     []slotEntry[K]
}

func newTimerWheel[K comparable](numSlots int, slotDuration time.Duration, origin time.Time) *timerWheel[K] {
	return &timerWheel[K]{
		slots:        make([][]slotEntry[K], numSlots),
		slotDuration: slotDuration,
		numSlots:     numSlots,
		origin:       origin,
		cursor:       0,
	}
}

func (w *timerWheel[K]) rotation() time.Duration {
	return time.Duration(w.numSlots) * w.slotDuration
}

func (w *timerWheel[K]) slotFor(t time.Time) int {
	offset := t.Sub(w.origin)
	if offset < 0 {
		offset = 0
	}
	idx := int(offset/w.slotDuration) % w.numSlots
	if idx < 0 {
		idx += w.numSlots
	}
	return idx
}

// Add registers key/handle to fire at expiresAt. Entries more than one full
// wheel rotation after now go to the overflow list and are migrated into a
// slot once Advance brings them within range (or returned as expired if
// Advance finds them already due).
func (w *timerWheel[K]) Add(now time.Time, key K, handle uint64, expiresAt time.Time) {
	se := slotEntry[K]{entry: Entry[K]{Key: key, Handle: handle}, expiresAt: expiresAt}
	if expiresAt.Sub(now) > w.rotation() {
		w.overflow = append(w.overflow, se)
		return
	}
	idx := w.slotFor(expiresAt)
	w.slots[idx] = append(w.slots[idx], se)
}

// Advance walks the wheel forward to now, returning entries that have
// genuinely expired and entries that should be retried against the
// constrained heap because their slot fired early (coarse slot granularity
// can group entries whose exact expiresAt is still in the future). Retry
// entries carry their original expiresAt so the caller can re-register them
// without shortening their remaining TTL.
func (w *timerWheel[K]) Advance(now time.Time) (expired []Entry[K], retry []slotEntry[K]) {
	target := w.slotFor(now)
	steps := 0
	for steps < w.numSlots {
		slot := w.slots[w.cursor]
		w.slots[w.cursor] = nil
		for _, se := range slot {
			if !se.expiresAt.After(now) {
				expired = append(expired, se.entry)
			} else {
				retry = append(retry, se)
			}
		}
		if w.cursor == target {
			break
		}
		w.cursor = (w.cursor + 1) % w.numSlots
		steps++
	}

	if len(w.overflow) > 0 {
		remaining := w.overflow[:0:0]
		for _, se := range w.overflow {
			if !se.expiresAt.After(now) {
				expired = append(expired, se.entry)
			} else if se.expiresAt.Sub(now) <= w.rotation() {
				idx := w.slotFor(se.expiresAt)
				w.slots[idx] = append(w.slots[idx], se)
			} else {
				remaining = append(remaining, se)
			}
		}
		w.overflow = remaining
	}

	return expired, retry
}

func (w *timerWheel[K]) Len() int {
	n := len(w.overflow)
	for _, s := range w.slots {
		n += len(s)
	}
	return n
}
