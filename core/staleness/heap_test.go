package staleness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstrainedHeap_TryAdd_OrdersByExpiry(t *testing.T) {
	now := time.Now()
	h := newConstrainedHeap[string](8, time.Second, time.Nanosecond)

	require.True(t, h.TryAdd(now, "a", 1, now.Add(30*time.Millisecond)))
	require.True(t, h.TryAdd(now, "b", 2, now.Add(10*time.Millisecond)))
	require.True(t, h.TryAdd(now, "c", 3, now.Add(20*time.Millisecond)))

	top, ok := h.Peek()
	require.True(t, ok)
	assert.Equal(t, now.Add(10*time.Millisecond), top)
}

func TestConstrainedHeap_TryAdd_RejectsBeyondHorizon(t *testing.T) {
	now := time.Now()
	h := newConstrainedHeap[string](8, 50*time.Millisecond, time.Nanosecond)

	assert.False(t, h.TryAdd(now, "a", 1, now.Add(time.Second)))
	assert.Equal(t, 0, h.Len())
}

func TestConstrainedHeap_TryAdd_RejectsAtCapacity(t *testing.T) {
	now := time.Now()
	h := newConstrainedHeap[string](2, time.Second, time.Nanosecond)

	require.True(t, h.TryAdd(now, "a", 1, now.Add(10*time.Millisecond)))
	require.True(t, h.TryAdd(now, "b", 2, now.Add(50*time.Millisecond)))
	assert.False(t, h.TryAdd(now, "c", 3, now.Add(100*time.Millisecond)))
	assert.Equal(t, 2, h.Len())
}

func TestConstrainedHeap_TryAdd_CoalescesWithinPrecisionGap(t *testing.T) {
	now := time.Now()
	h := newConstrainedHeap[string](2, time.Second, time.Millisecond)

	require.True(t, h.TryAdd(now, "a", 1, now.Add(10*time.Millisecond)))
	// Within the 1ms precision gap of the current top: coalesces, no new node.
	require.True(t, h.TryAdd(now, "b", 2, now.Add(10*time.Millisecond+500*time.Microsecond)))
	assert.Equal(t, 1, h.Len())

	expired := h.PopExpired(now.Add(20 * time.Millisecond))
	assert.Len(t, expired, 2)
}

func TestConstrainedHeap_PopExpired_OnlyReturnsDue(t *testing.T) {
	now := time.Now()
	h := newConstrainedHeap[string](8, time.Second, time.Nanosecond)

	require.True(t, h.TryAdd(now, "a", 1, now.Add(10*time.Millisecond)))
	require.True(t, h.TryAdd(now, "b", 2, now.Add(30*time.Millisecond)))

	expired := h.PopExpired(now.Add(20 * time.Millisecond))
	require.Len(t, expired, 1)
	assert.Equal(t, "a", expired[0].Key)
	assert.Equal(t, 1, h.Len())
}

func TestConstrainedHeap_Cancel(t *testing.T) {
	now := time.Now()
	h := newConstrainedHeap[string](8, time.Second, time.Nanosecond)

	require.True(t, h.TryAdd(now, "a", 1, now.Add(10*time.Millisecond)))
	require.True(t, h.TryAdd(now, "b", 2, now.Add(20*time.Millisecond)))

	assert.True(t, h.Cancel("a", 1))
	assert.Equal(t, 1, h.Len())

	expired := h.PopExpired(now.Add(time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, "b", expired[0].Key)
}

func TestConstrainedHeap_Cancel_UnknownIsNoop(t *testing.T) {
	h := newConstrainedHeap[string](8, time.Second, time.Nanosecond)
	assert.False(t, h.Cancel("missing", 99))
}

func TestConstrainedHeap_Cancel_PartialCoalescedNode(t *testing.T) {
	now := time.Now()
	h := newConstrainedHeap[string](8, time.Second, time.Millisecond)

	require.True(t, h.TryAdd(now, "a", 1, now.Add(10*time.Millisecond)))
	require.True(t, h.TryAdd(now, "b", 2, now.Add(10*time.Millisecond)))
	require.Equal(t, 1, h.Len())

	assert.True(t, h.Cancel("a", 1))
	assert.Equal(t, 1, h.Len())

	expired := h.PopExpired(now.Add(time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, "b", expired[0].Key)
}

func TestConstrainedHeap_ManyEntries_MaintainsHeapInvariant(t *testing.T) {
	now := time.Now()
	h := newConstrainedHeap[int](64, time.Minute, time.Nanosecond)

	deltas := []int{37, 5, 91, 2, 64, 13, 48, 1, 77, 22, 9, 100, 3, 58, 41}
	for i, d := range deltas {
		require.True(t, h.TryAdd(now, i, uint64(i), now.Add(time.Duration(d)*time.Millisecond)))
	}

	var last time.Time
	for h.Len() > 0 {
		top, _ := h.Peek()
		if !last.IsZero() {
			assert.False(t, top.Before(last))
		}
		last = top
		h.PopExpired(top)
	}
}
