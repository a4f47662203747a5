package buffer_test

import (
	"testing"
	"time"

	"github.com/jerry73204/conflux/core/buffer"
	"github.com/jerry73204/conflux/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type msg struct {
	ts time.Duration
}

func (m msg) Timestamp() types.Timestamp { return m.ts }

func at(ms int) msg { return msg{ts: time.Duration(ms) * time.Millisecond} }

func TestBuffer_PushBack_Accepts(t *testing.T) {
	b := buffer.New[msg](0)

	seq, res := b.PushBack(at(10))
	assert.Equal(t, types.Accepted, res)
	assert.Equal(t, uint64(0), seq)

	seq, res = b.PushBack(at(20))
	assert.Equal(t, types.Accepted, res)
	assert.Equal(t, uint64(1), seq)

	assert.Equal(t, 2, b.Len())
}

func TestBuffer_PushBack_RejectsOutOfOrder(t *testing.T) {
	b := buffer.New[msg](0)
	_, res := b.PushBack(at(20))
	require.Equal(t, types.Accepted, res)

	_, res = b.PushBack(at(10))
	assert.Equal(t, types.OutOfOrder, res)
	assert.Equal(t, 1, b.Len())
}

func TestBuffer_PushBack_AllowsEqualTimestamps(t *testing.T) {
	b := buffer.New[msg](0)
	_, res := b.PushBack(at(10))
	require.Equal(t, types.Accepted, res)
	_, res = b.PushBack(at(10))
	assert.Equal(t, types.Accepted, res)
}

func TestBuffer_PushBack_RejectsWhenFull(t *testing.T) {
	b := buffer.New[msg](2)
	_, res := b.PushBack(at(10))
	require.Equal(t, types.Accepted, res)
	_, res = b.PushBack(at(20))
	require.Equal(t, types.Accepted, res)

	assert.True(t, b.IsFull())
	_, res = b.PushBack(at(30))
	assert.Equal(t, types.BufferFull, res)
}

func TestBuffer_FrontAndPopFront(t *testing.T) {
	b := buffer.New[msg](0)
	assert.True(t, b.IsEmpty())

	_, res := b.PushBack(at(10))
	require.Equal(t, types.Accepted, res)
	_, _ = b.PushBack(at(20))

	front, ok := b.Front()
	require.True(t, ok)
	assert.Equal(t, at(10), front)

	popped, seq, ok := b.PopFront()
	require.True(t, ok)
	assert.Equal(t, at(10), popped)
	assert.Equal(t, uint64(0), seq)
	assert.Equal(t, 1, b.Len())

	_, _, ok = b.PopFront()
	require.True(t, ok)
	assert.True(t, b.IsEmpty())

	_, _, ok = b.PopFront()
	assert.False(t, ok)
}

func TestBuffer_DropExpired(t *testing.T) {
	b := buffer.New[msg](0)
	_, _ = b.PushBack(at(0))
	_, _ = b.PushBack(at(10))
	_, _ = b.PushBack(at(100))

	dropped := b.DropExpired(at(110).ts, 50*time.Millisecond)
	require.Len(t, dropped, 2)
	assert.Equal(t, 1, b.Len())

	front, _ := b.Front()
	assert.Equal(t, at(100), front)
}

func TestBuffer_DropBefore(t *testing.T) {
	b := buffer.New[msg](0)
	_, _ = b.PushBack(at(5))
	_, _ = b.PushBack(at(15))
	_, _ = b.PushBack(at(25))

	dropped := b.DropBefore(at(20).ts)
	require.Len(t, dropped, 2)
	assert.Equal(t, 1, b.Len())

	front, _ := b.Front()
	assert.Equal(t, at(25), front)
}

func TestBuffer_CompactionPreservesOrderAndSequences(t *testing.T) {
	b := buffer.New[msg](0)
	for i := 0; i < 2000; i++ {
		_, res := b.PushBack(at(i))
		require.Equal(t, types.Accepted, res)
	}
	for i := 0; i < 1500; i++ {
		v, seq, ok := b.PopFront()
		require.True(t, ok)
		assert.Equal(t, at(i), v)
		assert.Equal(t, uint64(i), seq)
	}
	assert.Equal(t, 500, b.Len())
	front, _ := b.Front()
	assert.Equal(t, at(1500), front)
}
