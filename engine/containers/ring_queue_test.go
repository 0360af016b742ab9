package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFifoOrder(t *testing.T) {
	rq := NewRingQueue[int](4)

	for i := 1; i <= 4; i++ {
		require.NoError(t, rq.Enqueue(i))
	}
	assert.True(t, rq.IsFull())
	assert.Equal(t, ErrQueueFull, rq.Enqueue(5))

	for i := 1; i <= 4; i++ {
		v, err := rq.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.True(t, rq.IsEmpty())
	_, err := rq.Dequeue()
	assert.Equal(t, ErrQueueEmpty, err)
}

func TestRingQueueWrapsAround(t *testing.T) {
	rq := NewRingQueue[string](2)

	require.NoError(t, rq.Enqueue("a"))
	require.NoError(t, rq.Enqueue("b"))
	v, err := rq.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	require.NoError(t, rq.Enqueue("c"))
	v, err = rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.Equal(t, 2, rq.Len())
}

func TestRingQueueClear(t *testing.T) {
	rq := NewRingQueue[int](4)
	require.NoError(t, rq.Enqueue(1))
	require.NoError(t, rq.Enqueue(2))

	rq.Clear()
	assert.True(t, rq.IsEmpty())
	assert.Zero(t, rq.Len())

	require.NoError(t, rq.Enqueue(7))
	v, err := rq.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
