package taskkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerQueue_PopExpiredOrdersByDeadlineThenSeq(t *testing.T) {
	q := newTimerQueue()

	tA := &Task{ID: 1}
	tB := &Task{ID: 2}
	tC := &Task{ID: 3}

	q.schedule(5, tA, timerSleep)
	q.schedule(1, tB, timerTimeout)
	q.schedule(1, tC, timerSleep)

	deadline, ok := q.peekDeadline()
	require.True(t, ok)
	assert.Equal(t, float64(1), deadline)

	expired := q.popExpired(1)
	require.Len(t, expired, 2)
	assert.Equal(t, tB, expired[0].task)
	assert.Equal(t, tC, expired[1].task)

	deadline, ok = q.peekDeadline()
	require.True(t, ok)
	assert.Equal(t, float64(5), deadline)

	assert.Empty(t, q.popExpired(4))
	expired = q.popExpired(5)
	require.Len(t, expired, 1)
	assert.Equal(t, tA, expired[0].task)

	_, ok = q.peekDeadline()
	assert.False(t, ok)
}

func TestTimerQueue_RemoveSplicesEntryOut(t *testing.T) {
	q := newTimerQueue()

	e1 := q.schedule(1, &Task{ID: 1}, timerSleep)
	e2 := q.schedule(2, &Task{ID: 2}, timerSleep)
	_ = e2

	q.remove(e1)
	// removing an already-removed entry is a no-op, not a panic
	q.remove(e1)
	// removing a nil entry is a no-op
	q.remove(nil)

	deadline, ok := q.peekDeadline()
	require.True(t, ok)
	assert.Equal(t, float64(2), deadline)
	assert.Equal(t, 1, q.h.Len())
}

func TestWaitQueue_FIFOEnqueueDequeue(t *testing.T) {
	wq := newWaitQueue("test")

	a := &Task{ID: 1}
	b := &Task{ID: 2}
	c := &Task{ID: 3}

	wq.Enqueue(a)
	wq.Enqueue(b)
	wq.Enqueue(c)
	assert.Equal(t, 3, wq.Len())

	front := wq.Front()
	assert.Equal(t, a, front)

	woken := wq.Dequeue(2)
	require.Len(t, woken, 2)
	assert.Equal(t, []*Task{a, b}, woken)
	assert.Equal(t, 1, wq.Len())

	assert.Equal(t, c, wq.Front())
}

func TestWaitQueue_RemoveIsRaceTolerant(t *testing.T) {
	wq := newWaitQueue("test")

	a := &Task{ID: 1}
	b := &Task{ID: 2}
	wq.Enqueue(a)
	wq.Enqueue(b)

	wq.Remove(a)
	assert.Equal(t, 1, wq.Len())

	// removing the same task twice (e.g. a race between a cancelFunc
	// splice and a natural wake) must not panic.
	wq.Remove(a)
	assert.Equal(t, 1, wq.Len())

	woken := wq.Dequeue(10)
	require.Len(t, woken, 1)
	assert.Equal(t, b, woken[0])
}
