package taskkernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_WaitReleasesAfterSet(t *testing.T) {
	k := newTestKernel(t)
	ev := NewEvent()

	var woke bool
	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		waiter, err := ctx.Spawn(func(ctx *Context) (any, error) {
			if err := ctx.WaitEvent(ev); err != nil {
				return nil, err
			}
			woke = true
			return nil, nil
		}, false)
		if err != nil {
			return nil, err
		}
		if err := ctx.Sleep(0.001); err != nil {
			return nil, err
		}
		if err := ctx.SetEvent(ev); err != nil {
			return nil, err
		}
		_, err = ctx.Join(waiter)
		return nil, err
	}, false)

	require.NoError(t, err)
	assert.True(t, woke)
	assert.True(t, ev.IsSet())
}

func TestLock_MutualExclusionOrdering(t *testing.T) {
	k := newTestKernel(t)
	lock := NewLock()

	var order []int
	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		holder := func(id int) *Task {
			child, _ := ctx.Spawn(func(ctx *Context) (any, error) {
				if err := ctx.AcquireLock(lock); err != nil {
					return nil, err
				}
				order = append(order, id)
				if err := ctx.Sleep(0.001); err != nil {
					return nil, err
				}
				return nil, ctx.ReleaseLock(lock)
			}, false)
			return child
		}

		if err := ctx.AcquireLock(lock); err != nil {
			return nil, err
		}
		a := holder(1)
		b := holder(2)
		if err := ctx.ReleaseLock(lock); err != nil {
			return nil, err
		}
		if _, err := ctx.Join(a); err != nil {
			return nil, err
		}
		_, err := ctx.Join(b)
		return nil, err
	}, false)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, order)
}

func TestSemaphore_BlocksUntilReleased(t *testing.T) {
	k := newTestKernel(t)
	sem := NewSemaphore(1)

	var acquired bool
	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		if err := ctx.AcquireSemaphore(sem); err != nil {
			return nil, err
		}

		waiter, err := ctx.Spawn(func(ctx *Context) (any, error) {
			if err := ctx.AcquireSemaphore(sem); err != nil {
				return nil, err
			}
			acquired = true
			return nil, ctx.ReleaseSemaphore(sem)
		}, false)
		if err != nil {
			return nil, err
		}

		if err := ctx.Sleep(0.001); err != nil {
			return nil, err
		}
		assert.False(t, acquired)
		if err := ctx.ReleaseSemaphore(sem); err != nil {
			return nil, err
		}
		_, err = ctx.Join(waiter)
		return nil, err
	}, false)

	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestBoundedSemaphore_OverReleaseErrors(t *testing.T) {
	k := newTestKernel(t)
	sem := NewBoundedSemaphore(1)

	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		return nil, ctx.ReleaseBoundedSemaphore(sem)
	}, false)

	assert.ErrorIs(t, err, ErrSemaphoreOverRelease)
}

func TestQueue_PutGetFIFO(t *testing.T) {
	k := newTestKernel(t)
	q := NewQueue(0)

	var got []any
	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		if err := ctx.Put(q, 1); err != nil {
			return nil, err
		}
		if err := ctx.Put(q, 2); err != nil {
			return nil, err
		}
		for i := 0; i < 2; i++ {
			v, err := ctx.Get(q)
			if err != nil {
				return nil, err
			}
			got = append(got, v)
			if err := ctx.TaskDone(q); err != nil {
				return nil, err
			}
		}
		return nil, ctx.JoinQueue(q)
	}, false)

	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, got)
}

func TestQueue_PutBlocksAtCapacity(t *testing.T) {
	k := newTestKernel(t)
	q := NewQueue(1)

	var producerDone bool
	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		if err := ctx.Put(q, "a"); err != nil {
			return nil, err
		}

		producer, err := ctx.Spawn(func(ctx *Context) (any, error) {
			if err := ctx.Put(q, "b"); err != nil {
				return nil, err
			}
			producerDone = true
			return nil, nil
		}, false)
		if err != nil {
			return nil, err
		}

		if err := ctx.Sleep(0.001); err != nil {
			return nil, err
		}
		assert.False(t, producerDone)

		if _, err := ctx.Get(q); err != nil {
			return nil, err
		}
		_, err = ctx.Join(producer)
		return nil, err
	}, false)

	require.NoError(t, err)
	assert.True(t, producerDone)
}

func TestCondition_NotifyOneWakesSingleWaiter(t *testing.T) {
	k := newTestKernel(t)
	cv := NewCondition(nil)

	var woken int
	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		waiter := func() *Task {
			child, _ := ctx.Spawn(func(ctx *Context) (any, error) {
				if err := ctx.AcquireLock(cv.Lock()); err != nil {
					return nil, err
				}
				if err := ctx.ConditionWait(cv); err != nil {
					return nil, err
				}
				woken++
				return nil, ctx.ReleaseLock(cv.Lock())
			}, false)
			return child
		}
		a := waiter()
		b := waiter()

		if err := ctx.Sleep(0.001); err != nil {
			return nil, err
		}
		if err := ctx.AcquireLock(cv.Lock()); err != nil {
			return nil, err
		}
		if err := ctx.NotifyOne(cv); err != nil {
			return nil, err
		}
		if err := ctx.ReleaseLock(cv.Lock()); err != nil {
			return nil, err
		}

		if err := ctx.Sleep(0.001); err != nil {
			return nil, err
		}
		assert.Equal(t, 1, woken)

		if err := ctx.AcquireLock(cv.Lock()); err != nil {
			return nil, err
		}
		if err := ctx.NotifyAll(cv); err != nil {
			return nil, err
		}
		if err := ctx.ReleaseLock(cv.Lock()); err != nil {
			return nil, err
		}

		if _, err := ctx.Join(a); err != nil {
			return nil, err
		}
		_, err := ctx.Join(b)
		return nil, err
	}, false)

	require.NoError(t, err)
	assert.Equal(t, 2, woken)
}
