package taskkernel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	k, err := NewKernel(WithMaxWorkerThreads(4), WithMaxWorkerProcesses(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close() })
	return k
}

func TestKernel_RunReturnsRootResult(t *testing.T) {
	k := newTestKernel(t)

	val, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		return 42, nil
	}, false)

	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestKernel_RunPropagatesRootError(t *testing.T) {
	k := newTestKernel(t)
	boom := errors.New("boom")

	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		return nil, boom
	}, false)

	assert.ErrorIs(t, err, boom)
}

func TestKernel_SpawnAndJoin(t *testing.T) {
	k := newTestKernel(t)

	val, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		child, err := ctx.Spawn(func(ctx *Context) (any, error) {
			return "child done", nil
		}, false)
		if err != nil {
			return nil, err
		}
		return ctx.Join(child)
	}, false)

	require.NoError(t, err)
	assert.Equal(t, "child done", val)
}

func TestKernel_JoinObservesTaskError(t *testing.T) {
	k := newTestKernel(t)
	boom := errors.New("child boom")

	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		child, err := ctx.Spawn(func(ctx *Context) (any, error) {
			return nil, boom
		}, false)
		if err != nil {
			return nil, err
		}
		_, joinErr := ctx.Join(child)
		return nil, joinErr
	}, false)

	require.Error(t, err)
	var taskErr *TaskError
	require.True(t, errors.As(err, &taskErr))
	assert.ErrorIs(t, err, boom)
}

// TestKernel_SleepOrdering checks that two sleepers with different
// durations wake, and therefore append to order, in deadline order rather
// than spawn order.
func TestKernel_SleepOrdering(t *testing.T) {
	k := newTestKernel(t)

	var order []int

	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		spawnSleeper := func(seconds float64, id int) *Task {
			child, _ := ctx.Spawn(func(ctx *Context) (any, error) {
				if err := ctx.Sleep(seconds); err != nil {
					return nil, err
				}
				order = append(order, id)
				return nil, nil
			}, false)
			return child
		}
		slow := spawnSleeper(0.05, 2)
		fast := spawnSleeper(0.01, 1)

		if _, err := ctx.Join(fast); err != nil {
			return nil, err
		}
		_, err := ctx.Join(slow)
		return nil, err
	}, false)

	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, order)
}

func TestKernel_CancelDuringSleep(t *testing.T) {
	k := newTestKernel(t)

	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		child, err := ctx.Spawn(func(ctx *Context) (any, error) {
			sleepErr := ctx.Sleep(10)
			return nil, sleepErr
		}, false)
		if err != nil {
			return nil, err
		}
		if err := ctx.Sleep(0.01); err != nil {
			return nil, err
		}
		if err := ctx.Cancel(child); err != nil {
			return nil, err
		}
		_, joinErr := ctx.Join(child)
		return nil, joinErr
	}, false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestKernel_SelfCancelRejected(t *testing.T) {
	k := newTestKernel(t)

	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		self, err := ctx.CurrentTask()
		if err != nil {
			return nil, err
		}
		return nil, ctx.Cancel(self)
	}, false)

	assert.ErrorIs(t, err, ErrSelfCancel)
}

func TestKernel_TimeoutAfterRaisesTaskTimeout(t *testing.T) {
	k := newTestKernel(t)

	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		return ctx.TimeoutAfter(0.01, func() (any, error) {
			return nil, ctx.Sleep(10)
		})
	}, false)

	var timeoutErr *TaskTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestKernel_IgnoreAfterReportsTimedOut(t *testing.T) {
	k := newTestKernel(t)

	var result *IgnoreResult
	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		result = ctx.IgnoreAfter(0.01, func() (any, error) {
			return nil, ctx.Sleep(10)
		})
		return nil, nil
	}, false)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.TimedOut)
}

func TestKernel_RunInThreadReturnsValue(t *testing.T) {
	k := newTestKernel(t)

	val, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		return ctx.RunInThread(func() (any, error) {
			time.Sleep(time.Millisecond)
			return "from thread", nil
		})
	}, false)

	require.NoError(t, err)
	assert.Equal(t, "from thread", val)
}
