package taskkernel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInThread_ZombiedOnCancelStillCompletes(t *testing.T) {
	k := newTestKernel(t)

	started := make(chan struct{})
	finished := make(chan struct{})

	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		child, err := ctx.Spawn(func(ctx *Context) (any, error) {
			return ctx.RunInThread(func() (any, error) {
				close(started)
				time.Sleep(20 * time.Millisecond)
				close(finished)
				return "done", nil
			})
		}, false)
		if err != nil {
			return nil, err
		}

		<-started
		if err := ctx.Cancel(child); err != nil {
			return nil, err
		}
		_, joinErr := ctx.Join(child)
		return nil, joinErr
	}, false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("zombied thread work never completed")
	}
}

func TestRunInProcess_ReturnsOutput(t *testing.T) {
	k := newTestKernel(t)

	val, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		return ctx.RunInProcess([]string{"echo", "-n", "hello"})
	}, false)

	require.NoError(t, err)
	out, ok := val.([]byte)
	require.True(t, ok)
	assert.Equal(t, "hello", string(out))
}

func TestRunInProcess_CancelSendsSigterm(t *testing.T) {
	k := newTestKernel(t)

	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		child, err := ctx.Spawn(func(ctx *Context) (any, error) {
			return ctx.RunInProcess([]string{"sleep", "10"})
		}, false)
		if err != nil {
			return nil, err
		}
		if err := ctx.Sleep(0.05); err != nil {
			return nil, err
		}
		if err := ctx.Cancel(child); err != nil {
			return nil, err
		}
		_, joinErr := ctx.Join(child)
		return nil, joinErr
	}, false)

	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCancelled))
}
