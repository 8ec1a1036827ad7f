package taskkernel

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWait_WakesOnReadability(t *testing.T) {
	k := newTestKernel(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	val, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		waiter, err := ctx.Spawn(func(ctx *Context) (any, error) {
			return nil, ctx.ReadWait(int(r.Fd()))
		}, false)
		if err != nil {
			return nil, err
		}

		if _, err := ctx.RunInThread(func() (any, error) {
			_, werr := w.Write([]byte("x"))
			return nil, werr
		}); err != nil {
			return nil, err
		}

		return ctx.Join(waiter)
	}, false)

	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestReadWait_CancelDeregistersFromSelector(t *testing.T) {
	k := newTestKernel(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	fd := int(r.Fd())

	_, err = k.Run(context.Background(), func(ctx *Context) (any, error) {
		waiter, err := ctx.Spawn(func(ctx *Context) (any, error) {
			return nil, ctx.ReadWait(fd)
		}, false)
		if err != nil {
			return nil, err
		}

		// Give the waiter a chance to park on fd before cancelling it.
		if err := ctx.Sleep(0.01); err != nil {
			return nil, err
		}
		if err := ctx.Cancel(waiter); err != nil {
			return nil, err
		}
		_, joinErr := ctx.Join(waiter)
		return nil, joinErr
	}, false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))

	// The selector must have dropped its registration for fd entirely —
	// no readers, no writers, no map entry — once the blocked task was
	// cancelled out of it.
	_, stillRegistered := k.sel.fds[fd]
	assert.False(t, stillRegistered)
}
