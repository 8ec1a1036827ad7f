package taskkernel

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalSet_WaitReceivesDeliveredSignal(t *testing.T) {
	k := newTestKernel(t)
	ss := NewSignalSet(syscall.SIGUSR1)

	var received os.Signal
	_, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		waiter, err := ctx.Spawn(func(ctx *Context) (any, error) {
			sig, err := ctx.Wait(ss)
			if err != nil {
				return nil, err
			}
			received = sig
			return nil, nil
		}, false)
		if err != nil {
			return nil, err
		}

		if _, err := ctx.RunInThread(func() (any, error) {
			time.Sleep(5 * time.Millisecond)
			return nil, syscall.Kill(os.Getpid(), syscall.SIGUSR1)
		}); err != nil {
			return nil, err
		}

		_, err = ctx.Join(waiter)
		return nil, err
	}, false)

	require.NoError(t, err)
	assert.Equal(t, syscall.SIGUSR1, received)
}

func TestSignalSet_IgnoreNeverParksAndDiscards(t *testing.T) {
	k := newTestKernel(t)
	ss := NewSignalSet(syscall.SIGUSR2)

	val, err := k.Run(context.Background(), func(ctx *Context) (any, error) {
		if err := ctx.Ignore(ss); err != nil {
			return nil, err
		}
		if err := syscall.Kill(os.Getpid(), syscall.SIGUSR2); err != nil {
			return nil, err
		}
		if err := ctx.Sleep(0.02); err != nil {
			return nil, err
		}
		return "survived", nil
	}, false)

	require.NoError(t, err)
	assert.Equal(t, "survived", val)
	assert.True(t, ss.ignore)
}
