//go:build linux

package taskkernel

import "golang.org/x/sys/unix"

// wakePipe is the kernel's cross-goroutine wakeup mechanism: goroutines
// other than the scheduler (Run's context watcher, worker pool bridge
// goroutines delivering a result, the signal dispatcher) write to this
// eventfd to break the scheduler out of a blocking selector.wait, grounded
// directly on the teacher's wakeup_linux.go createWakeFd/drainWakeUpPipe.
type wakePipe struct {
	fd int
}

func newWakePipe() (*wakePipe, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &wakePipe{fd: fd}, nil
}

func (w *wakePipe) readFD() int { return w.fd }

// signal bumps the eventfd counter by one, waking any blocked reader.
func (w *wakePipe) signal() error {
	buf := [8]byte{0, 0, 0, 0, 0, 0, 0, 1}
	_, err := unix.Write(w.fd, buf[:])
	if err == unix.EAGAIN {
		// counter already non-zero and about to overflow is not possible
		// at this magnitude; EAGAIN here means the fd is saturated, which
		// still guarantees a pending wakeup is observed.
		return nil
	}
	return err
}

// drain resets the eventfd counter to zero after a wakeup has been
// observed, so the next signal is detected as a fresh edge.
func (w *wakePipe) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err != nil {
			return
		}
	}
}

func (w *wakePipe) close() error {
	return unix.Close(w.fd)
}
