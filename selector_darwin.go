//go:build darwin

package taskkernel

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueueSelector implements platformSelector on Darwin, grounded on
// the teacher's poller_darwin.go kqueue wrapper. Since kqueue tracks read
// and write interest as separate filters (unlike epoll's single combined
// event mask), add/modify/remove reconcile each filter independently.
type kqueueSelector struct {
	kq       int
	eventBuf [256]unix.Kevent_t
}

func newPlatformSelector() platformSelector { return &kqueueSelector{kq: -1} }

func (s *kqueueSelector) init() error {
	fd, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(fd)
	s.kq = fd
	return nil
}

func (s *kqueueSelector) applyFilter(fd int, filter int16, enable bool) error {
	flags := unix.EV_ADD | unix.EV_ENABLE
	if !enable {
		flags = unix.EV_DELETE
	}
	changes := []unix.Kevent_t{{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  uint16(flags),
	}}
	_, err := unix.Kevent(s.kq, changes, nil, nil)
	if err != nil && !enable && err == unix.ENOENT {
		return nil
	}
	return err
}

func (s *kqueueSelector) add(fd int, events ioEvent) error {
	return s.modify(fd, events)
}

func (s *kqueueSelector) modify(fd int, events ioEvent) error {
	if err := s.applyFilter(fd, unix.EVFILT_READ, events&ioRead != 0); err != nil {
		return err
	}
	return s.applyFilter(fd, unix.EVFILT_WRITE, events&ioWrite != 0)
}

func (s *kqueueSelector) remove(fd int) error {
	_ = s.applyFilter(fd, unix.EVFILT_READ, false)
	_ = s.applyFilter(fd, unix.EVFILT_WRITE, false)
	return nil
}

func (s *kqueueSelector) wait(timeoutMs int) ([]readyFD, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		d := time.Duration(timeoutMs) * time.Millisecond
		t := unix.NsecToTimespec(d.Nanoseconds())
		ts = &t
	}
	n, err := unix.Kevent(s.kq, nil, s.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	byFD := make(map[int]ioEvent, n)
	for i := 0; i < n; i++ {
		ev := s.eventBuf[i]
		fd := int(ev.Ident)
		var e ioEvent
		switch ev.Filter {
		case unix.EVFILT_READ:
			e = ioRead
		case unix.EVFILT_WRITE:
			e = ioWrite
		}
		if ev.Flags&unix.EV_EOF != 0 {
			e |= ioHangup
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			e |= ioError
		}
		byFD[fd] |= e
	}
	out := make([]readyFD, 0, len(byFD))
	for fd, e := range byFD {
		out = append(out, readyFD{fd: fd, events: e})
	}
	return out, nil
}

func (s *kqueueSelector) close() error {
	if s.kq < 0 {
		return nil
	}
	return unix.Close(s.kq)
}
