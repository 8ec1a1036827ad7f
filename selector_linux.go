//go:build linux

package taskkernel

import (
	"golang.org/x/sys/unix"
)

// epollSelector implements platformSelector on Linux, grounded on the
// teacher's FastPoller (poller_linux.go), with the mutex and direct-indexed
// [65536]fdInfo array dropped — see selector.go's doc comment for why.
type epollSelector struct {
	epfd     int
	eventBuf [256]unix.EpollEvent
}

func newPlatformSelector() platformSelector { return &epollSelector{epfd: -1} }

func (s *epollSelector) init() error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	s.epfd = fd
	return nil
}

func toEpollEvents(e ioEvent) uint32 {
	var m uint32
	if e&ioRead != 0 {
		m |= unix.EPOLLIN
	}
	if e&ioWrite != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

func fromEpollEvents(m uint32) ioEvent {
	var e ioEvent
	if m&unix.EPOLLIN != 0 {
		e |= ioRead
	}
	if m&unix.EPOLLOUT != 0 {
		e |= ioWrite
	}
	if m&unix.EPOLLERR != 0 {
		e |= ioError
	}
	if m&unix.EPOLLHUP != 0 {
		e |= ioHangup
	}
	return e
}

func (s *epollSelector) add(fd int, events ioEvent) error {
	ev := unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (s *epollSelector) modify(fd int, events ioEvent) error {
	ev := unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (s *epollSelector) remove(fd int) error {
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (s *epollSelector) wait(timeoutMs int) ([]readyFD, error) {
	n, err := unix.EpollWait(s.epfd, s.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]readyFD, 0, n)
	for i := 0; i < n; i++ {
		ev := s.eventBuf[i]
		out = append(out, readyFD{fd: int(ev.Fd), events: fromEpollEvents(ev.Events)})
	}
	return out, nil
}

func (s *epollSelector) close() error {
	if s.epfd < 0 {
		return nil
	}
	return unix.Close(s.epfd)
}
