package taskkernel

// ioEvent is a bitmask of readiness conditions, mirrored after the
// teacher's IOEvents (poller_linux.go / poller_darwin.go).
type ioEvent uint32

const (
	ioRead ioEvent = 1 << iota
	ioWrite
	ioError
	ioHangup
)

// fdWaiters tracks the tasks parked on a single fd's readability and
// writability, grounded on socket515-gaio's fdDesc{readers, writers
// list.List} shape (watcher.go).
type fdWaiters struct {
	readers *waitQueue
	writers *waitQueue
}

// selector is the platform-neutral readiness wrapper. Unlike the teacher's
// FastPoller, there is no internal locking: this kernel's invariant is
// that only the scheduler goroutine ever calls into a selector (§5), so
// the teacher's sync.RWMutex + direct-indexed [65536]fdInfo array collapses
// to a plain map — registration churn here is bounded by live fd count,
// not by a hot concurrent-access path the teacher had to defend against.
type selector struct {
	impl platformSelector
	fds  map[int]*fdWaiters
}

// platformSelector is implemented by selector_linux.go (epoll) and
// selector_darwin.go (kqueue).
type platformSelector interface {
	// init opens the underlying polling fd (epoll_create1 / kqueue).
	init() error
	// add registers fd for the given event mask; first registration.
	add(fd int, events ioEvent) error
	// modify updates the event mask for an already-registered fd.
	modify(fd int, events ioEvent) error
	// remove deregisters fd entirely.
	remove(fd int) error
	// wait blocks up to timeoutMs (or indefinitely if timeoutMs < 0) and
	// returns the fds that became ready along with their event masks.
	wait(timeoutMs int) ([]readyFD, error)
	// close releases the underlying polling fd.
	close() error
}

type readyFD struct {
	fd     int
	events ioEvent
}

func newSelector() (*selector, error) {
	s := &selector{
		impl: newPlatformSelector(),
		fds:  make(map[int]*fdWaiters),
	}
	if err := s.impl.init(); err != nil {
		return nil, err
	}
	return s, nil
}

// waitersFor returns fd's fdWaiters entry, creating it on first use. The
// OS poller registration is not touched here; syncRegistration adjusts it
// as the read/write interest set changes — the "lazy (de)registration"
// behavior named in spec.md §4.C.
func (s *selector) waitersFor(fd int) *fdWaiters {
	w, ok := s.fds[fd]
	if !ok {
		w = &fdWaiters{
			readers: newWaitQueue("io-read"),
			writers: newWaitQueue("io-write"),
		}
		s.fds[fd] = w
	}
	return w
}

func (s *selector) currentMask(fd int) ioEvent {
	w, ok := s.fds[fd]
	if !ok {
		return 0
	}
	var m ioEvent
	if w.readers.Len() > 0 {
		m |= ioRead
	}
	if w.writers.Len() > 0 {
		m |= ioWrite
	}
	return m
}

// parkRead registers (or re-registers) fd for readability and parks t on
// its reader queue.
func (s *selector) parkRead(fd int, t *Task) error {
	before := s.currentMask(fd)
	w := s.waitersFor(fd)
	w.readers.Enqueue(t)
	return s.syncRegistration(fd, before)
}

// parkWrite is parkRead's write-side counterpart.
func (s *selector) parkWrite(fd int, t *Task) error {
	before := s.currentMask(fd)
	w := s.waitersFor(fd)
	w.writers.Enqueue(t)
	return s.syncRegistration(fd, before)
}

// unparkRead splices t out of fd's reader queue (used by cancellation) and
// deregisters interest if nothing else is waiting.
func (s *selector) unparkRead(fd int, t *Task) error {
	before := s.currentMask(fd)
	if w, ok := s.fds[fd]; ok {
		w.readers.Remove(t)
	}
	return s.syncRegistration(fd, before)
}

func (s *selector) unparkWrite(fd int, t *Task) error {
	before := s.currentMask(fd)
	if w, ok := s.fds[fd]; ok {
		w.writers.Remove(t)
	}
	return s.syncRegistration(fd, before)
}

// syncRegistration reconciles the OS-level registration with the current
// interest set after an enqueue/remove, adding, modifying, or removing the
// poller registration as needed, and dropping the map entry once both
// queues are empty.
func (s *selector) syncRegistration(fd int, before ioEvent) error {
	after := s.currentMask(fd)
	if after == before {
		return nil
	}
	switch {
	case before == 0 && after != 0:
		return s.impl.add(fd, after)
	case before != 0 && after == 0:
		delete(s.fds, fd)
		return s.impl.remove(fd)
	default:
		return s.impl.modify(fd, after)
	}
}

// poll blocks for readiness and wakes every task parked on a ready fd,
// returning the set of now-ready tasks for the scheduler to re-enqueue.
func (s *selector) poll(timeoutMs int) ([]*Task, error) {
	ready, err := s.impl.wait(timeoutMs)
	if err != nil {
		return nil, err
	}
	var woken []*Task
	for _, r := range ready {
		w, ok := s.fds[r.fd]
		if !ok {
			continue
		}
		before := s.currentMask(r.fd)
		if r.events&(ioRead|ioError|ioHangup) != 0 {
			woken = append(woken, w.readers.Dequeue(w.readers.Len())...)
		}
		if r.events&(ioWrite|ioError|ioHangup) != 0 {
			woken = append(woken, w.writers.Dequeue(w.writers.Len())...)
		}
		if err := s.syncRegistration(r.fd, before); err != nil {
			return woken, err
		}
	}
	return woken, nil
}

func (s *selector) close() error { return s.impl.close() }
