package taskkernel

// Lock is a non-reentrant mutex for tasks, FIFO-fair by construction since
// it hands off to the longest-waiting task (spec.md P4).
type Lock struct {
	owner *Task
	queue *waitQueue
}

// NewLock returns an unlocked Lock.
func NewLock() *Lock {
	return &Lock{queue: newWaitQueue("lock")}
}

// AcquireLock blocks until the lock is free, then takes it.
func (c *Context) AcquireLock(l *Lock) error {
	self, err := c.Current()
	if err != nil {
		return err
	}
	if l.owner == nil {
		l.owner = self
		return nil
	}
	_, err = c.dispatch(trap{kind: trapWaitOnQueue, queue: l.queue})
	if err != nil {
		return err
	}
	l.owner = self
	return nil
}

// ReleaseLock gives up the lock, handing it directly to the next waiter
// (if any) so the handoff is atomic from the perspective of any third
// task — there is no window where the lock appears free.
func (c *Context) ReleaseLock(l *Lock) error {
	self, err := c.Current()
	if err != nil {
		return err
	}
	if l.owner != self {
		return ErrLockNotHeld
	}
	next := l.queue.Front()
	v, err := c.dispatch(trap{kind: trapWakeQueue, queue: l.queue, wakeN: 1})
	if err != nil {
		return err
	}
	if n, _ := v.(int); n > 0 {
		l.owner = next
	} else {
		l.owner = nil
	}
	return nil
}

// Locked reports whether the lock is currently held.
func (l *Lock) Locked() bool { return l.owner != nil }
