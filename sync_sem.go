package taskkernel

// Semaphore is a counting semaphore. Acquire blocks while the counter is
// zero; Release increments it and wakes one waiter if any are parked.
type Semaphore struct {
	value int
	queue *waitQueue
}

// NewSemaphore returns a Semaphore initialized to value.
func NewSemaphore(value int) *Semaphore {
	return &Semaphore{value: value, queue: newWaitQueue("semaphore")}
}

// AcquireSemaphore blocks until the semaphore's counter is non-zero, then
// decrements it.
func (c *Context) AcquireSemaphore(s *Semaphore) error {
	if s.value > 0 {
		s.value--
		return nil
	}
	_, err := c.dispatch(trap{kind: trapWaitOnQueue, queue: s.queue})
	if err != nil {
		return err
	}
	// The waiter was handed a decrement directly by Release (see below),
	// so there is nothing further to subtract here.
	return nil
}

// ReleaseSemaphore increments the counter, or — if a task is waiting —
// hands the unit directly to the longest-waiting task instead of
// incrementing, so the counter's value always reflects currently-available
// units.
func (c *Context) ReleaseSemaphore(s *Semaphore) error {
	if s.queue.Len() > 0 {
		_, err := c.dispatch(trap{kind: trapWakeQueue, queue: s.queue, wakeN: 1})
		return err
	}
	s.value++
	return nil
}

// Value returns the semaphore's current counter.
func (s *Semaphore) Value() int { return s.value }

// BoundedSemaphore is a Semaphore that raises ErrSemaphoreOverRelease if
// Release would push the counter above its initial value, per spec.md
// §4.H.
type BoundedSemaphore struct {
	Semaphore
	max int
}

// NewBoundedSemaphore returns a BoundedSemaphore initialized to, and
// capped at, value.
func NewBoundedSemaphore(value int) *BoundedSemaphore {
	return &BoundedSemaphore{Semaphore: Semaphore{value: value, queue: newWaitQueue("bounded-semaphore")}, max: value}
}

// ReleaseBoundedSemaphore is BoundedSemaphore's Release: it refuses to
// exceed max.
func (c *Context) ReleaseBoundedSemaphore(s *BoundedSemaphore) error {
	if s.queue.Len() == 0 && s.value >= s.max {
		return ErrSemaphoreOverRelease
	}
	return c.ReleaseSemaphore(&s.Semaphore)
}
