package taskkernel

// Condition pairs a Lock with a wait queue, modeled on the classic
// condition-variable protocol (spec.md §4.H): a task must hold the lock
// before calling ConditionWait, which atomically releases it while parked
// and re-acquires it before returning.
type Condition struct {
	lock  *Lock
	queue *waitQueue
}

// NewCondition returns a Condition guarded by l. If l is nil, a private
// Lock is created.
func NewCondition(l *Lock) *Condition {
	if l == nil {
		l = NewLock()
	}
	return &Condition{lock: l, queue: newWaitQueue("condition")}
}

// Lock exposes the condition's guarding Lock, for callers that need to
// Acquire/Release it directly around a predicate check.
func (cv *Condition) Lock() *Lock { return cv.lock }

// ConditionWait releases cv's lock, parks the current task until notified,
// then re-acquires the lock before returning. A notified waiter is moved
// by NotifyOne/NotifyAll into the lock's own wait queue rather than
// straight to ready (spec.md §4.H), so by the time this call's dispatch
// returns successfully the lock has already been hand off to us by
// ReleaseLock's normal wake path — we just record that ownership rather
// than contending for it again.
func (c *Context) ConditionWait(cv *Condition) error {
	if err := c.ReleaseLock(cv.lock); err != nil {
		return err
	}
	self, err := c.Current()
	if err != nil {
		return err
	}
	_, err = c.dispatch(trap{kind: trapWaitOnQueue, queue: cv.queue})
	if err != nil {
		// Still attempt to reacquire so the caller's eventual Release
		// balances correctly, matching curio's "cancellation still leaves
		// the lock held" contract.
		_ = c.AcquireLock(cv.lock)
		return err
	}
	cv.lock.owner = self
	return nil
}

// NotifyOne moves a single waiter from cv's queue into cv.lock's own wait
// queue, still parked — it becomes ready only once ReleaseLock hands it
// the lock in FIFO order, not immediately (spec.md §4.H: "into the lock's
// waiter queue, not directly to ready").
func (c *Context) NotifyOne(cv *Condition) error {
	_, err := c.dispatch(trap{kind: trapRequeue, queue: cv.queue, dest: cv.lock.queue, wakeN: 1})
	return err
}

// NotifyAll moves every waiter from cv's queue into cv.lock's own wait
// queue, in the same not-directly-to-ready fashion as NotifyOne.
func (c *Context) NotifyAll(cv *Condition) error {
	_, err := c.dispatch(trap{kind: trapRequeue, queue: cv.queue, dest: cv.lock.queue, wakeN: cv.queue.Len()})
	return err
}
