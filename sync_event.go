package taskkernel

// Event is a one-shot latch: any number of tasks can Wait on it, and they
// are all released together the first time Set is called. Built purely on
// a kernel wait queue — spec.md is explicit that synchronization
// primitives must not use OS-level sync primitives, since those are not
// safe across the goroutine-per-task model's suspension points.
type Event struct {
	set   bool
	queue *waitQueue
}

// NewEvent returns an unset Event.
func NewEvent() *Event {
	return &Event{queue: newWaitQueue("event")}
}

// e.set is read and written directly from task goroutines rather than
// routed through a trap: safe because invariant I1 (exactly one task's
// code ever runs at a time, serialized with the scheduler via the trap
// channel rendezvous) means there is never a concurrent access to it.

// WaitEvent blocks the current task until the event is set. Returns
// immediately if it is already set.
func (c *Context) WaitEvent(e *Event) error {
	if e.set {
		return nil
	}
	_, err := c.dispatch(trap{kind: trapWaitOnQueue, queue: e.queue})
	return err
}

// SetEvent releases every task currently parked in WaitEvent and marks the
// event set for any future WaitEvent call.
func (c *Context) SetEvent(e *Event) error {
	if e.set {
		return nil
	}
	e.set = true
	_, err := c.dispatch(trap{kind: trapWakeQueue, queue: e.queue, wakeN: e.queue.Len()})
	return err
}

// IsSet reports whether the event has been set. Safe to call without a
// Context since it only reads kernel-owned state observed at the last
// dispatch boundary — callers should treat it as advisory outside the
// scheduler goroutine.
func (e *Event) IsSet() bool { return e.set }
