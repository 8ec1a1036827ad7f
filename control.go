package taskkernel

import "errors"

// CurrentTask returns the Task record for the currently running task — an
// alias over Current matching spec.md §6.1's naming.
func (c *Context) CurrentTask() (*Task, error) { return c.Current() }

// TimeoutAfter runs fn with a deadline armed through SetTimeout: if the
// deadline passes while fn is blocked, the blocked call fails with a
// cancellation and TimeoutAfter returns a *TaskTimeoutError. Any wakeup of
// the task removes the armed deadline (see wakeTask), so the deadline
// bounds only the first blocking operation fn performs; blocking
// operations after that one run without a deadline. The timeout is
// disarmed before returning either way, so it never leaks onto whatever
// the task does next.
func (c *Context) TimeoutAfter(seconds float64, fn func() (any, error)) (any, error) {
	if err := c.SetTimeout(seconds); err != nil {
		return nil, err
	}
	val, err := fn()
	unsetErr := c.SetTimeout(0)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return nil, &TaskTimeoutError{Seconds: seconds}
		}
		return nil, err
	}
	if unsetErr != nil {
		return val, unsetErr
	}
	return val, nil
}

// IgnoreResult is the outcome of an IgnoreAfter call: Result/Err hold fn's
// return if it completed in time; TimedOut reports whether it did not.
type IgnoreResult struct {
	Result  any
	Err     error
	TimedOut bool
}

// IgnoreAfter behaves like TimeoutAfter but never raises on expiry: it
// reports the outcome via the returned IgnoreResult's TimedOut field
// instead, matching curio's ignore_after. Supplements spec.md's
// TimeoutAfter-only surface (see SPEC_FULL.md's Supplemented Features).
func (c *Context) IgnoreAfter(seconds float64, fn func() (any, error)) *IgnoreResult {
	val, err := c.TimeoutAfter(seconds, fn)
	if err != nil {
		var timeoutErr *TaskTimeoutError
		if errors.As(err, &timeoutErr) {
			return &IgnoreResult{TimedOut: true}
		}
		return &IgnoreResult{Err: err}
	}
	return &IgnoreResult{Result: val}
}

// RunInExecutor is an alias for RunInThread, matching spec.md §6.1's
// generic-executor naming — this kernel has exactly one thread-pool
// executor, so there is no executor-selection parameter to take.
func (c *Context) RunInExecutor(work func() (any, error)) (any, error) {
	return c.RunInThread(work)
}

// Daemon reports whether t was spawned as a daemon task (does not keep
// Run alive on its own).
func (t *Task) Daemon() bool { return t.daemon }

// Cycles returns the number of scheduler dispatch turns charged to t.
func (t *Task) Cycles() uint64 { return t.cycles }

// Err returns t's terminal error, if any. Only meaningful once Terminated.
func (t *Task) Err() error { return t.err }

// Cancelled reports whether t's termination was due to cancellation
// (including timeout).
func (t *Task) Cancelled() bool {
	return t.terminated.Load() && errors.Is(t.err, ErrCancelled)
}
