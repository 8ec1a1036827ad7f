package taskkernel

import (
	"container/list"
	"sync/atomic"
)

// trapKind enumerates the suspension points a task can issue to the
// scheduler (spec.md §4.G trap table). A trap is the only way a task's
// goroutine ever communicates a blocking intent back to the scheduler
// goroutine.
type trapKind int

const (
	trapSpawn trapKind = iota
	trapSchedule // yield back to ready queue, no condition
	trapSleep
	trapSetTimeout
	trapUnsetTimeout
	trapJoin
	trapCancel
	trapWaitRead
	trapWaitWrite
	trapWaitOnQueue  // park on an arbitrary *waitQueue
	trapWakeQueue    // wake n tasks parked on a *waitQueue
	trapRequeue      // move n waiters from one *waitQueue to another, still parked
	trapSigWait
	trapRunInThread
	trapRunInProcess
	trapGetCurrent

	// trapDone is not issued by Context methods — the task goroutine's
	// runner sends it once the task body returns, carrying the terminal
	// result. It is the only trap the scheduler never replies to.
	trapDone
)

// trap is sent by a task goroutine on its trapCh and consumed exactly once
// by the scheduler goroutine, which replies on resumeCh. Only one of the
// payload fields is meaningful for a given kind.
type trap struct {
	kind trapKind

	fn       func(ctx *Context) (any, error) // trapSpawn
	daemon   bool                            // trapSpawn
	duration float64                         // trapSleep, trapSetTimeout (seconds)
	target   *Task                           // trapJoin, trapCancel
	fd       int                             // trapWaitRead, trapWaitWrite
	queue    *waitQueue                      // trapWaitOnQueue, trapWakeQueue, trapRequeue (source)
	dest     *waitQueue                      // trapRequeue (destination)
	wakeN    int                             // trapWakeQueue, trapRequeue
	signals  *SignalSet                      // trapSigWait
	ignore   bool                            // trapSigWait: Ignore vs Wait
	work     func() (any, error)             // trapRunInThread, trapRunInProcess
	argv     []string                        // trapRunInProcess

	doneResult any   // trapDone
	doneErr    error // trapDone
}

// resumeValue is what the scheduler sends back on a task's resumeCh to
// unblock it: either a value, or an error that the Context method which
// issued the trap returns as its error result.
type resumeValue struct {
	val any
	err error
}

// Task is a single cooperatively-scheduled unit of execution, running on
// its own goroutine. Every field below is owned by the scheduler goroutine
// except where noted; task.goroutine code must never read or write them
// directly — it goes through Context's trap-issuing methods instead.
type Task struct {
	ID uint64

	// trapCh carries the task's next suspension request to the scheduler.
	// resumeCh carries the scheduler's reply. Both are unbuffered: a send
	// on either side only completes once the other side is actually ready,
	// which is what pins "exactly one task running at a time" (spec.md §5
	// invariant I1) onto Go's own channel semantics instead of a hand-rolled
	// state machine.
	trapCh   chan trap
	resumeCh chan resumeValue

	state atomicState

	// cycles counts scheduler dispatch turns charged to this task, exposed
	// for diagnostics/monitor tooling (spec.md §6.5).
	cycles uint64

	daemon bool

	// cancelPending is set by Cancel/timeout while this task is READY or
	// RUNNING and consumed the next time it is resumed or reaches a trap:
	// cancellation never interrupts a running synchronous segment, and it
	// is delivered once.
	cancelPending atomic.Bool
	cancelCause   error

	// cancelFunc, when non-nil, is invoked by the scheduler to interrupt
	// whatever this task is currently blocked on (splice out of a
	// waitQueue, deregister an fd, remove a timer entry) before delivering
	// cancellation. Set each time the task parks, cleared on resume.
	cancelFunc func()

	// sleepEntry/timeoutEntry point at this task's live timer heap entries,
	// if any, so Cancel/natural-wake can remove them in O(log n) instead of
	// scanning the heap.
	sleepEntry   *timerEntry
	timeoutEntry *timerEntry

	// waitQueue/waitElem record where this task is currently parked, if
	// anywhere, mirroring the bookkeeping waitQueue itself keeps — see
	// waitqueue.go's single-owner-queue invariant.
	waitQueue *waitQueue
	waitElem  *list.Element

	result any
	err    error

	// joiners is the FIFO of tasks parked in Join(t); all are woken with
	// this task's terminal (result, err) once it reaches StateTerminated.
	joiners *waitQueue

	parent *Task

	terminated atomic.Bool

	// pendingResume holds the value the scheduler will send on resumeCh the
	// next time this task reaches the head of the ready queue — set by
	// whatever wakes the task (timer fire, selector readiness, queue wake,
	// or cancellation).
	pendingResume resumeValue
}

func newTask(id uint64, daemon bool, parent *Task) *Task {
	t := &Task{
		ID:      id,
		trapCh:  make(chan trap),
		resumeCh: make(chan resumeValue),
		daemon:  daemon,
		joiners: newWaitQueue("joiners"),
		parent:  parent,
	}
	t.state.Store(StateReady)
	return t
}

// Context is the handle passed into a task's body. Every blocking or
// kernel-state-touching operation goes through one of these methods, which
// issue a trap and block on resumeCh for the reply — even operations that
// the scheduler will answer immediately without actually parking the task,
// so that every kernel-state mutation happens exclusively on the scheduler
// goroutine (spec.md §5, "only the scheduler mutates kernel data
// structures").
type Context struct {
	task   *Task
	kernel *Kernel
}

// dispatch sends tr on the task's trapCh and blocks for the scheduler's
// reply, unwrapping an injected error (cancellation, timeout, panic-bridge)
// into a Go error return.
func (c *Context) dispatch(tr trap) (any, error) {
	c.task.trapCh <- tr
	rv := <-c.task.resumeCh
	return rv.val, rv.err
}

// Spawn starts fn as a new child task and runs it until its first
// suspension (or until it returns) before returning it, so the child has
// run at least one cycle by the time Spawn returns.
func (c *Context) Spawn(fn func(ctx *Context) (any, error), daemon bool) (*Task, error) {
	v, err := c.dispatch(trap{kind: trapSpawn, fn: fn, daemon: daemon})
	if err != nil {
		return nil, err
	}
	return v.(*Task), nil
}

// Sleep suspends the current task for at least seconds, measured on the
// kernel's monotonic clock.
func (c *Context) Sleep(seconds float64) error {
	_, err := c.dispatch(trap{kind: trapSleep, duration: seconds})
	return err
}

// Yield gives up the current task's turn without any blocking condition,
// so other ready tasks get a chance to run (spec.md P1 fairness).
func (c *Context) Yield() error {
	_, err := c.dispatch(trap{kind: trapSchedule})
	return err
}

// Join blocks until t terminates, returning its result or, if t terminated
// abnormally, a *TaskError wrapping the cause (or ErrCancelled if t was
// cancelled).
func (c *Context) Join(t *Task) (any, error) {
	return c.dispatch(trap{kind: trapJoin, target: t})
}

// Cancel requests cancellation of t. Cancelling the calling task itself is
// rejected with ErrSelfCancel (Open Question decision).
func (c *Context) Cancel(t *Task) error {
	_, err := c.dispatch(trap{kind: trapCancel, target: t})
	return err
}

// SetTimeout arms a deadline on the current task: if it does not complete
// its current blocking operation within seconds, it is cancelled with a
// *TaskTimeoutError. A seconds value <= 0 disarms any existing timeout.
func (c *Context) SetTimeout(seconds float64) error {
	if seconds <= 0 {
		_, err := c.dispatch(trap{kind: trapUnsetTimeout})
		return err
	}
	_, err := c.dispatch(trap{kind: trapSetTimeout, duration: seconds})
	return err
}

// Current returns the Task record for the currently running task.
func (c *Context) Current() (*Task, error) {
	v, err := c.dispatch(trap{kind: trapGetCurrent})
	if err != nil {
		return nil, err
	}
	return v.(*Task), nil
}

// RunInThread submits work to the bounded thread pool bridge and blocks
// until it completes or the current task is cancelled (in which case the
// work is left running as a detached "zombie" — spec.md §4.F).
func (c *Context) RunInThread(work func() (any, error)) (any, error) {
	return c.dispatch(trap{kind: trapRunInThread, work: work})
}

// RunInProcess submits work to the bounded external-process pool bridge;
// cancellation sends SIGTERM to the child process rather than abandoning
// it (spec.md §4.F).
func (c *Context) RunInProcess(argv []string) (any, error) {
	return c.dispatch(trap{kind: trapRunInProcess, argv: argv})
}

// ReadWait blocks the current task until fd is readable (or hits an error
// or hangup condition), per spec.md §4.C. Cancelling the task while parked
// deregisters fd's read interest from the selector.
func (c *Context) ReadWait(fd int) error {
	_, err := c.dispatch(trap{kind: trapWaitRead, fd: fd})
	return err
}

// WriteWait blocks the current task until fd is writable (or hits an
// error or hangup condition), per spec.md §4.C. Cancelling the task while
// parked deregisters fd's write interest from the selector.
func (c *Context) WriteWait(fd int) error {
	_, err := c.dispatch(trap{kind: trapWaitWrite, fd: fd})
	return err
}

// Kernel returns the Kernel this context's task is running under, for code
// that needs to reach kernel-level facilities without threading a separate
// parameter through every call.
func (c *Context) Kernel() *Kernel { return c.kernel }

// State returns the current observable TaskState of t. Safe to call from
// any goroutine.
func (t *Task) State() TaskState { return t.state.Load() }

// Terminated reports whether t has finished running, successfully or not.
func (t *Task) Terminated() bool { return t.terminated.Load() }

// Result returns t's terminal (value, error) pair. Only meaningful once
// Terminated() is true; call Join to wait for that.
func (t *Task) Result() (any, error) { return t.result, t.err }
