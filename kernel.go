package taskkernel

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Kernel is the cooperative task scheduler: one instance owns a ready
// queue, a timer heap, an I/O selector, a signal dispatcher, and a worker
// pool bridge. All of its data structures are touched exclusively by the
// scheduler goroutine (spec.md §5's single-mutator invariant) — the only
// other goroutines in a running Kernel are task bodies (blocked on a
// channel except while actually executing), the signal dispatcher's
// forwarding goroutine, worker pool bridge goroutines, and Run's context
// watcher, none of which touch Kernel state beyond pinging the wake pipe
// or delivering into the worker results channel.
//
// Grounded on the teacher's Loop (eventloop/loop.go), re-purposed from
// "execute a queued func()" to "resume a parked task goroutine through its
// rendezvous channel."
type Kernel struct {
	tasks      map[uint64]*Task
	nextTaskID uint64

	ready []*Task

	timers   *timerQueue
	sel      *selector
	wake     *wakePipe
	sigs     *signalDispatcher
	workers  *workerBridge
	log      *Logger
	monitor  bool

	// scavengeNow/scavengeNext implement deferred task-table cleanup: a
	// task finishing this tick is queued in scavengeNext and only actually
	// dropped from tasks on the tick *after* that, grounded on the
	// teacher's registry.Scavenge ring-buffer batch-cleanup idea
	// (eventloop/registry.go) — terminated tasks stay briefly inspectable
	// (Result/Err/State) before their record disappears.
	scavengeNow  []*Task
	scavengeNext []*Task

	closed atomic.Bool
}

// MonitorEnabled reports whether TASKKERNEL_MONITOR or WithMonitor turned
// on the external-monitor hook point for this Kernel. The monitor itself
// is out of scope for this package (spec.md Non-goals §1); this flag only
// exists so a separate monitor implementation can ask a Kernel whether it
// should attach.
func (k *Kernel) MonitorEnabled() bool { return k.monitor }

// NewKernel constructs a Kernel ready to Run. The returned Kernel owns an
// epoll/kqueue file descriptor and must be Closed.
func NewKernel(opts ...Option) (*Kernel, error) {
	o := resolveKernelOptions(opts)

	sel, err := newSelector()
	if err != nil {
		return nil, err
	}
	wake, err := newWakePipe()
	if err != nil {
		_ = sel.close()
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = noopLogger()
	}

	k := &Kernel{
		tasks:   make(map[uint64]*Task),
		timers:  newTimerQueue(),
		sel:     sel,
		wake:    wake,
		workers: newWorkerBridge(o.maxWorkerThreads, o.maxWorkerProcesses, wake, logger),
		log:     logger,
		monitor: o.monitor,
	}
	k.sigs = newSignalDispatcher(wake)
	go k.sigs.run()

	// The wake pipe is permanently registered for read-readiness: it is how
	// cross-goroutine events (ctx cancellation, worker completion, signal
	// arrival) interrupt a blocking selector.wait.
	if err := k.sel.impl.add(k.wake.readFD(), ioRead); err != nil {
		_ = sel.close()
		_ = wake.close()
		return nil, err
	}

	return k, nil
}

// Close releases the Kernel's OS resources. Call after Run returns.
func (k *Kernel) Close() error {
	k.closed.Store(true)
	k.sigs.stop()
	err1 := k.sel.close()
	err2 := k.wake.close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (k *Kernel) allocTaskID() uint64 {
	k.nextTaskID++
	return k.nextTaskID
}

// spawnTask creates a Task record, registers it, and starts its goroutine.
// The goroutine blocks immediately on its first resumeCh receive — it does
// not begin executing fn until the scheduler dispatches it.
func (k *Kernel) spawnTask(fn func(ctx *Context) (any, error), daemon bool, parent *Task) *Task {
	t := newTask(k.allocTaskID(), daemon, parent)
	k.tasks[t.ID] = t
	go k.runTaskBody(t, fn)
	return t
}

func (k *Kernel) runTaskBody(t *Task, fn func(ctx *Context) (any, error)) {
	<-t.resumeCh // wait for the scheduler's first dispatch
	cctx := &Context{task: t, kernel: k}
	val, err := safeCallTask(fn, cctx)
	t.trapCh <- trap{kind: trapDone, doneResult: val, doneErr: err}
}

// safeCallTask recovers a panicking task body into a *PanicError, grounded
// on the teacher's safeExecute/safeExecuteFn (loop.go).
func safeCallTask(fn func(ctx *Context) (any, error), ctx *Context) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

func (k *Kernel) readyPush(t *Task) {
	t.state.Store(StateReady)
	k.ready = append(k.ready, t)
}

func (k *Kernel) readyPop() *Task {
	t := k.ready[0]
	k.ready = k.ready[1:]
	return t
}

// wakeTask marks t runnable with the given resume value, clearing any armed
// cancelFunc (the wakeup itself is what the cancelFunc would have done).
//
// Any independently-armed timeout must be removed from the timer heap
// here, not just have its field nilled: a task can be woken by something
// other than its own timeout (selector readiness, a queue wake, a
// joiner's target terminating, cancellation) while a SetTimeout deadline
// is still pending in the heap. Leaving that entry in place would let it
// fire later against a task that has already moved on, spuriously
// cancelling whatever it is doing by then — spec.md's "a timeout that
// fires on a task already rescheduled for another reason is discarded."
func (k *Kernel) wakeTask(t *Task, val any, err error) {
	t.cancelFunc = nil
	t.sleepEntry = nil
	if t.timeoutEntry != nil {
		k.timers.remove(t.timeoutEntry)
		t.timeoutEntry = nil
	}
	t.pendingResume = resumeValue{val: val, err: err}
	k.readyPush(t)
}

// Run starts fn as the root task and drives the scheduler until it
// terminates (or ctx is cancelled, if shutdownOnCancel is true). It
// returns the root task's result, or its terminal error.
func (k *Kernel) Run(ctx context.Context, fn func(ctx *Context) (any, error), shutdownOnCancel bool) (any, error) {
	root := k.spawnTask(fn, false, nil)
	k.readyPush(root)

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = k.wake.signal()
			case <-stopWatch:
			}
		}()
	}

	for !root.Terminated() {
		k.scavengeTasks()
		if ctx != nil && shutdownOnCancel && ctx.Err() != nil && !root.cancelPending.Load() {
			k.cancelTask(root, ctx.Err())
		}
		if len(k.ready) == 0 {
			k.waitForEvents()
			continue
		}
		t := k.readyPop()
		k.runUntilBlocked(t)
	}

	k.workers.wait()
	return root.result, root.err
}

// Shutdown cancels every non-daemon task that has not terminated, with
// ErrKernelClosed as the cause. It does not wait for those tasks to finish;
// they unwind as the scheduler next runs them.
func (k *Kernel) Shutdown() {
	for _, t := range k.tasks {
		if !t.daemon && !t.terminated.Load() {
			k.cancelTask(t, ErrKernelClosed)
		}
	}
}

// runUntilBlocked resumes t and processes its traps synchronously until it
// either parks on something (returns to the caller so the next ready task
// can run) or terminates (trapDone).
func (k *Kernel) runUntilBlocked(t *Task) {
	resume := t.pendingResume
	t.pendingResume = resumeValue{}
	if t.cancelPending.Load() && resume.err == nil {
		resume.err = t.cancelCause
		t.cancelPending.Store(false)
	}
	t.state.Store(StateRunning)
	t.cycles++
	t.resumeCh <- resume

	for {
		tr := <-t.trapCh
		if tr.kind == trapDone {
			k.finishTask(t, tr.doneResult, tr.doneErr)
			return
		}
		if t.cancelPending.Load() {
			t.cancelPending.Store(false)
			t.resumeCh <- resumeValue{err: t.cancelCause}
			continue
		}
		reply, blocked := k.handleTrap(t, tr)
		if blocked {
			return
		}
		t.resumeCh <- reply
	}
}

func (k *Kernel) finishTask(t *Task, val any, err error) {
	t.result = val
	t.err = err
	t.terminated.Store(true)
	t.state.Store(StateTerminated)
	k.scavengeNext = append(k.scavengeNext, t)
	k.logTaskTerminated(t)
	for _, joiner := range t.joiners.Dequeue(t.joiners.Len()) {
		k.wakeTask(joiner, t.result, wrapTaskError(t.ID, t.err))
	}
}

// scavengeTasks drops task records queued by finishTask one tick ago,
// giving any code still holding the *Task one final tick window to
// observe its terminal State/Result/Err before the kernel forgets it.
func (k *Kernel) scavengeTasks() {
	for _, t := range k.scavengeNow {
		delete(k.tasks, t.ID)
	}
	k.scavengeNow = k.scavengeNext
	k.scavengeNext = nil
}

// waitForEvents blocks until a timer fires, an fd becomes ready, a worker
// result arrives, or a signal is delivered — whichever comes first — and
// pushes every task that becomes runnable as a result onto the ready
// queue.
func (k *Kernel) waitForEvents() {
	timeoutMs := -1
	if deadline, ok := k.timers.peekDeadline(); ok {
		now := monotonicNow()
		remaining := deadline - now
		if remaining < 0 {
			remaining = 0
		}
		timeoutMs = int(remaining * 1000)
	}

	woken, err := k.sel.poll(timeoutMs)
	if err == nil {
		for _, t := range woken {
			if t.ID == 0 {
				continue
			}
			k.wakeTask(t, nil, nil)
		}
	}

	k.wake.drain()

	now := monotonicNow()
	for _, e := range k.timers.popExpired(now) {
		t := e.task
		if t.terminated.Load() {
			continue
		}
		switch e.kind {
		case timerSleep:
			// Guard against a stale entry: t may have already been woken
			// by something else and re-armed a different sleep/timeout
			// since this entry was scheduled.
			if t.sleepEntry != e {
				continue
			}
			k.wakeTask(t, nil, nil)
		case timerTimeout:
			if t.timeoutEntry != e {
				continue
			}
			k.cancelTask(t, &TaskTimeoutError{Seconds: 0})
		}
	}

	k.drainWorkerResults()
	k.drainSignals()
}

func (k *Kernel) drainWorkerResults() {
	for {
		select {
		case res := <-k.workers.results:
			// A result for a task that is no longer waiting on a worker
			// (cancelled, then terminated or moved on) is discarded.
			if res.task.terminated.Load() || res.task.State() != StateFutureWait {
				continue
			}
			k.wakeTask(res.task, res.val, res.err)
		default:
			return
		}
	}
}

func (k *Kernel) drainSignals() {
	for ss := range k.sigs.sets {
		pending := ss.drainPending()
		if len(pending) == 0 || ss.ignore {
			continue
		}
		for _, sig := range pending {
			if t := ss.waiters.Front(); t != nil {
				ss.waiters.Remove(t)
				k.wakeTask(t, sig, nil)
			}
		}
	}
}

// monotonicNow returns seconds on a monotonic clock suitable for deadline
// arithmetic — a thin wrapper kept in one place so timer code never calls
// time.Now() directly, matching the teacher's CurrentTickTime/TickAnchor
// indirection (loop.go) without carrying over its tick-anchor caching.
func monotonicNow() float64 {
	return time.Since(kernelEpoch).Seconds()
}

var kernelEpoch = time.Now()
