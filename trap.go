package taskkernel

// handleTrap processes one trap on behalf of the scheduler goroutine.
// Non-blocking traps return (reply, false) for the caller to send
// immediately; blocking traps park t on the appropriate structure, arm its
// cancelFunc, and return (zero, true) so the caller stops resuming t and
// moves on to the next ready task.
func (k *Kernel) handleTrap(t *Task, tr trap) (resumeValue, bool) {
	switch tr.kind {

	case trapSpawn:
		child := k.spawnTask(tr.fn, tr.daemon, t)
		k.logTaskSpawned(child, t)
		// Run the child through its first cycle before replying, so the
		// caller always observes a child that has already started.
		k.runUntilBlocked(child)
		return resumeValue{val: child}, false

	case trapSchedule:
		k.readyPush(t)
		return resumeValue{}, true

	case trapSleep:
		deadline := monotonicNow() + tr.duration
		entry := k.timers.schedule(deadline, t, timerSleep)
		t.sleepEntry = entry
		t.state.Store(StateTimeSleep)
		t.cancelFunc = func() { k.timers.remove(entry) }
		return resumeValue{}, true

	case trapSetTimeout:
		if t.timeoutEntry != nil {
			k.timers.remove(t.timeoutEntry)
		}
		deadline := monotonicNow() + tr.duration
		t.timeoutEntry = k.timers.schedule(deadline, t, timerTimeout)
		return resumeValue{}, false

	case trapUnsetTimeout:
		if t.timeoutEntry != nil {
			k.timers.remove(t.timeoutEntry)
			t.timeoutEntry = nil
		}
		return resumeValue{}, false

	case trapJoin:
		target := tr.target
		if target.Terminated() {
			return resumeValue{val: target.result, err: wrapTaskError(target.ID, target.err)}, false
		}
		target.joiners.Enqueue(t)
		t.state.Store(StateJoinWait)
		t.cancelFunc = func() { target.joiners.Remove(t) }
		return resumeValue{}, true

	case trapCancel:
		if tr.target == t {
			return resumeValue{err: ErrSelfCancel}, false
		}
		k.cancelTask(tr.target, ErrCancelled)
		return resumeValue{}, false

	case trapWaitRead:
		_ = k.sel.parkRead(tr.fd, t)
		t.state.Store(StateReadWait)
		fd := tr.fd
		t.cancelFunc = func() { _ = k.sel.unparkRead(fd, t) }
		return resumeValue{}, true

	case trapWaitWrite:
		_ = k.sel.parkWrite(tr.fd, t)
		t.state.Store(StateWriteWait)
		fd := tr.fd
		t.cancelFunc = func() { _ = k.sel.unparkWrite(fd, t) }
		return resumeValue{}, true

	case trapWaitOnQueue:
		q := tr.queue
		q.Enqueue(t)
		t.state.Store(StateQueueWait)
		t.cancelFunc = func() { q.Remove(t) }
		return resumeValue{}, true

	case trapWakeQueue:
		woken := tr.queue.Dequeue(tr.wakeN)
		for _, w := range woken {
			k.wakeTask(w, nil, nil)
		}
		return resumeValue{val: len(woken)}, false

	case trapRequeue:
		// Used by Condition's NotifyOne/NotifyAll: moves waiters from the
		// condition's queue into the lock's own wait queue, still parked
		// (not readied), so they re-acquire the lock through the lock's
		// normal release hand-off rather than racing a fresh caller for
		// it (spec.md's "into the lock's waiter queue, not directly to
		// ready" requirement).
		moved := tr.queue.Dequeue(tr.wakeN)
		dest := tr.dest
		for _, w := range moved {
			dest.Enqueue(w)
			target := w
			w.cancelFunc = func() { dest.Remove(target) }
		}
		return resumeValue{val: len(moved)}, false

	case trapSigWait:
		ss := tr.signals
		k.sigs.register(ss)
		if tr.ignore {
			// Ignore: register interest so the OS default action is
			// suppressed, but never park — drainSignals just discards
			// whatever arrives for an ignore-mode SignalSet.
			ss.ignore = true
			return resumeValue{}, false
		}
		ss.waiters.Enqueue(t)
		t.state.Store(StateSignalWait)
		t.cancelFunc = func() { ss.waiters.Remove(t) }
		return resumeValue{}, true

	case trapRunInThread:
		if !k.workers.submitThread(t, tr.work) {
			return resumeValue{err: ErrWorkerPoolSaturated}, false
		}
		t.state.Store(StateFutureWait)
		// Cancellation of a thread-pool submission cannot stop the
		// goroutine; it is zombied — left running, result discarded.
		t.cancelFunc = nil
		return resumeValue{}, true

	case trapRunInProcess:
		if !k.workers.submitProcess(t, tr.argv) {
			return resumeValue{err: ErrWorkerPoolSaturated}, false
		}
		t.state.Store(StateFutureWait)
		target := t
		t.cancelFunc = func() { k.workers.cancelProcess(target) }
		return resumeValue{}, true

	case trapGetCurrent:
		return resumeValue{val: t}, false

	default:
		return resumeValue{}, false
	}
}

// cancelTask delivers cause to t. If t is currently blocked, its cancelFunc
// (if any) is invoked to splice it out of whatever it was waiting on, and
// it is woken immediately with cause as its resume error. If t is
// currently READY or RUNNING, cancellation is deferred: cancelPending is
// set and delivered the next time t reaches a trap (Open Question
// decision — cancellation never interrupts a running synchronous segment
// retroactively).
func (k *Kernel) cancelTask(t *Task, cause error) {
	if t.terminated.Load() {
		return
	}
	k.logCancel(t, cause)
	t.cancelPending.Store(true)
	t.cancelCause = cause

	switch t.state.Load() {
	case StateReady, StateRunning:
		return
	default:
		if t.cancelFunc != nil {
			t.cancelFunc()
			t.cancelFunc = nil
		}
		t.cancelPending.Store(false)
		k.wakeTask(t, nil, cause)
	}
}
