package taskkernel

import (
	"os"
	"os/signal"
	"sync"
)

// SignalSet is a group of OS signal numbers a task can wait on together,
// per spec.md §4.E. Waiting on a SignalSet parks the task on its internal
// waitQueue until any one of the subscribed signals arrives.
type SignalSet struct {
	mu      sync.Mutex
	signals []os.Signal
	waiters *waitQueue
	pending []os.Signal

	// ignore is set by Context.Ignore: drainSignals discards pending
	// signals for this set instead of waking a waiter.
	ignore bool
}

// NewSignalSet declares interest in the given signals. The set is inert
// until passed to Context.Wait (trapSigWait) at least once, mirroring
// spec.md's "subscription is lazy" note.
func NewSignalSet(signals ...os.Signal) *SignalSet {
	return &SignalSet{signals: signals, waiters: newWaitQueue("signal")}
}

// signalDispatcher bridges os/signal notifications into the scheduler's
// own wakeup path, grounded on the teacher's wakeup_linux.go/wakeup_darwin.go
// mechanism generalized to carry a payload (which signal arrived) instead
// of a bare edge-triggered ping.
type signalDispatcher struct {
	mu       sync.Mutex
	ch       chan os.Signal
	sets     map[*SignalSet]struct{}
	wake     *wakePipe
	stopOnce sync.Once
	stopCh   chan struct{}
}

func newSignalDispatcher(wake *wakePipe) *signalDispatcher {
	return &signalDispatcher{
		ch:     make(chan os.Signal, 16),
		sets:   make(map[*SignalSet]struct{}),
		wake:   wake,
		stopCh: make(chan struct{}),
	}
}

// register notifies the dispatcher on every signal ss is interested in and
// adds ss to the active set — called by the scheduler goroutine only, as
// part of handling a trapSigWait.
func (d *signalDispatcher) register(ss *SignalSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sets[ss]; !ok {
		d.sets[ss] = struct{}{}
		signal.Notify(d.ch, ss.signals...)
	}
}

func (d *signalDispatcher) unregister(ss *SignalSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sets, ss)
}

// run is started on its own goroutine, separate from the scheduler, and
// simply forwards arrived
// signals into each matching SignalSet's pending buffer, then pings the
// wake pipe so the scheduler's selector.wait returns and can drain and
// dispatch waiters. It never touches kernel data structures directly.
func (d *signalDispatcher) run() {
	for {
		select {
		case sig := <-d.ch:
			d.mu.Lock()
			for ss := range d.sets {
				for _, want := range ss.signals {
					if want == sig {
						ss.mu.Lock()
						ss.pending = append(ss.pending, sig)
						ss.mu.Unlock()
						break
					}
				}
			}
			d.mu.Unlock()
			_ = d.wake.signal()
		case <-d.stopCh:
			return
		}
	}
}

func (d *signalDispatcher) stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// drainPending pops and returns ss's buffered signals, called by the
// scheduler after a wakeup to decide which SignalSet waiters to resume.
func (ss *SignalSet) drainPending() []os.Signal {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	out := ss.pending
	ss.pending = nil
	return out
}

// Wait parks the current task until one of ss's signals arrives, returning
// the signal received.
func (c *Context) Wait(ss *SignalSet) (os.Signal, error) {
	v, err := c.dispatch(trap{kind: trapSigWait, signals: ss})
	if err != nil {
		return nil, err
	}
	return v.(os.Signal), nil
}

// Ignore subscribes ss (if not already) and discards any signals that
// arrive for it from then on, without ever parking a task — the
// drain-and-discard counterpart to Wait, for code that wants a signal set
// registered (e.g. to stop the OS default action) but never actually
// awaits delivery.
func (c *Context) Ignore(ss *SignalSet) error {
	_, err := c.dispatch(trap{kind: trapSigWait, signals: ss, ignore: true})
	return err
}
