package taskkernel

import "container/heap"

// timerKind distinguishes a plain sleep deadline from a timeout deadline
// attached to some other blocking operation, per spec.md §3 ("entries
// tagged sleep/timeout").
type timerKind int

const (
	timerSleep timerKind = iota
	timerTimeout
)

// timerEntry is one scheduled wakeup. seq breaks ties between entries with
// an identical deadline in FIFO order, matching the teacher's timerHeap
// entry shape (loop.go) generalized from a bare callback to a (task, kind)
// pair.
type timerEntry struct {
	deadline float64
	seq      uint64
	task     *Task
	kind     timerKind
	index    int // heap.Interface bookkeeping, maintained by container/heap
}

// timerHeap is a min-heap on (deadline, seq), grounded directly on the
// teacher's container/heap-backed timerHeap in loop.go.
type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timerQueue wraps timerHeap with a monotonically increasing sequence
// counter and convenience push/remove/peek operations. It is touched only
// by the scheduler goroutine (single-mutator invariant, spec.md §5).
type timerQueue struct {
	h       timerHeap
	nextSeq uint64
}

func newTimerQueue() *timerQueue {
	q := &timerQueue{}
	heap.Init(&q.h)
	return q
}

// schedule inserts a new deadline and returns the entry so the caller can
// store it on the Task for O(log n) cancellation later.
func (q *timerQueue) schedule(deadline float64, task *Task, kind timerKind) *timerEntry {
	e := &timerEntry{deadline: deadline, seq: q.nextSeq, task: task, kind: kind}
	q.nextSeq++
	heap.Push(&q.h, e)
	return e
}

// remove splices e out of the heap in O(log n). Safe to call with a nil e
// or one already removed (index < 0) — both are no-ops, mirroring
// waitQueue.Remove's race-tolerant shape.
func (q *timerQueue) remove(e *timerEntry) {
	if e == nil || e.index < 0 {
		return
	}
	heap.Remove(&q.h, e.index)
}

// peekDeadline returns the earliest scheduled deadline and true, or
// (0, false) if the heap is empty. Used by the scheduler to size its
// selector-poll timeout.
func (q *timerQueue) peekDeadline() (float64, bool) {
	if len(q.h) == 0 {
		return 0, false
	}
	return q.h[0].deadline, true
}

// popExpired removes and returns every entry whose deadline is <= now, in
// deadline order.
func (q *timerQueue) popExpired(now float64) []*timerEntry {
	var out []*timerEntry
	for len(q.h) > 0 && q.h[0].deadline <= now {
		out = append(out, heap.Pop(&q.h).(*timerEntry))
	}
	return out
}
