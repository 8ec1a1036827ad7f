package taskkernel

import "container/list"

// waitQueue is a FIFO queue of blocked tasks keyed by an opaque object,
// grounded on socket515-gaio's watcher.go fdDesc{readers, writers
// list.List}: push onto the back, splice out of the middle in O(1) via the
// stored *list.Element, so a cancellation racing a natural wakeup can
// remove a task without scanning.
//
// A task is a member of at most one waitQueue at a time (invariant W1):
// task.waitElem and task.waitQueue are cleared together whenever the task
// is dequeued, by whichever path dequeues it first (natural wakeup or
// cancellation), so a race between the two can only dequeue once.
type waitQueue struct {
	l     list.List
	label string
}

func newWaitQueue(label string) *waitQueue {
	wq := &waitQueue{label: label}
	wq.l.Init()
	return wq
}

// Len reports the number of parked tasks.
func (q *waitQueue) Len() int { return q.l.Len() }

// Enqueue parks t at the back of the queue and records the splice point on
// the task so Remove can find it again without scanning.
func (q *waitQueue) Enqueue(t *Task) {
	elem := q.l.PushBack(t)
	t.waitQueue = q
	t.waitElem = elem
}

// Remove splices t out of the queue, wherever it is. Safe to call on a task
// that is not (or no longer) in this queue — it is then a no-op, which is
// what lets a cancel_func race harmlessly with a natural dequeue.
func (q *waitQueue) Remove(t *Task) {
	if t.waitQueue != q || t.waitElem == nil {
		return
	}
	q.l.Remove(t.waitElem)
	t.waitQueue = nil
	t.waitElem = nil
}

// Dequeue removes and returns up to n of the longest-waiting tasks (P4),
// in FIFO order.
func (q *waitQueue) Dequeue(n int) []*Task {
	if n <= 0 {
		return nil
	}
	out := make([]*Task, 0, n)
	for e := q.l.Front(); e != nil && len(out) < n; {
		next := e.Next()
		t := e.Value.(*Task)
		q.l.Remove(e)
		t.waitQueue = nil
		t.waitElem = nil
		out = append(out, t)
		e = next
	}
	return out
}

// Front returns the first-parked task without removing it, or nil if empty.
func (q *waitQueue) Front() *Task {
	e := q.l.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*Task)
}
