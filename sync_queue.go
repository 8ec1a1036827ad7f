package taskkernel

// Queue is a bounded (or unbounded, if maxsize <= 0) FIFO item queue with
// join semantics (spec.md §4.H): producers Put, consumers Get, and a
// producer-side Join blocks until every item Put so far has had a
// matching TaskDone call — mirrored on Python's queue.Queue.
type Queue struct {
	items      []any
	maxsize    int
	notEmpty   *waitQueue
	notFull    *waitQueue
	joinWaiters *waitQueue
	unfinished int
}

// NewQueue returns an empty Queue. maxsize <= 0 means unbounded.
func NewQueue(maxsize int) *Queue {
	return &Queue{
		maxsize:     maxsize,
		notEmpty:    newWaitQueue("queue-not-empty"),
		notFull:     newWaitQueue("queue-not-full"),
		joinWaiters: newWaitQueue("queue-join"),
	}
}

// Put appends an item, blocking while the queue is at maxsize capacity.
func (c *Context) Put(q *Queue, item any) error {
	for q.maxsize > 0 && len(q.items) >= q.maxsize {
		if _, err := c.dispatch(trap{kind: trapWaitOnQueue, queue: q.notFull}); err != nil {
			return err
		}
	}
	q.items = append(q.items, item)
	q.unfinished++
	_, err := c.dispatch(trap{kind: trapWakeQueue, queue: q.notEmpty, wakeN: 1})
	return err
}

// PutNoWait appends an item without blocking, returning ErrQueueFull if
// the queue is at capacity.
func (c *Context) PutNoWait(q *Queue, item any) error {
	if q.maxsize > 0 && len(q.items) >= q.maxsize {
		return ErrQueueFull
	}
	q.items = append(q.items, item)
	q.unfinished++
	_, err := c.dispatch(trap{kind: trapWakeQueue, queue: q.notEmpty, wakeN: 1})
	return err
}

// Get removes and returns the oldest item, blocking while the queue is
// empty.
func (c *Context) Get(q *Queue) (any, error) {
	for len(q.items) == 0 {
		if _, err := c.dispatch(trap{kind: trapWaitOnQueue, queue: q.notEmpty}); err != nil {
			return nil, err
		}
	}
	item := q.items[0]
	q.items = q.items[1:]
	_, err := c.dispatch(trap{kind: trapWakeQueue, queue: q.notFull, wakeN: 1})
	return item, err
}

// GetNoWait removes and returns the oldest item without blocking,
// returning ErrQueueEmpty if the queue has nothing to give.
func (c *Context) GetNoWait(q *Queue) (any, error) {
	if len(q.items) == 0 {
		return nil, ErrQueueEmpty
	}
	item := q.items[0]
	q.items = q.items[1:]
	_, err := c.dispatch(trap{kind: trapWakeQueue, queue: q.notFull, wakeN: 1})
	return item, err
}

// TaskDone marks one previously-Put item as fully processed. Once
// unfinished reaches zero, every task parked in JoinQueue is released.
func (c *Context) TaskDone(q *Queue) error {
	if q.unfinished == 0 {
		return ErrQueueDone
	}
	q.unfinished--
	if q.unfinished == 0 {
		_, err := c.dispatch(trap{kind: trapWakeQueue, queue: q.joinWaiters, wakeN: q.joinWaiters.Len()})
		return err
	}
	return nil
}

// JoinQueue blocks until every item Put so far has been matched by a
// TaskDone call.
func (c *Context) JoinQueue(q *Queue) error {
	if q.unfinished == 0 {
		return nil
	}
	_, err := c.dispatch(trap{kind: trapWaitOnQueue, queue: q.joinWaiters})
	return err
}

// Len returns the number of items currently buffered.
func (q *Queue) Len() int { return len(q.items) }
