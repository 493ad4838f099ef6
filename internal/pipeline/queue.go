package pipeline

import "sync"

// QueueStats describes the pipeline's record queue.
type QueueStats struct {
	Depth    int   // Records waiting for a worker
	Peak     int   // Highest depth observed
	Capacity int   // Current ring size
	Pushed   int64 // Records accepted since start
	Popped   int64 // Records handed to workers or drained
	Grown    int   // Number of ring resizes
}

// queue is an unbounded FIFO between Handle and the workers. The ring
// doubles once it is 70% full, so push never blocks the caller.
type queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	tail   int
	depth  int
	closed bool

	peak   int
	pushed int64
	popped int64
	grown  int
}

func newQueue[T any](capacity int) *queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &queue[T]{ring: make([]T, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends item. It returns false once the queue is closed.
func (q *queue[T]) push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := max(len(q.ring)*70/100, 1)
	if q.depth+1 >= threshold {
		q.grow()
	}

	q.ring[q.tail] = item
	q.tail = (q.tail + 1) % len(q.ring)
	q.depth++
	q.pushed++
	q.peak = max(q.peak, q.depth)

	q.cond.Signal()
	return true
}

// pop blocks until an item is available. It returns false when the
// queue is closed and empty.
func (q *queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.depth == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.depth == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// drain removes and returns every waiting item.
func (q *queue[T]) drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.depth == 0 {
		return nil
	}
	items := make([]T, 0, q.depth)
	for q.depth > 0 {
		items = append(items, q.take())
	}
	return items
}

// close rejects further pushes and wakes every blocked pop.
// Items already queued can still be popped or drained.
func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

func (q *queue[T]) stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Depth:    q.depth,
		Peak:     q.peak,
		Capacity: len(q.ring),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Grown:    q.grown,
	}
}

// take pops the head. Caller holds q.mu and ensures depth > 0.
func (q *queue[T]) take() T {
	item := q.ring[q.head]
	var zero T
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.depth--
	q.popped++
	return item
}

// grow doubles the ring, unwrapping it to start at index 0.
// Caller holds q.mu.
func (q *queue[T]) grow() {
	ring := make([]T, len(q.ring)*2)
	if q.depth > 0 {
		if q.head < q.tail {
			copy(ring, q.ring[q.head:q.tail])
		} else {
			n := copy(ring, q.ring[q.head:])
			copy(ring[n:], q.ring[:q.tail])
		}
	}
	q.ring = ring
	q.head = 0
	q.tail = q.depth
	q.grown++
}
