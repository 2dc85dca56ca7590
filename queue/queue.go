// Package queue provides a bounded blocking queue used to hand media units from
// producers to a single encode worker.
package queue

import "sync"

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 32

// A Queue is a fixed capacity FIFO. Push blocks while the queue is full and Pop
// blocks while it is empty. Once closed, Push drops items and Pop drains what
// is left before reporting that no items remain.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	head     int
	count    int
	closed   bool
}

// New returns a queue holding at most capacity items.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue[T]{items: make([]T, capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push appends item, waiting for free capacity. It reports whether the item was
// stored; after Close it returns false immediately.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count == len(q.items) && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}
	q.items[(q.head+q.count)%len(q.items)] = item
	q.count++
	q.notEmpty.Signal()
	return true
}

// Pop removes the oldest item, waiting until one is available. The second
// return value is false only when the queue is closed and empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	var zero T
	if q.count == 0 {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.count--
	q.notFull.Signal()
	return item, true
}

// Close stops the queue from accepting items and wakes every waiter. It is safe
// to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int {
	return len(q.items)
}
