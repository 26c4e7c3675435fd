// Package queue provides the FIFO shared by dispatch workers.
package queue

import "sync"

// Queue is a mutex-guarded FIFO. TryPop is the only way to take an item, so
// checking for emptiness and removing the head happen under one lock.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
}

// New returns a queue preloaded with items, in order.
func New[T any](items ...T) *Queue[T] {
	q := &Queue[T]{}
	q.items = append(q.items, items...)
	return q
}

// Push appends items to the tail.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// TryPop removes and returns the head item. ok is false when the queue is
// empty.
func (q *Queue[T]) TryPop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= len(q.items) {
		return item, false
	}
	item = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return item, true
}

// Len reports the number of pending items. Advisory only: another goroutine
// may pop between Len and any follow-up call.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Snapshot returns the pending items without consuming them.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]T(nil), q.items[q.head:]...)
}
