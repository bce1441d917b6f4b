package queue

import "sync"

// Ring is a bounded FIFO buffer. Push on a full ring drops the oldest item,
// so producers never block; the consumer side drains with TryPop.
type Ring[T any] struct {
	mu         sync.Mutex
	buf        []T
	head, tail int
	dropped    uint64
}

func NewRing[T any](size int) *Ring[T] {
	if size < 2 {
		size = 2
	}
	return &Ring[T]{buf: make([]T, size)}
}

func (q *Ring[T]) Push(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	next := (q.head + 1) % len(q.buf)
	if next == q.tail { // full, drop oldest
		q.tail = (q.tail + 1) % len(q.buf)
		q.dropped++
	}
	q.buf[q.head] = v
	q.head = next
}

func (q *Ring[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.head == q.tail {
		return zero, false
	}
	v := q.buf[q.tail]
	q.buf[q.tail] = zero
	q.tail = (q.tail + 1) % len(q.buf)
	return v, true
}

func (q *Ring[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= q.tail {
		return q.head - q.tail
	}
	return len(q.buf) - q.tail + q.head
}

// Dropped returns how many items were discarded because the ring was full.
func (q *Ring[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
