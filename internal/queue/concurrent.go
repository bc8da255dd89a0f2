package queue

import (
	"sync"
	"sync/atomic"
)

// Concurrent wraps Queue with a mutex and close semantics, for the
// single-producer (acceptor), multi-consumer (worker pool) handoff. hint
// tracks occupancy in a separate atomic int32, not the mutex, so CountHint
// can read it without contending with Push/Pop — the one operation the
// mutex deliberately doesn't guard.
type Concurrent[T comparable] struct {
	mu     sync.Mutex
	q      *Queue[T]
	closed bool
	hint   atomic.Int32
}

// NewConcurrent builds a Concurrent queue with the given capacity,
// optionally pre-loaded with initial items in order.
func NewConcurrent[T comparable](capacity int, initial ...T) (*Concurrent[T], error) {
	q, err := New[T](capacity, initial...)
	if err != nil {
		return nil, err
	}
	c := &Concurrent[T]{q: q}
	c.hint.Store(int32(q.Len()))
	return c, nil
}

// Push appends to the tail. Returns ErrClosed after Close, ErrFull at
// capacity.
func (c *Concurrent[T]) Push(item T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.q.Push(item); err != nil {
		return err
	}
	c.hint.Store(int32(c.q.Len()))
	return nil
}

// Pop is a non-blocking removal of the head. It never blocks: ok is false
// immediately when the queue is empty, whether or not it has been closed.
// Once the queue is both closed and empty, err is ErrClosed so a worker's
// poll loop can stop trying. Callers that want to keep draining a closed
// queue should keep calling Pop until it returns ErrClosed.
func (c *Concurrent[T]) Pop() (item T, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok = c.q.Pop()
	c.hint.Store(int32(c.q.Len()))
	if ok {
		return item, true, nil
	}
	if c.closed {
		return item, false, ErrClosed
	}
	return item, false, nil
}

// Close marks the queue closed. Pending items already enqueued remain
// poppable; subsequent Push calls fail with ErrClosed. Close is idempotent.
func (c *Concurrent[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Closed reports whether Close has been called.
func (c *Concurrent[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CountHint returns the last observed occupancy. Unlike every other method
// here, it does not take the mutex — it reads the atomic hint directly, so
// an admission check can call it without contending with in-flight
// Push/Pop. It may be stale by the time the caller reads it, so it only
// decides whether a Pop is worth attempting (and feeds metrics/logging);
// Push and Pop make the real capacity and emptiness checks under the mutex.
func (c *Concurrent[T]) CountHint() int {
	return int(c.hint.Load())
}

// Contains reports whether item is currently queued.
func (c *Concurrent[T]) Contains(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.Contains(item)
}

// Clear drops every pending item, invoking release per item if non-nil.
func (c *Concurrent[T]) Clear(release func(T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.q.Clear(release)
	c.hint.Store(0)
}
