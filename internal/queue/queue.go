package queue

import (
	"errors"
	"fmt"
	"sync"
)

// Domain errors for queue operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidCapacity is returned by New when capacity is not positive.
	ErrInvalidCapacity = errors.New("queue: capacity must be a positive integer")

	// ErrQueueFull is returned by Enqueue when the queue is at capacity.
	// The item is not admitted; backpressure is the caller's to handle.
	ErrQueueFull = errors.New("queue: full")
)

// Queue is a bounded, strictly ordered FIFO buffer.
//
// Items have no identity beyond their position and are not deduplicated.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	head     int
	capacity int
}

// New creates a queue with the given fixed capacity.
//
// Parameters:
//   - capacity: Maximum number of buffered items (must be >= 1)
//
// Returns:
//   - *Queue[T]: Empty queue ready for use
//   - error: ErrInvalidCapacity if capacity is not positive
func New[T any](capacity int) (*Queue[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Queue[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}, nil
}

// Enqueue appends an item to the tail of the queue.
//
// Returns:
//   - error: ErrQueueFull when the queue is at capacity, nil otherwise
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items)-q.head >= q.capacity {
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, q.capacity)
	}

	q.items = append(q.items, item)
	return nil
}

// Dequeue removes and returns the item at the head of the queue.
//
// Returns:
//   - T: The dequeued item (zero value when empty)
//   - bool: false when the queue is empty
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero // Release the reference for GC.
	q.head++

	// Reclaim the drained prefix once the queue empties, or compact when
	// the prefix outgrows the capacity. The backing slice stays bounded
	// by the capacity regardless of total throughput.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > q.capacity {
		n := copy(q.items, q.items[q.head:])
		for i := n; i < len(q.items); i++ {
			q.items[i] = zero // Release references in the stale tail.
		}
		q.items = q.items[:n]
		q.head = 0
	}

	return item, true
}

// Len returns the number of buffered items. O(1).
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Cap returns the fixed capacity the queue was constructed with.
func (q *Queue[T]) Cap() int {
	return q.capacity
}
