// Package queue provides a bounded FIFO command buffer.
//
// The queue is the backpressure boundary between command producers and the
// dispatch loop: when it is full, Enqueue fails immediately rather than
// blocking or evicting, pushing the decision back to the caller. Dequeue on
// an empty queue reports emptiness rather than failing, since draining to
// empty is the normal termination condition for a processing loop.
//
// All methods are safe for concurrent use.
package queue
