// Package dispatch runs the outbound command pipeline.
//
// Commands are accepted into a bounded FIFO queue and drained by a
// single worker goroutine. Each command is routed to its protocol
// adapter by name and executed under the configured retry policy, so a
// flapping transport gets a bounded number of attempts with exponential
// backoff rather than dropping the command outright.
//
// Submission is non-blocking: when the queue is full the caller gets
// queue.ErrQueueFull immediately and decides whether to shed or retry.
// Terminal command failures are reported through the OnFailure callback
// and the audit trail; they never stop the worker.
package dispatch
