// Package queue implements the bounded handoff channel between the host's
// producer goroutine and the worker.
//
// The channel is a ring buffer guarded by a mutex and a "not empty" condition
// variable:
//   - TrySend never blocks. A full channel rejects the message and leaves its
//     ownership with the caller, who is expected to release it and report the
//     drop.
//   - Receive parks the consumer on the condition until a message arrives.
//     The predicate is re-checked after every wake, so spurious and extra
//     wakeups are harmless.
//   - Messages are delivered in the order they were accepted. Rejected
//     messages are simply absent; nothing is retried.
//
// The design assumes one producer and one consumer. The lock keeps the ring
// manipulation itself safe with more callers, but ordering across several
// producers is whatever order they win the lock in.
package queue
