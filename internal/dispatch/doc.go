// Package dispatch moves messages from the producer to the command handler.
//
// Submitter is the producer side: it hands a message to the bounded channel
// without ever blocking, and on a full channel releases the message and
// reports the drop through the notification sink.
//
// Worker is the consumer side. It runs on one long-lived goroutine and
// alternates between two states:
//   - Waiting: parked inside Receive until a message is available
//   - Dispatching: decode, look up the command, invoke it, release
//
// Error handling (none of these stop the loop):
//   - Decode failure → Notify("error", "Unable to parse message.")
//   - Unknown command → Notify("error", "Unknown command \"name\".")
//   - Handler panic → recovered, Notify("error", ...), journaled as failed
//   - Journal write failure → logged only
//
// Every message is released exactly once: by Submit on drop, or by the
// worker when its iteration ends. The loop returns only after the channel
// is closed.
package dispatch
