// Package guard implements the admission controllers that mediate access to a
// shared sequence store.
//
// A controller hands out Tickets. Holding a Read ticket grants the right to
// run a read-only operation; holding a Write ticket grants exclusive access.
// Callers run their operation to completion and then Release the ticket.
// Operations are never interrupted once admitted; the only suspension point
// is Acquire.
//
// # Disciplines
//
// Exclusive admits exactly one request at a time, reads included, in strict
// arrival order. A released ticket is handed directly to the head of the wait
// queue, so no later arrival can barge ahead of a parked one.
//
// Priority admits reads concurrently but gives pending writes priority over
// reads that arrive after them:
//
//   - A read is admitted on arrival only if no write is active or queued.
//   - A write is admitted on arrival only if nothing is active and nothing is
//     queued; otherwise it waits for the in-flight readers to drain.
//   - Reads already running when a write arrives are never preempted.
//   - When the queue head becomes admissible, the head write is admitted
//     alone, or the run of reads at the head is admitted together. Reads
//     queued behind a later write keep waiting for that write.
//
// # Suspension
//
// A parked request owns a channel that the controller closes exactly once on
// admission. There is no polling. If the caller's context ends first the
// request is withdrawn from the queue without disturbing anyone else; if
// admission and cancellation race, the admission is handed straight back.
//
// # Ordering
//
// Every request is stamped with an arrival rank from a logical Sequencer
// while the controller lock is held, so rank order is submission order.
package guard
