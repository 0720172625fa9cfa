package guard

import "context"

// Exclusive serializes every request, read or write, in arrival order.
//
// At most one ticket is outstanding at any time. On release the ticket passes
// directly to the head of the wait queue; a new arrival is admitted on the
// spot only when nothing is held and nobody is waiting, so it can never
// overtake a parked request.
type Exclusive struct {
	core

	// held is the kind of the outstanding ticket, or 0 when free.
	held Kind
}

var _ Controller = (*Exclusive)(nil)

// NewExclusive creates a controller with the strict mutual exclusion discipline.
func NewExclusive(opts ...Option) *Exclusive {
	e := &Exclusive{}
	e.core.init("exclusive", opts)
	return e
}

// Acquire implements Controller.
func (e *Exclusive) Acquire(ctx context.Context, kind Kind) (*Ticket, error) {
	return e.core.acquire(ctx, e, kind)
}

// Stats implements Controller.
func (e *Exclusive) Stats() Stats {
	return e.core.snapshot(e)
}

func (e *Exclusive) tryAdmitLocked(kind Kind) bool {
	if e.held != 0 || e.queue.len() > 0 {
		return false
	}
	e.held = kind
	e.trackReadersLocked()
	return true
}

func (e *Exclusive) enqueuedLocked(*waiter) {}

func (e *Exclusive) withdrawnLocked(*waiter) {}

func (e *Exclusive) releaseLocked(Kind) {
	e.held = 0
}

func (e *Exclusive) dispatchLocked() {
	if e.held != 0 {
		return
	}
	w, ok := e.queue.pop()
	if !ok {
		return
	}
	e.held = w.kind
	e.trackReadersLocked()
	e.admitLocked(w)
}

func (e *Exclusive) trackReadersLocked() {
	if e.held == Read && e.stats.MaxConcurrentReads < 1 {
		e.stats.MaxConcurrentReads = 1
	}
}

func (e *Exclusive) snapshotLocked(s *Stats) {
	if e.held == Read {
		s.ActiveReaders = 1
	}
	s.WriterActive = e.held == Write
}
