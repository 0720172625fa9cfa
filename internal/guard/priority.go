package guard

import "context"

// Priority is a reader/writer controller in which a pending write blocks all
// reads that arrive after it, while reads already running are left to finish.
//
// State:
//   - activeReaders: reads currently holding a ticket
//   - writerActive:  a write currently holds a ticket
//   - pendingWrites: writes parked in the queue
//
// A write is "pending" while writerActive || pendingWrites > 0. New reads are
// admitted on arrival only while no write is pending, which is what keeps a
// steady stream of readers from starving a writer.
type Priority struct {
	core

	activeReaders int
	writerActive  bool
	pendingWrites int
}

var _ Controller = (*Priority)(nil)

// NewPriority creates a controller with the write-priority reader/writer
// discipline.
func NewPriority(opts ...Option) *Priority {
	p := &Priority{}
	p.core.init("priority", opts)
	return p
}

// Acquire implements Controller.
func (p *Priority) Acquire(ctx context.Context, kind Kind) (*Ticket, error) {
	return p.core.acquire(ctx, p, kind)
}

// Stats implements Controller.
func (p *Priority) Stats() Stats {
	return p.core.snapshot(p)
}

func (p *Priority) writePendingLocked() bool {
	return p.writerActive || p.pendingWrites > 0
}

func (p *Priority) tryAdmitLocked(kind Kind) bool {
	switch kind {
	case Read:
		// Queued behind a pending write even if other reads are running.
		if p.writePendingLocked() {
			return false
		}
		p.addReaderLocked()
		return true
	case Write:
		if p.writerActive || p.activeReaders > 0 || p.queue.len() > 0 {
			return false
		}
		p.writerActive = true
		return true
	default:
		return false
	}
}

func (p *Priority) enqueuedLocked(w *waiter) {
	if w.kind == Write {
		p.pendingWrites++
	}
}

func (p *Priority) withdrawnLocked(w *waiter) {
	if w.kind == Write {
		p.pendingWrites--
	}
}

func (p *Priority) releaseLocked(kind Kind) {
	switch kind {
	case Read:
		p.activeReaders--
	case Write:
		p.writerActive = false
	}
}

// dispatchLocked admits from the head of the queue: either one write, once
// every reader has drained, or the run of reads up to the next queued write.
func (p *Priority) dispatchLocked() {
	for {
		w, ok := p.queue.peek()
		if !ok {
			return
		}

		if w.kind == Write {
			if p.writerActive || p.activeReaders > 0 {
				return
			}
			p.queue.pop()
			p.pendingWrites--
			p.writerActive = true
			p.admitLocked(w)
			return
		}

		if p.writerActive {
			return
		}
		p.queue.pop()
		p.addReaderLocked()
		p.admitLocked(w)
	}
}

func (p *Priority) addReaderLocked() {
	p.activeReaders++
	if p.activeReaders > p.stats.MaxConcurrentReads {
		p.stats.MaxConcurrentReads = p.activeReaders
	}
}

func (p *Priority) snapshotLocked(s *Stats) {
	s.ActiveReaders = p.activeReaders
	s.WriterActive = p.writerActive
}
