package guard

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Kind distinguishes read requests from write requests.
type Kind int

const (
	// Read requests may share the store with other reads (Priority only).
	Read Kind = iota + 1
	// Write requests always run alone.
	Write
)

// String returns "read" or "write".
func (k Kind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "unknown"
	}
}

// Controller admits requests against a shared store.
//
// Implemented by Exclusive and Priority.
type Controller interface {
	// Acquire blocks until a request of the given kind is admitted or ctx is
	// done. On success the caller must Release the returned ticket exactly
	// once, after its operation has finished.
	Acquire(ctx context.Context, kind Kind) (*Ticket, error)

	// Stats returns a consistent snapshot of the admission counters.
	Stats() Stats
}

// Ticket is the right to run one admitted operation.
type Ticket struct {
	kind     Kind
	rank     int64
	release  func()
	released atomic.Bool
}

// Kind returns the kind the ticket was admitted as.
func (t *Ticket) Kind() Kind { return t.kind }

// Rank returns the arrival rank of the request.
func (t *Ticket) Rank() int64 { return t.rank }

// Release ends the admitted operation and lets the controller admit the next
// requests. Panics if called twice.
func (t *Ticket) Release() {
	if !t.released.CompareAndSwap(false, true) {
		panic("guard: ticket released twice")
	}
	t.release()
}

// Do acquires a ticket of the given kind, runs fn, and releases the ticket,
// also when fn panics. The only error is ctx's, returned when ctx ends before
// admission; fn has not run in that case.
func Do(ctx context.Context, c Controller, kind Kind, fn func()) error {
	t, err := c.Acquire(ctx, kind)
	if err != nil {
		return err
	}
	defer t.Release()
	fn()
	return nil
}

// Option configures a controller.
type Option func(*core)

// WithClock sets the arrival-rank source. Default: a fresh Clock.
func WithClock(clock Sequencer) Option {
	return func(c *core) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger used for admission debug logs.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *core) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// policy is the discipline-specific half of a controller.
// Every method is called with core.mu held.
type policy interface {
	// tryAdmitLocked admits a new arrival immediately if the discipline allows
	// it, updating discipline state. Returns false if the request must wait.
	tryAdmitLocked(kind Kind) bool

	// enqueuedLocked records that w has been parked.
	enqueuedLocked(w *waiter)

	// withdrawnLocked records that w left the queue without being admitted.
	withdrawnLocked(w *waiter)

	// releaseLocked records the completion of an admitted request.
	releaseLocked(kind Kind)

	// dispatchLocked admits whatever the queue head allows.
	dispatchLocked()

	// snapshotLocked fills the live fields of s.
	snapshotLocked(s *Stats)
}

// core is the machinery shared by both disciplines: the lock, the wait
// queue, rank stamping, parking and withdrawal.
type core struct {
	name   string
	mu     sync.Mutex
	clock  Sequencer
	queue  waitQueue
	stats  Stats
	logger *slog.Logger
}

func (c *core) init(name string, opts []Option) {
	c.name = name
	c.clock = NewClock()
	c.queue = newWaitQueue()
	c.logger = slog.Default()
	for _, opt := range opts {
		opt(c)
	}
}

// acquire runs the admission protocol common to both disciplines.
func (c *core) acquire(ctx context.Context, p policy, kind Kind) (*Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	rank := c.clock.Next()
	if p.tryAdmitLocked(kind) {
		c.stats.Immediate++
		c.countAdmittedLocked(kind)
		c.mu.Unlock()

		c.logger.Debug("request admitted",
			"controller", c.name,
			"kind", kind,
			"rank", rank,
		)
		return c.ticket(p, kind, rank), nil
	}

	w := &waiter{kind: kind, rank: rank, ready: make(chan struct{})}
	c.queue.push(w)
	p.enqueuedLocked(w)
	c.stats.Queued++
	waiting := c.queue.len()
	c.mu.Unlock()

	c.logger.Debug("request queued",
		"controller", c.name,
		"kind", kind,
		"rank", rank,
		"waiting", waiting,
	)

	select {
	case <-w.ready:
		c.logger.Debug("request admitted after wait",
			"controller", c.name,
			"kind", kind,
			"rank", rank,
		)
		return c.ticket(p, kind, rank), nil
	case <-ctx.Done():
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Withdrawn++
	if w.admitted {
		// Admitted while the caller was giving up. Hand the admission back so
		// the next requests are not stalled behind an operation that never runs.
		p.releaseLocked(kind)
	} else {
		c.queue.remove(w)
		p.withdrawnLocked(w)
	}
	p.dispatchLocked()

	c.logger.Debug("request withdrawn",
		"controller", c.name,
		"kind", kind,
		"rank", rank,
		"error", ctx.Err(),
	)
	return nil, ctx.Err()
}

// admitLocked wakes a parked waiter. Must be called at most once per waiter.
func (c *core) admitLocked(w *waiter) {
	w.admitted = true
	c.countAdmittedLocked(w.kind)
	close(w.ready)
}

func (c *core) countAdmittedLocked(kind Kind) {
	switch kind {
	case Read:
		c.stats.AdmittedReads++
	case Write:
		c.stats.AdmittedWrites++
	}
}

func (c *core) ticket(p policy, kind Kind, rank int64) *Ticket {
	return &Ticket{
		kind: kind,
		rank: rank,
		release: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			p.releaseLocked(kind)
			p.dispatchLocked()
		},
	}
}

func (c *core) snapshot(p policy) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Waiting = c.queue.len()
	p.snapshotLocked(&s)
	return s
}
