package guard

import "sync/atomic"

// Sequencer hands out arrival ranks.
// Implemented by Clock (production) and testutil.DeterministicClock (tests).
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock for arrival ranks.
//
// Controllers call Next while holding their own lock, so ranks issued by one
// controller are strictly increasing in submission order. Clock is safe for
// concurrent use and may be shared between controllers; ranks then stay
// unique but are no longer dense per controller.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next rank. The first call returns 1.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued rank without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
