package testutil

import "sync"

// Gate holds goroutines at a point in a test until the test opens it.
//
// Typical use is a long-running read: the operation signals Entered, then
// blocks on Wait until the test has arranged whatever must happen while the
// read is in flight.
type Gate struct {
	entered chan struct{}
	open    chan struct{}
	once    sync.Once
	enter   sync.Once
}

// NewGate creates a closed gate.
func NewGate() *Gate {
	return &Gate{
		entered: make(chan struct{}),
		open:    make(chan struct{}),
	}
}

// Wait marks the gate as entered and blocks until Open is called.
func (g *Gate) Wait() {
	g.enter.Do(func() { close(g.entered) })
	<-g.open
}

// Entered is closed once the first goroutine reaches Wait.
func (g *Gate) Entered() <-chan struct{} {
	return g.entered
}

// Open releases every current and future waiter. Safe to call more than once.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.open) })
}
