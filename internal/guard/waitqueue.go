package guard

// waiter is a parked request.
type waiter struct {
	kind Kind
	rank int64

	// ready is closed exactly once, by admitLocked.
	ready chan struct{}

	// admitted is guarded by the controller mutex.
	admitted bool
}

// waitQueue is the FIFO wait set of a controller.
// Not safe for concurrent use: every method is called with the owning
// controller's mutex held.
type waitQueue struct {
	waiters []*waiter
}

func newWaitQueue() waitQueue {
	return waitQueue{waiters: make([]*waiter, 0, 16)}
}

// push appends w at the back.
func (q *waitQueue) push(w *waiter) {
	q.waiters = append(q.waiters, w)
}

// peek returns the head without removing it.
func (q *waitQueue) peek() (*waiter, bool) {
	if len(q.waiters) == 0 {
		return nil, false
	}
	return q.waiters[0], true
}

// pop removes and returns the head.
func (q *waitQueue) pop() (*waiter, bool) {
	if len(q.waiters) == 0 {
		return nil, false
	}

	w := q.waiters[0]

	// Nil out the slot so the backing array does not retain the waiter.
	q.waiters[0] = nil

	if len(q.waiters) == 1 {
		q.waiters = q.waiters[:0]
	} else {
		q.waiters = q.waiters[1:]
	}
	return w, true
}

// remove deletes w wherever it sits. Returns false if w is not queued.
func (q *waitQueue) remove(w *waiter) bool {
	for i, cur := range q.waiters {
		if cur != w {
			continue
		}
		copy(q.waiters[i:], q.waiters[i+1:])
		q.waiters[len(q.waiters)-1] = nil
		q.waiters = q.waiters[:len(q.waiters)-1]
		return true
	}
	return false
}

// len returns the number of parked requests.
func (q *waitQueue) len() int {
	return len(q.waiters)
}
