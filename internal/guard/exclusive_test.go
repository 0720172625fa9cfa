package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusive_ReadsDoNotShare(t *testing.T) {
	c := NewExclusive(WithLogger(quietLogger()))
	ctx := context.Background()

	first, err := c.Acquire(ctx, Read)
	require.NoError(t, err)

	second := acquireAsync(ctx, c, Read)
	waitParked(t, c, 1)
	assertParked(t, second)

	stats := c.Stats()
	assert.Equal(t, 1, stats.ActiveReaders)
	assert.False(t, stats.WriterActive)

	first.Release()
	mustAdmit(t, second).Release()

	assert.Equal(t, 1, c.Stats().MaxConcurrentReads)
}

func TestExclusive_GlobalFIFO(t *testing.T) {
	c := NewExclusive(WithLogger(quietLogger()))
	ctx := context.Background()

	holder, err := c.Acquire(ctx, Write)
	require.NoError(t, err)

	kinds := []Kind{Read, Write, Read, Read, Write}
	pending := make([]<-chan acquired, len(kinds))
	for i, k := range kinds {
		pending[i] = acquireAsync(ctx, c, k)
		waitParked(t, c, i+1)
	}

	holder.Release()

	// Each release hands the controller to exactly the next arrival.
	for i, ch := range pending {
		tk := mustAdmit(t, ch)
		assert.Equal(t, kinds[i], tk.Kind())
		if i+1 < len(pending) {
			assertParked(t, pending[i+1])
		}
		tk.Release()
	}

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Immediate)
	assert.Equal(t, uint64(len(kinds)), stats.Queued)
	assert.Equal(t, uint64(3), stats.AdmittedReads)
	assert.Equal(t, uint64(3), stats.AdmittedWrites)
}

func TestExclusive_NoBargingPastQueue(t *testing.T) {
	c := NewExclusive(WithLogger(quietLogger()))
	ctx := context.Background()

	holder, err := c.Acquire(ctx, Write)
	require.NoError(t, err)

	parked := acquireAsync(ctx, c, Read)
	waitParked(t, c, 1)

	holder.Release()
	tk := mustAdmit(t, parked)

	// A newcomer arriving right after the hand-off still waits.
	late := acquireAsync(ctx, c, Read)
	waitParked(t, c, 1)
	assertParked(t, late)

	tk.Release()
	mustAdmit(t, late).Release()
}
