package container

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqguard/internal/guard"
	"github.com/roach88/seqguard/internal/seq"
	"github.com/roach88/seqguard/internal/testutil"
)

const waitFor = 2 * time.Second

func intPtr(v int) *int { return &v }

func isEvenPtr(p *int) bool { return *p%2 == 0 }

func newIntPtrContainer(d Discipline, initial ...*int) *Container[*int] {
	return New(Config[*int]{
		Discipline: d,
		Initial:    initial,
		Reject:     seq.RejectZero[*int](),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func newIntContainer(d Discipline, initial ...int) *Container[int] {
	return New(Config[int]{
		Discipline: d,
		Initial:    initial,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func deref(ps []*int) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = *p
	}
	return out
}

func waitParked(t *testing.T, c interface{ Stats() guard.Stats }, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Stats().Waiting == n
	}, waitFor, time.Millisecond)
}

func TestParseDiscipline(t *testing.T) {
	tests := []struct {
		in      string
		want    Discipline
		wantErr bool
	}{
		{in: "exclusive", want: Exclusive},
		{in: "Priority", want: Priority},
		{in: " priority ", want: Priority},
		{in: "fair", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDiscipline(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Discipline {
	t.Helper()
	d, err := ParseDiscipline(s)
	require.NoError(t, err)
	return d
}

func TestNew_DefaultsToExclusive(t *testing.T) {
	c := New(Config[int]{})
	assert.Equal(t, Exclusive, c.Discipline())
	assert.Equal(t, "discipline(7)", Discipline(7).String())
}

// Scenario 1: concurrent appends including a sentinel.
func TestContainer_ConcurrentAppendWithSentinel(t *testing.T) {
	for _, d := range Disciplines {
		t.Run(d.String(), func(t *testing.T) {
			c := newIntPtrContainer(d)
			ctx := context.Background()

			values := []*int{intPtr(5), intPtr(10), nil}
			errs := make([]error, len(values))

			var wg sync.WaitGroup
			for i, v := range values {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = c.Append(ctx, v)
				}()
			}
			wg.Wait()

			assert.NoError(t, errs[0])
			assert.NoError(t, errs[1])
			assert.True(t, seq.IsRejectedInsert(errs[2]))

			n, err := c.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			evens, err := c.Filter(ctx, isEvenPtr)
			require.NoError(t, err)
			assert.Equal(t, []int{10}, deref(evens))
		})
	}
}

// Scenario 2: a long read, a write submitted during it, and a read after the write.
func TestContainer_WriteDuringLongRead(t *testing.T) {
	for _, d := range Disciplines {
		t.Run(d.String(), func(t *testing.T) {
			initial := make([]int, 10_000)
			for i := range initial {
				initial[i] = i
			}
			c := newIntContainer(d, initial...)
			ctx := context.Background()

			gate := testutil.NewGate()
			type filterResult struct {
				items []int
				err   error
			}

			readerA := make(chan filterResult, 1)
			go func() {
				first := true
				items, err := c.Filter(ctx, func(v int) bool {
					if first {
						first = false
						gate.Wait()
					}
					return v >= 9_990 || v == 99
				})
				readerA <- filterResult{items, err}
			}()
			<-gate.Entered()

			writer := make(chan error, 1)
			go func() { writer <- c.Append(ctx, 99) }()
			waitParked(t, c, 1)

			readerB := make(chan filterResult, 1)
			go func() {
				items, err := c.Snapshot(ctx)
				readerB <- filterResult{items, err}
			}()
			waitParked(t, c, 2)

			select {
			case <-readerB:
				t.Fatal("reader B ran before the pending write")
			case <-time.After(20 * time.Millisecond):
			}

			gate.Open()

			a := <-readerA
			require.NoError(t, a.err)
			// A saw the pre-write snapshot: 99 once, from the initial data.
			assert.Equal(t, []int{99, 9990, 9991, 9992, 9993, 9994, 9995, 9996, 9997, 9998, 9999}, a.items)

			require.NoError(t, <-writer)

			b := <-readerB
			require.NoError(t, b.err)
			require.Len(t, b.items, 10_001)
			assert.Equal(t, 99, b.items[10_000], "reader B must observe the write")
		})
	}
}

// Scenario 3: remove from an empty sequence.
func TestContainer_RemoveAtEmpty(t *testing.T) {
	for _, d := range Disciplines {
		t.Run(d.String(), func(t *testing.T) {
			c := newIntContainer(d)
			ctx := context.Background()

			err := c.RemoveAt(ctx, 0)
			require.Error(t, err)
			var ae *seq.AccessError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, seq.ErrCodeIndexOutOfBounds, ae.Code)
			assert.Equal(t, 0, ae.Index)

			n, err := c.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestContainer_BoundsCheckedAtExecution(t *testing.T) {
	for _, d := range Disciplines {
		t.Run(d.String(), func(t *testing.T) {
			c := newIntContainer(d, 1, 2, 3)
			ctx := context.Background()

			gate := testutil.NewGate()
			shrink := make(chan error, 1)
			go func() {
				shrink <- c.Update(ctx, func(s seq.Sequence[int]) error {
					gate.Wait()
					if err := s.RemoveAt(0); err != nil {
						return err
					}
					return s.RemoveAt(0)
				})
			}()
			<-gate.Entered()

			// Index 2 is valid now, but not once the queued read is admitted.
			read := make(chan error, 1)
			go func() {
				_, err := c.ElementAt(ctx, 2)
				read <- err
			}()
			waitParked(t, c, 1)

			gate.Open()
			require.NoError(t, <-shrink)
			err := <-read
			assert.True(t, seq.IsOutOfBounds(err))

			v, err := c.ElementAt(ctx, 0)
			require.NoError(t, err)
			assert.Equal(t, 3, v)
		})
	}
}

func TestContainer_FailuresDoNotBlockLaterOperations(t *testing.T) {
	for _, d := range Disciplines {
		t.Run(d.String(), func(t *testing.T) {
			c := newIntPtrContainer(d, intPtr(1))
			ctx := context.Background()

			assert.True(t, seq.IsRejectedInsert(c.Append(ctx, nil)))
			assert.True(t, seq.IsOutOfBounds(c.RemoveAt(ctx, 7)))
			_, err := c.ElementAt(ctx, -1)
			assert.True(t, seq.IsOutOfBounds(err))

			require.NoError(t, c.Append(ctx, intPtr(2)))
			items, err := c.Snapshot(ctx)
			require.NoError(t, err)
			assert.Equal(t, []int{1, 2}, deref(items))

			stats := c.Stats()
			assert.Equal(t, 0, stats.Waiting)
			assert.Equal(t, 0, stats.ActiveReaders)
			assert.False(t, stats.WriterActive)
		})
	}
}

func TestContainer_UpdateReturnsCallbackError(t *testing.T) {
	c := newIntContainer(Priority, 1)
	ctx := context.Background()
	sentinel := errors.New("abort")

	err := c.Update(ctx, func(s seq.Sequence[int]) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	err = c.View(ctx, func(r seq.Reader[int]) error {
		total := 0
		for _, v := range r.All() {
			total += v
		}
		assert.Equal(t, 1, total)
		return nil
	})
	assert.NoError(t, err)
}

func TestContainer_CancelledWhileQueued(t *testing.T) {
	for _, d := range Disciplines {
		t.Run(d.String(), func(t *testing.T) {
			c := newIntContainer(d)
			bg := context.Background()

			gate := testutil.NewGate()
			done := make(chan error, 1)
			go func() {
				done <- c.Update(bg, func(seq.Sequence[int]) error {
					gate.Wait()
					return nil
				})
			}()
			<-gate.Entered()

			ctx, cancel := context.WithTimeout(bg, 10*time.Millisecond)
			defer cancel()
			err := c.Append(ctx, 4)
			assert.ErrorIs(t, err, context.DeadlineExceeded)

			gate.Open()
			require.NoError(t, <-done)

			n, err := c.Count(bg)
			require.NoError(t, err)
			assert.Equal(t, 0, n, "withdrawn append must not run")
		})
	}
}

// TestContainer_Linearizable runs concurrent appends and removals and checks
// that the final state is reachable by some sequential order.
func TestContainer_Linearizable(t *testing.T) {
	for _, d := range Disciplines {
		t.Run(d.String(), func(t *testing.T) {
			c := newIntContainer(d)
			ctx := context.Background()

			const appenders = 20
			const perAppender = 50
			const removers = 10

			var wg sync.WaitGroup
			var mu sync.Mutex
			removedOK := 0

			for a := 0; a < appenders; a++ {
				wg.Add(1)
				go func(base int) {
					defer wg.Done()
					for i := 0; i < perAppender; i++ {
						assert.NoError(t, c.Append(ctx, base*1000+i))
					}
				}(a)
			}
			for r := 0; r < removers; r++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perAppender; i++ {
						err := c.RemoveAt(ctx, 0)
						if err == nil {
							mu.Lock()
							removedOK++
							mu.Unlock()
							continue
						}
						assert.True(t, seq.IsOutOfBounds(err))
					}
				}()
			}
			for r := 0; r < removers; r++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perAppender; i++ {
						_, err := c.Count(ctx)
						assert.NoError(t, err)
					}
				}()
			}
			wg.Wait()

			items, err := c.Snapshot(ctx)
			require.NoError(t, err)
			assert.Len(t, items, appenders*perAppender-removedOK)

			// Each appender's values keep their relative order.
			last := make(map[int]int)
			for _, v := range items {
				base, i := v/1000, v%1000
				if prev, ok := last[base]; ok {
					assert.Greater(t, i, prev)
				}
				last[base] = i
			}
		})
	}
}

func TestContainer_JSONRoundTrip(t *testing.T) {
	c := New(Config[string]{
		Discipline: Priority,
		Initial:    []string{"a", "b"},
		Reject:     seq.RejectZero[string](),
	})

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	require.NoError(t, json.Unmarshal([]byte(`["x","y","z"]`), c))
	items, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, items)

	err = json.Unmarshal([]byte(`["q",""]`), c)
	assert.True(t, seq.IsRejectedInsert(err))
	items, err = c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, items)
}

func TestContainer_EmptyMarshalsAsArray(t *testing.T) {
	data, err := json.Marshal(newIntContainer(Exclusive))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
