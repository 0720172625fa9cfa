// Package container provides Container, a generic sequence shared by many
// goroutines and guarded by exactly one admission discipline for its whole
// lifetime.
//
// Usage:
//
//	c := container.New(container.Config[*Item]{
//		Discipline: container.Priority,
//		Reject:     seq.RejectZero[*Item](),
//	})
//	if err := c.Append(ctx, item); err != nil {
//		// seq.IsRejectedInsert(err) for a nil item
//	}
//	n, _ := c.Count(ctx)
//
// Every operation waits for admission from the container's controller, runs
// to completion against the store, and returns its own result. Failures are
// reported only to the caller that caused them and never disturb admission.
package container

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/seqguard/internal/guard"
	"github.com/roach88/seqguard/internal/seq"
)

// Discipline selects the admission controller of a container.
type Discipline int

const (
	// Exclusive serializes every operation in arrival order.
	Exclusive Discipline = iota
	// Priority runs reads concurrently and gives pending writes priority
	// over later reads.
	Priority
)

// Disciplines lists every discipline in declaration order.
var Disciplines = []Discipline{Exclusive, Priority}

// String returns the discipline name used in flags and scenario files.
func (d Discipline) String() string {
	switch d {
	case Exclusive:
		return "exclusive"
	case Priority:
		return "priority"
	default:
		return fmt.Sprintf("discipline(%d)", int(d))
	}
}

// ParseDiscipline converts "exclusive" or "priority" (case-insensitive).
func ParseDiscipline(s string) (Discipline, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exclusive":
		return Exclusive, nil
	case "priority":
		return Priority, nil
	default:
		return 0, fmt.Errorf("unknown discipline %q: must be exclusive or priority", s)
	}
}

// Config configures a new Container.
type Config[T any] struct {
	// Discipline is fixed for the container's lifetime. Default: Exclusive.
	Discipline Discipline

	// Initial is copied into the store. Its elements are not checked by Reject.
	Initial []T

	// Reject identifies the sentinel element. Nil accepts everything.
	Reject func(T) bool

	// Logger receives admission debug logs. Default: slog.Default().
	Logger *slog.Logger

	// Clock stamps arrival ranks. Default: a fresh guard.Clock.
	Clock guard.Sequencer
}

// Container is a concurrency-safe sequence of T.
// The zero value is not usable; construct with New.
type Container[T any] struct {
	discipline Discipline
	ctrl       guard.Controller
	store      *seq.Store[T]
}

// New creates a container. The store is owned by the container's single
// controller; there is no way to reach it except through admission.
func New[T any](cfg Config[T]) *Container[T] {
	var opts []guard.Option
	if cfg.Logger != nil {
		opts = append(opts, guard.WithLogger(cfg.Logger))
	}
	if cfg.Clock != nil {
		opts = append(opts, guard.WithClock(cfg.Clock))
	}

	var ctrl guard.Controller
	switch cfg.Discipline {
	case Priority:
		ctrl = guard.NewPriority(opts...)
	default:
		ctrl = guard.NewExclusive(opts...)
	}

	return &Container[T]{
		discipline: cfg.Discipline,
		ctrl:       ctrl,
		store:      seq.NewStore(cfg.Initial, cfg.Reject),
	}
}

// Discipline returns the discipline chosen at construction.
func (c *Container[T]) Discipline() Discipline {
	return c.discipline
}

// Stats returns the controller's admission counters.
func (c *Container[T]) Stats() guard.Stats {
	return c.ctrl.Stats()
}

// View runs fn with read access. With the Priority discipline fn may run
// alongside other readers; it must not retain the Reader after returning.
// Returns ctx's error if ctx ends before admission, otherwise fn's error.
func (c *Container[T]) View(ctx context.Context, fn func(seq.Reader[T]) error) error {
	var fnErr error
	if err := guard.Do(ctx, c.ctrl, guard.Read, func() {
		fnErr = fn(c.store)
	}); err != nil {
		return err
	}
	return fnErr
}

// Update runs fn with exclusive write access.
// Returns ctx's error if ctx ends before admission, otherwise fn's error.
func (c *Container[T]) Update(ctx context.Context, fn func(seq.Sequence[T]) error) error {
	var fnErr error
	if err := guard.Do(ctx, c.ctrl, guard.Write, func() {
		fnErr = fn(c.store)
	}); err != nil {
		return err
	}
	return fnErr
}

// Append adds element at the end. Returns a seq.AccessError with
// REJECTED_NIL_INSERT if element is the sentinel.
func (c *Container[T]) Append(ctx context.Context, element T) error {
	return c.Update(ctx, func(s seq.Sequence[T]) error {
		return s.Append(element)
	})
}

// ElementAt returns the element at index, checked against the sequence as it
// is when the read is admitted.
func (c *Container[T]) ElementAt(ctx context.Context, index int) (T, error) {
	var out T
	err := c.View(ctx, func(r seq.Reader[T]) error {
		v, err := r.ElementAt(index)
		out = v
		return err
	})
	return out, err
}

// RemoveAt removes the element at index, checked when the write is admitted.
func (c *Container[T]) RemoveAt(ctx context.Context, index int) error {
	return c.Update(ctx, func(s seq.Sequence[T]) error {
		return s.RemoveAt(index)
	})
}

// Count returns the number of elements. It never observes a partially
// applied write. The only error is ctx's, when ctx ends before admission.
func (c *Container[T]) Count(ctx context.Context) (int, error) {
	var n int
	err := c.View(ctx, func(r seq.Reader[T]) error {
		n = r.Count()
		return nil
	})
	return n, err
}

// Filter returns the elements matching predicate in order, without mutating
// the container. The only error is ctx's.
func (c *Container[T]) Filter(ctx context.Context, predicate func(T) bool) ([]T, error) {
	var out []T
	err := c.View(ctx, func(r seq.Reader[T]) error {
		out = r.Filter(predicate)
		return nil
	})
	return out, err
}

// Snapshot returns a copy of the whole sequence. The only error is ctx's.
func (c *Container[T]) Snapshot(ctx context.Context) ([]T, error) {
	var out []T
	err := c.View(ctx, func(r seq.Reader[T]) error {
		out = r.Items()
		return nil
	})
	return out, err
}

// Replace swaps the whole sequence for items in a single write.
func (c *Container[T]) Replace(ctx context.Context, items []T) error {
	return c.Update(ctx, func(s seq.Sequence[T]) error {
		return s.Replace(items)
	})
}

// MarshalJSON implements json.Marshaler as a read.
func (c *Container[T]) MarshalJSON() ([]byte, error) {
	items, err := c.Snapshot(context.Background())
	if err != nil {
		return nil, err
	}
	return json.Marshal(items)
}

// UnmarshalJSON implements json.Unmarshaler as a single write. Decoded
// sentinel elements are rejected like any other insert.
func (c *Container[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode container: %w", err)
	}
	return c.Replace(context.Background(), items)
}
