package seq

import (
	"iter"
	"slices"
)

// Reader is the read capability of a sequence: ordered, indexable, countable.
type Reader[T any] interface {
	// ElementAt returns the element at index, checked against the current extent.
	ElementAt(index int) (T, error)

	// Count returns the current number of elements.
	Count() int

	// Filter returns the elements satisfying predicate, in order.
	Filter(predicate func(T) bool) []T

	// All iterates the elements in order with their indices.
	All() iter.Seq2[int, T]

	// Items returns a copy of the current contents.
	Items() []T
}

// Sequence adds the appendable and removable capabilities to Reader.
type Sequence[T any] interface {
	Reader[T]

	// Append inserts element at the end.
	Append(element T) error

	// RemoveAt removes the element at index.
	RemoveAt(index int) error

	// Replace swaps the whole content for items.
	Replace(items []T) error
}

var _ Sequence[int] = (*Store[int])(nil)

// Store owns the ordered collection behind a container.
// It is not safe for concurrent use; see the package documentation.
type Store[T any] struct {
	items  []T
	reject func(T) bool
}

// NewStore creates a store holding a copy of initial.
// A nil reject accepts every element.
//
// Elements of initial are not checked against reject; the initial sequence is
// trusted construction input.
func NewStore[T any](initial []T, reject func(T) bool) *Store[T] {
	s := &Store[T]{
		items:  make([]T, len(initial)),
		reject: reject,
	}
	copy(s.items, initial)
	return s
}

// Append adds element to the end of the sequence.
// Returns REJECTED_NIL_INSERT and leaves the sequence unchanged if element is
// the sentinel.
func (s *Store[T]) Append(element T) error {
	if s.rejects(element) {
		return NewRejectedInsertError()
	}
	s.items = append(s.items, element)
	return nil
}

// ElementAt returns the element at index.
func (s *Store[T]) ElementAt(index int) (T, error) {
	var zero T
	if index < 0 || index >= len(s.items) {
		return zero, NewOutOfBoundsError(index, len(s.items))
	}
	return s.items[index], nil
}

// RemoveAt removes the element at index, shifting later elements down.
func (s *Store[T]) RemoveAt(index int) error {
	if index < 0 || index >= len(s.items) {
		return NewOutOfBoundsError(index, len(s.items))
	}

	s.items = slices.Delete(s.items, index, index+1)
	return nil
}

// Count returns the number of elements.
func (s *Store[T]) Count() int {
	return len(s.items)
}

// Filter returns a new slice containing the elements that match predicate.
// The result never aliases the store.
func (s *Store[T]) Filter(predicate func(T) bool) []T {
	result := make([]T, 0)
	for _, v := range s.items {
		if predicate(v) {
			result = append(result, v)
		}
	}
	return result
}

// All returns an iterator over index/element pairs.
// The iterator must only be consumed while the caller still holds its
// admission ticket.
func (s *Store[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, v := range s.items {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Items returns a copy of the current contents.
func (s *Store[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Replace swaps the contents for a copy of items. If any element is the
// sentinel, nothing changes and REJECTED_NIL_INSERT is returned.
func (s *Store[T]) Replace(items []T) error {
	for _, v := range items {
		if s.rejects(v) {
			return NewRejectedInsertError()
		}
	}

	next := make([]T, len(items))
	copy(next, items)
	s.items = next
	return nil
}

func (s *Store[T]) rejects(element T) bool {
	return s.reject != nil && s.reject(element)
}

// RejectZero returns a predicate that treats the zero value of T as the
// sentinel: nil for pointers, "" for strings, 0 for numbers.
func RejectZero[T comparable]() func(T) bool {
	return func(v T) bool {
		var zero T
		return v == zero
	}
}
