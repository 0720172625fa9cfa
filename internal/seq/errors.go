package seq

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store access failures.
type ErrorCode string

const (
	// ErrCodeRejectedNilInsert indicates an attempt to insert the sentinel value.
	ErrCodeRejectedNilInsert ErrorCode = "REJECTED_NIL_INSERT"

	// ErrCodeIndexOutOfBounds indicates an index outside [0, count) at execution time.
	ErrCodeIndexOutOfBounds ErrorCode = "INDEX_OUT_OF_BOUNDS"
)

// AccessError is returned by Store operations. The store is unchanged
// whenever an AccessError is returned.
type AccessError struct {
	// Code identifies the failure kind.
	Code ErrorCode

	// Index is the offending index for ErrCodeIndexOutOfBounds.
	Index int

	// Count is the sequence length observed when the check failed.
	Count int
}

// Error implements the error interface.
func (e *AccessError) Error() string {
	switch e.Code {
	case ErrCodeIndexOutOfBounds:
		return fmt.Sprintf("%s: index %d not in [0, %d)", e.Code, e.Index, e.Count)
	case ErrCodeRejectedNilInsert:
		return fmt.Sprintf("%s: sentinel value may not be inserted", e.Code)
	default:
		return string(e.Code)
	}
}

// NewRejectedInsertError creates an AccessError for a sentinel insert.
func NewRejectedInsertError() *AccessError {
	return &AccessError{Code: ErrCodeRejectedNilInsert}
}

// NewOutOfBoundsError creates an AccessError for an invalid index.
func NewOutOfBoundsError(index, count int) *AccessError {
	return &AccessError{Code: ErrCodeIndexOutOfBounds, Index: index, Count: count}
}

// IsRejectedInsert returns true if err is a sentinel insert rejection.
// Uses errors.As to handle wrapped errors.
func IsRejectedInsert(err error) bool {
	var ae *AccessError
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeRejectedNilInsert
	}
	return false
}

// IsOutOfBounds returns true if err is an index bounds failure.
// Uses errors.As to handle wrapped errors.
func IsOutOfBounds(err error) bool {
	var ae *AccessError
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeIndexOutOfBounds
	}
	return false
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an AccessError.
func CodeOf(err error) ErrorCode {
	var ae *AccessError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
