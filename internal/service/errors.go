package service

import (
	"errors"
	"fmt"
	"time"
)

// Client input errors.  Reported immediately and never retried.
var (
	ErrMissingFields = errors.New("missing required fields")
	ErrInvalidTime   = errors.New("invalid reservation time")
	ErrInvalidGuests = errors.New("invalid guest count")
	ErrInvalidEmail  = errors.New("invalid email")
	ErrInvalidDate   = errors.New("invalid date")
)

// ErrRateLimited is the admission error.  The caller may retry once the
// window has elapsed.
var ErrRateLimited = errors.New("rate limited")

// Contention errors.  Both mean "no table for you right now" and are
// distinct from system failures.  Callers may retry ErrRaceLost; they must
// not auto-retry ErrFullyBooked.
var (
	ErrFullyBooked = errors.New("time slot fully booked")
	ErrRaceLost    = errors.New("table was claimed concurrently")
)

// RateLimitedError carries the suggested wait before retrying.  It matches
// ErrRateLimited under errors.Is.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// FieldsError lists the missing fields.  It matches ErrMissingFields.
type FieldsError struct {
	Fields []string
}

func (e *FieldsError) Error() string {
	return fmt.Sprintf("missing fields: %v", e.Fields)
}

func (e *FieldsError) Is(target error) bool { return target == ErrMissingFields }
