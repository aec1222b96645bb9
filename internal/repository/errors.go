// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking service and handlers to distinguish between different failure
// scenarios without inspecting driver-specific errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when a customer insert collides with an
// existing email, typically because a concurrent request created the same
// customer first.
var ErrEmailExists = errors.New("email already exists")

// ErrTableTaken is returned when a reservation insert violates the
// (time_slot, table_number) unique key: another allocator committed the
// same table for the same slot first.
var ErrTableTaken = errors.New("table already reserved for slot")
