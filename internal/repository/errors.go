// Package repository defines the data access layer and the sentinel error
// values shared across repositories.  These sentinels allow higher layers
// (the booking engine and the HTTP handlers) to distinguish failure
// scenarios: ErrNoAvailableSpot signals that a lot is full, ErrLotNotEmpty
// that a lot cannot be deleted while spots are occupied, ErrNotOwner that a
// reservation belongs to someone else, and so on.  Every failure is a
// distinguishable value scoped to one request; none is fatal to the process.
package repository

import "errors"

// ErrInvalidInput is returned when create/update fields are missing or out
// of range (non-positive rate or capacity, blank name or address).
var ErrInvalidInput = errors.New("invalid input")

// ErrLotNotFound is returned when a parking lot lookup yields no rows.
var ErrLotNotFound = errors.New("parking lot not found")

// ErrSpotNotFound is returned when a parking spot lookup yields no rows.
var ErrSpotNotFound = errors.New("parking spot not found")

// ErrNoAvailableSpot is returned by allocation when every spot in the target
// lot is occupied.  The check and the claim happen inside one transaction,
// so two racing allocations against a single free spot produce exactly one
// success and one ErrNoAvailableSpot.
var ErrNoAvailableSpot = errors.New("no available spot in lot")

// ErrLotNotEmpty is returned when a lot cannot be deleted because at least
// one of its spots is currently occupied.
var ErrLotNotEmpty = errors.New("lot has occupied spots")

// ErrReservationNotFound is returned when a reservation lookup yields no rows.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrNotOwner is returned when the caller attempts to release a reservation
// created by a different user.
var ErrNotOwner = errors.New("reservation belongs to another user")

// ErrAlreadyClosed is returned when releasing a reservation whose leaving
// timestamp is already set.  Release happens exactly once.
var ErrAlreadyClosed = errors.New("reservation already closed")

// ErrInvalidInterval is returned when a release end time precedes the
// reservation's start time.
var ErrInvalidInterval = errors.New("end time before start time")
