// Package repository defines error types that are reused across multiple
// repositories and the services built on top of them. These sentinel
// values allow higher layers such as handlers to distinguish between
// different failure scenarios. Every conflict case has its own named
// error because the external caller (e.g. the confirm endpoint) must
// render a specific user-facing message; collapsing them into one
// generic failure would lose that.
package repository

import "errors"

// Validation errors: bad input, rejected synchronously, never retried.
var (
	// ErrInvalidWindow is returned when a time window does not satisfy
	// start < end.
	ErrInvalidWindow = errors.New("invalid time window")

	// ErrPastWindow is returned when a window or slot lies in the past
	// at creation time.
	ErrPastWindow = errors.New("time window is in the past")

	// ErrWaitlistLimit is returned when a signup would exceed the
	// allowed number of live entries per tenant and phone.
	ErrWaitlistLimit = errors.New("waitlist limit reached for this phone")
)

// Conflict errors: the resource moved on while the caller was
// deciding. Handlers translate these into HTTP 409 responses.
var (
	// ErrSlotNotAvailable is returned when a slot is no longer open or
	// held, or is held for a different entry.
	ErrSlotNotAvailable = errors.New("slot no longer available")

	// ErrHoldExpired is returned when a held slot's hold_expires_at has
	// passed before the candidate responded.
	ErrHoldExpired = errors.New("hold expired")

	// ErrEntryNotActive is returned when a waitlist entry is no longer
	// in a state that permits the attempted transition.
	ErrEntryNotActive = errors.New("waitlist entry no longer active")

	// ErrSlotAlreadyBooked is returned when the unique constraint on
	// bookings.slot_id rejects an insert, meaning a concurrent
	// transaction won the slot.
	ErrSlotAlreadyBooked = errors.New("slot already booked")

	// ErrSlotTimeConflict is returned when creating or re-opening a
	// slot would violate the one-non-canceled-slot-per-time constraint.
	ErrSlotTimeConflict = errors.New("slot time conflict")
)

// Invariant violations: programming or caller errors, never business
// conditions. These should fail loudly.
var (
	// ErrSlotNotOpen is returned when hold is attempted on a slot that
	// is not open. Callers must check state first; this is not a silent
	// no-op.
	ErrSlotNotOpen = errors.New("slot is not open")

	// ErrSlotBooked is returned when cancel is attempted on a booked
	// slot.
	ErrSlotBooked = errors.New("slot is booked")
)

// ErrNotFound is returned when a referenced row does not exist for the
// requesting tenant. Handlers should translate this into HTTP 404.
var ErrNotFound = errors.New("not found")
