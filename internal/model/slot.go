package model

import "time"

// SlotStatus enumerates the states of a bookable slot.  Valid
// transitions: open -> held -> booked, held -> open (decline or hold
// expiry), any non-booked state -> canceled, and canceled -> open
// (re-opening).  booked is terminal.
type SlotStatus string

const (
	SlotStatusOpen     SlotStatus = "open"
	SlotStatusHeld     SlotStatus = "held"
	SlotStatusBooked   SlotStatus = "booked"
	SlotStatusCanceled SlotStatus = "canceled"
)

// Slot is a bookable time range for one staff member and one service.
// A hold is durable state: status=held plus hold_expires_at, so an
// offer survives process restarts and is recovered by the expiry
// sweep rather than by any in-memory lock.  At most one non-canceled
// slot may exist per (staff, start, end); the database enforces this
// with a uniqueness constraint.
//
// Fields:
//  ID            – primary key identifier.
//  TenantID      – owning tenant.
//  StaffID       – staff member providing the service.
//  ServiceID     – service offered in this slot.
//  StartAt       – slot start time (UTC).
//  EndAt         – slot end time (UTC).
//  Status        – current lifecycle state.
//  HeldEntryID   – waitlist entry currently holding the slot (nullable).
//  HoldExpiresAt – set iff status=held; when the hold lapses.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last modification timestamp.
type Slot struct {
	ID            uint64     // slots.id
	TenantID      uint64     // slots.tenant_id
	StaffID       uint64     // slots.staff_id
	ServiceID     uint64     // slots.service_id
	StartAt       time.Time  // slots.start_at
	EndAt         time.Time  // slots.end_at
	Status        SlotStatus // slots.status
	HeldEntryID   *uint64    // slots.held_entry_id (nullable)
	HoldExpiresAt *time.Time // slots.hold_expires_at (nullable)
	CreatedAt     time.Time  // slots.created_at
	UpdatedAt     time.Time  // slots.updated_at
}

// HoldExpired reports whether the slot carries a hold that has lapsed
// at the given instant.  A slot without a hold is never expired.
func (s *Slot) HoldExpired(now time.Time) bool {
	return s.Status == SlotStatusHeld && s.HoldExpiresAt != nil && now.After(*s.HoldExpiresAt)
}
