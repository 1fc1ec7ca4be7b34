package model

import "time"

// BookingSource records how a booking came to exist.
type BookingSource string

const (
	BookingSourceWaitlist BookingSource = "waitlist"
	BookingSourceDirect   BookingSource = "direct"
	BookingSourceWalkIn   BookingSource = "walk_in"
)

// Booking is the finalized outcome of a filled slot.  Exactly one
// booking may reference a slot; the bookings table carries a unique
// constraint on slot_id, which is what makes double-booking
// structurally impossible rather than merely discouraged.  The
// customer fields are a snapshot captured at booking time and are
// independent of any originating waitlist entry.
//
// Fields:
//  ID           – primary key identifier.
//  TenantID     – owning tenant.
//  SlotID       – the booked slot (unique).
//  EntryID      – originating waitlist entry, if any (nullable).
//  CustomerName – snapshot of the customer's name.
//  Phone        – snapshot of the customer's phone.
//  Email        – snapshot of the customer's email (nullable).
//  Status       – booking state (confirmed, completed, canceled).
//  Source       – how the booking originated.
//  ConfirmedAt  – when the booking was finalized.
//  CompletedAt  – when the appointment took place (nullable).
type Booking struct {
	ID           uint64        // bookings.id
	TenantID     uint64        // bookings.tenant_id
	SlotID       uint64        // bookings.slot_id (unique)
	EntryID      *uint64       // bookings.entry_id (nullable)
	CustomerName string        // bookings.customer_name
	Phone        string        // bookings.phone
	Email        *string       // bookings.email (nullable)
	Status       string        // bookings.status
	Source       BookingSource // bookings.booking_source
	ConfirmedAt  time.Time     // bookings.confirmed_at
	CompletedAt  *time.Time    // bookings.completed_at (nullable)
}

// CustomerSnapshot carries the customer fields copied onto a booking
// at confirmation time.
type CustomerSnapshot struct {
	Name  string
	Phone string
	Email *string
}
