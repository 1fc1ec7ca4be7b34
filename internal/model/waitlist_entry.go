package model

import "time"

// EntryStatus enumerates the lifecycle states of a waitlist entry.
// Transitions only move forward: active -> notified -> confirmed or
// removed, with the single exception that a notified entry whose hold
// expires without a response is returned to active.  A confirmed
// entry never changes state again.
type EntryStatus string

const (
	EntryStatusActive    EntryStatus = "active"    // waiting for a matching slot
	EntryStatusNotified  EntryStatus = "notified"  // currently holds a slot offer
	EntryStatusConfirmed EntryStatus = "confirmed" // accepted an offer; terminal
	EntryStatusRemoved   EntryStatus = "removed"   // declined or removed; terminal
)

// WaitlistEntry represents a customer's standing request to be offered
// a slot for a service.  Entries are ranked by priority_score and
// offered slots through time-boxed holds; the score is a cached
// projection of a pure function and is recomputed periodically.
//
// Fields:
//  ID            – primary key identifier.
//  TenantID      – owning tenant.
//  CustomerName  – customer display name, captured at signup.
//  Phone         – required contact number (SMS channel).
//  Email         – optional email channel.
//  ServiceID     – desired service; mandatory.
//  StaffID       – preferred staff member (nullable, nil means "any").
//  WindowStart   – earliest acceptable slot start (inclusive).
//  WindowEnd     – latest acceptable slot start (exclusive).
//  VIP           – VIP flag contributing to the priority score.
//  PriorityScore – cached ranking score; recomputed, never incremented.
//  Status        – current lifecycle state.
//  RemovalReason – why the entry was removed (nullable).
//  NotifiedAt    – when the entry was last offered a slot (nullable).
//  CreatedAt     – signup timestamp; breaks priority ties (FIFO).
//  UpdatedAt     – last modification timestamp.
type WaitlistEntry struct {
	ID            uint64      // waitlist_entries.id
	TenantID      uint64      // waitlist_entries.tenant_id
	CustomerName  string      // waitlist_entries.customer_name
	Phone         string      // waitlist_entries.phone
	Email         *string     // waitlist_entries.email (nullable)
	ServiceID     uint64      // waitlist_entries.service_id
	StaffID       *uint64     // waitlist_entries.staff_id (nullable)
	WindowStart   time.Time   // waitlist_entries.window_start
	WindowEnd     time.Time   // waitlist_entries.window_end
	VIP           bool        // waitlist_entries.vip
	PriorityScore int         // waitlist_entries.priority_score
	Status        EntryStatus // waitlist_entries.status
	RemovalReason *string     // waitlist_entries.removal_reason (nullable)
	NotifiedAt    *time.Time  // waitlist_entries.notified_at (nullable)
	CreatedAt     time.Time   // waitlist_entries.created_at
	UpdatedAt     time.Time   // waitlist_entries.updated_at
}
