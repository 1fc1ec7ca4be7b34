package model

import "time"

// Notification channels in default fallback order.
const (
	ChannelSMS      = "sms"
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

// NotificationStatus enumerates delivery bookkeeping states.  A failed
// notification is itself a recoverable condition: the candidate can
// still be reached through the retry job or the eventual cascade.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification records one outbound slot offer to a candidate.  Rows
// exist purely for delivery bookkeeping (retries, diagnostics,
// cleanup) and never drive slot, entry or booking state.
type Notification struct {
	ID                string             // notifications.id (UUID)
	TenantID          uint64             // notifications.tenant_id
	EntryID           uint64             // notifications.entry_id
	SlotID            uint64             // notifications.slot_id
	Channel           string             // notifications.channel
	Recipient         string             // notifications.recipient
	Status            NotificationStatus // notifications.status
	Attempts          int                // notifications.attempts
	LastError         *string            // notifications.last_error (nullable)
	ProviderMessageID *string            // notifications.provider_message_id (nullable)
	CreatedAt         time.Time          // notifications.created_at
	UpdatedAt         time.Time          // notifications.updated_at
}
