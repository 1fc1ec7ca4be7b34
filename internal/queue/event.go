// Package queue defines the background job payloads exchanged over the
// message broker, plus the publisher and consumer moving them.  Every
// job is idempotent: delivery is at-least-once, and re-running any job
// against already-advanced state is a harmless no-op detected by the
// same status guards that protect the request path.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType discriminates payloads inside an Envelope.
type JobType string

const (
	JobExpiredHoldSweep  JobType = "expired_hold_sweep"
	JobCascade           JobType = "cascade"
	JobNotificationRetry JobType = "notification_retry"
	JobCleanup           JobType = "cleanup"
)

// CascadeReason records why the previous candidate is out of the
// running for this slot occurrence.
type CascadeReason string

const (
	ReasonDeclined CascadeReason = "declined"
	ReasonExpired  CascadeReason = "expired"
)

// ExpiredHoldSweepJob triggers a sweep for lapsed holds, across all
// tenants or one.
type ExpiredHoldSweepJob struct {
	TenantID *uint64 `json:"tenant_id,omitempty"`
}

// CascadeJob moves a slot offer to the next-ranked candidate after a
// decline or hold expiry, off the request path so it can be retried
// independently of the triggering HTTP call.
type CascadeJob struct {
	TenantID        uint64        `json:"tenant_id"`
	SlotID          uint64        `json:"slot_id"`
	PreviousEntryID uint64        `json:"previous_entry_id"`
	Reason          CascadeReason `json:"reason"`
}

// NotificationRetryJob re-attempts a failed send.
type NotificationRetryJob struct {
	TenantID       uint64 `json:"tenant_id"`
	NotificationID string `json:"notification_id"`
	RetryCount     int    `json:"retry_count"`
}

// CleanupJob purges notification records past the retention window.
// Housekeeping only; it never touches slot, entry or booking state.
type CleanupJob struct {
	RetentionDays int `json:"retention_days"`
}

// Envelope is the wire format on the jobs queue.  NotBefore, when set,
// tells the consumer to defer the job; this is how retry backoff is
// realized without broker-side delay plugins.
type Envelope struct {
	ID         string          `json:"id"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	NotBefore  *time.Time      `json:"not_before,omitempty"`
}

// NewEnvelope wraps a payload for publishing.
func NewEnvelope(t JobType, payload interface{}, notBefore *time.Time) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Type:       t,
		Payload:    body,
		EnqueuedAt: time.Now().UTC(),
		NotBefore:  notBefore,
	}, nil
}

// RetryBackoff returns the delay before the given retry attempt:
// exponential doubling from one minute (1m, 2m, 4m, ...).
func RetryBackoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	return time.Minute << (retryCount - 1)
}
