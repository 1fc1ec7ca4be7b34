package notify

import (
	"context"
	"time"
)

// SendResult is what a provider reports back on a successful send.
type SendResult struct {
	ProviderMessageID string
}

// Sender transmits a rendered message over one channel.  The core owns
// channel selection, rate limiting and retry policy; the collaborator
// only transmits.
type Sender interface {
	Send(ctx context.Context, channel, recipient, message string) (SendResult, error)
}

// Payload is the structured data handed to the template renderer.  The
// core never produces markup; resolving service and staff names is the
// renderer's concern.
type Payload struct {
	CustomerName string
	ServiceID    uint64
	StaffID      *uint64
	SlotStart    time.Time // tenant-local
	SlotEnd      time.Time // tenant-local
	ConfirmURL   string
	DeclineURL   string
}

// TemplateRenderer produces channel-specific message content.
type TemplateRenderer interface {
	Render(ctx context.Context, channel string, p Payload) (string, error)
}

// TenantClock resolves a tenant's local timezone so slot times in
// notifications read naturally to the customer.
type TenantClock interface {
	Location(ctx context.Context, tenantID uint64) (*time.Location, error)
}

// QuotaLimiter is the atomic increment-with-expiry counter guarding
// per-tenant notification volume.  The core assumes nothing about the
// backing store beyond this contract.
type QuotaLimiter interface {
	Allow(ctx context.Context, tenantID uint64) (bool, error)
}
