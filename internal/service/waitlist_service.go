package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/audit"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/ranking"
)

// EntryCreator persists new waitlist entries with the per-customer
// live-entry limit enforced; *repository.WaitlistRepo satisfies it.
type EntryCreator interface {
	Create(ctx context.Context, e *model.WaitlistEntry, maxLive int) error
}

// WaitlistService handles waitlist signups.  The priority score is
// computed once at signup and cached on the row; the scheduler
// refreshes it as the recency bonus accrues.
type WaitlistService struct {
	entries EntryCreator
	ranker  *ranking.Engine
	sink    audit.Sink
	maxLive int
	log     zerolog.Logger
}

// NewWaitlistService constructs a WaitlistService.  maxLive caps how
// many live entries one phone number may hold per tenant.
func NewWaitlistService(entries EntryCreator, ranker *ranking.Engine, sink audit.Sink,
	maxLive int, log zerolog.Logger) *WaitlistService {
	return &WaitlistService{
		entries: entries,
		ranker:  ranker,
		sink:    sink,
		maxLive: maxLive,
		log:     log.With().Str("component", "waitlist-service").Logger(),
	}
}

// Join adds a customer to the waitlist.  Window validation and the
// live-entry limit are enforced by the store inside one transaction,
// so two simultaneous signups cannot both squeeze under the cap.
func (s *WaitlistService) Join(ctx context.Context, e *model.WaitlistEntry) error {
	now := time.Now().UTC()
	e.Status = model.EntryStatusActive
	e.CreatedAt = now
	e.PriorityScore = s.ranker.Score(e, now)
	if err := s.entries.Create(ctx, e, s.maxLive); err != nil {
		return err
	}
	s.sink.Record(ctx, "customer", "waitlist_joined", "waitlist_entry", e.ID, nil,
		map[string]interface{}{"service_id": e.ServiceID, "priority_score": e.PriorityScore})
	s.log.Info().Uint64("entry_id", e.ID).Uint64("tenant_id", e.TenantID).
		Int("priority_score", e.PriorityScore).Msg("waitlist entry created")
	return nil
}
