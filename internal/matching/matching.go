// Package matching finds the waitlist entries eligible for a given
// slot and orders them by priority.  "No candidates" is a normal
// outcome here, never an error: an empty pool just means the slot
// stays open.
package matching

import (
	"context"
	"time"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/ranking"
)

// Match-score components.  The match score reflects slot-specific fit
// and exists for diagnostics and ranking nuance; the priority score
// remains the primary sort key.
const (
	matchExactStaff = 10 // entry asked for exactly this staff member
	matchAnyStaff   = 5  // entry accepts any staff
	matchFullWindow = 5  // the whole slot fits inside the entry's window
)

// EntrySource supplies the active-entry pool for a tenant and service.
// *repository.WaitlistRepo satisfies it.
type EntrySource interface {
	ActiveByService(ctx context.Context, tenantID, serviceID uint64) ([]model.WaitlistEntry, error)
}

// Candidate pairs an eligible entry with its slot-specific match score.
type Candidate struct {
	Entry      model.WaitlistEntry `json:"entry"`
	MatchScore int                 `json:"match_score"`
}

// Engine filters and orders candidates for slots.
type Engine struct {
	entries EntrySource
	ranker  *ranking.Engine
}

// New returns a matching Engine over the given entry source and
// ranking engine.
func New(entries EntrySource, ranker *ranking.Engine) *Engine {
	return &Engine{entries: entries, ranker: ranker}
}

// FindCandidates returns the eligible waitlist entries for a slot,
// ordered by priority score (ties broken FIFO by the ranking engine).
// Entries in the exclude set (candidates already exhausted for this
// slot occurrence) are skipped, which is what bounds the cascade.
func (m *Engine) FindCandidates(ctx context.Context, slot *model.Slot, exclude map[uint64]struct{}) ([]Candidate, error) {
	pool, err := m.entries.ActiveByService(ctx, slot.TenantID, slot.ServiceID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	eligible := make([]model.WaitlistEntry, 0, len(pool))
	for _, e := range pool {
		if _, skip := exclude[e.ID]; skip {
			continue
		}
		if !Eligible(&e, slot) {
			continue
		}
		eligible = append(eligible, e)
	}
	ranked := m.ranker.Rank(eligible, now)
	out := make([]Candidate, 0, len(ranked))
	for _, e := range ranked {
		out = append(out, Candidate{Entry: e, MatchScore: matchScore(&e, slot)})
	}
	return out, nil
}

// Eligible reports whether an entry qualifies for a slot: active
// status, matching service, no staff preference or the slot's staff,
// and the slot start inside the entry's [earliest, latest) window.
func Eligible(e *model.WaitlistEntry, slot *model.Slot) bool {
	if e.Status != model.EntryStatusActive {
		return false
	}
	if e.ServiceID != slot.ServiceID {
		return false
	}
	if e.StaffID != nil && *e.StaffID != slot.StaffID {
		return false
	}
	if slot.StartAt.Before(e.WindowStart) || !slot.StartAt.Before(e.WindowEnd) {
		return false
	}
	return true
}

func matchScore(e *model.WaitlistEntry, slot *model.Slot) int {
	score := matchAnyStaff
	if e.StaffID != nil && *e.StaffID == slot.StaffID {
		score = matchExactStaff
	}
	if !slot.StartAt.Before(e.WindowStart) && !slot.EndAt.After(e.WindowEnd) {
		score += matchFullWindow
	}
	return score
}
