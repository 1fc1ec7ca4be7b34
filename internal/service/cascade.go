package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/audit"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/matching"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/notify"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/queue"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/repository"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/token"
)

// CascadeEnqueuer hands a cascade continuation to the job queue;
// *queue.Publisher satisfies it.
type CascadeEnqueuer interface {
	EnqueueCascade(ctx context.Context, job queue.CascadeJob) error
}

// FillResult reports one cascade step for a slot.
type FillResult struct {
	Candidates       []matching.Candidate // ranked eligible pool after exclusions
	Top              *model.WaitlistEntry // candidate the hold was placed for, nil if none
	NotificationSent bool
}

// SweepResult reports one expired-hold sweep pass.
type SweepResult struct {
	Released             int
	CascadeNotifications int
}

// CascadeService drives the offer cascade: pick the best remaining
// candidate for a slot, hold it for them, notify them, and on decline
// or expiry move to the next candidate.  Candidates already tried for
// a slot occurrence live in the exclusion set, so the pool only
// shrinks and every cascade terminates.
type CascadeService struct {
	txRun       txRunner
	slots       SlotStore
	entries     EntryStore
	matcher     Matcher
	gateway     Notifier
	exclusions  *ExclusionStore
	slotSvc     *SlotService
	jobs        CascadeEnqueuer
	sink        audit.Sink
	tokenSecret string
	log         zerolog.Logger
}

// NewCascadeService constructs a CascadeService on top of an existing
// SlotService; state transitions go through it so both paths share the
// same guards.
func NewCascadeService(db *sql.DB, slots SlotStore, entries EntryStore, matcher Matcher,
	gateway Notifier, exclusions *ExclusionStore, slotSvc *SlotService, jobs CascadeEnqueuer,
	sink audit.Sink, tokenSecret string, log zerolog.Logger) *CascadeService {
	return &CascadeService{
		txRun:       newTxRunner(db),
		slots:       slots,
		entries:     entries,
		matcher:     matcher,
		gateway:     gateway,
		exclusions:  exclusions,
		slotSvc:     slotSvc,
		jobs:        jobs,
		sink:        sink,
		tokenSecret: tokenSecret,
		log:         log.With().Str("component", "cascade").Logger(),
	}
}

// Fill runs one cascade step for a slot: rank the eligible pool minus
// the exclusion set, hold the slot for the top candidate and send the
// offer.  A candidate that went inactive between ranking and holding
// is skipped in favor of the next one.  If the slot stops being open
// mid-step another actor got there first and Fill returns what it saw
// without error.
//
// A notification failure does not release the hold; the retry job owns
// delivery from here and the sweep reclaims the slot if the hold runs
// out first.
func (s *CascadeService) Fill(ctx context.Context, tenantID, slotID uint64) (*FillResult, error) {
	slot, err := s.slots.Get(ctx, tenantID, slotID)
	if err != nil {
		return nil, err
	}
	result := &FillResult{}
	if slot.Status != model.SlotStatusOpen {
		return result, nil
	}

	exclude, err := s.exclusions.Members(ctx, slotID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.matcher.FindCandidates(ctx, slot, exclude)
	if err != nil {
		return nil, err
	}
	result.Candidates = candidates
	if len(candidates) == 0 {
		s.log.Info().Uint64("slot_id", slotID).Msg("cascade found no eligible candidates")
		return result, nil
	}

	var held *model.Slot
	var top *model.WaitlistEntry
	for i := range candidates {
		entry := &candidates[i].Entry
		held, err = s.slotSvc.Hold(ctx, tenantID, slotID, entry.ID)
		switch {
		case err == nil:
			top = entry
		case errors.Is(err, repository.ErrEntryNotActive):
			// Raced onto another slot; try the runner-up.
			continue
		case errors.Is(err, repository.ErrSlotNotOpen):
			// Slot was taken while we ranked. Nothing to do.
			return result, nil
		default:
			return nil, err
		}
		break
	}
	if top == nil {
		return result, nil
	}
	result.Top = top

	if _, err := s.gateway.Notify(ctx, top, held); err != nil {
		if errors.Is(err, notify.ErrRateLimited) || errors.Is(err, notify.ErrSendFailed) {
			s.log.Warn().Err(err).Uint64("slot_id", slotID).Uint64("entry_id", top.ID).
				Msg("offer notification not delivered, hold kept")
			return result, nil
		}
		return nil, err
	}
	result.NotificationSent = true
	return result, nil
}

// ResetExclusions clears the tried-candidate set for a slot.  Staff
// re-opening a slot starts a fresh offer round where earlier decliners
// are back in the running.
func (s *CascadeService) ResetExclusions(ctx context.Context, slotID uint64) error {
	return s.exclusions.Clear(ctx, slotID)
}

// Confirm redeems a confirm token into a booking.  The token binds
// entry, slot and tenant; everything after verification is the guarded
// booking transaction, so a replayed token after the slot was booked
// reports ErrSlotAlreadyBooked rather than creating anything.
func (s *CascadeService) Confirm(ctx context.Context, tenantID uint64, raw string) (*model.Booking, error) {
	claims, err := token.Verify(s.tokenSecret, raw, tenantID, token.ActionConfirm)
	if err != nil {
		return nil, err
	}
	entry, err := s.entries.GetByID(ctx, tenantID, claims.EntryID)
	if err != nil {
		return nil, err
	}
	entryID := claims.EntryID
	snap := model.CustomerSnapshot{Name: entry.CustomerName, Phone: entry.Phone, Email: entry.Email}
	booking, err := s.slotSvc.Book(ctx, tenantID, claims.SlotID, snap, &entryID, model.BookingSourceWaitlist)
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// Decline redeems a decline token: the entry leaves the waitlist, the
// hold (if this entry still has it) is released and the cascade moves
// on to the next candidate.  Declining twice is a no-op the second
// time.  Returns the customer name for the response page.
func (s *CascadeService) Decline(ctx context.Context, tenantID uint64, raw string) (string, error) {
	claims, err := token.Verify(s.tokenSecret, raw, tenantID, token.ActionDecline)
	if err != nil {
		return "", err
	}

	var name string
	var cascade bool
	err = s.txRun(ctx, func(tx *sql.Tx) error {
		entry, err := s.entries.GetByIDTx(ctx, tx, tenantID, claims.EntryID)
		if err != nil {
			return err
		}
		name = entry.CustomerName
		if entry.Status == model.EntryStatusRemoved || entry.Status == model.EntryStatusConfirmed {
			return nil
		}
		if _, err := s.entries.MarkRemovedTx(ctx, tx, claims.EntryID, "declined"); err != nil {
			return err
		}
		slot, err := s.slots.GetTx(ctx, tx, tenantID, claims.SlotID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		if slot.Status == model.SlotStatusHeld && slot.HeldEntryID != nil && *slot.HeldEntryID == claims.EntryID {
			if _, err := s.slots.ReleaseHoldTx(ctx, tx, claims.SlotID); err != nil {
				return err
			}
			cascade = true
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if !cascade {
		return name, nil
	}

	s.sink.Record(ctx, "customer", "offer_declined", "slot", claims.SlotID, nil,
		map[string]interface{}{"entry_id": claims.EntryID})
	if err := s.exclusions.Add(ctx, claims.SlotID, claims.EntryID); err != nil {
		s.log.Error().Err(err).Uint64("slot_id", claims.SlotID).Msg("exclusion add failed")
	}
	job := queue.CascadeJob{
		TenantID:        tenantID,
		SlotID:          claims.SlotID,
		PreviousEntryID: claims.EntryID,
		Reason:          queue.ReasonDeclined,
	}
	if err := s.jobs.EnqueueCascade(ctx, job); err != nil {
		// The queue is auxiliary; fall back to an inline step so the
		// slot does not sit open waiting for the next sweep.
		s.log.Warn().Err(err).Uint64("slot_id", claims.SlotID).Msg("cascade enqueue failed, running inline")
		if _, ferr := s.Fill(ctx, tenantID, claims.SlotID); ferr != nil {
			s.log.Error().Err(ferr).Uint64("slot_id", claims.SlotID).Msg("inline cascade step failed")
		}
	}
	return name, nil
}

// ProcessExpiredHolds is the sweep: every held slot whose hold has run
// out is released back to open, its candidate returns to the active
// pool but is excluded from this slot occurrence, and a cascade step
// runs for the slot.  Selection and release happen in one transaction
// over the current clock, so a second sweep right after finds nothing
// and changes nothing.
func (s *CascadeService) ProcessExpiredHolds(ctx context.Context, tenantID *uint64) (SweepResult, error) {
	var result SweepResult

	type reclaimed struct {
		tenantID uint64
		slotID   uint64
		entryID  uint64
	}
	var released []reclaimed

	err := s.txRun(ctx, func(tx *sql.Tx) error {
		expired, err := s.slots.ExpiredHeldTx(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		for i := range expired {
			slot := &expired[i]
			ok, err := s.slots.ReleaseHoldTx(ctx, tx, slot.ID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if slot.HeldEntryID != nil {
				if _, err := s.entries.MarkActiveTx(ctx, tx, *slot.HeldEntryID); err != nil {
					return err
				}
				released = append(released, reclaimed{slot.TenantID, slot.ID, *slot.HeldEntryID})
			} else {
				released = append(released, reclaimed{slot.TenantID, slot.ID, 0})
			}
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	result.Released = len(released)

	for _, r := range released {
		if r.entryID != 0 {
			if err := s.exclusions.Add(ctx, r.slotID, r.entryID); err != nil {
				s.log.Error().Err(err).Uint64("slot_id", r.slotID).Msg("exclusion add failed")
			}
			s.sink.Record(ctx, "system", "hold_expired", "slot", r.slotID, nil,
				map[string]interface{}{"entry_id": r.entryID})
		}
		fill, err := s.Fill(ctx, r.tenantID, r.slotID)
		if err != nil {
			s.log.Error().Err(err).Uint64("slot_id", r.slotID).Msg("cascade step after sweep failed")
			continue
		}
		if fill.NotificationSent {
			result.CascadeNotifications++
		}
	}
	if result.Released > 0 {
		s.log.Info().Int("released", result.Released).
			Int("cascade_notifications", result.CascadeNotifications).Msg("expired holds swept")
	}
	return result, nil
}
