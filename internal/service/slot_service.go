package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/audit"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/repository"
)

// SlotService owns the slot state machine (open/held/booked/canceled)
// and the booking transaction.  The slot row is the mutual-exclusion
// point: each method locks it with GetTx and applies guarded updates
// in the same transaction, so within one slot all operations are
// serialized while different slots proceed fully in parallel.
type SlotService struct {
	txRun    txRunner
	slots    SlotStore
	entries  EntryStore
	bookings BookingStore
	sink     audit.Sink
	holdTTL  time.Duration
	log      zerolog.Logger
}

// NewSlotService constructs a SlotService.  holdTTL bounds how long a
// candidate may sit on an offer before the sweep reclaims the slot.
func NewSlotService(db *sql.DB, slots SlotStore, entries EntryStore, bookings BookingStore,
	sink audit.Sink, holdTTL time.Duration, log zerolog.Logger) *SlotService {
	return &SlotService{
		txRun:    newTxRunner(db),
		slots:    slots,
		entries:  entries,
		bookings: bookings,
		sink:     sink,
		holdTTL:  holdTTL,
		log:      log.With().Str("component", "slot-service").Logger(),
	}
}

// Create inserts a new open slot.  Window validation and the
// time-uniqueness constraint live in the repository.
func (s *SlotService) Create(ctx context.Context, slot *model.Slot) error {
	if err := s.slots.Create(ctx, slot); err != nil {
		return err
	}
	s.sink.Record(ctx, "staff", "slot_created", "slot", slot.ID, nil,
		map[string]interface{}{"staff_id": slot.StaffID, "start_at": slot.StartAt})
	return nil
}

// Open transitions a slot back to open, permitted only from canceled
// or held.  A withdrawn hold returns its candidate to the active pool.
// The caller is expected to follow up with a cascade fill.
func (s *SlotService) Open(ctx context.Context, tenantID, slotID uint64) (*model.Slot, error) {
	var out *model.Slot
	err := s.txRun(ctx, func(tx *sql.Tx) error {
		slot, err := s.slots.GetTx(ctx, tx, tenantID, slotID)
		if err != nil {
			return err
		}
		switch slot.Status {
		case model.SlotStatusCanceled, model.SlotStatusHeld:
			// permitted
		default:
			return repository.ErrSlotNotAvailable
		}
		if slot.Status == model.SlotStatusHeld && slot.HeldEntryID != nil {
			if _, err := s.entries.MarkActiveTx(ctx, tx, *slot.HeldEntryID); err != nil {
				return err
			}
		}
		ok, err := s.slots.ReopenTx(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrSlotNotAvailable
		}
		slot.Status = model.SlotStatusOpen
		slot.HeldEntryID = nil
		slot.HoldExpiresAt = nil
		out = slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.sink.Record(ctx, "staff", "slot_opened", "slot", slotID, nil, nil)
	return out, nil
}

// Hold places a time-boxed hold for an entry, transitioning the slot
// from open to held and the entry from active to notified.  Holding a
// non-open slot is a caller error (ErrSlotNotOpen), not a silent
// no-op.
func (s *SlotService) Hold(ctx context.Context, tenantID, slotID, entryID uint64) (*model.Slot, error) {
	var out *model.Slot
	err := s.txRun(ctx, func(tx *sql.Tx) error {
		slot, err := s.slots.GetTx(ctx, tx, tenantID, slotID)
		if err != nil {
			return err
		}
		if slot.Status != model.SlotStatusOpen {
			return repository.ErrSlotNotOpen
		}
		entry, err := s.entries.GetByIDTx(ctx, tx, tenantID, entryID)
		if err != nil {
			return err
		}
		if entry.Status != model.EntryStatusActive {
			return repository.ErrEntryNotActive
		}
		expiresAt := time.Now().UTC().Add(s.holdTTL)
		if err := s.slots.HoldTx(ctx, tx, slotID, entryID, expiresAt); err != nil {
			return err
		}
		ok, err := s.entries.MarkNotifiedTx(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrEntryNotActive
		}
		slot.Status = model.SlotStatusHeld
		slot.HeldEntryID = &entryID
		slot.HoldExpiresAt = &expiresAt
		out = slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.sink.Record(ctx, "system", "hold_placed", "slot", slotID, nil,
		map[string]interface{}{"entry_id": entryID, "hold_expires_at": out.HoldExpiresAt})
	return out, nil
}

// Book is the booking transaction: the atomic, race-free transition
// from open/held to booked.  All guards run inside the transaction,
// and the unique constraint on bookings.slot_id is the final arbiter:
// of two concurrent confirmations exactly one gets a booking and the
// other gets ErrSlotAlreadyBooked.
func (s *SlotService) Book(ctx context.Context, tenantID, slotID uint64, snap model.CustomerSnapshot,
	entryID *uint64, source model.BookingSource) (*model.Booking, error) {
	var booking *model.Booking
	err := s.txRun(ctx, func(tx *sql.Tx) error {
		slot, err := s.slots.GetTx(ctx, tx, tenantID, slotID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		switch {
		case slot.Status == model.SlotStatusBooked:
			return repository.ErrSlotAlreadyBooked
		case slot.Status == model.SlotStatusCanceled:
			return repository.ErrSlotNotAvailable
		case slot.HoldExpired(now):
			return repository.ErrHoldExpired
		case slot.Status == model.SlotStatusHeld && entryID != nil &&
			slot.HeldEntryID != nil && *slot.HeldEntryID != *entryID:
			// Held for somebody else; this caller lost the slot.
			return repository.ErrSlotNotAvailable
		}
		ok, err := s.slots.BookTx(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrSlotNotAvailable
		}
		b := &model.Booking{
			TenantID:     tenantID,
			SlotID:       slotID,
			EntryID:      entryID,
			CustomerName: snap.Name,
			Phone:        snap.Phone,
			Email:        snap.Email,
			Source:       source,
		}
		if err := s.bookings.CreateTx(ctx, tx, b); err != nil {
			return err
		}
		if entryID != nil {
			ok, err := s.entries.MarkConfirmedTx(ctx, tx, *entryID)
			if err != nil {
				return err
			}
			if !ok {
				return repository.ErrEntryNotActive
			}
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Auxiliary: a failing audit sink must never undo the booking.
	s.sink.Record(ctx, "customer", "booking_created", "booking", booking.ID, nil,
		map[string]interface{}{"slot_id": slotID, "source": string(source)})
	return booking, nil
}

// Cancel transitions a slot to canceled from any state except booked,
// returning a held candidate, if any, to the active pool.  Canceling
// an already-canceled slot is a no-op.
func (s *SlotService) Cancel(ctx context.Context, tenantID, slotID uint64) error {
	err := s.txRun(ctx, func(tx *sql.Tx) error {
		slot, err := s.slots.GetTx(ctx, tx, tenantID, slotID)
		if err != nil {
			return err
		}
		if slot.Status == model.SlotStatusBooked {
			return repository.ErrSlotBooked
		}
		if slot.Status == model.SlotStatusCanceled {
			return nil
		}
		if slot.HeldEntryID != nil {
			if _, err := s.entries.MarkActiveTx(ctx, tx, *slot.HeldEntryID); err != nil {
				return err
			}
		}
		ok, err := s.slots.CancelTx(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrSlotBooked
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.sink.Record(ctx, "staff", "slot_canceled", "slot", slotID, nil, nil)
	return nil
}
