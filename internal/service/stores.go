// Package service implements the slot lifecycle state machine, the
// race-free booking transaction and the cascade orchestration built on
// top of them.  Every state-changing operation re-reads current status
// inside the same transaction that performs the mutation; there is no
// check-then-act across the service/repository boundary.
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/matching"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
)

// SlotStore is the persistence surface for slots;
// *repository.SlotRepo satisfies it.
type SlotStore interface {
	Create(ctx context.Context, s *model.Slot) error
	Get(ctx context.Context, tenantID, id uint64) (*model.Slot, error)
	GetTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (*model.Slot, error)
	HoldTx(ctx context.Context, tx *sql.Tx, slotID, entryID uint64, expiresAt time.Time) error
	BookTx(ctx context.Context, tx *sql.Tx, slotID uint64) (bool, error)
	ReleaseHoldTx(ctx context.Context, tx *sql.Tx, slotID uint64) (bool, error)
	ReopenTx(ctx context.Context, tx *sql.Tx, slotID uint64) (bool, error)
	CancelTx(ctx context.Context, tx *sql.Tx, slotID uint64) (bool, error)
	ExpiredHeldTx(ctx context.Context, tx *sql.Tx, tenantID *uint64) ([]model.Slot, error)
}

// EntryStore is the persistence surface for waitlist entries;
// *repository.WaitlistRepo satisfies it.
type EntryStore interface {
	GetByID(ctx context.Context, tenantID, id uint64) (*model.WaitlistEntry, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (*model.WaitlistEntry, error)
	MarkNotifiedTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error)
	MarkConfirmedTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error)
	MarkRemovedTx(ctx context.Context, tx *sql.Tx, id uint64, reason string) (bool, error)
	MarkActiveTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error)
}

// BookingStore is the persistence surface for bookings;
// *repository.BookingRepo satisfies it.
type BookingStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
}

// Matcher yields the ordered candidate list for a slot;
// *matching.Engine satisfies it.
type Matcher interface {
	FindCandidates(ctx context.Context, slot *model.Slot, exclude map[uint64]struct{}) ([]matching.Candidate, error)
}

// Notifier dispatches a slot offer; *notify.Gateway satisfies it.
type Notifier interface {
	Notify(ctx context.Context, entry *model.WaitlistEntry, slot *model.Slot) (*model.Notification, error)
}

// txRunner executes fn inside one database transaction, committing on
// nil and rolling back otherwise.  Tests substitute a runner that
// passes a nil transaction to in-memory fakes.
type txRunner func(ctx context.Context, fn func(tx *sql.Tx) error) error

func newTxRunner(db *sql.DB) txRunner {
	return func(ctx context.Context, fn func(tx *sql.Tx) error) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		return nil
	}
}
