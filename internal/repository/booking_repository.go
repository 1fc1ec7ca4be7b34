package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
)

// BookingRepo provides data access to the bookings table.  The table
// carries a unique constraint on slot_id: the insert itself is the
// arbiter of which of two concurrent confirmations wins a slot, and
// the loser surfaces as ErrSlotAlreadyBooked.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateTx inserts a booking within the provided transaction and
// populates the generated ID and confirmation timestamp.  A duplicate
// key on slot_id maps to ErrSlotAlreadyBooked so callers get a
// distinct conflict rather than a generic database error.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings
		 (tenant_id, slot_id, entry_id, customer_name, phone, email, status, booking_source)
		 VALUES (?, ?, ?, ?, ?, ?, 'confirmed', ?)`,
		b.TenantID, b.SlotID, nullUint(b.EntryID), b.CustomerName, b.Phone,
		nullString(b.Email), b.Source,
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrSlotAlreadyBooked
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.Status = "confirmed"
	// Read back DB-assigned confirmation timestamp.
	return tx.QueryRowContext(ctx,
		`SELECT confirmed_at FROM bookings WHERE id = ?`, b.ID,
	).Scan(&b.ConfirmedAt)
}

// GetBySlot returns the booking referencing a slot, scoped to the
// tenant; ErrNotFound when the slot has no booking.
func (r *BookingRepo) GetBySlot(ctx context.Context, tenantID, slotID uint64) (*model.Booking, error) {
	var b model.Booking
	var entryID sql.NullInt64
	var email sql.NullString
	var completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, slot_id, entry_id, customer_name, phone, email,
		        status, booking_source, confirmed_at, completed_at
		 FROM bookings WHERE slot_id = ? AND tenant_id = ?`,
		slotID, tenantID,
	).Scan(&b.ID, &b.TenantID, &b.SlotID, &entryID, &b.CustomerName, &b.Phone, &email,
		&b.Status, &b.Source, &b.ConfirmedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if entryID.Valid {
		v := uint64(entryID.Int64)
		b.EntryID = &v
	}
	if email.Valid {
		v := email.String
		b.Email = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		b.CompletedAt = &v
	}
	return &b, nil
}
