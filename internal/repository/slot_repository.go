package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
)

// mysqlDuplicateEntry is the MySQL error number for a unique key
// violation (ER_DUP_ENTRY).
const mysqlDuplicateEntry = 1062

// SlotRepo provides data access to the slots table.  The slot row is
// the mutual-exclusion point for everything that happens to a slot:
// every state-changing method re-checks the current status in its
// WHERE clause inside the caller's transaction, so a stale read in a
// service layer can never be turned into a stale write.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a new SlotRepo bound to the provided database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `id, tenant_id, staff_id, service_id, start_at, end_at,
	status, held_entry_id, hold_expires_at, created_at, updated_at`

func scanSlot(row interface{ Scan(...interface{}) error }) (*model.Slot, error) {
	var s model.Slot
	var heldEntry sql.NullInt64
	var holdExp sql.NullTime
	err := row.Scan(
		&s.ID, &s.TenantID, &s.StaffID, &s.ServiceID, &s.StartAt, &s.EndAt,
		&s.Status, &heldEntry, &holdExp, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if heldEntry.Valid {
		v := uint64(heldEntry.Int64)
		s.HeldEntryID = &v
	}
	if holdExp.Valid {
		v := holdExp.Time
		s.HoldExpiresAt = &v
	}
	return &s, nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// Create inserts a new open slot.  The slots table carries a unique
// key over (staff_id, start_at, end_at) restricted to non-canceled
// rows; a violation surfaces as ErrSlotTimeConflict.
func (r *SlotRepo) Create(ctx context.Context, s *model.Slot) error {
	if !s.StartAt.Before(s.EndAt) {
		return ErrInvalidWindow
	}
	if s.StartAt.Before(time.Now().UTC()) {
		return ErrPastWindow
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO slots (tenant_id, staff_id, service_id, start_at, end_at, status)
		 VALUES (?, ?, ?, ?, ?, 'open')`,
		s.TenantID, s.StaffID, s.ServiceID, s.StartAt.UTC(), s.EndAt.UTC(),
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrSlotTimeConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.Status = model.SlotStatusOpen
	return nil
}

// Get returns a single slot scoped to the tenant; ErrNotFound when it
// does not exist.
func (r *SlotRepo) Get(ctx context.Context, tenantID, id uint64) (*model.Slot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id = ? AND tenant_id = ?`, id, tenantID)
	s, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// GetTx is Get within an existing transaction with the row locked,
// serializing all state changes for one slot.
func (r *SlotRepo) GetTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (*model.Slot, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id = ? AND tenant_id = ? FOR UPDATE`, id, tenantID)
	s, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// HoldTx places a hold for the given entry, transitioning the slot
// from open to held.  The status guard lives in the UPDATE itself:
// when zero rows change the slot was not open and ErrSlotNotOpen is
// returned to fail loudly, per the state-machine contract.
func (r *SlotRepo) HoldTx(ctx context.Context, tx *sql.Tx, slotID, entryID uint64, expiresAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE slots SET status = 'held', held_entry_id = ?, hold_expires_at = ?
		 WHERE id = ? AND status = 'open'`,
		entryID, expiresAt.UTC(), slotID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSlotNotOpen
	}
	return nil
}

// BookTx transitions a slot to booked from open, or from held while
// the hold is still live, clearing the hold.  It reports whether the
// transition happened; callers distinguish the reason for a false
// result from the slot they read under lock.
func (r *SlotRepo) BookTx(ctx context.Context, tx *sql.Tx, slotID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE slots SET status = 'booked', held_entry_id = NULL, hold_expires_at = NULL
		 WHERE id = ? AND (status = 'open'
		       OR (status = 'held' AND hold_expires_at > UTC_TIMESTAMP()))`,
		slotID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReleaseHoldTx returns a held slot to open, clearing the hold.  It
// reports whether a row changed; releasing a slot that is no longer
// held is a harmless no-op, which is what makes re-running a sweep
// safe.
func (r *SlotRepo) ReleaseHoldTx(ctx context.Context, tx *sql.Tx, slotID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE slots SET status = 'open', held_entry_id = NULL, hold_expires_at = NULL
		 WHERE id = ? AND status = 'held'`, slotID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReopenTx transitions a slot back to open from canceled or held.  A
// canceled slot re-entering the active namespace can collide with a
// slot created in the meantime for the same staff and time; the unique
// key rejects that as ErrSlotTimeConflict.
func (r *SlotRepo) ReopenTx(ctx context.Context, tx *sql.Tx, slotID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE slots SET status = 'open', held_entry_id = NULL, hold_expires_at = NULL
		 WHERE id = ? AND status IN ('canceled','held')`, slotID)
	if err != nil {
		if isDuplicate(err) {
			return false, ErrSlotTimeConflict
		}
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CancelTx transitions a slot to canceled from any state except
// booked, clearing any hold.
func (r *SlotRepo) CancelTx(ctx context.Context, tx *sql.Tx, slotID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE slots SET status = 'canceled', held_entry_id = NULL, hold_expires_at = NULL
		 WHERE id = ? AND status <> 'booked'`, slotID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ExpiredHeldTx returns all held slots whose hold has lapsed,
// optionally scoped to one tenant, locked for the duration of the
// sweep transaction so two overlapping sweeps cannot release the same
// hold twice.
func (r *SlotRepo) ExpiredHeldTx(ctx context.Context, tx *sql.Tx, tenantID *uint64) ([]model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots
	      WHERE status = 'held' AND hold_expires_at <= UTC_TIMESTAMP()`
	args := []interface{}{}
	if tenantID != nil {
		q += ` AND tenant_id = ?`
		args = append(args, *tenantID)
	}
	q += ` FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
