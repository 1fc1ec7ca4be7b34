package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
)

// WaitlistRepo provides data access to the waitlist_entries table.
// All timestamps are stored and compared in UTC.  Status transitions
// are guarded updates: every UPDATE carries the expected current
// status in its WHERE clause and reports whether a row actually
// changed, so running the same transition twice is a detectable no-op
// rather than a corruption.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the provided database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

const entryColumns = `id, tenant_id, customer_name, phone, email, service_id, staff_id,
	window_start, window_end, vip, priority_score, status, removal_reason,
	notified_at, created_at, updated_at`

func scanEntry(row interface{ Scan(...interface{}) error }) (*model.WaitlistEntry, error) {
	var e model.WaitlistEntry
	var email, reason sql.NullString
	var staffID sql.NullInt64
	var notifiedAt sql.NullTime
	err := row.Scan(
		&e.ID, &e.TenantID, &e.CustomerName, &e.Phone, &email, &e.ServiceID, &staffID,
		&e.WindowStart, &e.WindowEnd, &e.VIP, &e.PriorityScore, &e.Status, &reason,
		&notifiedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		v := email.String
		e.Email = &v
	}
	if staffID.Valid {
		v := uint64(staffID.Int64)
		e.StaffID = &v
	}
	if reason.Valid {
		v := reason.String
		e.RemovalReason = &v
	}
	if notifiedAt.Valid {
		v := notifiedAt.Time
		e.NotifiedAt = &v
	}
	return &e, nil
}

// Create inserts a new waitlist entry after validating its time window
// and enforcing the per-phone cap inside a single transaction.  The
// count and the insert share the transaction so two concurrent signups
// cannot both squeeze under the cap.  On success the generated ID and
// timestamps are populated on the passed entry.
func (r *WaitlistRepo) Create(ctx context.Context, e *model.WaitlistEntry, maxLive int) error {
	now := time.Now().UTC()
	if !e.WindowStart.Before(e.WindowEnd) {
		return ErrInvalidWindow
	}
	if e.WindowStart.Before(now) {
		return ErrPastWindow
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	// Count live entries for this tenant/phone with the rows locked so
	// a concurrent signup serializes behind us.
	var live int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM waitlist_entries
		 WHERE tenant_id = ? AND phone = ? AND status IN ('active','notified')
		 FOR UPDATE`,
		e.TenantID, e.Phone,
	).Scan(&live)
	if err != nil {
		return err
	}
	if live >= maxLive {
		return ErrWaitlistLimit
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO waitlist_entries
		 (tenant_id, customer_name, phone, email, service_id, staff_id,
		  window_start, window_end, vip, priority_score, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'active')`,
		e.TenantID, e.CustomerName, e.Phone, nullString(e.Email), e.ServiceID,
		nullUint(e.StaffID), e.WindowStart.UTC(), e.WindowEnd.UTC(), e.VIP, e.PriorityScore,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	e.Status = model.EntryStatusActive
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID returns a single entry scoped to the tenant.  ErrNotFound is
// returned when no such row exists.
func (r *WaitlistRepo) GetByID(ctx context.Context, tenantID, id uint64) (*model.WaitlistEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM waitlist_entries WHERE id = ? AND tenant_id = ?`,
		id, tenantID,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// GetByIDTx is GetByID within an existing transaction, locking the row
// for the duration of the transaction.
func (r *WaitlistRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (*model.WaitlistEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM waitlist_entries WHERE id = ? AND tenant_id = ? FOR UPDATE`,
		id, tenantID,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// ActiveByService returns all active entries for a tenant and service.
// Staff preference, window overlap and exclusions are evaluated by the
// matching engine in memory; this query only narrows the pool.
func (r *WaitlistRepo) ActiveByService(ctx context.Context, tenantID, serviceID uint64) ([]model.WaitlistEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM waitlist_entries
		 WHERE tenant_id = ? AND service_id = ? AND status = 'active'`,
		tenantID, serviceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WaitlistEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ListActive returns every active or notified entry, optionally scoped
// to a tenant, for periodic score recomputation.
func (r *WaitlistRepo) ListActive(ctx context.Context, tenantID *uint64) ([]model.WaitlistEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM waitlist_entries WHERE status IN ('active','notified')`
	args := []interface{}{}
	if tenantID != nil {
		q += ` AND tenant_id = ?`
		args = append(args, *tenantID)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WaitlistEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// UpdateScore writes a recomputed priority score.  A single-column
// update is atomic, so ranking reads concurrent with recomputation see
// either the old or the new score, never a torn value.
func (r *WaitlistRepo) UpdateScore(ctx context.Context, id uint64, score int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE waitlist_entries SET priority_score = ? WHERE id = ?`, score, id)
	return err
}

// MarkNotifiedTx transitions an entry from active to notified within
// the provided transaction.  It reports whether the transition
// happened; false means the entry was no longer active.
func (r *WaitlistRepo) MarkNotifiedTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = 'notified', notified_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = 'active'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkConfirmedTx transitions an entry to confirmed from active or
// notified.  Confirmed is terminal, so the guard also makes a replayed
// confirmation a detectable no-op.
func (r *WaitlistRepo) MarkConfirmedTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = 'confirmed'
		 WHERE id = ? AND status IN ('active','notified')`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkRemovedTx transitions an entry to removed, recording why.  Only
// active and notified entries can be removed.
func (r *WaitlistRepo) MarkRemovedTx(ctx context.Context, tx *sql.Tx, id uint64, reason string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = 'removed', removal_reason = ?
		 WHERE id = ? AND status IN ('active','notified')`, reason, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkActiveTx returns a notified entry to active.  This is the
// cascade-reset used when a hold expires without a response: the
// customer never answered, so unlike a decline they remain eligible
// for future slots.
func (r *WaitlistRepo) MarkActiveTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = 'active', notified_at = NULL
		 WHERE id = ? AND status = 'notified'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullUint(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
