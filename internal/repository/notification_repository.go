package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/model"
)

// NotificationRepo provides data access to the notifications table.
// Rows are delivery bookkeeping only; nothing here ever touches slot,
// entry or booking state.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo returns a new NotificationRepo bound to the
// provided database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Create inserts a notification record.  The caller supplies the UUID
// so the ID can be carried into a retry job before the insert commits.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications
		 (id, tenant_id, entry_id, slot_id, channel, recipient, status, attempts, last_error, provider_message_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.TenantID, n.EntryID, n.SlotID, n.Channel, n.Recipient,
		n.Status, n.Attempts, nullString(n.LastError), nullString(n.ProviderMessageID),
	)
	return err
}

// Get returns one notification scoped to the tenant.
func (r *NotificationRepo) Get(ctx context.Context, tenantID uint64, id string) (*model.Notification, error) {
	var n model.Notification
	var lastErr, providerID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, entry_id, slot_id, channel, recipient, status,
		        attempts, last_error, provider_message_id, created_at, updated_at
		 FROM notifications WHERE id = ? AND tenant_id = ?`,
		id, tenantID,
	).Scan(&n.ID, &n.TenantID, &n.EntryID, &n.SlotID, &n.Channel, &n.Recipient, &n.Status,
		&n.Attempts, &lastErr, &providerID, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastErr.Valid {
		v := lastErr.String
		n.LastError = &v
	}
	if providerID.Valid {
		v := providerID.String
		n.ProviderMessageID = &v
	}
	return &n, nil
}

// MarkSent records a successful delivery.
func (r *NotificationRepo) MarkSent(ctx context.Context, id string, attempts int, providerMessageID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications
		 SET status = 'sent', attempts = ?, provider_message_id = ?, last_error = NULL
		 WHERE id = ?`,
		attempts, providerMessageID, id)
	return err
}

// MarkFailed records a failed attempt with the provider error.
func (r *NotificationRepo) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'failed', attempts = ?, last_error = ? WHERE id = ?`,
		attempts, lastError, id)
	return err
}

// DeleteOlderThan purges notification records created before the
// cutoff and returns how many rows were removed.  Housekeeping only.
func (r *NotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
