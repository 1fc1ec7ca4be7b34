package database

import (
	"context"
	"database/sql"
)

// Schema statements, executed in order.  Everything is IF NOT EXISTS
// so Migrate is safe to run on every boot.
//
// Two constraints carry correctness guarantees the application relies
// on rather than re-checking:
//
//   - bookings.slot_id is UNIQUE: of two transactions racing to book
//     the same slot, exactly one insert succeeds.
//   - slots carries a unique key over (tenant_id, staff_id, start_at,
//     end_at, active_key) where active_key is a stored generated
//     column that is NULL for canceled rows.  NULLs never collide in a
//     MySQL unique index, so canceled slots can pile up on the same
//     time while at most one live slot exists for it.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS waitlist_entries (
		id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		tenant_id       BIGINT UNSIGNED NOT NULL,
		customer_name   VARCHAR(120)    NOT NULL,
		phone           VARCHAR(32)     NOT NULL,
		email           VARCHAR(255)    NULL,
		service_id      BIGINT UNSIGNED NOT NULL,
		staff_id        BIGINT UNSIGNED NULL,
		window_start    DATETIME        NOT NULL,
		window_end      DATETIME        NOT NULL,
		vip             TINYINT(1)      NOT NULL DEFAULT 0,
		priority_score  INT             NOT NULL DEFAULT 0,
		status          ENUM('active','notified','confirmed','removed') NOT NULL DEFAULT 'active',
		removal_reason  VARCHAR(64)     NULL,
		notified_at     DATETIME        NULL,
		created_at      DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_entries_pool  (tenant_id, service_id, status),
		KEY idx_entries_phone (tenant_id, phone, status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS slots (
		id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		tenant_id       BIGINT UNSIGNED NOT NULL,
		staff_id        BIGINT UNSIGNED NOT NULL,
		service_id      BIGINT UNSIGNED NOT NULL,
		start_at        DATETIME        NOT NULL,
		end_at          DATETIME        NOT NULL,
		status          ENUM('open','held','booked','canceled') NOT NULL DEFAULT 'open',
		held_entry_id   BIGINT UNSIGNED NULL,
		hold_expires_at DATETIME        NULL,
		created_at      DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		active_key      TINYINT(1) GENERATED ALWAYS AS (IF(status = 'canceled', NULL, 1)) STORED,
		PRIMARY KEY (id),
		UNIQUE KEY uniq_live_slot (tenant_id, staff_id, start_at, end_at, active_key),
		KEY idx_slots_expiry (status, hold_expires_at),
		KEY idx_slots_tenant (tenant_id, status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		tenant_id      BIGINT UNSIGNED NOT NULL,
		slot_id        BIGINT UNSIGNED NOT NULL,
		entry_id       BIGINT UNSIGNED NULL,
		customer_name  VARCHAR(120)    NOT NULL,
		phone          VARCHAR(32)     NOT NULL,
		email          VARCHAR(255)    NULL,
		status         VARCHAR(32)     NOT NULL DEFAULT 'confirmed',
		booking_source ENUM('waitlist','direct','walk_in') NOT NULL,
		confirmed_at   DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		completed_at   DATETIME        NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uniq_booking_slot (slot_id),
		KEY idx_bookings_tenant (tenant_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id                  CHAR(36)        NOT NULL,
		tenant_id           BIGINT UNSIGNED NOT NULL,
		entry_id            BIGINT UNSIGNED NOT NULL,
		slot_id             BIGINT UNSIGNED NOT NULL,
		channel             VARCHAR(16)     NOT NULL,
		recipient           VARCHAR(255)    NOT NULL,
		status              ENUM('pending','sent','failed') NOT NULL DEFAULT 'pending',
		attempts            INT             NOT NULL DEFAULT 0,
		last_error          TEXT            NULL,
		provider_message_id VARCHAR(128)    NULL,
		created_at          DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_notifications_created (created_at),
		KEY idx_notifications_tenant  (tenant_id, entry_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.  MySQL DDL is not transactional, so the
// statements run one by one; each is individually idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
