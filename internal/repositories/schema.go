package repositories

import (
	"context"
	"database/sql"
	"fmt"

	intdb "detailhub/internal/db"
	"detailhub/internal/utils"
)

// ledgerTables is applied in order; later tables reference earlier ones.
var ledgerTables = []struct {
	name string
	ddl  string
}{
	{"providers", `CREATE TABLE IF NOT EXISTS providers (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		display_name VARCHAR(255) NOT NULL DEFAULT '',
		processor_account_id VARCHAR(255) NULL,
		payouts_enabled TINYINT(1) NOT NULL DEFAULT 0,
		completed_bookings INT NOT NULL DEFAULT 0,
		KEY idx_providers_account (processor_account_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"services", `CREATE TABLE IF NOT EXISTS services (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		active TINYINT(1) NOT NULL DEFAULT 1
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"bookings", `CREATE TABLE IF NOT EXISTS bookings (
		id CHAR(36) NOT NULL PRIMARY KEY,
		booking_number VARCHAR(64) NOT NULL,
		customer_id VARCHAR(64) NOT NULL,
		provider_id VARCHAR(64) NOT NULL,
		service_id VARCHAR(64) NOT NULL,
		base_amount DECIMAL(12,2) NOT NULL,
		add_ons_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		tax_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		tip_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		total_amount DECIMAL(12,2) NOT NULL,
		platform_fee DECIMAL(12,2) NOT NULL,
		currency CHAR(3) NOT NULL,
		scheduled_start DATETIME(3) NOT NULL,
		scheduled_end DATETIME(3) NOT NULL,
		service_address VARCHAR(512) NOT NULL,
		latitude DOUBLE NOT NULL DEFAULT 0,
		longitude DOUBLE NOT NULL DEFAULT 0,
		status VARCHAR(32) NOT NULL,
		payment_intent_id VARCHAR(255) NULL,
		charge_id VARCHAR(255) NULL,
		transfer_id VARCHAR(255) NULL,
		refund_id VARCHAR(255) NULL,
		refunded_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		actual_start_time DATETIME(3) NULL,
		actual_end_time DATETIME(3) NULL,
		provider_arrived_at DATETIME(3) NULL,
		provider_completed_at DATETIME(3) NULL,
		customer_confirmed_at DATETIME(3) NULL,
		auto_confirm_at DATETIME(3) NULL,
		dispute_opened_at DATETIME(3) NULL,
		dispute_resolved_at DATETIME(3) NULL,
		cancelled_at DATETIME(3) NULL,
		refunded_at DATETIME(3) NULL,
		provider_gross DECIMAL(12,2) NOT NULL DEFAULT 0,
		provider_net DECIMAL(12,2) NOT NULL DEFAULT 0,
		created_at DATETIME(3) NOT NULL,
		updated_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_bookings_number (booking_number),
		KEY idx_bookings_auto_release (status, auto_confirm_at),
		KEY idx_bookings_intent (payment_intent_id),
		KEY idx_bookings_provider (provider_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"booking_events", `CREATE TABLE IF NOT EXISTS booking_events (
		seq BIGINT NOT NULL AUTO_INCREMENT,
		id CHAR(36) NOT NULL,
		booking_id CHAR(36) NOT NULL,
		type VARCHAR(64) NOT NULL,
		from_status VARCHAR(32) NOT NULL DEFAULT '',
		to_status VARCHAR(32) NOT NULL DEFAULT '',
		actor_id VARCHAR(64) NOT NULL,
		actor_role VARCHAR(16) NOT NULL,
		metadata JSON NULL,
		created_at DATETIME(6) NOT NULL,
		PRIMARY KEY (seq),
		UNIQUE KEY uq_booking_events_id (id),
		KEY idx_booking_events_booking (booking_id, seq)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"payout_records", `CREATE TABLE IF NOT EXISTS payout_records (
		id CHAR(36) NOT NULL PRIMARY KEY,
		booking_id CHAR(36) NOT NULL,
		provider_id VARCHAR(64) NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		platform_fee DECIMAL(12,2) NOT NULL,
		currency CHAR(3) NOT NULL,
		status VARCHAR(32) NOT NULL,
		scheduled_for DATETIME(3) NOT NULL,
		transfer_id VARCHAR(255) NULL,
		released_at DATETIME(3) NULL,
		reversed_at DATETIME(3) NULL,
		reversed_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		created_at DATETIME(3) NOT NULL,
		updated_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_payout_booking (booking_id),
		KEY idx_payout_provider (provider_id, status, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"dispute_cases", `CREATE TABLE IF NOT EXISTS dispute_cases (
		id CHAR(36) NOT NULL PRIMARY KEY,
		booking_id CHAR(36) NOT NULL,
		opened_by VARCHAR(64) NOT NULL,
		opener_role VARCHAR(16) NOT NULL,
		reason_code VARCHAR(64) NOT NULL,
		description TEXT NOT NULL,
		evidence JSON NULL,
		resolution VARCHAR(32) NULL,
		resolved_by VARCHAR(64) NULL,
		resolved_at DATETIME(3) NULL,
		created_at DATETIME(3) NOT NULL,
		open_booking_id CHAR(36) AS (CASE WHEN resolution IS NULL THEN booking_id END) STORED,
		UNIQUE KEY uq_dispute_open (open_booking_id),
		KEY idx_dispute_booking (booking_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"webhook_events", `CREATE TABLE IF NOT EXISTS webhook_events (
		id VARCHAR(255) NOT NULL PRIMARY KEY,
		type VARCHAR(128) NOT NULL,
		payload LONGBLOB NOT NULL,
		received_at DATETIME(3) NOT NULL,
		processed_at DATETIME(3) NULL,
		process_error TEXT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
}

// EnsureSchema creates the ledger tables that do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, t := range ledgerTables {
		if intdb.HasTable(ctx, db, t.name) {
			continue
		}
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
		utils.LogEvent(ctx, "schema", "create_table", "table created", "table", t.name)
	}
	return nil
}
