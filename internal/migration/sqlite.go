package migration

import (
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the postgres migrations for local development and tests.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		package_name TEXT NOT NULL DEFAULT '',
		monthly_fee INTEGER NOT NULL DEFAULT 0 CHECK (monthly_fee >= 0),
		carried_debt INTEGER NOT NULL DEFAULT 0 CHECK (carried_debt >= 0),
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS bills (
		id INTEGER PRIMARY KEY,
		bill_number TEXT NOT NULL UNIQUE,
		customer_id INTEGER NOT NULL,
		billing_month INTEGER NOT NULL,
		billing_year INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		previous_debt INTEGER NOT NULL DEFAULT 0,
		compensation INTEGER NOT NULL DEFAULT 0,
		total_amount INTEGER NOT NULL,
		paid_amount INTEGER NOT NULL DEFAULT 0,
		remaining_amount INTEGER NOT NULL,
		status TEXT NOT NULL,
		due_date DATETIME NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		reconciliation_hold BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (customer_id, billing_year, billing_month)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY,
		payment_number TEXT NOT NULL UNIQUE,
		bill_id INTEGER NOT NULL,
		customer_id INTEGER NOT NULL,
		amount INTEGER NOT NULL CHECK (amount > 0),
		method TEXT NOT NULL,
		payment_date DATETIME NOT NULL,
		reference_number TEXT,
		notes TEXT,
		recorded_by TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS billing_audit_entries (
		id INTEGER PRIMARY KEY,
		action TEXT NOT NULL,
		description TEXT NOT NULL,
		bill_id INTEGER,
		customer_id INTEGER,
		billing_month INTEGER,
		billing_year INTEGER,
		actor_type TEXT NOT NULL DEFAULT 'system',
		actor_id TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// ApplySQLite creates the billing tables on a sqlite connection.
func ApplySQLite(db *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
