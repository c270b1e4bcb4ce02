package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`CREATE TABLE IF NOT EXISTS operations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		number VARCHAR(20) NOT NULL UNIQUE,
		title VARCHAR(200) NOT NULL,
		description TEXT,
		status VARCHAR(16) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'closed')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		closed_at TIMESTAMPTZ,
		CONSTRAINT chk_operations_closed_at CHECK (
			(status = 'closed' AND closed_at IS NOT NULL AND closed_at >= created_at)
			OR (status = 'active' AND closed_at IS NULL)
		)
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_operations_single_active
		ON operations (status)
		WHERE status = 'active';`,
	`CREATE TABLE IF NOT EXISTS active_operation (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		operation_id UUID REFERENCES operations(id) ON DELETE SET NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`INSERT INTO active_operation (id, operation_id)
		SELECT 1, (SELECT id FROM operations WHERE status = 'active' ORDER BY created_at DESC LIMIT 1)
		ON CONFLICT (id) DO NOTHING;`,
	`CREATE TABLE IF NOT EXISTS number_sequences (
		scope VARCHAR(64) PRIMARY KEY,
		value INTEGER NOT NULL CHECK (value >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS locations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(200) NOT NULL,
		address VARCHAR(500) NOT NULL,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		callsign VARCHAR(50) NOT NULL UNIQUE,
		vehicle_type VARCHAR(100),
		crew_count INTEGER NOT NULL DEFAULT 0 CHECK (crew_count >= 0),
		location_id UUID REFERENCES locations(id) ON DELETE SET NULL,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_location_id ON vehicles (location_id);`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		operation_id UUID NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
		number VARCHAR(20) NOT NULL UNIQUE,
		title VARCHAR(200) NOT NULL,
		description TEXT,
		location_address VARCHAR(500),
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		status VARCHAR(16) NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'assigned', 'completed')),
		document_path VARCHAR(500),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	);`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_operation_id ON assignments (operation_id);`,
	`CREATE TABLE IF NOT EXISTS vehicle_assignments (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		vehicle_id UUID NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
		assignment_id UUID NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
		queue_order INTEGER NOT NULL DEFAULT 0,
		assigned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uniq_vehicle_assignment UNIQUE (vehicle_id, assignment_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_assignments_assignment_id ON vehicle_assignments (assignment_id);`,
	`CREATE TABLE IF NOT EXISTS journal_entries (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		operation_id UUID NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
		assignment_id UUID REFERENCES assignments(id) ON DELETE SET NULL,
		author_id UUID,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		entry_type VARCHAR(50),
		content TEXT NOT NULL CHECK (content <> '')
	);`,
	`CREATE INDEX IF NOT EXISTS idx_journal_entries_operation_ts ON journal_entries (operation_id, timestamp);`,
	`CREATE INDEX IF NOT EXISTS idx_journal_entries_assignment_id ON journal_entries (assignment_id);`,
	`CREATE TABLE IF NOT EXISTS settings (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		key VARCHAR(100) NOT NULL UNIQUE,
		value TEXT
	);`,
	`CREATE OR REPLACE FUNCTION set_row_updated_at()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_operations_updated_at') THEN
			CREATE TRIGGER trg_operations_updated_at
				BEFORE UPDATE ON operations
				FOR EACH ROW
				EXECUTE PROCEDURE set_row_updated_at();
		END IF;
	END
	$$;`,
}

// Migrate applies the schema statements in order. Every statement is idempotent.
func Migrate(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
