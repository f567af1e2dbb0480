package migration

import (
	"context"
	"log"

	"blockrand/internal/errors"

	"github.com/jmoiron/sqlx"
)

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Statements returns the schema statements in execution order
func (r *MigrationRunner) Statements() []string {
	return []string{
		`
		CREATE TABLE IF NOT EXISTS assignments (
			seq BIGSERIAL PRIMARY KEY,
			id UUID UNIQUE NOT NULL,
			subject_id VARCHAR(255) NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			age INTEGER NOT NULL CHECK (age >= 0),
			gender VARCHAR(16) NOT NULL,
			strata TEXT NOT NULL,
			arm VARCHAR(8) NOT NULL CHECK (arm IN ('A', 'B')),
			assigned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
		`,
		// history rows are never updated or removed
		`
		CREATE OR REPLACE FUNCTION assignments_append_only() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'assignments is append-only';
		END;
		$$ LANGUAGE plpgsql
		`,
		`DROP TRIGGER IF EXISTS assignments_no_mutation ON assignments`,
		`
		CREATE TRIGGER assignments_no_mutation
		BEFORE UPDATE OR DELETE ON assignments
		FOR EACH ROW EXECUTE FUNCTION assignments_append_only()
		`,
	}
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range r.Statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.WithCode(errors.CodeDatabaseError, errors.Wrapf(err, "migration step %d failed", i+1))
		}
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	log.Printf("[Migration] schema %s applied", r.version)
	return nil
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_assignments_strata ON assignments(strata)",
		"CREATE INDEX IF NOT EXISTS idx_assignments_subject ON assignments(subject_id)",
		"CREATE INDEX IF NOT EXISTS idx_assignments_assigned_at ON assignments(assigned_at DESC)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			log.Printf("[Migration] Warning: failed to create index: %v", err)
		}
	}

	return nil
}
