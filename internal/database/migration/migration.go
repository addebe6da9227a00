package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_elite_card_generate",
		SQL: `CREATE TABLE IF NOT EXISTS elite_card_generate (
  id               UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  card_name        TEXT        NOT NULL,
  name_on_the_pass TEXT        NOT NULL DEFAULT '',
  email            TEXT        NOT NULL DEFAULT '',
  card_number      TEXT        NOT NULL UNIQUE,
  valid_from       DATE        NOT NULL,
  valid_thru       DATE        NOT NULL CHECK (valid_thru > valid_from),
  status           TEXT        NOT NULL DEFAULT 'card_generated',
  payment_id       TEXT,
  giveaway_id      TEXT,
  pdf_url          TEXT,
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "add_column_elite_card_generate_storage_path",
		SQL:  `ALTER TABLE elite_card_generate ADD COLUMN IF NOT EXISTS storage_path TEXT;`,
	},
	{
		Name: "create_index_elite_card_generate_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_elite_card_generate_created_at ON elite_card_generate (created_at);`,
	},
	{
		Name: "create_index_elite_card_generate_payment_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_elite_card_generate_payment_id ON elite_card_generate (payment_id);`,
	},
	{
		Name: "create_index_elite_card_generate_giveaway_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_elite_card_generate_giveaway_id ON elite_card_generate (giveaway_id);`,
	},
	{
		Name: "create_table_card_number_reservations",
		SQL: `CREATE TABLE IF NOT EXISTS card_number_reservations (
  card_number TEXT        PRIMARY KEY,
  reserved_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
}

// EnsureMigrated runs the schema steps unless the card_number_reservations
// table already exists. Every step is idempotent, so an interrupted run can be
// repeated.
func EnsureMigrated(ctx context.Context, db *sql.DB, log logrus.FieldLogger, dbHost string) error {
	start := time.Now()
	entry := log.WithFields(logrus.Fields{"component": "database", "db_host": dbHost})

	entry.WithFields(logrus.Fields{"event": "db_migration_check", "status": "starting"}).Info("checking schema")

	var exists bool
	query := "SELECT to_regclass('public.card_number_reservations') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		entry.WithFields(logrus.Fields{
			"event":       "db_migration_failed",
			"status":      "error",
			"duration_ms": time.Since(start).Milliseconds(),
		}).WithError(err).Error("failed to check sentinel table")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		entry.WithFields(logrus.Fields{
			"event":       "db_migration_skip",
			"status":      "success",
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("schema already exists, skipping migration")
		return nil
	}

	entry.WithFields(logrus.Fields{"event": "db_migration_start", "status": "in_progress"}).Info("migrating schema")

	for _, step := range steps {
		stepStart := time.Now()
		stepEntry := entry.WithField("migration_step", step.Name)
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			stepEntry.WithFields(logrus.Fields{
				"event":            "db_migration_failed",
				"status":           "error",
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			}).WithError(err).Error("migration step failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		stepEntry.WithFields(logrus.Fields{
			"event":            "db_migration_step",
			"status":           "success",
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		}).Debug("migration step applied")
	}

	entry.WithFields(logrus.Fields{
		"event":       "db_migration_success",
		"status":      "success",
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("schema migrated")

	return nil
}
