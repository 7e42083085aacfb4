package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dfryer1193/spacetraveling/shared/db"
	"github.com/rs/zerolog/log"
)

type migration struct {
	version int
	name    string
	up      string
}

// migrations are applied in order, each in its own transaction.
var migrations = []migration{
	{
		version: 1,
		name:    "create_records_table",
		up: `
			CREATE TABLE IF NOT EXISTS records (
				id TEXT PRIMARY KEY,
				uid TEXT NOT NULL,
				type TEXT NOT NULL,
				first_publication_date INTEGER NOT NULL,
				last_publication_date INTEGER NOT NULL,
				data TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				UNIQUE (type, uid)
			);

			CREATE INDEX IF NOT EXISTS idx_records_type_publication
			ON records(type, first_publication_date, uid);
		`,
	},
	{
		version: 2,
		name:    "publication_dates_in_seconds",
		up: `
			UPDATE records SET
				first_publication_date = first_publication_date / 1000000000,
				last_publication_date = last_publication_date / 1000000000
			WHERE first_publication_date > 100000000000;
		`,
	},
}

const createSchemaMigrationsQuery = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
`

const currentVersionQuery = `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`

const recordMigrationQuery = `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`

// Migrate applies pending migrations to an open database.
func Migrate(conn *sql.DB) error {
	ctx := context.Background()

	if _, err := conn.ExecContext(ctx, createSchemaMigrationsQuery); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int
	if err := conn.QueryRowContext(ctx, currentVersionQuery).Scan(&current); err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		err := db.RunInTransaction(ctx, conn, func(txCtx context.Context) error {
			executor := db.GetExecutor(txCtx, conn)
			if _, err := executor.ExecContext(txCtx, m.up); err != nil {
				return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
			}
			if _, err := executor.ExecContext(txCtx, recordMigrationQuery, m.version, m.name); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		log.Info().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
	}

	return nil
}
