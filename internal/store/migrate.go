package store

import (
	"context"
	"embed"
	"sort"
	"strings"
	"time"

	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	createMigrationsTable = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`

	migrationAppliedQuery = `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)`
	migrationRecordQuery  = `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`
)

// migrate applies pending migrations in lexical filename order. Each
// file runs in one transaction together with its bookkeeping row, so a
// failed migration leaves the schema at the previous version.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return errors.WrapIO("migrate", "schema_migrations", err)
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return errors.WrapIO("migrate", "migrations", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, filename := range files {
		version, _, _ := strings.Cut(filename, "_")

		var applied bool
		if err := s.db.QueryRowContext(ctx, s.rebind(migrationAppliedQuery), version).Scan(&applied); err != nil {
			return errors.WrapIO("migrate", filename, err)
		}
		if applied {
			continue
		}

		ddl, err := migrationFS.ReadFile("migrations/" + filename)
		if err != nil {
			return errors.WrapIO("migrate", filename, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.WrapIO("migrate", filename, err)
		}
		if _, err := tx.ExecContext(ctx, string(ddl)); err != nil {
			tx.Rollback()
			return errors.WrapIO("migrate", filename, err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(migrationRecordQuery), version, formatTime(time.Now())); err != nil {
			tx.Rollback()
			return errors.WrapIO("migrate", filename, err)
		}
		if err := tx.Commit(); err != nil {
			return errors.WrapIO("migrate", filename, err)
		}
		logging.Debug().Str("migration", filename).Msg("Applied migration")
	}
	return nil
}
