// Package store persists harvested concepts, their append-only change
// log, and batch run bookkeeping in a relational database. A single
// database/sql implementation covers sqlite and postgres behind a small
// dialect layer; all timestamps are stored as RFC 3339 UTC text and all
// map-valued fields as JSON text.
package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	// Database drivers. sqlite is the default; postgres is selected by
	// the store.driver configuration key.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/logging"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store is the relational persistence layer. It satisfies
// reconcile.ConceptStore and adds run bookkeeping and the query helpers
// the CLI needs.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open opens the database named by driver and dsn and brings its schema
// up to date. Supported drivers are "sqlite" (the default) and
// "postgres".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db *sql.DB
		d  dialect
	)
	switch driver {
	case "", "sqlite", "sqlite3":
		if dsn == "" {
			return nil, errors.NewConfigError("store", "sqlite requires a database path", nil)
		}
		sqliteDB, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, errors.WrapIO("open", dsn, err)
		}
		if err := applyPragmas(ctx, sqliteDB); err != nil {
			sqliteDB.Close()
			return nil, err
		}
		db, d = sqliteDB, dialectSQLite
	case "postgres", "pgx":
		pgDB, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, errors.WrapIO("open", dsn, err)
		}
		if err := pgDB.PingContext(ctx); err != nil {
			pgDB.Close()
			return nil, errors.WrapNetwork(dsn, err)
		}
		db, d = pgDB, dialectPostgres
	default:
		return nil, errors.NewConfigError("store", "unsupported driver: "+strconv.Quote(driver), nil)
	}

	s := &Store{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logging.Debug().Str("driver", driver).Msg("Store opened")
	return s, nil
}

// applyPragmas configures sqlite for concurrent use: WAL so readers are
// not blocked by the writer, foreign keys on, and a busy timeout so a
// second writer backs off instead of failing immediately.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.WrapIO("configure", pragma, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.WrapIO("close", "database", err)
	}
	return nil
}

// rebind rewrites ?-placeholders to the dialect's native syntax. Queries
// are written once with ? and rebound for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.WrapParse("rfc3339", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireAffected converts a zero-rows-affected conditional write into a
// storage conflict, which the reconcile engine treats as a lost race.
func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapResource("write", resource, id, err)
	}
	if n == 0 {
		return errors.NewConflictError(resource, id)
	}
	return nil
}
