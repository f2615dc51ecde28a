package store

import (
	"context"
	"database/sql"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
)

const (
	runColumns = `id, started_at, ended_at, status, inserted, updated, unchanged, deleted, failed, error`

	runInsertQuery = `
		INSERT INTO harvest_runs (id, started_at, ended_at, status, inserted, updated, unchanged, deleted, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	runUpdateQuery = `
		UPDATE harvest_runs
		SET ended_at = ?, status = ?, inserted = ?, updated = ?, unchanged = ?, deleted = ?, failed = ?, error = ?
		WHERE id = ?`

	runGetQuery = `
		SELECT ` + runColumns + ` FROM harvest_runs WHERE id = ?`

	runListQuery = `
		SELECT ` + runColumns + ` FROM harvest_runs ORDER BY started_at DESC, id LIMIT ?`
)

// CreateRun records a freshly started run.
func (s *Store) CreateRun(ctx context.Context, run *concepts.BatchRun) error {
	_, err := s.db.ExecContext(ctx, s.rebind(runInsertQuery),
		run.ID, formatTime(run.StartedAt), formatTime(run.EndedAt), string(run.Status),
		run.Counts.Inserted, run.Counts.Updated, run.Counts.Unchanged,
		run.Counts.Deleted, run.Counts.Failed, run.Error)
	if err != nil {
		return errors.WrapResource("insert", "run", run.ID, err)
	}
	return nil
}

// UpdateRun persists a run's terminal state and counters.
func (s *Store) UpdateRun(ctx context.Context, run *concepts.BatchRun) error {
	res, err := s.db.ExecContext(ctx, s.rebind(runUpdateQuery),
		formatTime(run.EndedAt), string(run.Status),
		run.Counts.Inserted, run.Counts.Updated, run.Counts.Unchanged,
		run.Counts.Deleted, run.Counts.Failed, run.Error, run.ID)
	if err != nil {
		return errors.WrapResource("update", "run", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapResource("update", "run", run.ID, err)
	}
	if n == 0 {
		return errors.NewNotFoundError("run", run.ID)
	}
	return nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*concepts.BatchRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, s.rebind(runGetQuery), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("run", id)
		}
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit falls back to 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]concepts.BatchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(runListQuery), limit)
	if err != nil {
		return nil, errors.WrapResource("list", "runs", "", err)
	}
	defer rows.Close()

	var out []concepts.BatchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapResource("list", "runs", "", err)
	}
	return out, nil
}

func scanRun(row interface{ Scan(dest ...any) error }) (*concepts.BatchRun, error) {
	var (
		run       concepts.BatchRun
		status    string
		startedAt string
		endedAt   string
	)
	if err := row.Scan(&run.ID, &startedAt, &endedAt, &status,
		&run.Counts.Inserted, &run.Counts.Updated, &run.Counts.Unchanged,
		&run.Counts.Deleted, &run.Counts.Failed, &run.Error); err != nil {
		return nil, err
	}
	run.Status = concepts.RunStatus(status)

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.EndedAt, err = parseTime(endedAt); err != nil {
		return nil, err
	}
	return &run, nil
}
