package store

import (
	"context"
	"encoding/json"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
)

const (
	changeInsertQuery = `
		INSERT INTO concept_changes (id, run_id, qid, kind, changed_fields, before_fields, after_fields, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	changesByRunQuery = `
		SELECT id, run_id, qid, kind, changed_fields, before_fields, after_fields, recorded_at
		FROM concept_changes WHERE run_id = ? ORDER BY recorded_at, id LIMIT ?`
)

// AppendChange appends one record to the change log. Records are never
// updated or deleted.
func (s *Store) AppendChange(ctx context.Context, rec concepts.ChangeRecord) error {
	fields, err := marshalStrings(rec.Fields)
	if err != nil {
		return err
	}
	before, err := marshalMap(rec.Before)
	if err != nil {
		return err
	}
	after, err := marshalMap(rec.After)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.rebind(changeInsertQuery),
		rec.ID, rec.RunID, string(rec.ConceptID), string(rec.Kind),
		fields, before, after, formatTime(rec.RecordedAt))
	if err != nil {
		return errors.WrapResource("append", "change", rec.ID, err)
	}
	return nil
}

// ListChanges returns the change records written under one run, oldest
// first. A non-positive limit falls back to 100.
func (s *Store) ListChanges(ctx context.Context, runID string, limit int) ([]concepts.ChangeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(changesByRunQuery), runID, limit)
	if err != nil {
		return nil, errors.WrapResource("list", "changes", runID, err)
	}
	defer rows.Close()

	var out []concepts.ChangeRecord
	for rows.Next() {
		var (
			rec        concepts.ChangeRecord
			conceptID  string
			kind       string
			fields     string
			before     string
			after      string
			recordedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &conceptID, &kind,
			&fields, &before, &after, &recordedAt); err != nil {
			return nil, errors.WrapResource("scan", "changes", runID, err)
		}
		rec.ConceptID = concepts.QID(conceptID)
		rec.Kind = concepts.ChangeKind(kind)
		if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
			return nil, errors.WrapParse("json", "change "+rec.ID, err)
		}
		if err := json.Unmarshal([]byte(before), &rec.Before); err != nil {
			return nil, errors.WrapParse("json", "change "+rec.ID, err)
		}
		if err := json.Unmarshal([]byte(after), &rec.After); err != nil {
			return nil, errors.WrapParse("json", "change "+rec.ID, err)
		}
		if rec.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapResource("list", "changes", runID, err)
	}
	return out, nil
}

// marshalStrings serializes a string slice, normalizing nil to [].
func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "", errors.WrapParse("json", "change fields", err)
	}
	return string(b), nil
}
