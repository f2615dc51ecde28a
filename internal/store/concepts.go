package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
)

const (
	conceptColumns = `qid, labels, descriptions, external_ids, category_qid, category_names,
		content_hash, active, update_count, first_seen_at, last_seen_at, last_checked_at`

	conceptInsertQuery = `
		INSERT INTO concepts (qid, labels, descriptions, external_ids, category_qid, category_names,
			content_hash, active, update_count, first_seen_at, last_seen_at, last_checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (qid) DO NOTHING`

	conceptUpdateIfQuery = `
		UPDATE concepts
		SET labels = ?, descriptions = ?, external_ids = ?, category_qid = ?, category_names = ?,
			content_hash = ?, active = ?, update_count = ?, last_seen_at = ?, last_checked_at = ?
		WHERE qid = ? AND content_hash = ?`

	conceptTouchIfQuery = `
		UPDATE concepts SET last_checked_at = ? WHERE qid = ? AND content_hash = ?`

	conceptGetQuery = `
		SELECT ` + conceptColumns + ` FROM concepts WHERE qid = ?`

	activeConceptIDsQuery = `
		SELECT qid FROM concepts WHERE active = 1 AND category_qid = ? ORDER BY qid`
)

// conceptFields holds the JSON-marshaled map columns of one snapshot.
type conceptFields struct {
	Labels        string
	Descriptions  string
	ExternalIDs   string
	CategoryNames string
}

func marshalConceptFields(snap concepts.StoredConcept) (*conceptFields, error) {
	labels, err := marshalMap(snap.Labels)
	if err != nil {
		return nil, err
	}
	descriptions, err := marshalMap(snap.Descriptions)
	if err != nil {
		return nil, err
	}
	externalIDs, err := marshalMap(snap.ExternalIDs)
	if err != nil {
		return nil, err
	}
	categoryNames, err := marshalMap(snap.Category.Names)
	if err != nil {
		return nil, err
	}
	return &conceptFields{
		Labels:        labels,
		Descriptions:  descriptions,
		ExternalIDs:   externalIDs,
		CategoryNames: categoryNames,
	}, nil
}

// marshalMap serializes a string map, normalizing nil to {} so stored
// rows never carry JSON null.
func marshalMap(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", errors.WrapParse("json", "concept fields", err)
	}
	return string(b), nil
}

// GetConcept returns the stored snapshot for id, or a not-found error.
func (s *Store) GetConcept(ctx context.Context, id concepts.QID) (*concepts.StoredConcept, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(conceptGetQuery), string(id))
	snap, err := scanConcept(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("concept", string(id))
		}
		return nil, err
	}
	return snap, nil
}

// InsertConcept stores a brand-new snapshot. Losing an insert race to a
// concurrent writer surfaces as a storage conflict.
func (s *Store) InsertConcept(ctx context.Context, snap concepts.StoredConcept) error {
	fields, err := marshalConceptFields(snap)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(conceptInsertQuery),
		string(snap.ID), fields.Labels, fields.Descriptions, fields.ExternalIDs,
		string(snap.Category.ID), fields.CategoryNames,
		snap.Hash, boolToInt(snap.Active), snap.UpdateCount,
		formatTime(snap.FirstSeenAt), formatTime(snap.LastSeenAt), formatTime(snap.LastCheckedAt))
	if err != nil {
		return errors.WrapResource("insert", "concept", string(snap.ID), err)
	}
	return requireAffected(res, "concept", string(snap.ID))
}

// UpdateConceptIf replaces the snapshot only if the stored content hash
// still equals expectedHash. first_seen_at is never rewritten.
func (s *Store) UpdateConceptIf(ctx context.Context, snap concepts.StoredConcept, expectedHash string) error {
	fields, err := marshalConceptFields(snap)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(conceptUpdateIfQuery),
		fields.Labels, fields.Descriptions, fields.ExternalIDs,
		string(snap.Category.ID), fields.CategoryNames,
		snap.Hash, boolToInt(snap.Active), snap.UpdateCount,
		formatTime(snap.LastSeenAt), formatTime(snap.LastCheckedAt),
		string(snap.ID), expectedHash)
	if err != nil {
		return errors.WrapResource("update", "concept", string(snap.ID), err)
	}
	return requireAffected(res, "concept", string(snap.ID))
}

// TouchConceptIf advances last_checked_at only if the stored content
// hash still equals expectedHash.
func (s *Store) TouchConceptIf(ctx context.Context, id concepts.QID, at time.Time, expectedHash string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(conceptTouchIfQuery),
		formatTime(at), string(id), expectedHash)
	if err != nil {
		return errors.WrapResource("touch", "concept", string(id), err)
	}
	return requireAffected(res, "concept", string(id))
}

// ActiveConceptIDs returns the ids of all active concepts stored under
// the given category, ordered by id. The retirement sweep diffs this
// set against the ids seen during a harvest.
func (s *Store) ActiveConceptIDs(ctx context.Context, category concepts.QID) ([]concepts.QID, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(activeConceptIDsQuery), string(category))
	if err != nil {
		return nil, errors.WrapResource("list", "concepts", string(category), err)
	}
	defer rows.Close()

	var ids []concepts.QID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.WrapResource("scan", "concepts", string(category), err)
		}
		ids = append(ids, concepts.QID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapResource("list", "concepts", string(category), err)
	}
	return ids, nil
}

// ConceptFilter narrows ListConcepts.
type ConceptFilter struct {
	Category   concepts.QID
	ActiveOnly bool
	Limit      int
}

// ListConcepts returns stored snapshots matching the filter, ordered by
// id.
func (s *Store) ListConcepts(ctx context.Context, filter ConceptFilter) ([]concepts.StoredConcept, error) {
	query := `SELECT ` + conceptColumns + ` FROM concepts`
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, "category_qid = ?")
		args = append(args, string(filter.Category))
	}
	if filter.ActiveOnly {
		where = append(where, "active = 1")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY qid"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.WrapResource("list", "concepts", "", err)
	}
	defer rows.Close()

	var out []concepts.StoredConcept
	for rows.Next() {
		snap, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapResource("list", "concepts", "", err)
	}
	return out, nil
}

func scanConcept(row interface{ Scan(dest ...any) error }) (*concepts.StoredConcept, error) {
	var (
		snap concepts.StoredConcept

		qid          string
		labels       string
		descriptions string
		externalIDs  string
		categoryQID  string
		catNames     string
		active       int
		firstSeen    string
		lastSeen     string
		lastChecked  string
	)
	if err := row.Scan(&qid, &labels, &descriptions, &externalIDs, &categoryQID, &catNames,
		&snap.Hash, &active, &snap.UpdateCount, &firstSeen, &lastSeen, &lastChecked); err != nil {
		return nil, err
	}

	snap.ID = concepts.QID(qid)
	snap.Active = active != 0
	snap.Category.ID = concepts.QID(categoryQID)

	for _, col := range []struct {
		raw    string
		target *map[string]string
	}{
		{labels, &snap.Labels},
		{descriptions, &snap.Descriptions},
		{externalIDs, &snap.ExternalIDs},
		{catNames, &snap.Category.Names},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.target); err != nil {
			return nil, errors.WrapParse("json", "concept row "+qid, err)
		}
	}

	var err error
	if snap.FirstSeenAt, err = parseTime(firstSeen); err != nil {
		return nil, err
	}
	if snap.LastSeenAt, err = parseTime(lastSeen); err != nil {
		return nil, err
	}
	if snap.LastCheckedAt, err = parseTime(lastChecked); err != nil {
		return nil, err
	}
	return &snap, nil
}
