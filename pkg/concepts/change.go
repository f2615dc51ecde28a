package concepts

import (
	"time"

	"github.com/google/uuid"
)

// ChangeKind classifies one reconcile outcome.
type ChangeKind string

// Reconcile outcome kinds. These values are persisted in the change log, so
// they are stable strings rather than iota constants.
const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	ChangeNone   ChangeKind = "no_change"
)

// ChangeRecord is one immutable audit entry written by the reconcile engine.
// Before and After carry only the fields that changed, keyed by flattened
// field name (en_label, ja_description, mesh_id, ...), to bound audit growth.
// Records are append-only: never mutated, never deleted by normal operation.
type ChangeRecord struct {
	ID         string            `json:"id"`
	RunID      string            `json:"run_id"`
	ConceptID  QID               `json:"qid"`
	Kind       ChangeKind        `json:"kind"`
	Fields     []string          `json:"fields,omitempty"`
	Before     map[string]string `json:"before,omitempty"`
	After      map[string]string `json:"after,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// NewChangeRecord builds a change record with a fresh id.
func NewChangeRecord(runID string, conceptID QID, kind ChangeKind, at time.Time) ChangeRecord {
	return ChangeRecord{
		ID:         uuid.NewString(),
		RunID:      runID,
		ConceptID:  conceptID,
		Kind:       kind,
		RecordedAt: at,
	}
}
