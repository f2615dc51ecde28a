package reconcile

import (
	"context"
	"time"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/logging"
)

// DefaultCASRetries is how many times Apply re-reads and retries after
// losing a write race before giving up.
const DefaultCASRetries = 3

// ConceptStore is the slice of persistent storage the engine needs:
// snapshot reads, conditional writes keyed on the hash read beforehand,
// and the append-only change log. Conditional writes return a conflict
// error when the stored hash no longer matches.
type ConceptStore interface {
	// GetConcept returns the stored snapshot, or a not-found error.
	GetConcept(ctx context.Context, id concepts.QID) (*concepts.StoredConcept, error)

	// InsertConcept stores a brand-new snapshot. A concurrent insert of
	// the same id surfaces as a conflict error.
	InsertConcept(ctx context.Context, snap concepts.StoredConcept) error

	// UpdateConceptIf replaces the snapshot if the stored hash still
	// equals expectedHash.
	UpdateConceptIf(ctx context.Context, snap concepts.StoredConcept, expectedHash string) error

	// TouchConceptIf advances LastCheckedAt if the stored hash still
	// equals expectedHash.
	TouchConceptIf(ctx context.Context, id concepts.QID, at time.Time, expectedHash string) error

	// AppendChange appends one record to the change log.
	AppendChange(ctx context.Context, rec concepts.ChangeRecord) error
}

// Engine applies reconcile decisions to a store. Writes are conditional
// on the hash observed when the snapshot was read; on a lost race the
// engine re-reads, re-reconciles, and retries.
type Engine struct {
	store      ConceptStore
	runID      string
	casRetries int
	now        func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCASRetries sets how many lost write races Apply absorbs before
// returning a retries-exhausted error.
func WithCASRetries(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.casRetries = n
		}
	}
}

// WithNow overrides the engine's clock. Tests use this for
// deterministic timestamps.
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine writing under the given run id.
func NewEngine(store ConceptStore, runID string, opts ...EngineOption) *Engine {
	e := &Engine{
		store:      store,
		runID:      runID,
		casRetries: DefaultCASRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Preview reconciles against the current snapshot without writing
// anything. Dry runs use this to report what Apply would do.
func (e *Engine) Preview(ctx context.Context, incoming concepts.Concept) (Outcome, error) {
	stored, err := e.snapshot(ctx, incoming.ID)
	if err != nil {
		return Outcome{}, err
	}
	return Reconcile(incoming, stored, e.now())
}

// Apply reconciles the incoming concept and persists the outcome. New
// concepts are inserted, changed ones updated, unchanged ones touched;
// inserts and updates also append a change record. A write that loses a
// race against another writer is retried from a fresh snapshot.
func (e *Engine) Apply(ctx context.Context, incoming concepts.Concept) (Outcome, error) {
	var lastErr error
	for attempt := 0; attempt <= e.casRetries; attempt++ {
		stored, err := e.snapshot(ctx, incoming.ID)
		if err != nil {
			return Outcome{}, err
		}
		outcome, err := Reconcile(incoming, stored, e.now())
		if err != nil {
			return Outcome{}, err
		}

		var writeErr error
		switch outcome.Kind {
		case concepts.ChangeInsert:
			writeErr = e.store.InsertConcept(ctx, outcome.Snapshot)
		case concepts.ChangeUpdate:
			writeErr = e.store.UpdateConceptIf(ctx, outcome.Snapshot, stored.Hash)
		default:
			writeErr = e.store.TouchConceptIf(ctx, outcome.Snapshot.ID, outcome.Snapshot.LastCheckedAt, stored.Hash)
		}
		if writeErr == nil {
			if rec, ok := outcome.Record(e.runID, e.now()); ok {
				if err := e.store.AppendChange(ctx, rec); err != nil {
					return outcome, err
				}
			}
			return outcome, nil
		}
		if !errors.IsStorageConflict(writeErr) {
			return Outcome{}, writeErr
		}
		lastErr = writeErr
		logging.Debug().
			Str("concept", string(incoming.ID)).
			Int("attempt", attempt+1).
			Msg("Lost write race, re-reading snapshot")
	}
	return Outcome{}, errors.ExhaustRetries(lastErr, e.casRetries+1)
}

// Retire marks a stored concept inactive and logs a delete record. It
// reports false without error when the concept is already inactive, and
// a not-found error when it was never stored.
func (e *Engine) Retire(ctx context.Context, id concepts.QID) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= e.casRetries; attempt++ {
		stored, err := e.snapshot(ctx, id)
		if err != nil {
			return false, err
		}
		if stored == nil {
			return false, errors.NewNotFoundError("concept", string(id))
		}
		if !stored.Active {
			return false, nil
		}

		now := e.now()
		snap := *stored
		snap.Active = false
		snap.LastCheckedAt = now
		err = e.store.UpdateConceptIf(ctx, snap, stored.Hash)
		if err == nil {
			rec := concepts.NewChangeRecord(e.runID, id, concepts.ChangeDelete, now)
			rec.Fields = []string{"active"}
			rec.Before = map[string]string{"active": "true"}
			rec.After = map[string]string{"active": "false"}
			if err := e.store.AppendChange(ctx, rec); err != nil {
				return true, err
			}
			return true, nil
		}
		if !errors.IsStorageConflict(err) {
			return false, err
		}
		lastErr = err
	}
	return false, errors.ExhaustRetries(lastErr, e.casRetries+1)
}

func (e *Engine) snapshot(ctx context.Context, id concepts.QID) (*concepts.StoredConcept, error) {
	stored, err := e.store.GetConcept(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return stored, nil
}
