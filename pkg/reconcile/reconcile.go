package reconcile

import (
	"sort"
	"time"

	"github.com/seekmed/medharvest/pkg/concepts"
)

// Outcome is the decision for one concept: the kind of change, the
// snapshot that should be persisted, and the field changes when content
// moved. For ChangeNone the snapshot only advances LastCheckedAt.
type Outcome struct {
	Kind     concepts.ChangeKind
	Snapshot concepts.StoredConcept
	Changes  []FieldChange
}

// Reconcile compares a harvested concept with its stored snapshot and
// decides what to do. A nil stored snapshot means the concept is new.
// The function is pure: it reads no clocks, performs no I/O, and never
// mutates its inputs.
//
// A retired concept that reappears with identical content comes back as
// an update flipping only the active flag, so the audit trail records
// the reactivation.
func Reconcile(incoming concepts.Concept, stored *concepts.StoredConcept, now time.Time) (Outcome, error) {
	if err := incoming.Validate(); err != nil {
		return Outcome{}, err
	}
	hash := Hash(incoming)

	if stored == nil {
		return Outcome{
			Kind: concepts.ChangeInsert,
			Snapshot: concepts.StoredConcept{
				Concept:       incoming,
				Hash:          hash,
				Active:        true,
				FirstSeenAt:   now,
				LastSeenAt:    now,
				LastCheckedAt: now,
			},
		}, nil
	}

	if stored.Hash == hash {
		snap := *stored
		snap.LastCheckedAt = now
		if !stored.Active {
			snap.Active = true
			snap.LastSeenAt = now
			return Outcome{
				Kind:     concepts.ChangeUpdate,
				Snapshot: snap,
				Changes:  []FieldChange{{Field: "active", Before: "false", After: "true"}},
			}, nil
		}
		return Outcome{Kind: concepts.ChangeNone, Snapshot: snap}, nil
	}

	changes := Diff(stored.Concept, incoming)
	if !stored.Active {
		changes = append(changes, FieldChange{Field: "active", Before: "false", After: "true"})
		sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	}
	return Outcome{
		Kind: concepts.ChangeUpdate,
		Snapshot: concepts.StoredConcept{
			Concept:       incoming,
			Hash:          hash,
			Active:        true,
			UpdateCount:   stored.UpdateCount + 1,
			FirstSeenAt:   stored.FirstSeenAt,
			LastSeenAt:    now,
			LastCheckedAt: now,
		},
		Changes: changes,
	}, nil
}

// Record materializes the audit entry for an outcome. Inserts carry the
// full flattened snapshot in After; updates carry only the changed
// fields. No-change outcomes produce no record and return false.
func (o Outcome) Record(runID string, at time.Time) (concepts.ChangeRecord, bool) {
	switch o.Kind {
	case concepts.ChangeInsert:
		rec := concepts.NewChangeRecord(runID, o.Snapshot.ID, o.Kind, at)
		rec.After = Flatten(o.Snapshot.Concept)
		rec.Fields = sortedFieldNames(rec.After)
		return rec, true
	case concepts.ChangeUpdate:
		rec := concepts.NewChangeRecord(runID, o.Snapshot.ID, o.Kind, at)
		rec.Fields = make([]string, 0, len(o.Changes))
		rec.Before = make(map[string]string, len(o.Changes))
		rec.After = make(map[string]string, len(o.Changes))
		for _, ch := range o.Changes {
			rec.Fields = append(rec.Fields, ch.Field)
			if ch.Before != "" {
				rec.Before[ch.Field] = ch.Before
			}
			if ch.After != "" {
				rec.After[ch.Field] = ch.After
			}
		}
		return rec, true
	default:
		return concepts.ChangeRecord{}, false
	}
}
