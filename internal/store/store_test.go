package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/reconcile"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "medharvest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func storedFixture() concepts.StoredConcept {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return concepts.StoredConcept{
		Concept: concepts.Concept{
			ID:           "Q12135",
			Labels:       map[string]string{"en": "mental disorder", "ja": "精神障害"},
			Descriptions: map[string]string{"en": "disturbance of mental functioning"},
			ExternalIDs:  map[string]string{"mesh_id": "D001523", "umls_id": "C0004936"},
			Category:     concepts.CategoryRef{ID: "Q12136", Names: map[string]string{"en": "disease", "ja": "病気"}},
		},
		Hash:          "hash-v1",
		Active:        true,
		UpdateCount:   0,
		FirstSeenAt:   now.Add(-48 * time.Hour),
		LastSeenAt:    now,
		LastCheckedAt: now,
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, "oracle", "whatever")
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))

	_, err = Open(ctx, "sqlite", "")
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "medharvest.db")

	s1, err := Open(ctx, "sqlite", path)
	require.NoError(t, err)
	require.NoError(t, s1.InsertConcept(ctx, storedFixture()))
	require.NoError(t, s1.Close())

	// Reopening re-runs the migration loop against an up-to-date schema.
	s2, err := Open(ctx, "sqlite", path)
	require.NoError(t, err)
	defer s2.Close()

	snap, err := s2.GetConcept(ctx, "Q12135")
	require.NoError(t, err)
	assert.Equal(t, "hash-v1", snap.Hash)
}

func TestConceptRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	fixture := storedFixture()

	require.NoError(t, s.InsertConcept(ctx, fixture))

	got, err := s.GetConcept(ctx, "Q12135")
	require.NoError(t, err)
	assert.Equal(t, fixture, *got)

	_, err = s.GetConcept(ctx, "Q404")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestConceptCompareAndSwap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	fixture := storedFixture()
	require.NoError(t, s.InsertConcept(ctx, fixture))

	t.Run("duplicate insert is a conflict", func(t *testing.T) {
		err := s.InsertConcept(ctx, fixture)
		require.Error(t, err)
		assert.True(t, errors.IsStorageConflict(err))
	})

	t.Run("update with matching hash wins", func(t *testing.T) {
		next := fixture
		next.Labels = map[string]string{"en": "mental disorder", "ja": "疾患"}
		next.Hash = "hash-v2"
		next.UpdateCount = 1
		next.LastSeenAt = fixture.LastSeenAt.Add(time.Hour)
		next.LastCheckedAt = next.LastSeenAt

		require.NoError(t, s.UpdateConceptIf(ctx, next, "hash-v1"))

		got, err := s.GetConcept(ctx, "Q12135")
		require.NoError(t, err)
		assert.Equal(t, "hash-v2", got.Hash)
		assert.Equal(t, "疾患", got.Labels["ja"])
		assert.Equal(t, 1, got.UpdateCount)
		assert.Equal(t, fixture.FirstSeenAt, got.FirstSeenAt, "first_seen_at never moves")
	})

	t.Run("update with stale hash loses", func(t *testing.T) {
		stale := fixture
		stale.Hash = "hash-v3"
		err := s.UpdateConceptIf(ctx, stale, "hash-v1")
		require.Error(t, err)
		assert.True(t, errors.IsStorageConflict(err))
	})

	t.Run("touch advances only last_checked_at", func(t *testing.T) {
		at := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
		require.NoError(t, s.TouchConceptIf(ctx, "Q12135", at, "hash-v2"))

		got, err := s.GetConcept(ctx, "Q12135")
		require.NoError(t, err)
		assert.Equal(t, at, got.LastCheckedAt)
		assert.Equal(t, "hash-v2", got.Hash)

		err = s.TouchConceptIf(ctx, "Q12135", at, "hash-v1")
		require.Error(t, err)
		assert.True(t, errors.IsStorageConflict(err))
	})
}

func TestActiveConceptIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seed := func(id concepts.QID, category concepts.QID, active bool) {
		snap := storedFixture()
		snap.ID = id
		snap.Category.ID = category
		snap.Active = active
		snap.Hash = "hash-" + string(id)
		require.NoError(t, s.InsertConcept(ctx, snap))
	}
	seed("Q3", "Q12136", true)
	seed("Q1", "Q12136", true)
	seed("Q2", "Q12136", false)
	seed("Q4", "Q12140", true)

	ids, err := s.ActiveConceptIDs(ctx, "Q12136")
	require.NoError(t, err)
	assert.Equal(t, []concepts.QID{"Q1", "Q3"}, ids)
}

func TestListConcepts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seed := func(id concepts.QID, category concepts.QID, active bool) {
		snap := storedFixture()
		snap.ID = id
		snap.Category.ID = category
		snap.Active = active
		snap.Hash = "hash-" + string(id)
		require.NoError(t, s.InsertConcept(ctx, snap))
	}
	seed("Q1", "Q12136", true)
	seed("Q2", "Q12136", false)
	seed("Q3", "Q12140", true)

	t.Run("all", func(t *testing.T) {
		all, err := s.ListConcepts(ctx, ConceptFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, concepts.QID("Q1"), all[0].ID)
	})

	t.Run("by category", func(t *testing.T) {
		got, err := s.ListConcepts(ctx, ConceptFilter{Category: "Q12136"})
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("active only with limit", func(t *testing.T) {
		got, err := s.ListConcepts(ctx, ConceptFilter{ActiveOnly: true, Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, concepts.QID("Q1"), got[0].ID)
	})
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	run := concepts.NewBatchRun(started)
	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, concepts.RunRunning, got.Status)
	assert.True(t, got.EndedAt.IsZero())

	run.Counts = concepts.RunCounts{Inserted: 10, Updated: 3, Unchanged: 40, Deleted: 1, Failed: 2}
	run.Complete(started.Add(90 * time.Second))
	require.NoError(t, s.UpdateRun(ctx, run))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, concepts.RunCompleted, got.Status)
	assert.Equal(t, run.Counts, got.Counts)
	assert.Equal(t, started.Add(90*time.Second), got.EndedAt)

	t.Run("unknown run", func(t *testing.T) {
		_, err := s.GetRun(ctx, "nope")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))

		ghost := concepts.NewBatchRun(started)
		err = s.UpdateRun(ctx, ghost)
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("list newest first", func(t *testing.T) {
		later := concepts.NewBatchRun(started.Add(time.Hour))
		require.NoError(t, s.CreateRun(ctx, later))

		runs, err := s.ListRuns(ctx, 10)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(runs), 2)
		assert.Equal(t, later.ID, runs[0].ID)

		one, err := s.ListRuns(ctx, 1)
		require.NoError(t, err)
		require.Len(t, one, 1)
	})
}

func TestChangeLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// The store normalizes nil maps to empty ones, so the fixtures use
	// empty maps to keep round-trip equality exact.
	insertRec := concepts.NewChangeRecord("run-1", "Q12135", concepts.ChangeInsert, at)
	insertRec.Fields = []string{"en_label", "ja_label"}
	insertRec.Before = map[string]string{}
	insertRec.After = map[string]string{"en_label": "mental disorder", "ja_label": "精神障害"}
	require.NoError(t, s.AppendChange(ctx, insertRec))

	updateRec := concepts.NewChangeRecord("run-1", "Q12135", concepts.ChangeUpdate, at.Add(time.Minute))
	updateRec.Fields = []string{"ja_label"}
	updateRec.Before = map[string]string{"ja_label": "精神障害"}
	updateRec.After = map[string]string{"ja_label": "精神疾患"}
	require.NoError(t, s.AppendChange(ctx, updateRec))

	otherRun := concepts.NewChangeRecord("run-2", "Q1", concepts.ChangeDelete, at)
	require.NoError(t, s.AppendChange(ctx, otherRun))

	recs, err := s.ListChanges(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, insertRec, recs[0])
	assert.Equal(t, updateRec, recs[1])

	empty, err := s.ListChanges(ctx, "run-404", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// The store must satisfy the reconcile engine's storage contract.
var _ reconcile.ConceptStore = (*Store)(nil)
