package harvest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
)

func collect(t *testing.T, d *Discoverer, category concepts.CategorySpec) ([]concepts.QID, error) {
	t.Helper()
	var ids []concepts.QID
	for id, err := range d.Discover(context.Background(), category) {
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func category(id concepts.QID, exclude ...concepts.QID) concepts.CategorySpec {
	return concepts.CategorySpec{
		ID:      id,
		Names:   map[string]string{"en": "test category"},
		Exclude: exclude,
	}
}

func TestDiscoverPagesUntilEmpty(t *testing.T) {
	src := &fakeSource{pages: [][]concepts.QID{
		{"Q1", "Q2"},
		{"Q3"},
		{},
	}}
	d := NewDiscoverer(src, WithPageSize(2), WithMaxEmptyPages(1))

	ids, err := collect(t, d, category("Q100"))
	require.NoError(t, err)
	assert.Equal(t, []concepts.QID{"Q1", "Q2", "Q3"}, ids)

	require.Len(t, src.pageCalls, 3)
	assert.Equal(t, 0, src.pageCalls[0].Offset)
	assert.Equal(t, 2, src.pageCalls[1].Offset)
	assert.Equal(t, 4, src.pageCalls[2].Offset)
	assert.Equal(t, concepts.QID("Q100"), src.pageCalls[0].Category)
}

func TestDiscoverNeverRepeatsIDs(t *testing.T) {
	// Overlapping pages simulate a remote with unstable ordering.
	src := &fakeSource{pages: [][]concepts.QID{
		{"Q1", "Q2"},
		{"Q2", "Q3"},
		{"Q3"},
		{},
	}}
	d := NewDiscoverer(src, WithPageSize(2), WithMaxEmptyPages(2))

	ids, err := collect(t, d, category("Q100"))
	require.NoError(t, err)
	assert.Equal(t, []concepts.QID{"Q1", "Q2", "Q3"}, ids)
}

func TestDiscoverConsecutiveEmptyPagesEnd(t *testing.T) {
	src := &fakeSource{pages: [][]concepts.QID{
		{"Q1"},
		{},
		{"Q2"}, // a gap page, then results resume
		{},
		{},
	}}
	d := NewDiscoverer(src, WithPageSize(1), WithMaxEmptyPages(2))

	ids, err := collect(t, d, category("Q100"))
	require.NoError(t, err)
	assert.Equal(t, []concepts.QID{"Q1", "Q2"}, ids)
	assert.Len(t, src.pageCalls, 5, "one empty page does not end discovery")
}

func TestDiscoverLimit(t *testing.T) {
	src := &fakeSource{pages: [][]concepts.QID{{"Q1", "Q2", "Q3"}}}
	d := NewDiscoverer(src, WithPageSize(3), WithLimit(2))

	ids, err := collect(t, d, category("Q100"))
	require.NoError(t, err)
	assert.Equal(t, []concepts.QID{"Q1", "Q2"}, ids)
	assert.Len(t, src.pageCalls, 1, "limit stops before the next page")
}

func TestDiscoverErrorEndsSequence(t *testing.T) {
	boom := errors.ExhaustRetries(errors.NewAPIError("/sparql", 503, "overloaded"), 4)
	src := &fakeSource{
		pages:    [][]concepts.QID{{"Q1", "Q2"}},
		pageErrs: map[int]error{1: boom},
	}
	d := NewDiscoverer(src, WithPageSize(2))

	ids, err := collect(t, d, category("Q100"))
	require.Error(t, err)
	assert.True(t, errors.IsRetriesExhausted(err))
	assert.Equal(t, []concepts.QID{"Q1", "Q2"}, ids, "ids before the failure stand")
}

func TestDiscoverSharedVisitedAcrossCategories(t *testing.T) {
	visited := NewVisitedSet()

	first := &fakeSource{pages: [][]concepts.QID{{"Q1", "Q2"}, {}, {}}}
	ids, err := collect(t, NewDiscoverer(first, WithPageSize(2), WithVisited(visited)), category("Q100"))
	require.NoError(t, err)
	assert.Equal(t, []concepts.QID{"Q1", "Q2"}, ids)

	second := &fakeSource{pages: [][]concepts.QID{{"Q2", "Q3"}, {}, {}}}
	ids, err = collect(t, NewDiscoverer(second, WithPageSize(2), WithVisited(visited)), category("Q200"))
	require.NoError(t, err)
	assert.Equal(t, []concepts.QID{"Q3"}, ids, "ids seen under the first category are not re-emitted")
}

func TestDiscoverCallerBreak(t *testing.T) {
	src := &fakeSource{pages: [][]concepts.QID{{"Q1", "Q2"}, {"Q3"}}}
	d := NewDiscoverer(src, WithPageSize(2))

	for id, err := range d.Discover(context.Background(), category("Q100")) {
		require.NoError(t, err)
		assert.Equal(t, concepts.QID("Q1"), id)
		break
	}
	assert.Len(t, src.pageCalls, 1, "breaking the loop stops pagination")
}

func TestDiscoverInvalidCategory(t *testing.T) {
	src := &fakeSource{}

	t.Run("malformed id", func(t *testing.T) {
		_, err := collect(t, NewDiscoverer(src), concepts.CategorySpec{ID: "bogus"})
		require.Error(t, err)
		assert.True(t, errors.IsConfig(err))
	})

	t.Run("self exclusion", func(t *testing.T) {
		_, err := collect(t, NewDiscoverer(src), category("Q100", "Q100"))
		require.Error(t, err)
		assert.True(t, errors.IsConfig(err))
	})

	assert.Empty(t, src.pageCalls, "nothing reaches the source")
}

func TestDiscoverExcludedSubtreeFiltered(t *testing.T) {
	// Q100 (category) has subclass Q110; Q110 is also reachable from the
	// excluded root Q900. Instances under Q110 must not surface.
	src := &graphSource{
		members: map[concepts.QID][]concepts.QID{
			"Q100": {"Q1", "Q2"},
			"Q110": {"Q3", "Q4"},
			"Q120": {"Q5"},
		},
	}
	src.edges = map[concepts.QID][]concepts.QID{
		"Q100": {"Q110", "Q120"},
		"Q900": {"Q110"},
	}

	t.Run("without exclusion", func(t *testing.T) {
		d := NewDiscoverer(src, WithPageSize(10), WithMaxEmptyPages(1))
		ids, err := collect(t, d, category("Q100"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []concepts.QID{"Q1", "Q2", "Q3", "Q4", "Q5"}, ids)
	})

	t.Run("with exclusion", func(t *testing.T) {
		d := NewDiscoverer(src, WithPageSize(10), WithMaxEmptyPages(1))
		ids, err := collect(t, d, category("Q100", "Q900"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []concepts.QID{"Q1", "Q2", "Q5"}, ids,
			"everything reachable from the excluded root is filtered")
	})
}
