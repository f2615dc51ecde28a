package sparql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
)

func TestDiscoveryQuery(t *testing.T) {
	b := NewBuilder()

	t.Run("plain category", func(t *testing.T) {
		got, err := b.DiscoveryQuery("Q12136", 200, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, `SELECT DISTINCT ?item WHERE {
  ?item wdt:P31/wdt:P279* wd:Q12136 .
}
LIMIT 200 OFFSET 0`, got)
	})

	t.Run("offset advances", func(t *testing.T) {
		got, err := b.DiscoveryQuery("Q12136", 200, 400, nil)
		require.NoError(t, err)
		assert.Contains(t, got, "LIMIT 200 OFFSET 400")
	})

	t.Run("excluded subtrees become MINUS fragments", func(t *testing.T) {
		got, err := b.DiscoveryQuery("Q11173", 100, 0, []concepts.QID{"Q12140", "Q206159"})
		require.NoError(t, err)
		assert.Equal(t, `SELECT DISTINCT ?item WHERE {
  ?item wdt:P31/wdt:P279* wd:Q11173 .
  MINUS { ?item wdt:P31/wdt:P279* wd:Q12140 . }
  MINUS { ?item wdt:P31/wdt:P279* wd:Q206159 . }
}
LIMIT 100 OFFSET 0`, got)
	})

	t.Run("keyword filter", func(t *testing.T) {
		got, err := b.DiscoveryQuery("Q12136", 50, 0, nil, WithKeywords("Cancer", "tumor"))
		require.NoError(t, err)
		assert.Contains(t, got, `?item rdfs:label ?itemLabel .`)
		assert.Contains(t, got, `FILTER(LANG(?itemLabel) = "en")`)
		assert.Contains(t, got, `FILTER(CONTAINS(LCASE(?itemLabel), "cancer") || CONTAINS(LCASE(?itemLabel), "tumor"))`)
	})

	t.Run("junk keywords dropped", func(t *testing.T) {
		got, err := b.DiscoveryQuery("Q12136", 50, 0, nil, WithKeywords(`"\`, "  ", "sepsis"))
		require.NoError(t, err)
		assert.Contains(t, got, `FILTER(CONTAINS(LCASE(?itemLabel), "sepsis"))`)
	})

	t.Run("all keywords junk means no filter", func(t *testing.T) {
		got, err := b.DiscoveryQuery("Q12136", 50, 0, nil, WithKeywords(`"`, `\`))
		require.NoError(t, err)
		assert.NotContains(t, got, "FILTER")
	})
}

func TestDiscoveryQueryValidation(t *testing.T) {
	b := NewBuilder()

	tests := []struct {
		name     string
		category concepts.QID
		pageSize int
		offset   int
		excluded []concepts.QID
	}{
		{"malformed category", "12136", 200, 0, nil},
		{"injection in category", "Q12136 } UNION { ?s ?p ?o", 200, 0, nil},
		{"malformed excluded id", "Q12136", 200, 0, []concepts.QID{"QABC"}},
		{"zero page size", "Q12136", 0, 0, nil},
		{"negative offset", "Q12136", 200, -1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.DiscoveryQuery(tt.category, tt.pageSize, tt.offset, tt.excluded)
			require.Error(t, err)
			assert.True(t, errors.IsConfig(err))
		})
	}
}

func TestCountQuery(t *testing.T) {
	b := NewBuilder()

	got, err := b.CountQuery("Q12136", []concepts.QID{"Q12140"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT (COUNT(DISTINCT ?item) AS ?count) WHERE {
  ?item wdt:P31/wdt:P279* wd:Q12136 .
  MINUS { ?item wdt:P31/wdt:P279* wd:Q12140 . }
}`, got)

	_, err = b.CountQuery("bogus", nil)
	assert.True(t, errors.IsConfig(err))
}

func TestSampleQuery(t *testing.T) {
	b := NewBuilder()

	got, err := b.SampleQuery("Q12136", 10)
	require.NoError(t, err)
	assert.Equal(t, `SELECT ?item ?itemLabel WHERE {
  ?item wdt:P31/wdt:P279* wd:Q12136 .
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en,ja". }
}
LIMIT 10`, got)

	_, err = b.SampleQuery("Q12136", 0)
	assert.True(t, errors.IsConfig(err))
}
