package concepts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
)

func TestParseQID(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		id, err := concepts.ParseQID("Q12136")
		require.NoError(t, err)
		assert.Equal(t, concepts.QID("Q12136"), id)
	})

	t.Run("trims whitespace", func(t *testing.T) {
		id, err := concepts.ParseQID("  Q42\n")
		require.NoError(t, err)
		assert.Equal(t, concepts.QID("Q42"), id)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, s := range []string{"", "12136", "q12136", "Q", "Q12 136", "Q12136x", "P31", "Q-1"} {
			_, err := concepts.ParseQID(s)
			require.Error(t, err, "input %q", s)
			assert.True(t, errors.IsConfig(err))
		}
	})
}

func TestParseQIDs(t *testing.T) {
	t.Run("all valid", func(t *testing.T) {
		ids, err := concepts.ParseQIDs([]string{"Q1", "Q2", "Q3"})
		require.NoError(t, err)
		assert.Equal(t, []concepts.QID{"Q1", "Q2", "Q3"}, ids)
	})

	t.Run("one bad id fails the whole list", func(t *testing.T) {
		_, err := concepts.ParseQIDs([]string{"Q1", "nope", "Q3"})
		require.Error(t, err)
		assert.True(t, errors.IsConfig(err))
		assert.Contains(t, err.Error(), "nope")
	})

	t.Run("empty input", func(t *testing.T) {
		ids, err := concepts.ParseQIDs(nil)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestParseEntityURI(t *testing.T) {
	t.Run("entity uri", func(t *testing.T) {
		id, err := concepts.ParseEntityURI("http://www.wikidata.org/entity/Q12136")
		require.NoError(t, err)
		assert.Equal(t, concepts.QID("Q12136"), id)
	})

	t.Run("bare qid is not a uri", func(t *testing.T) {
		_, err := concepts.ParseEntityURI("Q12136")
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("property uri rejected", func(t *testing.T) {
		_, err := concepts.ParseEntityURI("http://www.wikidata.org/entity/P279")
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})
}

func TestQID(t *testing.T) {
	assert.True(t, concepts.QID("Q1").Valid())
	assert.False(t, concepts.QID("").Valid())
	assert.False(t, concepts.QID("X1").Valid())
	assert.Equal(t, "Q12136", concepts.QID("Q12136").String())
	assert.Equal(t, "http://www.wikidata.org/entity/Q12136", concepts.QID("Q12136").URI())
}

func TestCategoryRefName(t *testing.T) {
	ref := concepts.CategoryRef{
		ID:    "Q12136",
		Names: map[string]string{"en": "disease", "ja": "病気"},
	}
	assert.Equal(t, "病気", ref.Name("ja"))
	assert.Equal(t, "disease", ref.Name("en"))
	assert.Equal(t, "disease", ref.Name("de"), "missing language falls back to English")

	ref.Names = map[string]string{"ja": "病気"}
	assert.Equal(t, "Q12136", ref.Name("de"), "no English either, identifier stands in")

	empty := concepts.CategoryRef{ID: "Q7187"}
	assert.Equal(t, "Q7187", empty.Name("en"))
}

func TestConceptValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c := concepts.Concept{ID: "Q100", Labels: map[string]string{"en": "fever"}}
		assert.NoError(t, c.Validate())
	})

	t.Run("missing identifier", func(t *testing.T) {
		c := concepts.Concept{Labels: map[string]string{"en": "fever"}}
		err := c.Validate()
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("malformed identifier", func(t *testing.T) {
		c := concepts.Concept{ID: "fever"}
		err := c.Validate()
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})
}

func TestConceptAccessors(t *testing.T) {
	c := concepts.Concept{
		ID:           "Q38933",
		Labels:       map[string]string{"en": "fever", "ja": "発熱"},
		Descriptions: map[string]string{"en": "elevated body temperature"},
	}
	assert.Equal(t, "発熱", c.Label("ja"))
	assert.Equal(t, "", c.Label("de"))
	assert.Equal(t, "elevated body temperature", c.Description("en"))
	assert.Equal(t, "", c.Description("ja"))
}

func TestCategorySpecValidate(t *testing.T) {
	t.Run("valid with exclusions", func(t *testing.T) {
		spec := concepts.CategorySpec{
			ID:      "Q11173",
			Names:   map[string]string{"en": "chemical compound"},
			Exclude: []concepts.QID{"Q12140"},
		}
		assert.NoError(t, spec.Validate())
	})

	t.Run("invalid identifier", func(t *testing.T) {
		spec := concepts.CategorySpec{ID: "disease"}
		err := spec.Validate()
		require.Error(t, err)
		assert.True(t, errors.IsConfig(err))
	})

	t.Run("invalid excluded identifier", func(t *testing.T) {
		spec := concepts.CategorySpec{ID: "Q12136", Exclude: []concepts.QID{"vaccines"}}
		err := spec.Validate()
		require.Error(t, err)
		assert.True(t, errors.IsConfig(err))
	})

	t.Run("self-exclusion reported", func(t *testing.T) {
		spec := concepts.CategorySpec{ID: "Q12136", Exclude: []concepts.QID{"Q12136"}}
		err := spec.Validate()
		require.Error(t, err)
		assert.True(t, errors.IsConfig(err))
		assert.Contains(t, err.Error(), "excludes itself")
	})
}

func TestCategorySpecRef(t *testing.T) {
	spec := concepts.CategorySpec{
		ID:    "Q12136",
		Names: map[string]string{"en": "disease", "ja": "病気"},
	}
	ref := spec.Ref()
	assert.Equal(t, spec.ID, ref.ID)
	assert.Equal(t, "disease", ref.Name("en"))

	// The ref owns its name map.
	ref.Names["en"] = "mutated"
	assert.Equal(t, "disease", spec.Names["en"])

	assert.Equal(t, "病気", spec.Name("ja"))
	assert.Equal(t, "disease", spec.Name("fr"))
}
