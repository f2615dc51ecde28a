package concepts

import (
	"fmt"

	"github.com/seekmed/medharvest/pkg/errors"
)

// CategorySpec describes one harvestable category: the root identifier whose
// transitive subclass closure defines the concept set, display names by
// language, and an optional ordered list of excluded subtree roots.
// Anything reachable by subclass hops from an excluded root is filtered out
// of discovery results for this category.
type CategorySpec struct {
	ID      QID               `yaml:"id" json:"id"`
	Names   map[string]string `yaml:"names" json:"names"`
	Exclude []QID             `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// Validate checks the category definition before any query is built from
// it. Self-exclusion is a configuration mistake that would silently empty
// the category, so it is reported rather than ignored.
func (s CategorySpec) Validate() error {
	if !s.ID.Valid() {
		return errors.NewConfigError("category", fmt.Sprintf("invalid category identifier %q", s.ID), nil)
	}
	for _, ex := range s.Exclude {
		if !ex.Valid() {
			return errors.NewConfigError("category", fmt.Sprintf("category %s: invalid excluded identifier %q", s.ID, ex), nil)
		}
		if ex == s.ID {
			return errors.NewConfigError("category", fmt.Sprintf("category %s excludes itself", s.ID), nil)
		}
	}
	return nil
}

// Name returns the display name for lang with the same fallback rules as
// CategoryRef.
func (s CategorySpec) Name(lang string) string { return s.Ref().Name(lang) }

// Ref returns the category association attached to concepts harvested under
// this category.
func (s CategorySpec) Ref() CategoryRef {
	names := make(map[string]string, len(s.Names))
	for lang, n := range s.Names {
		names[lang] = n
	}
	return CategoryRef{ID: s.ID, Names: names}
}
