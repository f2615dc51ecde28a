// Package reconcile decides what each harvested concept does to its
// stored snapshot: insert, update, or no change, with a content hash for
// cheap comparison, a minimal field-level diff for the audit trail, and a
// compare-and-swap engine that applies decisions at the storage boundary.
package reconcile

import (
	"sort"

	"github.com/seekmed/medharvest/pkg/concepts"
)

// FieldChange is one field-level difference between two snapshots. An
// empty Before means the field appeared; an empty After means it went
// away.
type FieldChange struct {
	Field  string
	Before string
	After  string
}

// Flatten projects a concept onto its canonical flat fields: one
// <lang>_label and <lang>_description per language, one entry per
// external-id scheme, the category id, and one category_<lang> per
// category name. Empty values are dropped, so a nil map and an empty map
// flatten identically.
func Flatten(c concepts.Concept) map[string]string {
	fields := make(map[string]string)
	for lang, v := range c.Labels {
		if v != "" {
			fields[lang+"_label"] = v
		}
	}
	for lang, v := range c.Descriptions {
		if v != "" {
			fields[lang+"_description"] = v
		}
	}
	for scheme, v := range c.ExternalIDs {
		if v != "" {
			fields[scheme] = v
		}
	}
	if c.Category.ID != "" {
		fields["category_id"] = string(c.Category.ID)
	}
	for lang, v := range c.Category.Names {
		if v != "" {
			fields["category_"+lang] = v
		}
	}
	return fields
}

// Diff returns the minimal field-level difference from a to b, ordered by
// field name.
func Diff(a, b concepts.Concept) []FieldChange {
	before := Flatten(a)
	after := Flatten(b)

	names := make([]string, 0, len(before)+len(after))
	for name := range before {
		names = append(names, name)
	}
	for name := range after {
		if _, ok := before[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var changes []FieldChange
	for _, name := range names {
		if before[name] != after[name] {
			changes = append(changes, FieldChange{
				Field:  name,
				Before: before[name],
				After:  after[name],
			})
		}
	}
	return changes
}

func sortedFieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
