// Package concepts defines the core data model for the medharvest system:
// Wikidata identifiers, harvested concepts, category specifications, change
// records, and batch run bookkeeping. All other packages build on these types.
package concepts

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/seekmed/medharvest/pkg/errors"
)

// qidPattern is the strict identifier format accepted by the system.
// Wikidata item identifiers are the letter Q followed by digits.
var qidPattern = regexp.MustCompile(`^Q\d+$`)

// entityURIPrefix is the base of Wikidata entity URIs as returned by the
// query service.
const entityURIPrefix = "http://www.wikidata.org/entity/"

// QID is an opaque Wikidata item identifier such as "Q12136".
// It is globally unique and immutable once assigned by the remote source.
type QID string

// ParseQID validates s against the strict identifier format and returns it
// as a QID. The format is checked before an identifier is ever interpolated
// into a query, so a malformed identifier never reaches the network.
func ParseQID(s string) (QID, error) {
	s = strings.TrimSpace(s)
	if !qidPattern.MatchString(s) {
		return "", errors.NewConfigError("identifier", "invalid QID format: "+strconv.Quote(s), nil)
	}
	return QID(s), nil
}

// ParseQIDs validates a list of identifier strings.
func ParseQIDs(ss []string) ([]QID, error) {
	ids := make([]QID, 0, len(ss))
	for _, s := range ss {
		id, err := ParseQID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseEntityURI extracts the QID from a Wikidata entity URI such as
// "http://www.wikidata.org/entity/Q12136". Returns a validation error when
// the URI does not carry a well-formed identifier; callers treat that as
// malformed remote data, not as a configuration problem.
func ParseEntityURI(uri string) (QID, error) {
	s := strings.TrimPrefix(uri, entityURIPrefix)
	if s == uri || !qidPattern.MatchString(s) {
		return "", errors.NewValidationError("entity_uri", uri, "not a Wikidata entity URI")
	}
	return QID(s), nil
}

// String returns the identifier as a plain string.
func (q QID) String() string { return string(q) }

// Valid reports whether the identifier matches the strict format.
func (q QID) Valid() bool { return qidPattern.MatchString(string(q)) }

// URI returns the full Wikidata entity URI for the identifier.
func (q QID) URI() string { return entityURIPrefix + string(q) }

// CategoryRef is the category association carried on each harvested concept:
// the category identifier plus its display names by language.
type CategoryRef struct {
	ID    QID               `json:"id" yaml:"id"`
	Names map[string]string `json:"names,omitempty" yaml:"names,omitempty"`
}

// Name returns the category display name for lang, falling back to English
// and then to the identifier itself.
func (r CategoryRef) Name(lang string) string {
	if n := r.Names[lang]; n != "" {
		return n
	}
	if n := r.Names["en"]; n != "" {
		return n
	}
	return string(r.ID)
}

// Concept is one harvested entity from the knowledge graph: labels and
// descriptions by language, typed external-system identifiers by scheme,
// and the category it was discovered under.
type Concept struct {
	ID           QID               `json:"qid" yaml:"qid"`
	Labels       map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Descriptions map[string]string `json:"descriptions,omitempty" yaml:"descriptions,omitempty"`
	ExternalIDs  map[string]string `json:"external_ids,omitempty" yaml:"external_ids,omitempty"`
	Category     CategoryRef       `json:"category" yaml:"category"`
}

// Validate rejects concepts that must never reach persistence: a missing or
// malformed identifier is a hard error.
func (c *Concept) Validate() error {
	if c.ID == "" {
		return errors.NewValidationError("qid", "", "concept has no identifier")
	}
	if !c.ID.Valid() {
		return errors.NewValidationError("qid", string(c.ID), "malformed identifier")
	}
	return nil
}

// Label returns the label for lang, or the empty string.
func (c *Concept) Label(lang string) string { return c.Labels[lang] }

// Description returns the description for lang, or the empty string.
func (c *Concept) Description(lang string) string { return c.Descriptions[lang] }

// StoredConcept is the persisted snapshot of a concept: the concept fields
// plus the content hash, liveness flag, and bookkeeping timestamps owned by
// the store. The reconcile engine receives and returns these explicitly and
// never caches them between calls.
type StoredConcept struct {
	Concept

	// Hash is the content hash computed at last insert or update.
	Hash string `json:"hash"`

	// Active is cleared instead of deleting rows: concepts that disappear
	// from a completed harvest are retired, not removed.
	Active bool `json:"active"`

	// UpdateCount increments once per content-changing update.
	UpdateCount int `json:"update_count"`

	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	LastCheckedAt time.Time `json:"last_checked_at"`
}
