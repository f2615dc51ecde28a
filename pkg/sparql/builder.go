// Package sparql constructs the query text the harvester sends to the
// knowledge-graph endpoint. It does no I/O: every function returns a query
// string, and every identifier is validated before it is interpolated so a
// malformed id never reaches the network.
package sparql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
)

// Default query parameters.
var (
	// DefaultLanguages is the label/description language preference order.
	DefaultLanguages = []string{"en", "ja"}

	// DefaultProperties are the external-identifier claim properties
	// requested by detail queries.
	DefaultProperties = []string{"P486", "P494", "P493", "P5806", "P2892"}
)

// Builder constructs queries for a fixed language set and tracked property
// set. The zero-value defaults cover the standard medical-identifier
// properties with English and Japanese labels.
type Builder struct {
	languages  []string
	properties []string
}

// Option configures a Builder.
type Option func(*Builder)

// WithLanguages sets the label/description languages, in preference order.
func WithLanguages(langs ...string) Option {
	return func(b *Builder) { b.languages = langs }
}

// WithProperties sets the external-identifier properties requested by
// detail queries. The set is sorted so generated query text is stable.
func WithProperties(props ...string) Option {
	return func(b *Builder) {
		b.properties = append([]string(nil), props...)
		sort.Strings(b.properties)
	}
}

// NewBuilder creates a query builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		languages:  DefaultLanguages,
		properties: DefaultProperties,
	}
	for _, opt := range opts {
		opt(b)
	}
	sort.Strings(b.properties)
	return b
}

// reachable is the graph pattern matching every item that is an instance
// of root or of any transitive subclass of root. Discovery and subtree
// exclusion both build on this one fragment, so the exclusion semantics
// are exactly the set difference of two reachability sets.
func reachable(item string, root concepts.QID) string {
	return fmt.Sprintf("%s wdt:P31/wdt:P279* wd:%s .", item, root)
}

// minusFragment removes everything reachable from an excluded subtree
// root. An excluded root with no overlap simply subtracts the empty set.
func minusFragment(root concepts.QID) string {
	return fmt.Sprintf("MINUS { %s }", reachable("?item", root))
}

// values renders a VALUES binding list for a set of ids.
func values(variable string, ids []concepts.QID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "wd:" + string(id)
	}
	return fmt.Sprintf("VALUES %s { %s }", variable, strings.Join(parts, " "))
}

// labelService renders the label-resolution service clause for the
// builder's language preference order.
func (b *Builder) labelService() string {
	return fmt.Sprintf("SERVICE wikibase:label { bd:serviceParam wikibase:language %q. }",
		strings.Join(b.languages, ","))
}

// checkQIDs rejects any malformed identifier before interpolation.
func checkQIDs(ids ...concepts.QID) error {
	for _, id := range ids {
		if !id.Valid() {
			return errors.NewConfigError("sparql",
				fmt.Sprintf("invalid identifier %q", string(id)), nil)
		}
	}
	return nil
}

// checkProperties rejects malformed property ids.
func checkProperties(props []string) error {
	for _, p := range props {
		if !validProperty(p) {
			return errors.NewConfigError("sparql",
				fmt.Sprintf("invalid property %q", p), nil)
		}
	}
	return nil
}

func validProperty(p string) bool {
	if len(p) < 2 || p[0] != 'P' {
		return false
	}
	for _, r := range p[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SanitizeKeyword strips the characters that would break out of a quoted
// filter string and lowercases the rest. An all-junk keyword sanitizes to
// "" and is skipped by the caller.
func SanitizeKeyword(keyword string) string {
	replacer := strings.NewReplacer(`"`, "", `'`, "", `\`, "")
	return strings.ToLower(strings.TrimSpace(replacer.Replace(keyword)))
}
