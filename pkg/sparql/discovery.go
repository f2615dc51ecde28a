package sparql

import (
	"fmt"
	"strings"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
)

// DiscoveryOption adjusts a discovery or count query.
type DiscoveryOption func(*discoveryParams)

type discoveryParams struct {
	keywords []string
}

// WithKeywords restricts discovery to items whose English label contains
// at least one of the given keywords. Keywords are sanitized before
// embedding; keywords that sanitize to nothing are dropped.
func WithKeywords(keywords ...string) DiscoveryOption {
	return func(p *discoveryParams) {
		for _, kw := range keywords {
			if kw = SanitizeKeyword(kw); kw != "" {
				p.keywords = append(p.keywords, kw)
			}
		}
	}
}

// DiscoveryQuery returns one page of the ids reachable from category by an
// instance-of edge followed by any number of subclass-of edges, minus
// everything reachable the same way from each excluded subtree root.
func (b *Builder) DiscoveryQuery(category concepts.QID, pageSize, offset int, excluded []concepts.QID, opts ...DiscoveryOption) (string, error) {
	if err := checkQIDs(append([]concepts.QID{category}, excluded...)...); err != nil {
		return "", err
	}
	if pageSize < 1 {
		return "", errors.NewConfigError("sparql",
			fmt.Sprintf("page size must be positive, got %d", pageSize), nil)
	}
	if offset < 0 {
		return "", errors.NewConfigError("sparql",
			fmt.Sprintf("offset must not be negative, got %d", offset), nil)
	}

	var params discoveryParams
	for _, opt := range opts {
		opt(&params)
	}

	var q strings.Builder
	q.WriteString("SELECT DISTINCT ?item WHERE {\n")
	fmt.Fprintf(&q, "  %s\n", reachable("?item", category))
	for _, root := range excluded {
		fmt.Fprintf(&q, "  %s\n", minusFragment(root))
	}
	writeKeywordFilter(&q, params.keywords)
	q.WriteString("}\n")
	fmt.Fprintf(&q, "LIMIT %d OFFSET %d", pageSize, offset)
	return q.String(), nil
}

// CountQuery returns the size of the category's reachability closure after
// subtree exclusion, projected as ?count.
func (b *Builder) CountQuery(category concepts.QID, excluded []concepts.QID, opts ...DiscoveryOption) (string, error) {
	if err := checkQIDs(append([]concepts.QID{category}, excluded...)...); err != nil {
		return "", err
	}

	var params discoveryParams
	for _, opt := range opts {
		opt(&params)
	}

	var q strings.Builder
	q.WriteString("SELECT (COUNT(DISTINCT ?item) AS ?count) WHERE {\n")
	fmt.Fprintf(&q, "  %s\n", reachable("?item", category))
	for _, root := range excluded {
		fmt.Fprintf(&q, "  %s\n", minusFragment(root))
	}
	writeKeywordFilter(&q, params.keywords)
	q.WriteString("}")
	return q.String(), nil
}

// SampleQuery returns up to limit reachable items with resolved labels,
// for sizing a category before a harvest.
func (b *Builder) SampleQuery(category concepts.QID, limit int) (string, error) {
	if err := checkQIDs(category); err != nil {
		return "", err
	}
	if limit < 1 {
		return "", errors.NewConfigError("sparql",
			fmt.Sprintf("sample limit must be positive, got %d", limit), nil)
	}

	var q strings.Builder
	q.WriteString("SELECT ?item ?itemLabel WHERE {\n")
	fmt.Fprintf(&q, "  %s\n", reachable("?item", category))
	fmt.Fprintf(&q, "  %s\n", b.labelService())
	q.WriteString("}\n")
	fmt.Fprintf(&q, "LIMIT %d", limit)
	return q.String(), nil
}

// writeKeywordFilter appends the label-contains filter clauses. Keyword
// matching is against the English label, lowercased on both sides.
func writeKeywordFilter(q *strings.Builder, keywords []string) {
	if len(keywords) == 0 {
		return
	}
	q.WriteString("  ?item rdfs:label ?itemLabel .\n")
	q.WriteString("  FILTER(LANG(?itemLabel) = \"en\")\n")
	contains := make([]string, len(keywords))
	for i, kw := range keywords {
		contains[i] = fmt.Sprintf("CONTAINS(LCASE(?itemLabel), %q)", kw)
	}
	fmt.Fprintf(q, "  FILTER(%s)\n", strings.Join(contains, " || "))
}
