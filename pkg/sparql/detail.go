package sparql

import (
	"fmt"
	"strings"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
)

// DetailQuery returns a VALUES-bound query resolving labels, descriptions,
// and every tracked external-identifier property for the given ids in one
// round trip. External-id variables are named after their property ids
// (?P486 and so on) so result parsing needs no positional knowledge.
func (b *Builder) DetailQuery(ids []concepts.QID) (string, error) {
	if len(ids) == 0 {
		return "", errors.NewConfigError("sparql", "detail query needs at least one identifier", nil)
	}
	if err := checkQIDs(ids...); err != nil {
		return "", err
	}
	if err := checkProperties(b.properties); err != nil {
		return "", err
	}

	var q strings.Builder
	q.WriteString("SELECT DISTINCT ?item ?itemLabel ?itemDescription")
	for _, p := range b.properties {
		q.WriteString(" ?" + p)
	}
	q.WriteString(" WHERE {\n")
	fmt.Fprintf(&q, "  %s\n", values("?item", ids))
	for _, p := range b.properties {
		fmt.Fprintf(&q, "  OPTIONAL { ?item wdt:%s ?%s . }\n", p, p)
	}
	fmt.Fprintf(&q, "  %s\n", b.labelService())
	q.WriteString("}")
	return q.String(), nil
}

// ValidationQuery returns an ASK query confirming that id is reachable
// from kind, for checking an identifier really belongs to the category it
// is configured under.
func (b *Builder) ValidationQuery(id, kind concepts.QID) (string, error) {
	if err := checkQIDs(id, kind); err != nil {
		return "", err
	}
	return fmt.Sprintf("ASK {\n  %s\n}", reachable("wd:"+string(id), kind)), nil
}

// SubclassQuery returns the direct subclasses of every parent in one
// batched query, projecting both ends of the edge.
func (b *Builder) SubclassQuery(parents []concepts.QID) (string, error) {
	if len(parents) == 0 {
		return "", errors.NewConfigError("sparql", "subclass query needs at least one parent", nil)
	}
	if err := checkQIDs(parents...); err != nil {
		return "", err
	}

	var q strings.Builder
	q.WriteString("SELECT DISTINCT ?child ?parent WHERE {\n")
	fmt.Fprintf(&q, "  %s\n", values("?parent", parents))
	q.WriteString("  ?child wdt:P279 ?parent .\n")
	q.WriteString("}")
	return q.String(), nil
}
