// Package harvest implements the discovery side of the pipeline: paginated
// id discovery over a category's subclass closure, breadth-first hierarchy
// walks, and bulk detail fetching. All remote access goes through the
// Source interface so the algorithms are testable against scripted fakes.
package harvest

import (
	"context"

	"github.com/seekmed/medharvest/pkg/concepts"
)

// DiscoveryPage identifies one pagination request: which category closure
// to search, what to exclude from it, and the window to return.
type DiscoveryPage struct {
	Category concepts.QID
	Exclude  []concepts.QID
	PageSize int
	Offset   int
}

// Source is the remote side of harvesting. Implementations sit on the
// query and entity-detail endpoints; tests substitute scripted fakes.
type Source interface {
	// DiscoverPage returns one page of ids reachable from the page's
	// category, already filtered by its excluded subtrees. Order is not
	// guaranteed stable across pages.
	DiscoverPage(ctx context.Context, page DiscoveryPage) ([]concepts.QID, error)

	// Subclasses returns the direct subclasses of every parent, merged.
	Subclasses(ctx context.Context, parents []concepts.QID) ([]concepts.QID, error)

	// FetchEntities resolves details for at most one chunk of ids. Ids
	// unknown to the remote are absent from the result, not errors.
	FetchEntities(ctx context.Context, ids []concepts.QID) (map[concepts.QID]concepts.Concept, error)
}
