package harvest

import (
	"context"
	"fmt"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/logging"
	"github.com/seekmed/medharvest/pkg/pacing"
)

// DefaultParentBatch is how many parents one subclass query carries.
const DefaultParentBatch = 50

// Walker expands a subclass tree breadth-first with an explicit frontier
// and visited set, so cycles in the subclass graph terminate instead of
// looping.
type Walker struct {
	source      Source
	pager       *pacing.Pager
	parentBatch int
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithParentBatch sets the parents carried per subclass query.
func WithParentBatch(n int) WalkerOption {
	return func(w *Walker) {
		if n > 0 {
			w.parentBatch = n
		}
	}
}

// WithWalkPager sets the inter-query pacing.
func WithWalkPager(p *pacing.Pager) WalkerOption {
	return func(w *Walker) { w.pager = p }
}

// NewWalker creates a walker over the given source.
func NewWalker(source Source, opts ...WalkerOption) *Walker {
	w := &Walker{
		source:      source,
		parentBatch: DefaultParentBatch,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk returns the subclasses found at each depth from 1 through maxDepth,
// level by level. The root counts as visited from the start, and an id
// found at one level is never repeated at a deeper one. The walk stops
// early at the first level that yields nothing new. On failure the levels
// completed so far are returned alongside the error.
func (w *Walker) Walk(ctx context.Context, root concepts.QID, maxDepth int) (map[int][]concepts.QID, error) {
	if !root.Valid() {
		return nil, errors.NewConfigError("walker",
			fmt.Sprintf("invalid root identifier %q", string(root)), nil)
	}
	if maxDepth < 1 {
		return nil, errors.NewConfigError("walker",
			fmt.Sprintf("depth must be at least 1, got %d", maxDepth), nil)
	}
	if maxDepth > 2 {
		logging.Warn().Str("root", string(root)).Int("depth", maxDepth).
			Msg("Deep walks fan out combinatorially and may take a long time")
	}

	visited := NewVisitedSet()
	visited.Visit(root)

	levels := make(map[int][]concepts.QID, maxDepth)
	frontier := []concepts.QID{root}
	for depth := 1; depth <= maxDepth; depth++ {
		next := []concepts.QID{}
		for start := 0; start < len(frontier); start += w.parentBatch {
			end := min(start+w.parentBatch, len(frontier))

			if err := w.pager.Wait(ctx); err != nil {
				return levels, err
			}
			children, err := w.source.Subclasses(ctx, frontier[start:end])
			if err != nil {
				logging.Warn().Err(err).Str("root", string(root)).Int("depth", depth).
					Msg("Hierarchy walk ended early")
				return levels, err
			}
			for _, child := range children {
				if visited.Visit(child) {
					next = append(next, child)
				}
			}
		}
		levels[depth] = next
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return levels, nil
}
