package harvest

import (
	"context"
	"iter"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/logging"
	"github.com/seekmed/medharvest/pkg/pacing"
)

// Discovery defaults.
const (
	DefaultPageSize      = 200
	DefaultMaxEmptyPages = 2
)

// Discoverer walks a category's subclass closure in fixed-size pages,
// yielding each id at most once per run.
type Discoverer struct {
	source        Source
	pager         *pacing.Pager
	visited       *VisitedSet
	pageSize      int
	maxEmptyPages int
	limit         int
}

// DiscovererOption configures a Discoverer.
type DiscovererOption func(*Discoverer)

// WithPageSize sets the ids requested per page.
func WithPageSize(n int) DiscovererOption {
	return func(d *Discoverer) {
		if n > 0 {
			d.pageSize = n
		}
	}
}

// WithMaxEmptyPages sets how many consecutive pages with no new ids end
// discovery.
func WithMaxEmptyPages(n int) DiscovererOption {
	return func(d *Discoverer) {
		if n > 0 {
			d.maxEmptyPages = n
		}
	}
}

// WithLimit caps how many ids one Discover call yields. Zero is unlimited.
func WithLimit(n int) DiscovererOption {
	return func(d *Discoverer) { d.limit = n }
}

// WithDiscoverPager sets the inter-page pacing.
func WithDiscoverPager(p *pacing.Pager) DiscovererOption {
	return func(d *Discoverer) { d.pager = p }
}

// WithVisited shares a visited set across categories in one run. Without
// it every Discover call gets a fresh set.
func WithVisited(v *VisitedSet) DiscovererOption {
	return func(d *Discoverer) { d.visited = v }
}

// NewDiscoverer creates a discoverer over the given source.
func NewDiscoverer(source Source, opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		source:        source,
		pageSize:      DefaultPageSize,
		maxEmptyPages: DefaultMaxEmptyPages,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover lazily yields the ids reachable from the category, minus its
// excluded subtrees, each at most once. The sequence is finite and not
// restartable: a fresh call re-walks from offset zero. A failure that
// survives the transport's retries ends the sequence with a final error
// yield; ids yielded before it stand as a partial result.
func (d *Discoverer) Discover(ctx context.Context, category concepts.CategorySpec) iter.Seq2[concepts.QID, error] {
	return func(yield func(concepts.QID, error) bool) {
		if err := category.Validate(); err != nil {
			yield("", err)
			return
		}

		visited := d.visited
		if visited == nil {
			visited = NewVisitedSet()
		}

		log := logging.FromContext(ctx).With().
			Str("category", string(category.ID)).Logger()

		offset := 0
		emptyPages := 0
		yielded := 0
		for {
			if err := d.pager.Wait(ctx); err != nil {
				yield("", err)
				return
			}

			page := DiscoveryPage{
				Category: category.ID,
				Exclude:  category.Exclude,
				PageSize: d.pageSize,
				Offset:   offset,
			}
			ids, err := d.source.DiscoverPage(ctx, page)
			if err != nil {
				log.Warn().Err(err).Int("offset", offset).
					Int("yielded", yielded).
					Msg("Discovery ended early")
				yield("", err)
				return
			}

			fresh := 0
			for _, id := range ids {
				if !visited.Visit(id) {
					continue
				}
				fresh++
				if !yield(id, nil) {
					return
				}
				yielded++
				if d.limit > 0 && yielded >= d.limit {
					log.Debug().Int("yielded", yielded).Msg("Discovery limit reached")
					return
				}
			}

			if fresh == 0 {
				emptyPages++
				if emptyPages >= d.maxEmptyPages {
					log.Debug().Int("yielded", yielded).Int("offset", offset).
						Msg("Discovery exhausted")
					return
				}
			} else {
				emptyPages = 0
			}
			offset += d.pageSize
		}
	}
}
