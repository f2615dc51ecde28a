// Package medharvest harvests medical concepts from Wikidata into a local
// change-tracked store. It ties the pipeline together: category specs from
// the catalog, paged id discovery over subclass closures, batched detail
// fetches, and hash-compared reconciliation with an audit trail. Callers
// supply the remote source and the store; everything else has defaults.
package medharvest

import (
	"context"
	"time"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/harvest"
	"github.com/seekmed/medharvest/pkg/pacing"
	"github.com/seekmed/medharvest/pkg/reconcile"
)

// Pipeline pacing defaults: fixed waits between successful pages, detail
// chunks, and categories. Failure-driven backoff is separate and lives in
// pkg/pacing.
const (
	DefaultPageWait     = 2 * time.Second
	DefaultChunkWait    = 500 * time.Millisecond
	DefaultCategoryWait = 5 * time.Second
)

// Store is the persistence surface the pipeline needs: the reconciler's
// conditional writes plus run bookkeeping and the active-id listing the
// retirement sweep diffs against. *store.Store satisfies it; tests may
// substitute fakes.
type Store interface {
	reconcile.ConceptStore

	// ActiveConceptIDs returns the ids of active concepts filed under the
	// category, sorted.
	ActiveConceptIDs(ctx context.Context, category concepts.QID) ([]concepts.QID, error)

	CreateRun(ctx context.Context, run *concepts.BatchRun) error
	UpdateRun(ctx context.Context, run *concepts.BatchRun) error
}

// Harvester runs the harvesting pipeline. One Harvester may serve many
// sequential runs; the remote-politeness gate lives inside the source's
// transport and is shared across them.
type Harvester struct {
	store   Store
	source  harvest.Source
	catalog *concepts.Catalog
	clock   pacing.Clock

	pageSize      int
	chunkSize     int
	maxEmptyPages int
	casRetries    int

	pageWait     time.Duration
	chunkWait    time.Duration
	categoryWait time.Duration
}

// New creates a Harvester. A store and a source are required; the embedded
// category catalog and the pipeline defaults cover the rest.
func New(opts ...Option) (*Harvester, error) {
	h := &Harvester{
		clock:         pacing.SystemClock(),
		pageSize:      harvest.DefaultPageSize,
		chunkSize:     harvest.DefaultChunkSize,
		maxEmptyPages: harvest.DefaultMaxEmptyPages,
		casRetries:    reconcile.DefaultCASRetries,
		pageWait:      DefaultPageWait,
		chunkWait:     DefaultChunkWait,
		categoryWait:  DefaultCategoryWait,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.store == nil {
		return nil, errors.NewConfigError("harvester", "no store configured", nil)
	}
	if h.source == nil {
		return nil, errors.NewConfigError("harvester", "no source configured", nil)
	}
	if h.catalog == nil {
		catalog, err := concepts.DefaultCatalog()
		if err != nil {
			return nil, err
		}
		h.catalog = catalog
	}
	return h, nil
}

// Catalog returns the category catalog the harvester resolves tiers and
// category ids against.
func (h *Harvester) Catalog() *concepts.Catalog {
	return h.catalog
}
