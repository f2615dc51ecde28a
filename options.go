package medharvest

import (
	"time"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/harvest"
	"github.com/seekmed/medharvest/pkg/pacing"
)

// Option configures a Harvester.
type Option func(*Harvester)

// WithStore sets the persistence backend. Required.
func WithStore(s Store) Option {
	return func(h *Harvester) { h.store = s }
}

// WithSource sets the remote discovery and detail source. Required.
func WithSource(src harvest.Source) Option {
	return func(h *Harvester) { h.source = src }
}

// WithCatalog replaces the embedded category catalog.
func WithCatalog(c *concepts.Catalog) Option {
	return func(h *Harvester) { h.catalog = c }
}

// WithClock injects the clock used for run timestamps and category pacing.
func WithClock(c pacing.Clock) Option {
	return func(h *Harvester) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithPageSize sets the default discovery page size. Individual runs may
// override it.
func WithPageSize(n int) Option {
	return func(h *Harvester) {
		if n > 0 {
			h.pageSize = n
		}
	}
}

// WithChunkSize sets the detail-fetch chunk size.
func WithChunkSize(n int) Option {
	return func(h *Harvester) {
		if n > 0 {
			h.chunkSize = n
		}
	}
}

// WithMaxEmptyPages sets how many consecutive pages without new ids end a
// category's discovery.
func WithMaxEmptyPages(n int) Option {
	return func(h *Harvester) {
		if n > 0 {
			h.maxEmptyPages = n
		}
	}
}

// WithCASRetries bounds how often a lost write race is replayed per concept.
func WithCASRetries(n int) Option {
	return func(h *Harvester) {
		if n >= 0 {
			h.casRetries = n
		}
	}
}

// WithPageWait sets the fixed pause between successful discovery pages.
func WithPageWait(d time.Duration) Option {
	return func(h *Harvester) {
		if d >= 0 {
			h.pageWait = d
		}
	}
}

// WithChunkWait sets the fixed pause between successful detail chunks.
func WithChunkWait(d time.Duration) Option {
	return func(h *Harvester) {
		if d >= 0 {
			h.chunkWait = d
		}
	}
}

// WithCategoryWait sets the pause inserted between categories of one run.
func WithCategoryWait(d time.Duration) Option {
	return func(h *Harvester) {
		if d >= 0 {
			h.categoryWait = d
		}
	}
}
