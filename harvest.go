package medharvest

import (
	"context"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/harvest"
	"github.com/seekmed/medharvest/pkg/logging"
	"github.com/seekmed/medharvest/pkg/reconcile"
)

// HarvestOptions configure one run. Explicit categories win over the tier;
// with neither set the small tier is harvested.
type HarvestOptions struct {
	// Tier selects a catalog tier by name.
	Tier string

	// Categories harvests exactly these ids. Ids present in the catalog
	// bring their display names and exclusions along; unknown ids are
	// harvested bare.
	Categories []concepts.QID

	// Limit caps discovered ids per category. 0 means unlimited. A
	// category cut short by its limit is not swept for disappearances.
	Limit int

	// PageSize overrides the harvester's discovery page size for this run.
	PageSize int

	// DryRun reconciles against the store but writes nothing, including
	// run bookkeeping.
	DryRun bool
}

// HarvestOption configures a single run.
type HarvestOption func(*HarvestOptions)

// HarvestWithTier harvests the named catalog tier.
func HarvestWithTier(name string) HarvestOption {
	return func(o *HarvestOptions) { o.Tier = name }
}

// HarvestWithCategories harvests exactly the given category ids.
func HarvestWithCategories(ids ...concepts.QID) HarvestOption {
	return func(o *HarvestOptions) { o.Categories = append(o.Categories, ids...) }
}

// HarvestWithLimit caps discovered ids per category.
func HarvestWithLimit(n int) HarvestOption {
	return func(o *HarvestOptions) { o.Limit = n }
}

// HarvestWithPageSize overrides the discovery page size for this run.
func HarvestWithPageSize(n int) HarvestOption {
	return func(o *HarvestOptions) { o.PageSize = n }
}

// HarvestWithDryRun previews the run without writing anything.
func HarvestWithDryRun(enabled bool) HarvestOption {
	return func(o *HarvestOptions) { o.DryRun = enabled }
}

// NewHarvestOptions applies options over the defaults.
func NewHarvestOptions(opts ...HarvestOption) *HarvestOptions {
	options := &HarvestOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Result summarizes one harvest run.
type Result struct {
	// Run is the final run record: status, counters, timestamps.
	Run concepts.BatchRun

	// Categories reports each category in harvest order.
	Categories []CategoryResult

	// Harvested holds the post-reconcile snapshot of every concept the
	// run processed, in discovery order. On a dry run these are the
	// snapshots that would have been written.
	Harvested []concepts.StoredConcept
}

// CategoryResult reports one category of a run. Err carries a category
// failure; the run continues past it and the other categories stand.
type CategoryResult struct {
	Category   concepts.CategorySpec
	Discovered int
	Fetched    int
	Missing    []concepts.QID
	Retired    int
	Truncated  bool
	Counts     concepts.RunCounts
	Err        error
}

// Harvest executes the pipeline: discover ids per category, fetch details
// in chunks, reconcile each concept against the store, then retire active
// concepts that a cleanly-completed category no longer contains. Category
// failures are isolated; the run fails only when every category fails or
// the run bookkeeping itself cannot be written.
func (h *Harvester) Harvest(ctx context.Context, opts ...HarvestOption) (*Result, error) {
	options := NewHarvestOptions(opts...)
	specs, err := h.resolveCategories(options)
	if err != nil {
		return nil, err
	}

	run := concepts.NewBatchRun(h.clock.Now())
	log := logging.FromContext(ctx).With().Str("run_id", run.ID).Logger()
	ctx = log.WithContext(ctx)

	if !options.DryRun {
		if err := h.store.CreateRun(ctx, run); err != nil {
			return nil, err
		}
	}
	log.Info().
		Int("categories", len(specs)).
		Bool("dry_run", options.DryRun).
		Msg("Harvest started")

	engine := reconcile.NewEngine(h.store, run.ID,
		reconcile.WithCASRetries(h.casRetries),
		reconcile.WithNow(h.clock.Now))

	// One visited set for the whole run: a concept reachable from several
	// categories is harvested under the first one that discovers it.
	visited := harvest.NewVisitedSet()

	result := &Result{Categories: make([]CategoryResult, 0, len(specs))}
	var failures []error

	for i, spec := range specs {
		if i > 0 && h.categoryWait > 0 {
			if err := h.clock.Sleep(ctx, h.categoryWait); err != nil {
				return h.finish(ctx, run, result, options.DryRun, err)
			}
		}

		cat, snaps := h.harvestCategory(ctx, engine, visited, spec, options)
		result.Categories = append(result.Categories, cat)
		result.Harvested = append(result.Harvested, snaps...)
		mergeCounts(&run.Counts, cat.Counts)

		if cat.Err != nil {
			failures = append(failures, cat.Err)
			if ctx.Err() != nil {
				return h.finish(ctx, run, result, options.DryRun, cat.Err)
			}
		}
	}

	if len(specs) > 0 && len(failures) == len(specs) {
		return h.finish(ctx, run, result, options.DryRun, errors.Join(failures...))
	}

	run.Complete(h.clock.Now())
	result.Run = *run
	if !options.DryRun {
		if err := h.store.UpdateRun(ctx, run); err != nil {
			return result, err
		}
	}
	log.Info().
		Int("inserted", run.Counts.Inserted).
		Int("updated", run.Counts.Updated).
		Int("unchanged", run.Counts.Unchanged).
		Int("deleted", run.Counts.Deleted).
		Int("failed", run.Counts.Failed).
		Msg("Harvest finished")
	return result, nil
}

// finish marks the run failed and persists the terminal state. The
// bookkeeping write uses a detached context so a cancelled run still gets
// its failed status recorded.
func (h *Harvester) finish(ctx context.Context, run *concepts.BatchRun, result *Result, dryRun bool, cause error) (*Result, error) {
	run.Fail(h.clock.Now(), cause)
	result.Run = *run
	if !dryRun {
		if err := h.store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
			logging.FromContext(ctx).Error().Err(err).Msg("Could not record failed run")
		}
	}
	logging.FromContext(ctx).Error().Err(cause).Msg("Harvest failed")
	return result, cause
}

// resolveCategories turns run options into category specs. Explicit ids are
// looked up in the catalog so their exclusions apply; unknown ids harvest
// the bare subclass closure.
func (h *Harvester) resolveCategories(options *HarvestOptions) ([]concepts.CategorySpec, error) {
	if len(options.Categories) > 0 {
		specs := make([]concepts.CategorySpec, 0, len(options.Categories))
		for _, id := range options.Categories {
			if spec, ok := h.catalog.Category(id); ok {
				specs = append(specs, spec)
				continue
			}
			spec := concepts.CategorySpec{ID: id}
			if err := spec.Validate(); err != nil {
				return nil, err
			}
			logging.Warn().Str("category", string(id)).
				Msg("Category not in catalog, harvesting without exclusions")
			specs = append(specs, spec)
		}
		return specs, nil
	}

	tier := options.Tier
	if tier == "" {
		tier = concepts.TierSmall
	}
	return h.catalog.Tier(tier)
}

func mergeCounts(dst *concepts.RunCounts, src concepts.RunCounts) {
	dst.Inserted += src.Inserted
	dst.Updated += src.Updated
	dst.Unchanged += src.Unchanged
	dst.Deleted += src.Deleted
	dst.Failed += src.Failed
}
