package medharvest

import (
	"context"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/harvest"
	"github.com/seekmed/medharvest/pkg/logging"
	"github.com/seekmed/medharvest/pkg/pacing"
	"github.com/seekmed/medharvest/pkg/reconcile"
)

// harvestCategory runs discovery, detail fetch, reconcile, and the
// retirement sweep for one category. Failures degrade instead of aborting:
// a discovery error keeps the ids yielded before it, a failed chunk keeps
// the other chunks, a failed concept keeps the rest of the batch. Only
// context cancellation cuts the category short.
func (h *Harvester) harvestCategory(ctx context.Context, engine *reconcile.Engine, visited *harvest.VisitedSet, spec concepts.CategorySpec, options *HarvestOptions) (CategoryResult, []concepts.StoredConcept) {
	log := logging.FromContext(ctx).With().
		Str("category", string(spec.ID)).
		Str("name", spec.Name("en")).
		Logger()
	ctx = log.WithContext(ctx)

	cat := CategoryResult{Category: spec}

	ids, discoverErr := h.discoverIDs(ctx, visited, spec, options)
	cat.Discovered = len(ids)
	cat.Truncated = options.Limit > 0 && len(ids) >= options.Limit
	if discoverErr != nil {
		cat.Err = errors.NewHarvestError(string(spec.ID), nil, discoverErr)
		if ctx.Err() != nil {
			return cat, nil
		}
		log.Warn().Err(discoverErr).Int("discovered", len(ids)).
			Msg("Discovery ended early, continuing with partial ids")
	}
	if len(ids) == 0 {
		if cat.Err == nil {
			log.Info().Msg("Category yielded no new concepts")
			h.sweep(ctx, engine, visited, &cat, options)
		}
		return cat, nil
	}

	fetcher := harvest.NewFetcher(h.source,
		harvest.WithChunkSize(h.chunkSize),
		harvest.WithFetchPager(pacing.NewPager(h.chunkWait)))
	details, fetchErr := fetcher.FetchDetails(ctx, ids)
	if fetchErr != nil {
		cat.Err = errors.Join(cat.Err, fetchErr)
		if ctx.Err() != nil {
			return cat, nil
		}
	}
	cat.Fetched = len(details)
	cat.Missing = harvest.Missing(ids, details)
	if len(cat.Missing) > 0 {
		log.Warn().Int("missing", len(cat.Missing)).
			Msg("Discovered concepts without retrievable details")
	}

	ref := spec.Ref()
	snaps := make([]concepts.StoredConcept, 0, len(details))
	for _, id := range ids {
		concept, ok := details[id]
		if !ok {
			continue
		}
		concept.Category = ref

		outcome, err := h.applyOne(ctx, engine, concept, options.DryRun)
		if err != nil {
			if ctx.Err() != nil {
				cat.Err = errors.Join(cat.Err, err)
				return cat, snaps
			}
			cat.Counts.Failed++
			log.Warn().Err(err).Str("qid", string(id)).Msg("Concept not persisted")
			continue
		}
		cat.Counts.Add(outcome.Kind)
		snaps = append(snaps, outcome.Snapshot)
	}

	h.sweep(ctx, engine, visited, &cat, options)

	log.Info().
		Int("discovered", cat.Discovered).
		Int("fetched", cat.Fetched).
		Int("inserted", cat.Counts.Inserted).
		Int("updated", cat.Counts.Updated).
		Int("unchanged", cat.Counts.Unchanged).
		Int("retired", cat.Retired).
		Int("failed", cat.Counts.Failed).
		Msg("Category harvested")
	return cat, snaps
}

// discoverIDs drains the discovery sequence for one category. The returned
// ids stand even when the sequence ends with an error.
func (h *Harvester) discoverIDs(ctx context.Context, visited *harvest.VisitedSet, spec concepts.CategorySpec, options *HarvestOptions) ([]concepts.QID, error) {
	pageSize := h.pageSize
	if options.PageSize > 0 {
		pageSize = options.PageSize
	}
	discoverer := harvest.NewDiscoverer(h.source,
		harvest.WithPageSize(pageSize),
		harvest.WithMaxEmptyPages(h.maxEmptyPages),
		harvest.WithLimit(options.Limit),
		harvest.WithVisited(visited),
		harvest.WithDiscoverPager(pacing.NewPager(h.pageWait)))

	var ids []concepts.QID
	for id, err := range discoverer.Discover(ctx, spec) {
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *Harvester) applyOne(ctx context.Context, engine *reconcile.Engine, concept concepts.Concept, dryRun bool) (reconcile.Outcome, error) {
	if dryRun {
		return engine.Preview(ctx, concept)
	}
	return engine.Apply(ctx, concept)
}

// sweep retires active concepts of the category that this run did not see
// anywhere. It only runs for categories whose discovery completed cleanly:
// an error or a limit truncation means absence proves nothing.
func (h *Harvester) sweep(ctx context.Context, engine *reconcile.Engine, visited *harvest.VisitedSet, cat *CategoryResult, options *HarvestOptions) {
	if options.DryRun || cat.Err != nil || cat.Truncated {
		return
	}
	log := logging.FromContext(ctx)

	active, err := h.store.ActiveConceptIDs(ctx, cat.Category.ID)
	if err != nil {
		cat.Err = err
		return
	}
	for _, id := range active {
		if visited.Seen(id) {
			continue
		}
		retired, err := engine.Retire(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				cat.Err = errors.Join(cat.Err, err)
				return
			}
			cat.Counts.Failed++
			log.Warn().Err(err).Str("qid", string(id)).Msg("Concept not retired")
			continue
		}
		if retired {
			cat.Counts.Add(concepts.ChangeDelete)
			cat.Retired++
			log.Info().Str("qid", string(id)).Msg("Concept retired, no longer reachable from its category")
		}
	}
}
