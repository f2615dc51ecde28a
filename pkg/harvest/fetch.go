package harvest

import (
	"context"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/logging"
	"github.com/seekmed/medharvest/pkg/pacing"
)

// DefaultChunkSize matches the detail endpoint's per-call id limit.
const DefaultChunkSize = 50

// Fetcher bulk-resolves entity details in endpoint-sized chunks.
type Fetcher struct {
	source    Source
	pager     *pacing.Pager
	chunkSize int
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithChunkSize sets the ids requested per detail call.
func WithChunkSize(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.chunkSize = n
		}
	}
}

// WithFetchPager sets the inter-chunk pacing.
func WithFetchPager(p *pacing.Pager) FetcherOption {
	return func(f *Fetcher) { f.pager = p }
}

// NewFetcher creates a fetcher over the given source.
func NewFetcher(source Source, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		source:    source,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchDetails resolves details for all ids, partial results allowed. A
// chunk that fails after the transport's retries is dropped from the
// result and folded into the returned error without stopping the other
// chunks; ids the remote does not know are simply absent. Callers detect
// gaps with Missing. Cancellation stops between chunks and returns what
// was already fetched.
func (f *Fetcher) FetchDetails(ctx context.Context, ids []concepts.QID) (map[concepts.QID]concepts.Concept, error) {
	result := make(map[concepts.QID]concepts.Concept, len(ids))
	var failed []string
	var causes []error

	for start := 0; start < len(ids); start += f.chunkSize {
		end := min(start+f.chunkSize, len(ids))
		chunk := ids[start:end]

		if err := f.pager.Wait(ctx); err != nil {
			return result, err
		}
		entities, err := f.source.FetchEntities(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return result, err
			}
			logging.Warn().Err(err).
				Int("chunk_start", start).Int("chunk_size", len(chunk)).
				Msg("Detail chunk failed, continuing with remaining chunks")
			for _, id := range chunk {
				failed = append(failed, string(id))
			}
			causes = append(causes, err)
			continue
		}
		for id, con := range entities {
			result[id] = con
		}
	}

	if len(causes) > 0 {
		return result, errors.NewHarvestError("", failed, errors.Join(causes...))
	}
	return result, nil
}

// Missing returns the requested ids absent from the result, in request
// order, deduplicated.
func Missing(requested []concepts.QID, got map[concepts.QID]concepts.Concept) []concepts.QID {
	var gaps []concepts.QID
	seen := make(map[concepts.QID]struct{}, len(requested))
	for _, id := range requested {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := got[id]; !ok {
			gaps = append(gaps, id)
		}
	}
	return gaps
}
