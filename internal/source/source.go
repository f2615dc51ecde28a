// Package source wires the query builder and the two endpoint clients
// into the harvest.Source the pipeline consumes.
package source

import (
	"context"

	"github.com/seekmed/medharvest/internal/actionapi"
	"github.com/seekmed/medharvest/internal/wdqs"
	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/harvest"
	"github.com/seekmed/medharvest/pkg/logging"
	"github.com/seekmed/medharvest/pkg/sparql"
)

// Remote implements harvest.Source against the live endpoints.
type Remote struct {
	builder *sparql.Builder
	query   *wdqs.Client
	details *actionapi.Client
}

// NewRemote composes a remote source. Nil arguments fall back to defaults
// against the public endpoints.
func NewRemote(builder *sparql.Builder, query *wdqs.Client, details *actionapi.Client) *Remote {
	if builder == nil {
		builder = sparql.NewBuilder()
	}
	if query == nil {
		query = wdqs.New("", nil)
	}
	if details == nil {
		details = actionapi.New("", nil)
	}
	return &Remote{builder: builder, query: query, details: details}
}

// DiscoverPage runs one discovery page. Rows that do not bind a wellformed
// entity id are logged and skipped rather than failing the page.
func (r *Remote) DiscoverPage(ctx context.Context, page harvest.DiscoveryPage) ([]concepts.QID, error) {
	q, err := r.builder.DiscoveryQuery(page.Category, page.PageSize, page.Offset, page.Exclude)
	if err != nil {
		return nil, err
	}
	rows, err := r.query.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	ids := make([]concepts.QID, 0, len(rows))
	for _, row := range rows {
		id, err := row.QID("item")
		if err != nil {
			logging.Warn().Err(err).Msg("Skipping discovery row with malformed identifier")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Subclasses returns the direct subclasses of the parent batch.
func (r *Remote) Subclasses(ctx context.Context, parents []concepts.QID) ([]concepts.QID, error) {
	q, err := r.builder.SubclassQuery(parents)
	if err != nil {
		return nil, err
	}
	rows, err := r.query.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	children := make([]concepts.QID, 0, len(rows))
	for _, row := range rows {
		id, err := row.QID("child")
		if err != nil {
			logging.Warn().Err(err).Msg("Skipping subclass row with malformed identifier")
			continue
		}
		children = append(children, id)
	}
	return children, nil
}

// FetchEntities resolves one chunk of entity details.
func (r *Remote) FetchEntities(ctx context.Context, ids []concepts.QID) (map[concepts.QID]concepts.Concept, error) {
	return r.details.GetEntities(ctx, ids)
}

// Count returns the size of the category's closure after exclusion.
func (r *Remote) Count(ctx context.Context, category concepts.CategorySpec) (int, error) {
	q, err := r.builder.CountQuery(category.ID, category.Exclude)
	if err != nil {
		return 0, err
	}
	return r.query.Count(ctx, q)
}

// SampleRow is one labeled item from a category sample.
type SampleRow struct {
	ID    concepts.QID
	Label string
}

// Sample returns up to limit reachable items with their preferred labels.
func (r *Remote) Sample(ctx context.Context, category concepts.QID, limit int) ([]SampleRow, error) {
	q, err := r.builder.SampleQuery(category, limit)
	if err != nil {
		return nil, err
	}
	rows, err := r.query.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]SampleRow, 0, len(rows))
	for _, row := range rows {
		id, err := row.QID("item")
		if err != nil {
			continue
		}
		label, _ := row.String("itemLabel")
		out = append(out, SampleRow{ID: id, Label: label})
	}
	return out, nil
}

// Validate reports whether id is reachable from kind.
func (r *Remote) Validate(ctx context.Context, id, kind concepts.QID) (bool, error) {
	q, err := r.builder.ValidationQuery(id, kind)
	if err != nil {
		return false, err
	}
	return r.query.Ask(ctx, q)
}
