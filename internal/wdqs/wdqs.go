// Package wdqs is the client for the knowledge graph's SPARQL query
// endpoint. Queries are submitted as form POSTs with JSON results; rate
// limiting and retries live in the transport layer underneath.
package wdqs

import (
	"context"
	"net/url"
	"strconv"

	"github.com/seekmed/medharvest/internal/transport"
	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
)

// DefaultEndpoint is the public query service.
const DefaultEndpoint = "https://query.wikidata.org/sparql"

// Client executes SPARQL queries against one endpoint.
type Client struct {
	transport *transport.Client
	endpoint  string
}

// New creates a query client. A nil transport gets a default client with
// no gate, which is only suitable for tests.
func New(endpoint string, tc *transport.Client) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if tc == nil {
		tc = transport.New()
	}
	return &Client{transport: tc, endpoint: endpoint}
}

// Value is one cell of a result row.
type Value struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Lang  string `json:"xml:lang,omitempty"`
}

// Binding is one result row, keyed by projected variable name.
type Binding map[string]Value

// QID resolves a bound entity URI to its identifier.
func (b Binding) QID(name string) (concepts.QID, error) {
	v, ok := b[name]
	if !ok {
		return "", errors.NewValidationError(name, nil, "variable not bound")
	}
	return concepts.ParseEntityURI(v.Value)
}

// String returns a bound literal and whether it was present.
func (b Binding) String(name string) (string, bool) {
	v, ok := b[name]
	return v.Value, ok
}

// Int parses a bound literal as an integer.
func (b Binding) Int(name string) (int, error) {
	v, ok := b[name]
	if !ok {
		return 0, errors.NewValidationError(name, nil, "variable not bound")
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil {
		return 0, errors.NewValidationError(name, v.Value, "not an integer")
	}
	return n, nil
}

type selectResponse struct {
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

type askResponse struct {
	Boolean bool `json:"boolean"`
}

// Select executes a SELECT query and returns its rows.
func (c *Client) Select(ctx context.Context, query string) ([]Binding, error) {
	resp, err := c.transport.PostForm(ctx, c.endpoint, url.Values{
		"query":  {query},
		"format": {"json"},
	})
	if err != nil {
		return nil, err
	}
	var out selectResponse
	if err := transport.DecodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out.Results.Bindings, nil
}

// Ask executes an ASK query.
func (c *Client) Ask(ctx context.Context, query string) (bool, error) {
	resp, err := c.transport.PostForm(ctx, c.endpoint, url.Values{
		"query":  {query},
		"format": {"json"},
	})
	if err != nil {
		return false, err
	}
	var out askResponse
	if err := transport.DecodeJSON(resp, &out); err != nil {
		return false, err
	}
	return out.Boolean, nil
}

// Count executes a COUNT query and returns its single ?count value.
func (c *Client) Count(ctx context.Context, query string) (int, error) {
	rows, err := c.Select(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, errors.WrapParse("sparql", "count response", errors.New("no rows"))
	}
	return rows[0].Int("count")
}
