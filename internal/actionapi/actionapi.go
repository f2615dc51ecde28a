// Package actionapi is the client for the knowledge graph's bulk
// entity-detail endpoint. One call resolves labels, descriptions, and
// external-identifier claims for up to MaxIDsPerCall entities.
package actionapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/seekmed/medharvest/internal/transport"
	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/logging"
)

// DefaultEndpoint is the public entity-detail endpoint.
const DefaultEndpoint = "https://www.wikidata.org/w/api.php"

// MaxIDsPerCall is the endpoint's id limit per request. Chunking larger
// sets is the caller's job.
const MaxIDsPerCall = 50

// DefaultProperties maps tracked external-identifier claim properties to
// the scheme keys their values are stored under.
var DefaultProperties = map[string]string{
	"P486":  "mesh_id",
	"P494":  "icd10",
	"P493":  "icd9",
	"P5806": "snomed_id",
	"P2892": "umls_id",
}

// DefaultLanguages is the label/description language set.
var DefaultLanguages = []string{"en", "ja"}

// Client fetches entity details in bulk.
type Client struct {
	transport  *transport.Client
	endpoint   string
	languages  []string
	properties map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithLanguages sets the languages requested for labels and descriptions.
func WithLanguages(langs ...string) Option {
	return func(c *Client) { c.languages = langs }
}

// WithProperties sets the claim property → scheme key mapping.
func WithProperties(props map[string]string) Option {
	return func(c *Client) { c.properties = props }
}

// New creates a detail client. A nil transport gets a default client with
// no gate, which is only suitable for tests.
func New(endpoint string, tc *transport.Client, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if tc == nil {
		tc = transport.New()
	}
	c := &Client{
		transport:  tc,
		endpoint:   endpoint,
		languages:  DefaultLanguages,
		properties: DefaultProperties,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	Entities map[string]entity `json:"entities"`
	Error    *apiFault         `json:"error"`
}

type apiFault struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type entity struct {
	ID           string               `json:"id"`
	Missing      *string              `json:"missing"`
	Labels       map[string]langValue `json:"labels"`
	Descriptions map[string]langValue `json:"descriptions"`
	Claims       map[string][]claim   `json:"claims"`
}

type langValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type claim struct {
	MainSnak struct {
		SnakType  string `json:"snaktype"`
		DataValue struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

// GetEntities fetches details for up to MaxIDsPerCall ids. Ids the remote
// reports missing are simply absent from the result; entities whose
// payload fails validation are logged and skipped.
func (c *Client) GetEntities(ctx context.Context, ids []concepts.QID) (map[concepts.QID]concepts.Concept, error) {
	if len(ids) == 0 {
		return map[concepts.QID]concepts.Concept{}, nil
	}
	if len(ids) > MaxIDsPerCall {
		return nil, errors.NewConfigError("actionapi",
			fmt.Sprintf("%d ids exceed the %d per-call limit", len(ids), MaxIDsPerCall), nil)
	}
	idTokens := make([]string, len(ids))
	for i, id := range ids {
		if !id.Valid() {
			return nil, errors.NewConfigError("actionapi",
				fmt.Sprintf("invalid identifier %q", string(id)), nil)
		}
		idTokens[i] = string(id)
	}

	query := url.Values{
		"action":    {"wbgetentities"},
		"ids":       {strings.Join(idTokens, "|")},
		"props":     {"labels|descriptions|claims"},
		"languages": {strings.Join(c.languages, "|")},
		"format":    {"json"},
	}
	resp, err := c.transport.Get(ctx, c.endpoint+"?"+query.Encode())
	if err != nil {
		return nil, err
	}
	var out response
	if err := transport.DecodeJSON(resp, &out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		// The endpoint reports faults in-band with HTTP 200. These are
		// request-shaped problems, not server health, so they are
		// terminal for the chunk.
		return nil, errors.NewAPIError(c.endpoint, 400,
			fmt.Sprintf("%s: %s", out.Error.Code, out.Error.Info))
	}

	result := make(map[concepts.QID]concepts.Concept, len(out.Entities))
	for key, ent := range out.Entities {
		if ent.Missing != nil {
			continue
		}
		id, err := concepts.ParseQID(key)
		if err != nil {
			logging.Warn().Str("entity", key).Msg("Skipping entity with malformed identifier")
			continue
		}
		result[id] = c.toConcept(id, ent)
	}
	return result, nil
}

// toConcept converts an entity payload, keeping only non-empty values for
// the configured languages and properties.
func (c *Client) toConcept(id concepts.QID, ent entity) concepts.Concept {
	con := concepts.Concept{
		ID:           id,
		Labels:       map[string]string{},
		Descriptions: map[string]string{},
		ExternalIDs:  map[string]string{},
	}
	for _, lang := range c.languages {
		if lv, ok := ent.Labels[lang]; ok && lv.Value != "" {
			con.Labels[lang] = lv.Value
		}
		if dv, ok := ent.Descriptions[lang]; ok && dv.Value != "" {
			con.Descriptions[lang] = dv.Value
		}
	}
	for prop, scheme := range c.properties {
		if v := firstClaimValue(ent.Claims[prop]); v != "" {
			con.ExternalIDs[scheme] = v
		}
	}
	return con
}

// firstClaimValue extracts the first claim's value. String datavalues come
// back as-is; entity references resolve to their id.
func firstClaimValue(claims []claim) string {
	if len(claims) == 0 {
		return ""
	}
	raw := claims[0].MainSnak.DataValue.Value
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &ref); err == nil {
		return ref.ID
	}
	return ""
}
