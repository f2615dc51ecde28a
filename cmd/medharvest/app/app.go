// Package app provides the application context and dependency wiring
// for the medharvest CLI. It centralizes configuration loading, logger
// setup, and construction of the store, the remote source, and the
// harvester so commands only declare what they need.
package app

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/seekmed/medharvest"
	"github.com/seekmed/medharvest/internal/actionapi"
	"github.com/seekmed/medharvest/internal/appcontext"
	"github.com/seekmed/medharvest/internal/config"
	"github.com/seekmed/medharvest/internal/source"
	"github.com/seekmed/medharvest/internal/store"
	"github.com/seekmed/medharvest/internal/transport"
	"github.com/seekmed/medharvest/internal/wdqs"
	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/pacing"
	"github.com/seekmed/medharvest/pkg/sparql"
)

// App carries the medharvest CLI's dependencies: version information,
// the loaded configuration, the logger, and the lazily opened store.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// Store handle (lazy-initialized, shared across commands)
	mu    sync.Mutex
	store *store.Store
}

// New creates an App with the given version information. Configuration
// is loaded from the default locations; the --config flag can replace
// it before any command runs.
func New(version, commit, date, builtBy string) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	return app, nil
}

// Version returns the version string.
func (a *App) Version() string {
	return a.version
}

// Config returns the loaded harvester configuration.
func (a *App) Config() *config.Config {
	return a.config.Harvester
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the requested output format, or "" for auto.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Quiet reports whether progress output should be suppressed.
func (a *App) Quiet() bool {
	return a.config.Quiet
}

// Store returns the shared database handle, opening it on first use.
func (a *App) Store(ctx context.Context) (*store.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		return a.store, nil
	}

	cfg := a.config.Harvester.Store
	st, err := store.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	a.store = st
	return st, nil
}

// Source assembles a remote Wikidata source from the configured
// endpoints. Both API clients share one transport, so the pacing gate
// and retry policy apply across SPARQL and Action API calls together.
func (a *App) Source() *source.Remote {
	cfg := a.config.Harvester

	tc := transport.New(
		transport.WithUserAgent(cfg.API.UserAgent),
		transport.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		transport.WithGate(pacing.NewGate(cfg.Harvest.MinCallInterval)),
		transport.WithPolicy(pacing.NewPolicy(
			pacing.WithRetryBase(cfg.Backoff.RetryBase),
			pacing.WithRateLimitBase(cfg.Backoff.RateLimitBase),
			pacing.WithOverloadBase(cfg.Backoff.OverloadBase),
			pacing.WithNetworkBase(cfg.Backoff.NetworkBase),
			pacing.WithMaxWait(cfg.Backoff.MaxWait),
			pacing.WithMaxRetries(cfg.Harvest.MaxRetries),
		)),
	)

	builder := sparql.NewBuilder(
		sparql.WithLanguages(cfg.Languages...),
		sparql.WithProperties(sortedKeys(cfg.Properties)...),
	)
	query := wdqs.New(cfg.API.SPARQLEndpoint, tc)
	details := actionapi.New(cfg.API.ActionEndpoint, tc,
		actionapi.WithLanguages(cfg.Languages...),
		actionapi.WithProperties(cfg.Properties),
	)

	return source.NewRemote(builder, query, details)
}

// Harvester builds a harvester wired to the shared store and a fresh
// remote source, with tuning taken from the configuration.
func (a *App) Harvester(ctx context.Context) (*medharvest.Harvester, error) {
	st, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}

	cfg := a.config.Harvester
	opts := []medharvest.Option{
		medharvest.WithStore(st),
		medharvest.WithSource(a.Source()),
		medharvest.WithPageSize(cfg.Harvest.PageSize),
		medharvest.WithChunkSize(cfg.Harvest.ChunkSize),
		medharvest.WithMaxEmptyPages(cfg.Harvest.MaxEmptyPages),
		medharvest.WithCASRetries(cfg.Store.CASRetries),
		medharvest.WithPageWait(cfg.Harvest.PageWait),
		medharvest.WithChunkWait(cfg.Harvest.ChunkWait),
		medharvest.WithCategoryWait(cfg.Harvest.CategoryWait),
	}

	if cfg.Catalog != "" {
		catalog, err := concepts.LoadCatalog(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		opts = append(opts, medharvest.WithCatalog(catalog))
	}

	return medharvest.New(opts...)
}

// Close releases the store handle if one was opened.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// sortedKeys returns the map's keys in sorted order so query text stays
// deterministic run to run.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ensure App implements the command-facing interface at compile time.
var _ appcontext.Interface = (*App)(nil)
