// Package appcontext defines the application context interface shared
// by all CLI commands. Commands accept this interface instead of the
// concrete App type from cmd/medharvest/app, which keeps them testable
// with the Mock in this package and avoids an import cycle between the
// command packages and the app wiring.
package appcontext

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/seekmed/medharvest"
	"github.com/seekmed/medharvest/internal/config"
	"github.com/seekmed/medharvest/internal/source"
	"github.com/seekmed/medharvest/internal/store"
)

// Interface is the dependency surface commands draw on. The App struct
// from cmd/medharvest/app implements it.
type Interface interface {
	// Config returns the loaded harvester configuration.
	Config() *config.Config

	// Logger returns the configured logger instance.
	// Commands should use this for all logging operations.
	Logger() *zerolog.Logger

	// Store returns the shared database handle, opening it lazily on
	// first use. The handle stays open until the app shuts down, so
	// commands must not close it.
	Store(ctx context.Context) (*store.Store, error)

	// Source returns a remote Wikidata source assembled from the
	// configured endpoints, pacing gate, and retry policy.
	Source() *source.Remote

	// Harvester returns a harvester wired to the shared store and a
	// remote source. Each call builds a fresh instance.
	Harvester(ctx context.Context) (*medharvest.Harvester, error)

	// OutputFormat returns the requested output format (table, json,
	// yaml), or "" when the command should auto-detect.
	OutputFormat() string

	// Quiet reports whether progress output should be suppressed.
	Quiet() bool
}
