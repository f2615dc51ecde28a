// Package main provides the entry point for the medharvest CLI tool.
package main

import (
	"context"
	"os"

	"github.com/seekmed/medharvest/cmd/medharvest/app"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	application, err := app.New(version, commit, date, builtBy)
	if err != nil {
		app.ExitOnError(err)
	}

	// Cancel the run on SIGINT/SIGTERM so it can record its status
	// before the process exits.
	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	err = application.Execute(ctx, os.Args[1:])

	if closeErr := application.Close(); closeErr != nil {
		application.Logger().Error().Err(closeErr).Msg("Store close failed during shutdown")
	}
	app.ExitOnError(err)
}
