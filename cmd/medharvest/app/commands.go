package app

import (
	"github.com/spf13/cobra"

	"github.com/seekmed/medharvest/cmd/medharvest/cmd/explore"
	"github.com/seekmed/medharvest/cmd/medharvest/cmd/export"
	"github.com/seekmed/medharvest/cmd/medharvest/cmd/harvest"
	"github.com/seekmed/medharvest/cmd/medharvest/cmd/runs"
)

// NewHarvestCommand creates the harvest command with app dependencies.
func (a *App) NewHarvestCommand() *cobra.Command {
	return harvest.NewCommand(a)
}

// NewExploreCommand creates the explore command with app dependencies.
func (a *App) NewExploreCommand() *cobra.Command {
	return explore.NewCommand(a)
}

// NewRunsCommand creates the runs command with app dependencies.
func (a *App) NewRunsCommand() *cobra.Command {
	return runs.NewCommand(a)
}

// NewExportCommand creates the export command with app dependencies.
func (a *App) NewExportCommand() *cobra.Command {
	return export.NewCommand(a)
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("medharvest %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
