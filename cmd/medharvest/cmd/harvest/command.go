// Package harvest provides the harvest command implementation.
package harvest

import (
	"github.com/spf13/cobra"

	"github.com/seekmed/medharvest/internal/appcontext"
)

// Flags holds the harvest command's flag values.
type Flags struct {
	Tier       string
	Categories []string
	Limit      int
	PageSize   int
	DryRun     bool
	Out        string
}

// NewCommand creates the harvest command using the app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	var flags *Flags

	cmd := &cobra.Command{
		Use:     "harvest",
		GroupID: "core",
		Short:   "Discover and sync medical concepts from Wikidata",
		Long: `Harvest walks the configured category tiers on Wikidata, discovers every
reachable concept, fetches labels, descriptions, and medical codes in
bulk, and reconciles the results against the local store.

Each run:
1. Discovers reachable concept ids per category, page by page
2. Fetches entity details in chunks from the Action API
3. Inserts new concepts, updates changed ones, records every change
4. Retires stored concepts a category can no longer reach

Categories harvested earlier in a run claim shared concepts; a concept
reachable from several categories is filed under the first one.`,
		Example: `  medharvest harvest                        # Harvest the small tier
  medharvest harvest --tier medium          # Harvest a bigger tier
  medharvest harvest --category Q12136      # Harvest one category
  medharvest harvest --limit 100 --dry-run  # Preview without writing
  medharvest harvest --out concepts.csv     # Also export the results`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ExecuteHarvest(cmd.Context(), app, flags)
		},
	}

	flags = addHarvestFlags(cmd)

	return cmd
}

// addHarvestFlags registers the harvest-specific flags.
func addHarvestFlags(cmd *cobra.Command) *Flags {
	flags := &Flags{}
	cmd.Flags().StringVar(&flags.Tier, "tier", "", "catalog tier to harvest: small, medium, large")
	cmd.Flags().StringSliceVar(&flags.Categories, "category", nil, "explicit category QIDs to harvest (overrides --tier)")
	cmd.Flags().IntVar(&flags.Limit, "limit", 0, "stop each category after this many discovered concepts")
	cmd.Flags().IntVar(&flags.PageSize, "page-size", 0, "discovery page size (overrides config)")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "reconcile without writing to the store")
	cmd.Flags().StringVar(&flags.Out, "out", "", "write harvested concepts to this file (.json or .csv)")
	return flags
}
