// Package export provides the export command implementation.
package export

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seekmed/medharvest/internal/appcontext"
	save "github.com/seekmed/medharvest/internal/export"
	"github.com/seekmed/medharvest/internal/store"
	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
)

// Flags holds the export command's flag values.
type Flags struct {
	Out        string
	Category   string
	ActiveOnly bool
	Limit      int
}

// NewCommand creates the export command using the app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "export",
		GroupID: "core",
		Short:   "Export stored concepts to JSON or CSV",
		Long: `Export dumps stored concept snapshots to a file. The extension picks
the format: .json for an indented array, .csv for one flat row per
concept with label, description, and code columns per language.`,
		Example: `  medharvest export --out concepts.json     # Everything
  medharvest export --out disease.csv --category Q12136
  medharvest export --out active.json --active-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ExecuteExport(cmd.Context(), app, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Out, "out", "", "output file (.json or .csv)")
	cmd.Flags().StringVar(&flags.Category, "category", "", "only concepts filed under this category QID")
	cmd.Flags().BoolVar(&flags.ActiveOnly, "active-only", false, "skip retired concepts")
	cmd.Flags().IntVar(&flags.Limit, "limit", 0, "maximum concepts to export")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// ExecuteExport queries the store and writes the file.
func ExecuteExport(ctx context.Context, app appcontext.Interface, flags *Flags) error {
	filter := store.ConceptFilter{
		ActiveOnly: flags.ActiveOnly,
		Limit:      flags.Limit,
	}
	if flags.Category != "" {
		category := concepts.QID(flags.Category)
		if !category.Valid() {
			return errors.NewValidationError("category", flags.Category, "not a Wikidata item identifier")
		}
		filter.Category = category
	}

	st, err := app.Store(ctx)
	if err != nil {
		return err
	}
	snaps, err := st.ListConcepts(ctx, filter)
	if err != nil {
		return err
	}

	if err := save.WriteFile(flags.Out, snaps); err != nil {
		return err
	}
	if !app.Quiet() {
		fmt.Fprintf(os.Stderr, "📁 Exported %d concepts to %s\n", len(snaps), flags.Out)
	}
	return nil
}
