// Package explore provides the explore command implementation.
package explore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seekmed/medharvest/internal/appcontext"
	"github.com/seekmed/medharvest/internal/cmd/output"
	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/harvest"
	"github.com/seekmed/medharvest/pkg/pacing"
)

// Flags holds the explore command's flag values.
type Flags struct {
	Depth  int
	Count  bool
	Sample int
}

// NewCommand creates the explore command using the app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "explore QID",
		GroupID: "core",
		Short:   "Inspect a category's subclass tree before harvesting it",
		Long: `Explore walks the subclass tree under a Wikidata item level by level,
without touching the store. Use it to judge how big a category is and
what it contains before adding it to the catalog.

--count asks the query service for the size of the full reachable
closure, and --sample fetches a few reachable items with their labels.`,
		Example: `  medharvest explore Q12136                 # Two levels of subclasses
  medharvest explore Q12136 --depth 3       # Walk deeper
  medharvest explore Q12136 --count         # Closure size
  medharvest explore Q12136 --sample 10     # Peek at reachable items`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := concepts.QID(strings.TrimSpace(args[0]))
			if !root.Valid() {
				return errors.NewValidationError("qid", args[0], "not a Wikidata item identifier")
			}
			return ExecuteExplore(cmd.Context(), app, root, flags)
		},
	}

	cmd.Flags().IntVar(&flags.Depth, "depth", 2, "subclass levels to walk")
	cmd.Flags().BoolVar(&flags.Count, "count", false, "count the full reachable closure")
	cmd.Flags().IntVar(&flags.Sample, "sample", 0, "fetch this many reachable items with labels")

	return cmd
}

// ExecuteExplore walks the tree and renders the report.
func ExecuteExplore(ctx context.Context, app appcontext.Interface, root concepts.QID, flags *Flags) error {
	src := app.Source()
	cfg := app.Config()

	walker := harvest.NewWalker(src,
		harvest.WithWalkPager(pacing.NewPager(cfg.Harvest.PageWait)))
	levels, err := walker.Walk(ctx, root, flags.Depth)
	if err != nil {
		return err
	}

	report := Report{
		Root:  root,
		Depth: flags.Depth,
	}
	for depth := 1; depth <= flags.Depth; depth++ {
		ids, ok := levels[depth]
		if !ok {
			break
		}
		report.Levels = append(report.Levels, Level{
			Depth: depth,
			Count: len(ids),
			IDs:   ids,
		})
	}

	if flags.Count {
		n, err := src.Count(ctx, concepts.CategorySpec{ID: root})
		if err != nil {
			return err
		}
		report.Closure = &n
	}

	if flags.Sample > 0 {
		rows, err := src.Sample(ctx, root, flags.Sample)
		if err != nil {
			return err
		}
		for _, row := range rows {
			report.Samples = append(report.Samples, SampleView{
				ID:    row.ID,
				Label: row.Label,
			})
		}
	}

	format := output.DetectFormat(app.OutputFormat())
	if format == output.FormatJSON || format == output.FormatYAML {
		return output.NewFormatter(format).Format(os.Stdout, report)
	}
	return displayReport(report)
}

// Report is the structured shape of an exploration.
type Report struct {
	Root    concepts.QID `json:"root"`
	Depth   int          `json:"depth"`
	Levels  []Level      `json:"levels,omitempty"`
	Closure *int         `json:"closure,omitempty"`
	Samples []SampleView `json:"samples,omitempty"`
}

// Level is one breadth-first layer of the subclass tree.
type Level struct {
	Depth int            `json:"depth"`
	Count int            `json:"count"`
	IDs   []concepts.QID `json:"ids"`
}

// SampleView is a reachable item with its preferred label.
type SampleView struct {
	ID    concepts.QID `json:"id"`
	Label string       `json:"label"`
}

// displayReport renders the report as tables on stdout.
func displayReport(report Report) error {
	formatter := output.NewFormatter(output.FormatTable)

	fmt.Fprintf(os.Stderr, "🌳 Subclass tree of %s (depth %d)\n", report.Root, report.Depth)
	levelData := output.Data{
		Headers:         []string{"DEPTH", "COUNT", "SUBCLASSES"},
		ColumnAlignment: []output.Align{output.AlignRight, output.AlignRight, output.AlignLeft},
	}
	for _, level := range report.Levels {
		levelData.Rows = append(levelData.Rows, []string{
			fmt.Sprintf("%d", level.Depth),
			fmt.Sprintf("%d", level.Count),
			previewIDs(level.IDs, 5),
		})
	}
	if err := formatter.Format(os.Stdout, levelData); err != nil {
		return err
	}

	if report.Closure != nil {
		fmt.Fprintf(os.Stdout, "Closure: %d reachable items\n", *report.Closure)
	}

	if len(report.Samples) > 0 {
		sampleData := output.Data{
			Headers: []string{"QID", "LABEL"},
		}
		for _, sample := range report.Samples {
			sampleData.Rows = append(sampleData.Rows, []string{string(sample.ID), sample.Label})
		}
		if err := formatter.Format(os.Stdout, sampleData); err != nil {
			return err
		}
	}

	return nil
}

// previewIDs joins the first few ids, noting how many were elided.
func previewIDs(ids []concepts.QID, limit int) string {
	if len(ids) == 0 {
		return "-"
	}
	shown := make([]string, 0, limit)
	for i, id := range ids {
		if i == limit {
			break
		}
		shown = append(shown, string(id))
	}
	line := strings.Join(shown, ", ")
	if rest := len(ids) - limit; rest > 0 {
		line += fmt.Sprintf(" +%d more", rest)
	}
	return line
}
