package harvest

import (
	"context"
	"fmt"
	"os"

	"github.com/seekmed/medharvest"
	"github.com/seekmed/medharvest/internal/appcontext"
	"github.com/seekmed/medharvest/internal/cmd/output"
	"github.com/seekmed/medharvest/internal/export"
	"github.com/seekmed/medharvest/pkg/concepts"
)

// ExecuteHarvest runs the pipeline and renders the outcome. The error
// it returns is the harvester's own: a run that ends failed surfaces
// here and the process exits non-zero.
func ExecuteHarvest(ctx context.Context, app appcontext.Interface, flags *Flags) error {
	harvester, err := app.Harvester(ctx)
	if err != nil {
		return err
	}

	if !app.Quiet() {
		fmt.Fprintf(os.Stderr, "\n🌿 Starting harvest...\n\n")
	}

	result, err := harvester.Harvest(ctx, BuildHarvestOptions(flags)...)
	if err != nil {
		return err
	}

	format := output.DetectFormat(app.OutputFormat())
	if format == output.FormatJSON || format == output.FormatYAML {
		formatter := output.NewFormatter(format)
		if err := formatter.Format(os.Stdout, viewOf(result)); err != nil {
			return err
		}
	} else if !app.Quiet() {
		displaySummary(result)
		if flags.DryRun {
			fmt.Fprintf(os.Stderr, "🔍 Dry run - nothing was written to the store\n")
		}
	}

	if flags.Out != "" {
		if err := export.WriteFile(flags.Out, result.Harvested); err != nil {
			return err
		}
		if !app.Quiet() {
			fmt.Fprintf(os.Stderr, "📁 Saved %d concepts to %s\n", len(result.Harvested), flags.Out)
		}
	}

	return nil
}

// BuildHarvestOptions translates flags into per-run harvest options.
func BuildHarvestOptions(flags *Flags) []medharvest.HarvestOption {
	var opts []medharvest.HarvestOption

	if len(flags.Categories) > 0 {
		ids := make([]concepts.QID, 0, len(flags.Categories))
		for _, raw := range flags.Categories {
			ids = append(ids, concepts.QID(raw))
		}
		opts = append(opts, medharvest.HarvestWithCategories(ids...))
	} else if flags.Tier != "" {
		opts = append(opts, medharvest.HarvestWithTier(flags.Tier))
	}
	if flags.Limit > 0 {
		opts = append(opts, medharvest.HarvestWithLimit(flags.Limit))
	}
	if flags.PageSize > 0 {
		opts = append(opts, medharvest.HarvestWithPageSize(flags.PageSize))
	}
	if flags.DryRun {
		opts = append(opts, medharvest.HarvestWithDryRun(true))
	}

	return opts
}

// viewOf shapes a result for structured output. Category errors become
// plain strings so they survive marshalling.
func viewOf(result *medharvest.Result) runView {
	view := runView{
		Run:        result.Run,
		Categories: make([]categoryView, 0, len(result.Categories)),
	}
	for _, cat := range result.Categories {
		cv := categoryView{
			ID:         cat.Category.ID,
			Name:       cat.Category.Name("en"),
			Discovered: cat.Discovered,
			Fetched:    cat.Fetched,
			Missing:    cat.Missing,
			Retired:    cat.Retired,
			Truncated:  cat.Truncated,
			Counts:     cat.Counts,
		}
		if cat.Err != nil {
			cv.Error = cat.Err.Error()
		}
		view.Categories = append(view.Categories, cv)
	}
	return view
}

type runView struct {
	Run        concepts.BatchRun `json:"run"`
	Categories []categoryView    `json:"categories"`
}

type categoryView struct {
	ID         concepts.QID       `json:"id"`
	Name       string             `json:"name,omitempty"`
	Discovered int                `json:"discovered"`
	Fetched    int                `json:"fetched"`
	Missing    []concepts.QID     `json:"missing,omitempty"`
	Retired    int                `json:"retired"`
	Truncated  bool               `json:"truncated,omitempty"`
	Counts     concepts.RunCounts `json:"counts"`
	Error      string             `json:"error,omitempty"`
}
