// Package runs provides the runs command implementation.
package runs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seekmed/medharvest/internal/appcontext"
	"github.com/seekmed/medharvest/internal/cmd/output"
	"github.com/seekmed/medharvest/pkg/concepts"
)

// NewCommand creates the runs command using the app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "runs",
		GroupID: "management",
		Short:   "Inspect harvest run history",
		Long: `Runs lists past harvest runs with their status and change counters,
newest first. Use "runs show ID" for one run's full record including
the changes it made.`,
		Example: `  medharvest runs                           # Recent runs
  medharvest runs --limit 5                 # Just the last five
  medharvest runs show 0198a3…              # One run with its changes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ExecuteList(cmd.Context(), app, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.AddCommand(newShowCommand(app))

	return cmd
}

// ExecuteList renders recent runs, newest first.
func ExecuteList(ctx context.Context, app appcontext.Interface, limit int) error {
	st, err := app.Store(ctx)
	if err != nil {
		return err
	}

	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	format := output.DetectFormat(app.OutputFormat())
	if format == output.FormatJSON || format == output.FormatYAML {
		return output.NewFormatter(format).Format(os.Stdout, runs)
	}

	data := output.Data{
		Headers: []string{"ID", "STARTED", "DURATION", "STATUS", "ADDED", "UPDATED", "UNCHANGED", "RETIRED", "FAILED"},
		ColumnAlignment: []output.Align{
			output.AlignLeft, output.AlignLeft, output.AlignRight, output.AlignLeft,
			output.AlignRight, output.AlignRight, output.AlignRight, output.AlignRight, output.AlignRight,
		},
	}
	for _, run := range runs {
		data.Rows = append(data.Rows, []string{
			run.ID,
			run.StartedAt.Format(time.DateTime),
			runDuration(run),
			string(run.Status),
			fmt.Sprintf("%d", run.Counts.Inserted),
			fmt.Sprintf("%d", run.Counts.Updated),
			fmt.Sprintf("%d", run.Counts.Unchanged),
			fmt.Sprintf("%d", run.Counts.Deleted),
			fmt.Sprintf("%d", run.Counts.Failed),
		})
	}
	return output.NewFormatter(output.FormatTable).Format(os.Stdout, data)
}

// newShowCommand creates the "runs show" subcommand.
func newShowCommand(app appcontext.Interface) *cobra.Command {
	var changeLimit int

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one run with the changes it recorded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ExecuteShow(cmd.Context(), app, args[0], changeLimit)
		},
	}

	cmd.Flags().IntVar(&changeLimit, "changes", 50, "maximum change records to include")

	return cmd
}

// ExecuteShow renders one run and its change trail.
func ExecuteShow(ctx context.Context, app appcontext.Interface, id string, changeLimit int) error {
	st, err := app.Store(ctx)
	if err != nil {
		return err
	}

	run, err := st.GetRun(ctx, id)
	if err != nil {
		return err
	}
	changes, err := st.ListChanges(ctx, id, changeLimit)
	if err != nil {
		return err
	}

	format := output.DetectFormat(app.OutputFormat())
	if format == output.FormatJSON || format == output.FormatYAML {
		view := struct {
			Run     concepts.BatchRun       `json:"run"`
			Changes []concepts.ChangeRecord `json:"changes"`
		}{Run: *run, Changes: changes}
		return output.NewFormatter(format).Format(os.Stdout, view)
	}

	formatter := output.NewFormatter(output.FormatTable)
	if err := formatter.Format(os.Stdout, runView(run)); err != nil {
		return err
	}

	if len(changes) == 0 {
		return nil
	}
	data := output.Data{
		Headers: []string{"QID", "KIND", "FIELDS", "RECORDED"},
	}
	for _, change := range changes {
		data.Rows = append(data.Rows, []string{
			string(change.ConceptID),
			string(change.Kind),
			strings.Join(change.Fields, ","),
			change.RecordedAt.Format(time.DateTime),
		})
	}
	return formatter.Format(os.Stdout, data)
}

// view flattens a run for the key-value table; the formatter derives
// row names from the json tags.
type view struct {
	ID        string `json:"id"`
	Started   string `json:"started"`
	Ended     string `json:"ended"`
	Duration  string `json:"duration"`
	Status    string `json:"status"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Unchanged int    `json:"unchanged"`
	Retired   int    `json:"retired"`
	Failed    int    `json:"failed"`
	Error     string `json:"error"`
}

func runView(run *concepts.BatchRun) view {
	ended := "-"
	if !run.EndedAt.IsZero() {
		ended = run.EndedAt.Format(time.DateTime)
	}
	return view{
		ID:        run.ID,
		Started:   run.StartedAt.Format(time.DateTime),
		Ended:     ended,
		Duration:  runDuration(*run),
		Status:    string(run.Status),
		Inserted:  run.Counts.Inserted,
		Updated:   run.Counts.Updated,
		Unchanged: run.Counts.Unchanged,
		Retired:   run.Counts.Deleted,
		Failed:    run.Counts.Failed,
		Error:     run.Error,
	}
}

// runDuration formats how long a run took, or "-" while it is still
// running.
func runDuration(run concepts.BatchRun) string {
	if run.EndedAt.IsZero() {
		return "-"
	}
	return run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}
