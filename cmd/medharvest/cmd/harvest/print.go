package harvest

import (
	"fmt"
	"os"
	"time"

	"github.com/seekmed/medharvest"
	"github.com/seekmed/medharvest/pkg/concepts"
)

// displaySummary prints a per-category account of the run to stderr.
func displaySummary(result *medharvest.Result) {
	fmt.Fprintf(os.Stderr, "=== HARVEST RESULTS ===\n\n")

	for _, cat := range result.Categories {
		name := cat.Category.Name("en")
		if cat.Err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  %s %s: %v\n\n", cat.Category.ID, name, cat.Err)
			continue
		}

		fmt.Fprintf(os.Stderr, "🔄 %s %s:\n", cat.Category.ID, name)
		if cat.Truncated {
			fmt.Fprintf(os.Stderr, "  📄 Discovered: %d ids (stopped at limit)\n", cat.Discovered)
		} else {
			fmt.Fprintf(os.Stderr, "  📄 Discovered: %d ids\n", cat.Discovered)
		}
		if len(cat.Missing) > 0 {
			fmt.Fprintf(os.Stderr, "  📦 Details: %d fetched, %d missing\n", cat.Fetched, len(cat.Missing))
		} else {
			fmt.Fprintf(os.Stderr, "  📦 Details: %d fetched\n", cat.Fetched)
		}
		fmt.Fprintf(os.Stderr, "  📊 Changes: %s\n\n", countsLine(cat.Counts))
	}

	counts := result.Run.Counts
	if counts.Inserted == 0 && counts.Updated == 0 && counts.Deleted == 0 && counts.Failed == 0 {
		fmt.Fprintf(os.Stderr, "✅ Store already in sync - no changes needed\n")
	} else {
		fmt.Fprintf(os.Stderr, "📊 Total: %s\n", countsLine(counts))
	}

	duration := result.Run.EndedAt.Sub(result.Run.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(os.Stderr, "🎉 Harvest %s in %s (run %s)\n", result.Run.Status, duration, result.Run.ID)
}

// countsLine renders run counters in a fixed, readable order. Failures
// only show up when there were any.
func countsLine(c concepts.RunCounts) string {
	line := fmt.Sprintf("%d added, %d updated, %d unchanged, %d retired",
		c.Inserted, c.Updated, c.Unchanged, c.Deleted)
	if c.Failed > 0 {
		line += fmt.Sprintf(", %d failed", c.Failed)
	}
	return line
}
