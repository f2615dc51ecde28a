// Package export writes stored concepts to JSON or CSV files. Both formats
// share the flat row shape produced by reconcile.Flatten, extended with the
// snapshot bookkeeping columns, so a CSV column and a JSON key always mean
// the same thing.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/seekmed/medharvest/pkg/concepts"
	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/reconcile"
)

// Format identifies an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ForPath picks the format implied by a file extension.
func ForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", errors.NewConfigError("export",
			fmt.Sprintf("cannot infer a format from %q: use a .json or .csv extension", path), nil)
	}
}

// WriteFile exports snapshots to path in the format its extension implies.
func WriteFile(path string, snaps []concepts.StoredConcept) error {
	format, err := ForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	if err := Write(f, format, snaps); err != nil {
		f.Close()
		return err
	}
	return errors.WrapIO("close", path, f.Close())
}

// Write encodes snapshots to w in the given format.
func Write(w io.Writer, format Format, snaps []concepts.StoredConcept) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, snaps)
	case FormatCSV:
		return writeCSV(w, snaps)
	default:
		return errors.NewConfigError("export", fmt.Sprintf("unknown format %q", format), nil)
	}
}

// rowFor flattens one snapshot into export columns. Content fields come from
// the same projection the reconciler hashes, so exports and change records
// agree on names.
func rowFor(snap concepts.StoredConcept) map[string]string {
	row := reconcile.Flatten(snap.Concept)
	row["qid"] = string(snap.ID)
	row["active"] = strconv.FormatBool(snap.Active)
	row["update_count"] = strconv.Itoa(snap.UpdateCount)
	putTime(row, "first_seen_at", snap.FirstSeenAt)
	putTime(row, "last_seen_at", snap.LastSeenAt)
	putTime(row, "last_checked_at", snap.LastCheckedAt)
	return row
}

func putTime(row map[string]string, name string, t time.Time) {
	if t.IsZero() {
		return
	}
	row[name] = t.UTC().Format(time.RFC3339Nano)
}

func writeJSON(w io.Writer, snaps []concepts.StoredConcept) error {
	rows := make([]map[string]string, 0, len(snaps))
	for _, snap := range snaps {
		rows = append(rows, rowFor(snap))
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return errors.WrapIO("encode", "json export", enc.Encode(rows))
}

func writeCSV(w io.Writer, snaps []concepts.StoredConcept) error {
	rows := make([]map[string]string, 0, len(snaps))
	for _, snap := range snaps {
		rows = append(rows, rowFor(snap))
	}
	header := columns(rows)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.WrapIO("write", "csv header", err)
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, name := range header {
			record[i] = row[name]
		}
		if err := cw.Write(record); err != nil {
			return errors.WrapIO("write", "csv row "+row["qid"], err)
		}
	}
	cw.Flush()
	return errors.WrapIO("flush", "csv export", cw.Error())
}

// columns returns the union of row keys across all rows, qid first and the
// rest sorted, so exports are stable regardless of which languages or schemes
// each concept happens to carry.
func columns(rows []map[string]string) []string {
	seen := map[string]bool{"qid": true}
	var rest []string
	for _, row := range rows {
		for name := range row {
			if !seen[name] {
				seen[name] = true
				rest = append(rest, name)
			}
		}
	}
	sort.Strings(rest)
	return append([]string{"qid"}, rest...)
}
