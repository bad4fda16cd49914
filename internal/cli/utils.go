// Package cli provides output helpers for the kioku command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteQueryResults writes collection query results to w in the given format.
func WriteQueryResults(w io.Writer, response *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %s in %dms\n\n", len(response.Results), response.Collection, response.QueryTime)
	for i, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Similarity: %.4f | ID: %d\n", i+1, result.Similarity, result.ID)
		if result.Source != "" {
			fmt.Fprintf(w, "Source: %s\n", result.Source)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(result.Content, 200))
	}
	return nil
}

// WriteCollections writes a collection listing to w in the given format.
func WriteCollections(w io.Writer, collections []*models.Collection, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, collections)
	}
	if len(collections) == 0 {
		fmt.Fprintln(w, "no collections")
		return nil
	}
	for _, c := range collections {
		fmt.Fprintf(w, "%-32s %8d documents  created %s\n", c.Name, c.DocumentCount, c.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// WriteIngestResults summarizes ingested files.
func WriteIngestResults(w io.Writer, results []*models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, results)
	}
	total := 0
	for _, r := range results {
		fmt.Fprintf(w, "%s: %d chunk(s) into %s\n", r.File, r.Inserted, r.Collection)
		total += r.Inserted
	}
	fmt.Fprintf(w, "Ingested %d file(s), %d chunk(s)\n", len(results), total)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
