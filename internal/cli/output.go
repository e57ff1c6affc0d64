// Package cli provides output formatting for the studyrag command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/verseware/studyrag/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteAnswer writes an answer to w in the given format.
func WriteAnswer(w io.Writer, ans models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}
	fmt.Fprintf(w, "\n%s\n", ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Fprintf(w, "\nSources: %s\n", strings.Join(ans.Sources, "; "))
	}
	return nil
}

// WriteReport writes an ingestion report to w in the given format.
func WriteReport(w io.Writer, report models.Report, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintf(w, "\nIngestion %s: %d indexed, %d skipped, %d failed\n",
		report.RunID, report.Indexed, report.Skipped, report.Failed)
	for _, d := range report.Documents {
		switch d.Status {
		case models.StatusIndexed:
			fmt.Fprintf(w, "  indexed  %s (%d chunks)\n", d.SourceID, d.Chunks)
		case models.StatusSkipped:
			fmt.Fprintf(w, "  skipped  %s\n", d.SourceID)
		case models.StatusFailed:
			fmt.Fprintf(w, "  FAILED   %s: %s\n", d.SourceID, d.Err)
		}
	}
	return nil
}
