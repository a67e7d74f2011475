package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// formatScanText formats a scan summary as one line.
func formatScanText(w io.Writer, s CLIScan) {
	fmt.Fprintf(w, "cycles: %d  files: %d  written: %d  skipped: %d  pruned: %d  failures: %d\n",
		s.Cycles, s.Files, s.Written, s.Skipped, s.Pruned, s.Failures)
}

// formatSolutionsText lists the written solution documents.
func formatSolutionsText(w io.Writer, s CLISolutions) {
	for _, d := range s.Documents {
		fmt.Fprintln(w, d)
	}
	fmt.Fprintf(w, "\n%d documents, %d markers, %d failures\n", len(s.Documents), s.Markers, s.Failures)
}

// formatMarkerTableText formats a marker table report.
func formatMarkerTableText(w io.Writer, m CLIMarkerTable) {
	fmt.Fprintf(w, "Path: %s\n", m.Path)
	fmt.Fprintf(w, "Comment rows: %d\n", m.CommentRows)
	fmt.Fprintf(w, "Test rows: %d\n", m.TestRows)
	if m.Failures > 0 {
		fmt.Fprintf(w, "Failures: %d\n", m.Failures)
	}
}

// formatLexText prints the extracted comments verbatim.
func formatLexText(w io.Writer, l CLILex) {
	io.WriteString(w, l.Comments)
	if l.Comments != "" && !strings.HasSuffix(l.Comments, "\n") {
		fmt.Fprintln(w)
	}
}

// formatMarkersText formats marker rows as aligned columns.
func formatMarkersText(w io.Writer, rows []CLIMarker) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MARKER\tKIND\tDOCUMENT")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Marker, r.Kind, r.Document)
	}
	tw.Flush()
}

// formatStatusText formats the ledger summary as readable text.
func formatStatusText(w io.Writer, s CLIStatus) {
	fmt.Fprintln(w, "Documents")
	fmt.Fprintln(w, "=========")
	statuses := make([]string, 0, len(s.Documents))
	for status := range s.Documents {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Fprintf(w, "  %s: %d\n", status, s.Documents[status])
	}
	fmt.Fprintln(w)

	if len(s.Runs) == 0 {
		return
	}
	fmt.Fprintln(w, "Recent Runs:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  KIND\tSTARTED\tDURATION\tDOCUMENTS\tMARKERS\tFAILURES")
	for _, r := range s.Runs {
		duration := "running"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\t%d\t%d\n",
			r.Kind, r.StartedAt.Format(time.DateTime), duration, r.Documents, r.Markers, r.Failures)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case CLIScan:
		formatScanText(w, v)
	case CLISolutions:
		formatSolutionsText(w, v)
	case CLIMarkerTable:
		formatMarkerTableText(w, v)
	case CLILex:
		formatLexText(w, v)
	case []CLIMarker:
		formatMarkersText(w, v)
	case CLIStatus:
		formatStatusText(w, v)
	case CLIInit:
		fmt.Fprintf(w, "Wrote %s\n", v.Path)
	case CLIVersion:
		fmt.Fprintln(w, v.Version)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
