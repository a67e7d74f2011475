package tracemark

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/tracemark/internal/marker"
	"github.com/jward/tracemark/internal/store"
)

// MarkerTableReport summarizes one marker table rebuild.
type MarkerTableReport struct {
	Path         string
	CommentRows  int
	TestRows     int
	Failures     int
	LedgerSynced bool
}

// BuildMarkerTable writes the flat marker index: one row per marker and
// originating document, comment and test-comment markers in separate
// tables. When a ledger is configured its marker table is replaced too.
func (e *Engine) BuildMarkerTable(ctx context.Context) (*MarkerTableReport, error) {
	if err := e.cfg.ValidateDocs(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnconfigured, err)
	}
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	if err := e.folders.Ensure(e.docs); err != nil {
		return nil, err
	}
	run := e.beginRun(store.RunMarkers)
	defer e.finishRun(run)

	comments := settle(ctx, e.workers, e.listDocs(e.folders.Comments), e.markersOf)
	testComments := settle(ctx, e.workers, e.listDocs(e.folders.TestComments), e.markersOf)
	report := &MarkerTableReport{
		Path:     e.folders.MarkerTable(),
		Failures: failures(comments) + failures(testComments),
	}

	commentRows := markerRows(Succeeded(comments, e.logger), store.KindComment)
	testRows := markerRows(Succeeded(testComments, e.logger), store.KindTestComment)
	report.CommentRows = len(commentRows)
	report.TestRows = len(testRows)

	var b strings.Builder
	b.WriteString("## Comments\n\n")
	writeTable(&b, commentRows)
	b.WriteString("\n## Test Comments\n\n")
	writeTable(&b, testRows)

	if err := e.docs.Write(report.Path, b.String()); err != nil {
		return nil, fmt.Errorf("write marker table: %w", err)
	}

	if e.ledger != nil {
		if err := e.ledger.ReplaceMarkers(append(commentRows, testRows...)); err != nil {
			e.logger.Warn("ledger replace markers", "error", err)
		} else {
			report.LedgerSynced = true
		}
	}
	if run != nil {
		run.Documents = 1
		run.Markers = report.CommentRows + report.TestRows
		run.Failures = report.Failures
	}
	e.logger.Info("built marker table", "path", report.Path,
		"comments", report.CommentRows, "tests", report.TestRows)
	return report, nil
}

// markerRows expands per-document marker sets into (marker, document) rows
// sorted by marker then document.
func markerRows(results []Result[[]string], kind string) []store.MarkerRow {
	var rows []store.MarkerRow
	for _, r := range results {
		for _, mk := range r.Value {
			rows = append(rows, store.MarkerRow{Marker: mk, Document: r.Path, Kind: kind})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Marker != rows[j].Marker {
			return rows[i].Marker < rows[j].Marker
		}
		return rows[i].Document < rows[j].Document
	})
	return rows
}

func writeTable(b *strings.Builder, rows []store.MarkerRow) {
	b.WriteString("|marker|document|\n")
	b.WriteString("|------|--------|\n")
	for _, r := range rows {
		fmt.Fprintf(b, "|%s|%s|\n", marker.WithoutCaret(r.Marker), link{doc: r.Document, marker: r.Marker})
	}
}
