package tracemark

import (
	"fmt"
	"sort"

	"github.com/jward/tracemark/internal/marker"
	"github.com/jward/tracemark/internal/store"
)

// QueryBuilder provides read access to the scan ledger.
type QueryBuilder struct {
	store *store.Store
}

// Query returns a new QueryBuilder wrapping the engine's ledger.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.ledger}
}

// Trace is the ledger view of one solution marker.
type Trace struct {
	Marker   string
	Role     string
	Comments []string
	Tests    []MarkerRow
}

// Markers returns the ledger rows whose marker starts with prefix. The caret
// is optional.
func (q *QueryBuilder) Markers(prefix string) ([]MarkerRow, error) {
	if q.store == nil {
		return nil, ErrNoLedger
	}
	rows, err := q.store.MarkersByPrefix(prefix)
	if err != nil {
		return nil, fmt.Errorf("markers: %w", err)
	}
	return rows, nil
}

// TraceMarker collects the comment documents holding m and the test markers
// nested under it. Returns nil when the marker is not in the ledger.
func (q *QueryBuilder) TraceMarker(m string) (*Trace, error) {
	if m == "" {
		return nil, nil
	}
	rows, err := q.Markers(m)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if m[0] != '^' {
		m = "^" + m
	}

	t := &Trace{Marker: m, Role: marker.RoleOf(m).String()}
	for _, r := range rows {
		switch {
		case r.Marker == m && r.Kind == store.KindComment:
			t.Comments = append(t.Comments, r.Document)
		case r.Kind == store.KindTestComment && marker.IsTest(r.Marker) && marker.DropRight(r.Marker, 2) == m:
			t.Tests = append(t.Tests, r)
		}
	}
	sort.Strings(t.Comments)
	return t, nil
}

// RecentRuns returns up to limit runs, newest first.
func (q *QueryBuilder) RecentRuns(limit int) ([]*Run, error) {
	if q.store == nil {
		return nil, ErrNoLedger
	}
	return q.store.RecentRuns(limit)
}

// DocumentCounts returns the number of tracked documents per status.
func (q *QueryBuilder) DocumentCounts() (map[string]int, error) {
	if q.store == nil {
		return nil, ErrNoLedger
	}
	return q.store.DocumentCounts()
}

// Document returns the ledger entry of a derived document, or nil.
func (q *QueryBuilder) Document(path string) (*Document, error) {
	if q.store == nil {
		return nil, ErrNoLedger
	}
	return q.store.DocumentByPath(path)
}
