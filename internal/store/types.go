package store

import "time"

// Run kinds.
const (
	RunScan      = "scan"
	RunSolutions = "solutions"
	RunMarkers   = "markers"
)

// Document kinds.
const (
	KindComment     = "comment"
	KindTestComment = "test-comment"
)

// Document statuses.
const (
	StatusWritten = "written"
	StatusPartial = "partial"
	StatusPruned  = "pruned"
)

type Run struct {
	ID         string
	Kind       string
	StartedAt  time.Time
	FinishedAt *time.Time
	Documents  int
	Markers    int
	Failures   int
}

type Document struct {
	Path      string
	Source    string
	Kind      string
	Status    string
	WrittenAt time.Time
	RunID     *string
}

type MarkerRow struct {
	Marker   string
	Document string
	Kind     string
}
