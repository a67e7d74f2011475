package tracemark

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/tracemark/internal/marker"
	"github.com/jward/tracemark/internal/store"
)

// SolutionReport summarizes one solution rebuild.
type SolutionReport struct {
	// Documents lists the written solution documents, sorted.
	Documents []string
	Markers   int
	Failures  int
}

// link is a transclusion target: the document holding a marker.
type link struct {
	doc    string
	marker string
}

func (l link) String() string {
	return "![[" + l.doc + "#" + l.marker + "]]"
}

// markerMaps holds the per-run marker indexes. They are rebuilt from the
// documents on every run and never persisted.
type markerMaps struct {
	docMarkers     map[string][]string // comment document -> markers
	testDocMarkers map[string][]string // test-comment document -> markers
	commentDoc     map[string]string   // marker -> comment document
	testDoc        map[string]string   // marker -> test-comment document
	storyDoc       map[string]string   // marker -> story document
	testStory      map[string][]link   // story marker -> test-story links
}

// BuildSolutions regenerates every solution document from the current
// comment, test-comment and story documents.
//
// The solution folder is emptied and recreated first. Readers of that folder
// observe it empty while the rebuild runs; builders in this process are
// serialized.
func (e *Engine) BuildSolutions(ctx context.Context) (*SolutionReport, error) {
	if err := e.cfg.ValidateDocs(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnconfigured, err)
	}
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	if err := e.folders.Ensure(e.docs); err != nil {
		return nil, err
	}
	run := e.beginRun(store.RunSolutions)
	defer e.finishRun(run)

	if err := e.clearSolutions(); err != nil {
		return nil, err
	}

	maps, failed := e.collectMarkers(ctx)
	report := &SolutionReport{Failures: failed}

	groups := groupBy(flatten(maps.docMarkers), func(m string) string {
		return marker.SolutionPath(e.folders.Solutions, m)
	})
	tests := groupBy(flatten(maps.testDocMarkers), func(m string) string {
		return marker.DropRight(m, 2)
	})

	for _, solPath := range sortedKeys(groups) {
		markers := groups[solPath]
		text := renderSolution(solPath, markers, maps, tests)
		target := strings.TrimPrefix(solPath, "/")
		if err := e.docs.Write(target, text); err != nil {
			e.logger.Warn("write solution", "path", target, "error", err)
			report.Failures++
			continue
		}
		report.Documents = append(report.Documents, target)
		report.Markers += len(markers)
	}

	if run != nil {
		run.Documents = len(report.Documents)
		run.Markers = report.Markers
		run.Failures = report.Failures
	}
	e.logger.Info("built solutions", "documents", len(report.Documents),
		"markers", report.Markers, "failures", report.Failures)
	return report, nil
}

// clearSolutions removes every solution document, then the folder itself,
// and recreates it empty.
func (e *Engine) clearSolutions() error {
	dir := e.folders.Solutions
	for _, p := range e.listDocs(dir) {
		if err := e.docs.Remove(p); err != nil {
			e.logger.Warn("remove solution", "path", p, "error", err)
		}
	}
	if err := e.docs.Rmdir(dir, true); err != nil {
		e.logger.Debug("remove solution folder", "path", dir, "error", err)
	}
	if err := e.docs.Mkdir(dir); err != nil {
		return fmt.Errorf("recreate solution folder: %w", err)
	}
	return nil
}

// collectMarkers reads all input documents and builds the marker maps.
// Unreadable documents are dropped and counted.
func (e *Engine) collectMarkers(ctx context.Context) (markerMaps, int) {
	m := markerMaps{
		docMarkers:     make(map[string][]string),
		testDocMarkers: make(map[string][]string),
		commentDoc:     make(map[string]string),
		testDoc:        make(map[string]string),
		storyDoc:       make(map[string]string),
		testStory:      make(map[string][]link),
	}

	read := func(folder string) ([]Result[[]string], int) {
		results := settle(ctx, e.workers, e.listDocs(folder), e.markersOf)
		return Succeeded(results, e.logger), failures(results)
	}

	comments, f1 := read(e.folders.Comments)
	testComments, f2 := read(e.folders.TestComments)
	stories, f3 := read(e.folders.Stories)
	testStories, f4 := read(e.folders.UnitTests)

	// Results arrive in sorted path order, so the lexically last document
	// wins for duplicate markers.
	for _, r := range comments {
		m.docMarkers[r.Path] = r.Value
		for _, mk := range r.Value {
			m.commentDoc[mk] = r.Path
		}
	}
	for _, r := range testComments {
		m.testDocMarkers[r.Path] = r.Value
		for _, mk := range r.Value {
			m.testDoc[mk] = r.Path
		}
	}
	for _, r := range stories {
		for _, mk := range r.Value {
			m.storyDoc[mk] = r.Path
		}
	}
	for _, r := range testStories {
		for _, mk := range r.Value {
			if !marker.IsTest(mk) {
				continue
			}
			story := marker.DropRight(mk, 4)
			m.testStory[story] = append(m.testStory[story], link{doc: r.Path, marker: mk})
		}
	}
	return m, f1 + f2 + f3 + f4
}

// renderSolution builds the body of one solution document.
func renderSolution(solPath string, markers []string, maps markerMaps, tests map[string][]string) string {
	var b strings.Builder
	b.WriteString(marker.Heading(solPath))
	b.WriteString("\n")

	first := markers[0]
	b.WriteString("## Functional Requirement\n")
	for _, story := range sortedKeys(maps.storyDoc) {
		if strings.HasPrefix(first, marker.DropRight(story, 1)) {
			b.WriteString(link{doc: maps.storyDoc[story], marker: story}.String())
			b.WriteString("\n")
		}
	}
	for _, story := range sortedKeys(maps.testStory) {
		if !strings.HasPrefix(first, marker.DropRight(story, 1)) {
			continue
		}
		for _, l := range maps.testStory[story] {
			b.WriteString(l.String())
			b.WriteString("\n")
		}
	}

	for _, mk := range unique(markers) {
		b.WriteString("## Implementation Solution\n")
		doc, ok := maps.commentDoc[mk]
		if !ok {
			continue
		}
		b.WriteString(link{doc: doc, marker: mk}.String())
		b.WriteString("\n")

		unitTests, ok := tests[mk]
		if !ok {
			continue
		}
		b.WriteString("### Unit Test Implementation\n")
		for _, t := range unique(unitTests) {
			if !marker.IsTest(t) {
				continue
			}
			b.WriteString(link{doc: maps.testDoc[t], marker: t}.String())
			b.WriteString("\n")
		}
	}
	return b.String()
}

// flatten concatenates every marker list and sorts the result.
func flatten(byDoc map[string][]string) []string {
	var all []string
	for _, doc := range sortedKeys(byDoc) {
		all = append(all, byDoc[doc]...)
	}
	sort.Strings(all)
	return all
}

// groupBy groups values by key, keeping their order within each group.
func groupBy(values []string, key func(string) string) map[string][]string {
	groups := make(map[string][]string)
	for _, v := range values {
		k := key(v)
		groups[k] = append(groups[k], v)
	}
	return groups
}

// unique drops repeats from a sorted list.
func unique(sorted []string) []string {
	var out []string
	for i, v := range sorted {
		if i > 0 && sorted[i-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
