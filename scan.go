package tracemark

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/jward/tracemark/internal/store"
)

// Phase is the position of the scanner in its cycle.
type Phase int

const (
	PhaseReset       Phase = -1
	PhaseIdle        Phase = 0
	PhaseEnumerate   Phase = 1
	PhaseKnown       Phase = 2
	PhaseApplication Phase = 3
	PhaseTests       Phase = 4
	PhasePrune       Phase = 5
)

func (p Phase) String() string {
	switch p {
	case PhaseReset:
		return "reset"
	case PhaseIdle:
		return "idle"
	case PhaseEnumerate:
		return "enumerate"
	case PhaseKnown:
		return "known"
	case PhaseApplication:
		return "application"
	case PhaseTests:
		return "tests"
	case PhasePrune:
		return "prune"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ScanState is the resumable state of the scanner. It is owned by a single
// caller and passed into every Step.
type ScanState struct {
	Phase      Phase
	AppChunks  [][]string
	TestChunks [][]string
	ChunkSize  int
	// Known holds the derived documents found in phase 2.
	Known []string
	// Links maps every derived document produced this cycle to its source.
	Links map[string]string

	run *store.Run
}

// NewScanState returns an idle state.
func NewScanState(chunkSize int) ScanState {
	return ScanState{Phase: PhaseIdle, ChunkSize: chunkSize, Links: make(map[string]string)}
}

// StepResult reports what one Step did.
type StepResult struct {
	Phase     Phase
	Files     int
	Written   int
	Skipped   int
	Pruned    int
	Failures  int
	CycleDone bool
	Err       error
}

func (r *StepResult) add(o StepResult) {
	r.Files += o.Files
	r.Written += o.Written
	r.Skipped += o.Skipped
	r.Pruned += o.Pruned
	r.Failures += o.Failures
}

// Scanner mirrors the source trees into derived comment documents one phase
// at a time.
type Scanner struct {
	e *Engine
}

// Scanner returns the engine's scanner.
func (e *Engine) Scanner() *Scanner {
	return &Scanner{e: e}
}

// Step performs the work of st.Phase and returns the next state.
func (s *Scanner) Step(ctx context.Context, st ScanState) (ScanState, StepResult) {
	e := s.e
	res := StepResult{Phase: st.Phase}
	if err := e.cfg.ValidateScan(); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrUnconfigured, err)
		return st, res
	}
	if err := e.folders.Ensure(e.docs); err != nil {
		res.Err = err
		return st, res
	}
	if st.Links == nil {
		st.Links = make(map[string]string)
	}
	if st.ChunkSize <= 0 {
		st.ChunkSize = e.cfg.GroupBySize
	}

	next := st.Phase + 1
	switch st.Phase {
	case PhaseEnumerate:
		st.run = e.beginRun(store.RunScan)
		app := s.sourceFiles(e.cfg.ApplicationPath)
		tests := s.sourceFiles(e.cfg.UnitTestPath)
		st.AppChunks = chunk(app, st.ChunkSize)
		st.TestChunks = chunk(tests, st.ChunkSize)
		res.Files = len(app) + len(tests)
		e.logger.Info("enumerated sources", "phase", st.Phase,
			"application", len(app), "tests", len(tests))

	case PhaseKnown:
		st.Known = append(e.listDocs(e.folders.Comments), e.listDocs(e.folders.TestComments)...)

	case PhaseApplication:
		var files []string
		if st.AppChunks, files = popChunk(st.AppChunks); files != nil {
			res.add(s.scanChunk(ctx, &st, files, e.cfg.ApplicationPath, e.folders.Comments, store.KindComment))
			next = PhaseApplication
		}

	case PhaseTests:
		var files []string
		if st.TestChunks, files = popChunk(st.TestChunks); files != nil {
			res.add(s.scanChunk(ctx, &st, files, e.cfg.UnitTestPath, e.folders.TestComments, store.KindTestComment))
			next = PhaseTests
		}

	case PhasePrune:
		res.Pruned, res.Failures = s.prune(st)
		clear(st.Links)
		st.Known = nil
		if st.run != nil {
			st.run.Documents += res.Pruned
			st.run.Failures += res.Failures
			e.finishRun(st.run)
			st.run = nil
		}
		res.CycleDone = true
		next = PhaseReset + 1
	}

	if st.run != nil {
		st.run.Documents += res.Written
		st.run.Failures += res.Failures
	}
	st.Phase = next
	return st, res
}

// Cycle runs one complete enumerate-to-prune cycle from a fresh state.
func (s *Scanner) Cycle(ctx context.Context) (StepResult, error) {
	st := NewScanState(s.e.cfg.GroupBySize)
	st.Phase = PhaseEnumerate
	total := StepResult{Phase: PhaseEnumerate}
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var res StepResult
		st, res = s.Step(ctx, st)
		if res.Err != nil {
			return total, res.Err
		}
		total.add(res)
		if res.CycleDone {
			total.Phase = res.Phase
			total.CycleDone = true
			return total, nil
		}
	}
}

// sourceFiles lists the files below root carrying the application extension.
func (s *Scanner) sourceFiles(root string) []string {
	paths, err := s.e.sources.List(root)
	if err != nil {
		s.e.logger.Warn("list sources", "path", root, "error", err)
		return nil
	}
	var out []string
	for _, p := range paths {
		if strings.HasSuffix(p, s.e.cfg.ApplicationExtension) {
			out = append(out, p)
		}
	}
	return out
}

// scanChunk derives the document of every file, records the links, then
// refreshes the documents concurrently.
func (s *Scanner) scanChunk(ctx context.Context, st *ScanState, files []string, root, folder, kind string) StepResult {
	targets := make(map[string]string, len(files))
	for _, src := range files {
		doc := path.Join(folder, DocumentName(src, root, s.e.cfg.ApplicationExtension))
		st.Links[doc] = src
		targets[src] = doc
	}

	var runID *string
	if st.run != nil {
		runID = &st.run.ID
	}
	results := settle(ctx, s.e.workers, files, func(ctx context.Context, src string) (outcome, error) {
		return s.e.refresh(ctx, targets[src], src, kind, runID)
	})

	res := StepResult{Files: len(files)}
	for _, r := range results {
		if r.Err != nil {
			s.e.logger.Warn("scan file", "source", r.Path, "error", r.Err)
			res.Failures++
			continue
		}
		switch r.Value {
		case outcomeWritten, outcomePartial:
			res.Written++
		default:
			res.Skipped++
		}
	}
	return res
}

// prune removes known documents that no source produced this cycle.
func (s *Scanner) prune(st ScanState) (pruned, failed int) {
	for _, doc := range st.Known {
		if _, ok := st.Links[doc]; ok {
			continue
		}
		if err := s.e.docs.Remove(doc); err != nil {
			s.e.logger.Warn("prune document", "path", doc, "error", err)
			failed++
			continue
		}
		s.e.logger.Info("pruned orphan", "path", doc)
		kind := store.KindComment
		if strings.HasPrefix(doc, s.e.folders.TestComments+"/") {
			kind = store.KindTestComment
		}
		s.e.recordDocument(doc, "", kind, store.StatusPruned, st.run)
		pruned++
	}
	return pruned, failed
}

// DocumentName derives the dotted document name of a source file: the root
// prefix is stripped, the extension becomes .md and separators become dots.
//
//	DocumentName("/src/com/acme/App.java", "/src", ".java") == "com.acme.App.md"
func DocumentName(source, root, ext string) string {
	rel := filepath.ToSlash(source)
	root = strings.TrimSuffix(filepath.ToSlash(root), "/")
	rel = strings.TrimPrefix(rel, root+"/")
	rel = strings.TrimSuffix(rel, ext) + ".md"
	return strings.ReplaceAll(rel, "/", ".")
}

// chunk partitions files into groups of at most size, in order.
func chunk(files []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(files); i += size {
		chunks = append(chunks, files[i:min(i+size, len(files))])
	}
	return chunks
}

// popChunk takes the last chunk. Processing order is last-enumerated first.
func popChunk(chunks [][]string) ([][]string, []string) {
	if len(chunks) == 0 {
		return chunks, nil
	}
	n := len(chunks) - 1
	return chunks[:n], chunks[n]
}
