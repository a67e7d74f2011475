package tracemark

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/jward/tracemark/internal/store"
)

// outcome is what refresh did with one derived document.
type outcome int

const (
	outcomeMissing outcome = iota // source gone, nothing touched
	outcomeCurrent                // document newer than or as new as source
	outcomeWritten
	outcomePartial // written from partial lexer output
)

// placeholder is written when the lexer fails before producing any output.
const placeholder = "NONE"

// abser is implemented by stores that can report a filesystem path.
type abser interface {
	Abs(p string) string
}

// refresh rewrites doc from source when doc is missing or older than source.
func (e *Engine) refresh(ctx context.Context, doc, source, kind string, runID *string) (outcome, error) {
	ok, err := e.sources.Exists(source)
	if err != nil {
		return outcomeMissing, fmt.Errorf("check source: %w", err)
	}
	if !ok {
		e.logger.Info("source file gone", "source", source)
		return outcomeMissing, nil
	}

	created := false
	ok, err = e.docs.Exists(doc)
	if err != nil {
		return outcomeMissing, fmt.Errorf("check document: %w", err)
	}
	if !ok {
		if err := e.docs.Write(doc, ""); err != nil {
			return outcomeMissing, fmt.Errorf("create document: %w", err)
		}
		created = true
	}

	if !created {
		srcMod, err := e.sources.Stat(source)
		if err != nil {
			return outcomeMissing, fmt.Errorf("stat source: %w", err)
		}
		docMod, err := e.docs.Stat(doc)
		if err != nil {
			return outcomeMissing, fmt.Errorf("stat document: %w", err)
		}
		if !docMod.Before(srcMod) {
			return outcomeCurrent, nil
		}
	}

	text, err := e.sources.Read(source)
	if err != nil {
		return outcomeMissing, fmt.Errorf("read source: %w", err)
	}

	result := outcomeWritten
	comments, lexErr := e.lexer.Lex(ctx, source, []byte(text))
	if lexErr != nil {
		e.logger.Warn("lexer failed, writing partial output", "source", source, "error", lexErr)
		result = outcomePartial
		if comments == "" {
			comments = placeholder
		}
	}
	if e.transform != nil {
		out, err := e.transform.Apply(ctx, source, comments)
		if err != nil {
			e.logger.Warn("transform failed, writing untransformed text", "source", source, "error", err)
		}
		comments = out
	}

	abs := e.absSource(source)
	if err := e.docs.Write(doc, SourceHeader(abs)+comments); err != nil {
		return outcomeMissing, fmt.Errorf("write document: %w", err)
	}

	status := store.StatusWritten
	if result == outcomePartial {
		status = store.StatusPartial
	}
	e.recordDocumentRun(doc, abs, kind, status, runID)
	e.logger.Debug("wrote document", "path", doc, "source", source, "created", created)
	return result, nil
}

// SourceHeader is the first block of every derived document.
func SourceHeader(absSource string) string {
	return "[Source](file://" + absSource + ")\n\n---\n"
}

func (e *Engine) absSource(source string) string {
	if a, ok := e.sources.(abser); ok {
		p := a.Abs(source)
		if abs, err := filepath.Abs(p); err == nil {
			return filepath.ToSlash(abs)
		}
		return filepath.ToSlash(p)
	}
	return path.Join("/", source)
}

func (e *Engine) recordDocument(doc, source, kind, status string, run *store.Run) {
	var runID *string
	if run != nil {
		runID = &run.ID
	}
	e.recordDocumentRun(doc, source, kind, status, runID)
}

func (e *Engine) recordDocumentRun(doc, source, kind, status string, runID *string) {
	if e.ledger == nil {
		return
	}
	d := &store.Document{
		Path:      doc,
		Source:    source,
		Kind:      kind,
		Status:    status,
		WrittenAt: time.Now(),
		RunID:     runID,
	}
	if err := e.ledger.RecordDocument(d); err != nil {
		e.logger.Warn("ledger record document", "path", doc, "error", err)
	}
}
