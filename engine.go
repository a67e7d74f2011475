package tracemark

import (
	"context"
	"fmt"
	"log/slog"
	goruntime "runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jward/tracemark/internal/config"
	"github.com/jward/tracemark/internal/lexer"
	"github.com/jward/tracemark/internal/marker"
	"github.com/jward/tracemark/internal/runtime"
	"github.com/jward/tracemark/internal/slogutil"
	"github.com/jward/tracemark/internal/store"
	"github.com/jward/tracemark/internal/vault"
)

// Engine ties the configuration, the vault and the source tree together and
// runs the scanner and the builders against them.
type Engine struct {
	cfg     *config.Config
	folders Folders
	docs    vault.FileStore
	sources vault.FileStore
	logger  *slog.Logger
	lexer   lexer.Lexer
	ledger  *store.Store

	transform *runtime.Transformer
	cacheSize int
	cache     *lru.Cache[string, cachedMarkers]
	workers   int

	// buildMu serializes the builders; the solution folder is emptied and
	// refilled on every run.
	buildMu sync.Mutex
	running atomic.Bool
}

type cachedMarkers struct {
	mod     time.Time
	markers []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithLexer overrides the lexer selected by the configuration.
func WithLexer(lx lexer.Lexer) Option {
	return func(e *Engine) {
		e.lexer = lx
	}
}

// WithLedger records runs, documents and markers in s.
func WithLedger(s *store.Store) Option {
	return func(e *Engine) {
		e.ledger = s
	}
}

// WithTransform runs t over every extracted comment text before it is
// written.
func WithTransform(t *runtime.Transformer) Option {
	return func(e *Engine) {
		e.transform = t
	}
}

// WithMarkerCache memoizes the markers of up to size documents between
// builder runs. Entries are validated against the document's mod time.
func WithMarkerCache(size int) Option {
	return func(e *Engine) {
		e.cacheSize = size
	}
}

// WithWorkers bounds the number of files processed concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// New creates an Engine. docs is the notes vault the derived documents live
// in; sources reads the application and unit test trees.
func New(cfg *config.Config, docs, sources vault.FileStore, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	e := &Engine{
		docs:    docs,
		sources: sources,
		logger:  slogutil.NewDiscardLogger(),
		workers: goruntime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.apply(cfg)

	if e.cacheSize > 0 {
		c, err := lru.New[string, cachedMarkers](e.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("tracemark: create marker cache: %w", err)
		}
		e.cache = c
	}
	return e, nil
}

// NewLexer builds the lexer selected by cfg.
func NewLexer(cfg config.LexerConfig) lexer.Lexer {
	if cfg.Mode == "syntax" {
		return lexer.NewSyntax(cfg.LineTokens...)
	}
	return lexer.NewRules(cfg.LineTokens...)
}

func (e *Engine) apply(cfg *config.Config) {
	e.cfg = cfg
	e.folders = NewFolders(cfg.DocumentPath)
	if e.lexer == nil {
		e.lexer = NewLexer(cfg.Lexer)
	}
}

// Reconfigure swaps the configuration. It fails with ErrScannerRunning while
// a Scheduler is running.
func (e *Engine) Reconfigure(cfg *config.Config) error {
	if e.running.Load() {
		return ErrScannerRunning
	}
	e.lexer = nil
	e.apply(cfg)
	return nil
}

// Config returns the active configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Folders returns the document layout.
func (e *Engine) Folders() Folders { return e.folders }

// Ledger returns the ledger, or nil when none is configured.
func (e *Engine) Ledger() *store.Store { return e.ledger }

// Lexer returns the comment lexer in use.
func (e *Engine) Lexer() lexer.Lexer { return e.lexer }

// markersOf extracts the sorted markers of one vault document.
func (e *Engine) markersOf(_ context.Context, path string) ([]string, error) {
	var mod time.Time
	if e.cache != nil {
		m, err := e.docs.Stat(path)
		if err != nil {
			return nil, err
		}
		mod = m
		if c, ok := e.cache.Get(path); ok && c.mod.Equal(mod) {
			return c.markers, nil
		}
	}
	text, err := e.docs.Read(path)
	if err != nil {
		return nil, err
	}
	found := marker.Extract(text)
	if e.cache != nil {
		e.cache.Add(path, cachedMarkers{mod: mod, markers: found})
	}
	return found, nil
}

// listDocs returns the .md documents below folder. A missing folder is empty.
func (e *Engine) listDocs(folder string) []string {
	paths, err := e.docs.List(folder)
	if err != nil {
		e.logger.Debug("list folder", "folder", folder, "error", err)
		return nil
	}
	var out []string
	for _, p := range paths {
		if strings.HasSuffix(p, ".md") {
			out = append(out, p)
		}
	}
	return out
}

// beginRun opens a ledger run. Ledger failures are logged, never returned.
func (e *Engine) beginRun(kind string) *store.Run {
	if e.ledger == nil {
		return nil
	}
	r, err := e.ledger.BeginRun(kind)
	if err != nil {
		e.logger.Warn("ledger begin run", "kind", kind, "error", err)
		return nil
	}
	return r
}

func (e *Engine) finishRun(r *store.Run) {
	if e.ledger == nil || r == nil {
		return
	}
	if err := e.ledger.FinishRun(r); err != nil {
		e.logger.Warn("ledger finish run", "run", r.ID, "error", err)
	}
}
