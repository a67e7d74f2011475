package tracemark

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tracemark/internal/config"
	"github.com/jward/tracemark/internal/lexer"
	"github.com/jward/tracemark/internal/slogutil"
	"github.com/jward/tracemark/internal/store"
	"github.com/jward/tracemark/internal/vault"
)

type testEnv struct {
	e    *Engine
	cfg  *config.Config
	docs *vault.Memory
	src  *vault.Memory
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.DocumentPath = "docs"
	cfg.ApplicationPath = "src/main"
	cfg.UnitTestPath = "src/test"
	cfg.GroupBySize = 2
	cfg.ScanInterval = 5 * time.Millisecond
	return cfg
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testConfig(), opts...)
}

func newTestEnvWithConfig(t *testing.T, cfg *config.Config, opts ...Option) *testEnv {
	t.Helper()
	docs := vault.NewMemory()
	src := vault.NewMemory()
	e, err := New(cfg, docs, src, opts...)
	require.NoError(t, err)
	return &testEnv{e: e, cfg: cfg, docs: docs, src: src}
}

func newTestLedger(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func (env *testEnv) writeSource(t *testing.T, p, text string) {
	t.Helper()
	require.NoError(t, env.src.Write(p, text))
}

func (env *testEnv) writeDoc(t *testing.T, p, text string) {
	t.Helper()
	require.NoError(t, env.docs.Write(p, text))
}

func (env *testEnv) readDoc(t *testing.T, p string) string {
	t.Helper()
	text, err := env.docs.Read(p)
	require.NoError(t, err)
	return text
}

func (env *testEnv) docExists(t *testing.T, p string) bool {
	t.Helper()
	ok, err := env.docs.Exists(p)
	require.NoError(t, err)
	return ok
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	assert.IsType(t, &lexer.Rules{}, env.e.Lexer())
	assert.Nil(t, env.e.Ledger())
	assert.Nil(t, env.e.cache)
	assert.Equal(t, "docs/comments", env.e.Folders().Comments)
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	t.Parallel()
	e, err := New(nil, vault.NewMemory(), vault.NewMemory())
	require.NoError(t, err)
	assert.Equal(t, ".java", e.Config().ApplicationExtension)
}

func TestNew_SyntaxLexerFromConfig(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Lexer.Mode = "syntax"
	env := newTestEnvWithConfig(t, cfg)
	assert.IsType(t, &lexer.Syntax{}, env.e.Lexer())
}

func TestNew_Options(t *testing.T) {
	t.Parallel()
	lx := lexer.NewRules("//req")
	ledger := newTestLedger(t)
	env := newTestEnv(t, WithLexer(lx), WithLedger(ledger), WithMarkerCache(8), WithWorkers(3))

	assert.Same(t, lx, env.e.Lexer())
	assert.Same(t, ledger, env.e.Ledger())
	require.NotNil(t, env.e.cache)
	assert.Equal(t, 3, env.e.workers)
}

func TestReconfigure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	cfg := testConfig()
	cfg.DocumentPath = "notes"
	require.NoError(t, env.e.Reconfigure(cfg))
	assert.Equal(t, "notes/solutions", env.e.Folders().Solutions)

	env.e.running.Store(true)
	err := env.e.Reconfigure(testConfig())
	assert.ErrorIs(t, err, ErrScannerRunning)
	assert.Equal(t, "notes/solutions", env.e.Folders().Solutions, "state untouched")
}

// =============================================================================
// Folders
// =============================================================================

func TestFolders_Layout(t *testing.T) {
	t.Parallel()
	f := NewFolders("/vault/docs/")
	assert.Equal(t, []string{
		"vault/docs/stories",
		"vault/docs/solutions",
		"vault/docs/marker",
		"vault/docs/comments",
		"vault/docs/test comments",
		"vault/docs/unit tests",
	}, f.All())
	assert.Equal(t, "vault/docs/marker/marker-table.md", f.MarkerTable())
}

func TestFolders_Ensure(t *testing.T) {
	t.Parallel()
	m := vault.NewMemory()
	f := NewFolders("docs")
	require.NoError(t, f.Ensure(m))
	for _, dir := range f.All() {
		ok, err := m.Exists(dir)
		require.NoError(t, err)
		assert.True(t, ok, dir)
	}
	require.NoError(t, f.Ensure(m), "idempotent")
}

// =============================================================================
// Settle
// =============================================================================

func TestSettle_KeepsOrderAndFailures(t *testing.T) {
	t.Parallel()
	paths := []string{"a", "b", "c", "d", "e"}
	boom := errors.New("boom")

	results := settle(context.Background(), 3, paths, func(_ context.Context, p string) (string, error) {
		if p == "c" {
			return "", boom
		}
		return p + p, nil
	})

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}
	assert.ErrorIs(t, results[2].Err, boom)
	assert.Equal(t, 1, failures(results))

	ok := Succeeded(results, slogutil.NewDiscardLogger())
	require.Len(t, ok, 4)
	assert.Equal(t, "dd", ok[2].Value)
}

func TestSettle_Empty(t *testing.T) {
	t.Parallel()
	results := settle(context.Background(), 4, nil, func(context.Context, string) (int, error) {
		t.Fatal("must not be called")
		return 0, nil
	})
	assert.Empty(t, results)
}

func TestSettle_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := settle(ctx, 2, []string{"a", "b"}, func(context.Context, string) (int, error) {
		return 1, nil
	})
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

// =============================================================================
// Marker cache
// =============================================================================

func TestMarkerCache_ServesUnchangedDocuments(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, WithMarkerCache(16))
	env.writeDoc(t, "docs/comments/a.md", "x ^JIRA1-001-solution-001")

	got, err := env.e.markersOf(context.Background(), "docs/comments/a.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"^JIRA1-001-solution-001"}, got)

	// Reads now fail, but the mod time is unchanged: served from cache.
	env.docs.FailRead("docs/comments/a.md", errors.New("boom"))
	got, err = env.e.markersOf(context.Background(), "docs/comments/a.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"^JIRA1-001-solution-001"}, got)

	// A newer mod time invalidates the entry.
	env.docs.SetModTime("docs/comments/a.md", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err = env.e.markersOf(context.Background(), "docs/comments/a.md")
	require.Error(t, err)
}
