package tracemark

import (
	"context"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tracemark/internal/lexer"
	"github.com/jward/tracemark/internal/runtime"
	"github.com/jward/tracemark/internal/slogutil"
	"github.com/jward/tracemark/internal/store"
)

const appSource = `package com.acme;

/**
 * Application entry. ^JIRA1-001-solution-001
 */
public class App {
    String s = "/** not a comment */";
}
`

var errLexFailed = errors.New("lex failed")

// failingLexer fails on the files named in partial, returning the mapped text
// as partial output. Other files go through the rules lexer.
type failingLexer struct {
	partial map[string]string
}

func (f failingLexer) Lex(ctx context.Context, p string, src []byte) (string, error) {
	if out, ok := f.partial[path.Base(p)]; ok {
		return out, errLexFailed
	}
	return lexer.NewRules().Lex(ctx, p, src)
}

// step advances st once and fails the test on a step error.
func step(t *testing.T, s *Scanner, st ScanState) (ScanState, StepResult) {
	t.Helper()
	st, res := s.Step(context.Background(), st)
	require.NoError(t, res.Err)
	return st, res
}

// =============================================================================
// Document names
// =============================================================================

func TestDocumentName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		source, root, ext, want string
	}{
		{"/src/com/acme/App.java", "/src", ".java", "com.acme.App.md"},
		{"/src/com/acme/App.java", "/src/", ".java", "com.acme.App.md"},
		{"src/main/App.java", "src/main", ".java", "App.md"},
		{"src/main/a/b/c/Deep.kt", "src/main", ".kt", "a.b.c.Deep.md"},
		{"other/App.java", "src/main", ".java", "other.App.md"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DocumentName(tt.source, tt.root, tt.ext), tt.source)
	}
}

func TestChunkAndPop(t *testing.T) {
	t.Parallel()
	chunks := chunk([]string{"a", "b", "c", "d", "e"}, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunks)

	chunks, got := popChunk(chunks)
	assert.Equal(t, []string{"e"}, got, "last enumerated chunk first")
	chunks, got = popChunk(chunks)
	assert.Equal(t, []string{"c", "d"}, got)
	chunks, _ = popChunk(chunks)
	_, got = popChunk(chunks)
	assert.Nil(t, got)
	assert.Nil(t, chunk(nil, 3))
}

// =============================================================================
// Phases
// =============================================================================

func TestStep_PhaseSequence(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	for _, p := range []string{"A", "B", "C"} {
		env.writeSource(t, "src/main/"+p+".java", "/** "+p+" */")
	}
	env.writeSource(t, "src/test/ATest.java", "/** t */")
	s := env.e.Scanner()

	st := NewScanState(2)
	var phases []Phase
	for range 10 {
		var res StepResult
		st, res = step(t, s, st)
		phases = append(phases, res.Phase)
		if res.CycleDone {
			break
		}
	}
	// idle, enumerate, known, two application chunks plus the empty check,
	// one test chunk plus the empty check, prune.
	assert.Equal(t, []Phase{
		PhaseIdle, PhaseEnumerate, PhaseKnown,
		PhaseApplication, PhaseApplication, PhaseApplication,
		PhaseTests, PhaseTests,
		PhasePrune,
	}, phases)
	assert.Equal(t, PhaseIdle, st.Phase, "reset then incremented")
	assert.Empty(t, st.Links)
}

func TestStep_ApplicationChunksAreLIFO(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	for _, p := range []string{"A", "B", "C"} {
		env.writeSource(t, "src/main/"+p+".java", "/** "+p+" */")
	}
	s := env.e.Scanner()

	st := NewScanState(2)
	st.Phase = PhaseEnumerate
	st, _ = step(t, s, st)
	require.Equal(t, [][]string{{"src/main/A.java", "src/main/B.java"}, {"src/main/C.java"}}, st.AppChunks)
	st, _ = step(t, s, st) // known

	st, res := step(t, s, st)
	assert.Equal(t, 1, res.Written)
	assert.True(t, env.docExists(t, "docs/comments/C.md"))
	assert.False(t, env.docExists(t, "docs/comments/A.md"))
	assert.Equal(t, PhaseApplication, st.Phase, "repeats while chunks remain")

	st, res = step(t, s, st)
	assert.Equal(t, 2, res.Written)
	assert.True(t, env.docExists(t, "docs/comments/A.md"))
	assert.Equal(t, PhaseApplication, st.Phase)

	st, res = step(t, s, st)
	assert.Zero(t, res.Files)
	assert.Equal(t, PhaseTests, st.Phase)
}

func TestStep_Unconfigured(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.ApplicationPath = "UNKNOWN"
	env := newTestEnvWithConfig(t, cfg)

	st := NewScanState(2)
	st.Phase = PhaseEnumerate
	next, res := env.e.Scanner().Step(context.Background(), st)
	assert.ErrorIs(t, res.Err, ErrUnconfigured)
	assert.Equal(t, PhaseEnumerate, next.Phase, "state unchanged")
	assert.False(t, env.docExists(t, "docs/comments"), "no I/O before validation")
}

func TestStep_EnsuresFolders(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	step(t, env.e.Scanner(), NewScanState(2))
	for _, dir := range env.e.Folders().All() {
		assert.True(t, env.docExists(t, dir), dir)
	}
}

// =============================================================================
// Cycle
// =============================================================================

func TestCycle_WritesDerivedDocuments(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.writeSource(t, "src/main/com/acme/App.java", appSource)
	env.writeSource(t, "src/test/com/acme/AppTest.java", "//bus ^JIRA1-001-solution-001-test-001 checks app\n")
	env.writeSource(t, "src/main/README.md", "ignored")

	res, err := env.e.Scanner().Cycle(context.Background())
	require.NoError(t, err)
	assert.True(t, res.CycleDone)
	assert.Equal(t, 2, res.Written)

	assert.Equal(t,
		"[Source](file:///src/main/com/acme/App.java)\n\n---\n\n Application entry. ^JIRA1-001-solution-001\n \n",
		env.readDoc(t, "docs/comments/com.acme.App.md"))
	assert.Equal(t,
		"[Source](file:///src/test/com/acme/AppTest.java)\n\n---\n ^JIRA1-001-solution-001-test-001 checks app\n",
		env.readDoc(t, "docs/test comments/com.acme.AppTest.md"))
	assert.False(t, env.docExists(t, "docs/comments/README.md"))
}

func TestCycle_StalenessByModTime(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	const src = "src/main/App.java"
	const doc = "docs/comments/App.md"
	env.writeSource(t, src, "/** v1 */")

	_, err := env.e.Scanner().Cycle(context.Background())
	require.NoError(t, err)
	require.Contains(t, env.readDoc(t, doc), " v1 ")

	// Source changes but the document is as new as the source: untouched.
	env.writeSource(t, src, "/** v2 */")
	docMod, err := env.docs.Stat(doc)
	require.NoError(t, err)
	env.src.SetModTime(src, docMod)
	_, err = env.e.Scanner().Cycle(context.Background())
	require.NoError(t, err)
	assert.Contains(t, env.readDoc(t, doc), " v1 ", "equal timestamps are up to date")

	// Source newer than the document: rewritten.
	env.src.SetModTime(src, docMod.Add(time.Second))
	res, err := env.e.Scanner().Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Contains(t, env.readDoc(t, doc), " v2 ")

	// Document newer than the source: untouched.
	env.writeSource(t, src, "/** v3 */")
	env.src.SetModTime(src, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	res, err = env.e.Scanner().Cycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Written)
	assert.Equal(t, 1, res.Skipped)
	assert.Contains(t, env.readDoc(t, doc), " v2 ")
}

func TestCycle_PrunesOrphans(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.writeSource(t, "src/main/Keep.java", "/** keep */")
	env.writeDoc(t, "docs/comments/Gone.md", "orphan")
	env.writeDoc(t, "docs/test comments/GoneTest.md", "orphan")

	res, err := env.e.Scanner().Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pruned)
	assert.False(t, env.docExists(t, "docs/comments/Gone.md"))
	assert.False(t, env.docExists(t, "docs/test comments/GoneTest.md"))
	assert.True(t, env.docExists(t, "docs/comments/Keep.md"))

	// Removing the source orphans its document on the next cycle.
	require.NoError(t, env.src.Remove("src/main/Keep.java"))
	res, err = env.e.Scanner().Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pruned)
	assert.False(t, env.docExists(t, "docs/comments/Keep.md"))
}

func TestStep_SourceGoneAfterEnumeration(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.writeSource(t, "src/main/Gone.java", "/** x */")
	s := env.e.Scanner()

	st := NewScanState(2)
	st.Phase = PhaseEnumerate
	st, _ = step(t, s, st)
	st, _ = step(t, s, st)
	require.NoError(t, env.src.Remove("src/main/Gone.java"))

	st, res := step(t, s, st)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failures)
	assert.False(t, env.docExists(t, "docs/comments/Gone.md"), "nothing written")
	assert.Contains(t, st.Links, "docs/comments/Gone.md")
}

func TestCycle_LexerFailureWritesPartialOutput(t *testing.T) {
	t.Parallel()
	lx := failingLexer{partial: map[string]string{"Bad.java": " a \n", "Empty.java": ""}}
	env := newTestEnv(t, WithLexer(lx))
	env.writeSource(t, "src/main/Bad.java", "/** a */ /** b */")
	env.writeSource(t, "src/main/Empty.java", "/** c */")

	res, err := env.e.Scanner().Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Zero(t, res.Failures)

	assert.Equal(t, "[Source](file:///src/main/Bad.java)\n\n---\n a \n", env.readDoc(t, "docs/comments/Bad.md"))
	assert.Equal(t, "[Source](file:///src/main/Empty.java)\n\n---\nNONE", env.readDoc(t, "docs/comments/Empty.md"))
}

func TestCycle_TransformRewritesComments(t *testing.T) {
	t.Parallel()
	rt := runtime.NewRuntime("", runtime.WithRuntimeLogger(slogutil.NewDiscardLogger()))
	tr := runtime.NewInlineTransformer(rt, `"<" + source_path + ">" + comments`)
	env := newTestEnv(t, WithTransform(tr))
	env.writeSource(t, "src/main/App.java", "/** x */")

	_, err := env.e.Scanner().Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "[Source](file:///src/main/App.java)\n\n---\n<src/main/App.java> x \n",
		env.readDoc(t, "docs/comments/App.md"))
}

func TestCycle_FailingTransformKeepsText(t *testing.T) {
	t.Parallel()
	rt := runtime.NewRuntime("", runtime.WithRuntimeLogger(slogutil.NewDiscardLogger()))
	tr := runtime.NewInlineTransformer(rt, `42`)
	env := newTestEnv(t, WithTransform(tr))
	env.writeSource(t, "src/main/App.java", "/** x */")

	_, err := env.e.Scanner().Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "[Source](file:///src/main/App.java)\n\n---\n x \n", env.readDoc(t, "docs/comments/App.md"))
}

func TestCycle_RecordsLedger(t *testing.T) {
	t.Parallel()
	ledger := newTestLedger(t)
	lx := failingLexer{partial: map[string]string{"Bad.java": ""}}
	env := newTestEnv(t, WithLedger(ledger), WithLexer(lx))
	env.writeSource(t, "src/main/App.java", "/** x */")
	env.writeSource(t, "src/main/Bad.java", "/** y */")
	env.writeDoc(t, "docs/comments/Gone.md", "orphan")

	_, err := env.e.Scanner().Cycle(context.Background())
	require.NoError(t, err)

	runs, err := ledger.RecentRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunScan, runs[0].Kind)
	assert.Equal(t, 3, runs[0].Documents, "two written, one pruned")
	require.NotNil(t, runs[0].FinishedAt)

	d, err := ledger.DocumentByPath("docs/comments/App.md")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "/src/main/App.java", d.Source)
	assert.Equal(t, store.StatusWritten, d.Status)
	require.NotNil(t, d.RunID)
	assert.Equal(t, runs[0].ID, *d.RunID)

	counts, err := ledger.DocumentCounts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		store.StatusWritten: 1,
		store.StatusPartial: 1,
		store.StatusPruned:  1,
	}, counts)
}
