package vault

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]FileStore {
	t.Helper()
	return map[string]FileStore{
		"disk":   NewDisk(t.TempDir()),
		"memory": NewMemory(),
	}
}

func TestFileStore_WriteReadExists(t *testing.T) {
	t.Parallel()
	for name, fs := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fs.Write("/docs/comments/a.md", "hello"))

			got, err := fs.Read("docs/comments/a.md")
			require.NoError(t, err)
			assert.Equal(t, "hello", got)

			ok, err := fs.Exists("docs/comments/a.md")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = fs.Exists("docs/comments")
			require.NoError(t, err)
			assert.True(t, ok, "parent folder created by write")

			ok, err = fs.Exists("docs/missing.md")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestFileStore_ReadMissing(t *testing.T) {
	t.Parallel()
	for name, fs := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := fs.Read("nope.md")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotExist))

			_, err = fs.Stat("nope.md")
			assert.True(t, errors.Is(err, ErrNotExist))
		})
	}
}

func TestFileStore_ListRecursiveSorted(t *testing.T) {
	t.Parallel()
	for name, fs := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fs.Write("d/z.md", ""))
			require.NoError(t, fs.Write("d/sub/b.md", ""))
			require.NoError(t, fs.Write("d/a.md", ""))
			require.NoError(t, fs.Write("other/x.md", ""))

			got, err := fs.List("d")
			require.NoError(t, err)
			assert.Equal(t, []string{"d/a.md", "d/sub/b.md", "d/z.md"}, got)
		})
	}
}

func TestFileStore_ListEmptyFolder(t *testing.T) {
	t.Parallel()
	for name, fs := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fs.Mkdir("empty/deep"))
			got, err := fs.List("empty")
			require.NoError(t, err)
			assert.Empty(t, got)

			_, err = fs.List("absent")
			assert.True(t, errors.Is(err, ErrNotExist))
		})
	}
}

func TestFileStore_RemoveAndRmdir(t *testing.T) {
	t.Parallel()
	for name, fs := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fs.Write("s/a/one.md", "1"))
			require.NoError(t, fs.Write("s/two.md", "2"))

			require.NoError(t, fs.Remove("s/two.md"))
			ok, _ := fs.Exists("s/two.md")
			assert.False(t, ok)

			assert.Error(t, fs.Rmdir("s", false), "non-empty folder needs recursive")
			require.NoError(t, fs.Rmdir("s", true))
			ok, _ = fs.Exists("s")
			assert.False(t, ok)
			ok, _ = fs.Exists("s/a/one.md")
			assert.False(t, ok)
		})
	}
}

func TestMemory_ModTimesStrictlyIncrease(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	require.NoError(t, m.Write("a", ""))
	require.NoError(t, m.Write("b", ""))
	ta, err := m.Stat("a")
	require.NoError(t, err)
	tb, err := m.Stat("b")
	require.NoError(t, err)
	assert.True(t, ta.Before(tb))

	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	m.SetModTime("a", fixed)
	ta, _ = m.Stat("a")
	assert.Equal(t, fixed, ta)
}

func TestMemory_FailRead(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	require.NoError(t, m.Write("a.md", "x"))
	boom := errors.New("boom")
	m.FailRead("/a.md", boom)
	_, err := m.Read("a.md")
	assert.ErrorIs(t, err, boom)
}

func TestDisk_EmptyRootUsesPathsAsGiven(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "A.java")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("class A {}"), 0o644))

	d := NewDisk("")
	got, err := d.List(filepath.Join(dir, "src"))
	require.NoError(t, err)
	assert.Equal(t, []string{src}, got)

	text, err := d.Read(src)
	require.NoError(t, err)
	assert.Equal(t, "class A {}", text)
}

func TestDisk_Abs(t *testing.T) {
	t.Parallel()
	d := NewDisk("/vault")
	assert.Equal(t, filepath.Join("/vault", "docs", "a.md"), d.Abs("/docs/a.md"))
	assert.Equal(t, "/vault", d.Root())
}
