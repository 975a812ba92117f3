package filemanager

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/direkte/codec"
	"github.com/hupe1980/direkte/internal/fs"
	"github.com/hupe1980/direkte/internal/resource"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestManager_SharesStorage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.idx", []byte("hello"))
	m := New()
	defer m.Close()

	s1, err := m.GetFile(t.Context(), path)
	require.NoError(t, err)
	s2, err := m.GetFile(t.Context(), path)
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Equal(t, []byte("hello"), s1.Bytes())
	assert.False(t, s1.Mapped())
	assert.Equal(t, int32(3), s1.Refs())

	st := m.Stats()
	assert.Equal(t, int64(1), st.Loads)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(5), st.HeapBytes)

	require.NoError(t, s1.Release())
	require.NoError(t, s2.Release())
	assert.Equal(t, int32(1), s1.Refs())
}

func TestManager_Mmap(t *testing.T) {
	data := bytes.Repeat([]byte{7}, 4096)
	path := writeFile(t, t.TempDir(), "big.idx", data)
	m := New(WithMinMapSize(1024))
	defer m.Close()

	s, err := m.GetFile(t.Context(), path)
	require.NoError(t, err)
	defer s.Release()

	assert.True(t, s.Mapped())
	assert.Equal(t, data, s.Bytes())
	assert.Equal(t, int64(4096), m.Stats().MappedBytes)
}

func TestManager_FlushKeepsSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.idx", []byte("old"))
	m := New()
	defer m.Close()

	old, err := m.GetFile(t.Context(), path)
	require.NoError(t, err)

	// Replace the file the way a writer does: new inode, then rename.
	tmp := writeFile(t, dir, "a.idx.tmp", []byte("new!"))
	require.NoError(t, os.Rename(tmp, path))
	require.NoError(t, m.Flush(path))
	assert.False(t, m.Contains(path))

	assert.Equal(t, []byte("old"), old.Bytes())
	assert.Equal(t, int32(1), old.Refs())

	fresh, err := m.GetFile(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("new!"), fresh.Bytes())
	assert.NotEqual(t, old.ID(), fresh.ID())

	assert.Equal(t, int64(2), m.Stats().Live)
	require.NoError(t, old.Release())
	assert.Equal(t, int64(1), m.Stats().Live)
	assert.Nil(t, old.Bytes())
	assert.False(t, old.Acquire())
	require.NoError(t, fresh.Release())
}

func TestManager_FlushUnused(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.idx", []byte("abc"))
	m := New()
	defer m.Close()

	s, err := m.GetFile(t.Context(), path)
	require.NoError(t, err)
	require.NoError(t, s.Release())

	require.NoError(t, m.Flush(path))
	assert.Equal(t, int64(0), m.Stats().Live)
	assert.Equal(t, int64(0), m.Stats().HeapBytes)
	require.NoError(t, m.Flush(path))
}

func TestManager_ReloadsChangedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.col", []byte("000111"))
	m := New()
	defer m.Close()

	first, err := m.GetFile(t.Context(), path)
	require.NoError(t, err)

	// Grown in place, as a column file is when rows are appended.
	writeFile(t, dir, "a.col", []byte("0001112222"))
	grown, err := m.GetFile(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("0001112222"), grown.Bytes())
	assert.NotEqual(t, first.ID(), grown.ID())
	assert.Equal(t, []byte("000111"), first.Bytes(), "holders keep their snapshot")
	require.NoError(t, first.Release())
	require.NoError(t, grown.Release())

	// Rewritten at the same length under an older timestamp.
	writeFile(t, dir, "a.col", []byte("9999999999"))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))
	same, err := m.GetFile(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("9999999999"), same.Bytes())
	require.NoError(t, same.Release())

	// Unchanged: served from the linked storage.
	again, err := m.GetFile(t.Context(), path)
	require.NoError(t, err)
	assert.Same(t, same, again)
	require.NoError(t, again.Release())

	st := m.Stats()
	assert.Equal(t, int64(3), st.Loads)
	assert.Equal(t, int64(2), st.Stale)
	assert.Equal(t, int64(1), st.Live)

	require.NoError(t, os.Remove(path))
	_, err = m.GetFile(t.Context(), path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, m.Contains(path))
}

func TestManager_ConcurrentLoads(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.idx", []byte("shared"))
	m := New()
	defer m.Close()

	const n = 16
	got := make([]*Storage, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.GetFile(t.Context(), path)
			if assert.NoError(t, err) {
				got[i] = s
			}
		}()
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, int64(1), m.Stats().Loads)
	assert.Equal(t, int32(n+1), got[0].Refs())
	for _, s := range got {
		require.NoError(t, s.Release())
	}
}

func TestManager_MemoryBudgetFallsBackToMmap(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.idx", []byte("0123456789"))
	budget := resource.New(resource.Limits{HeapBytes: 4})
	m := New(WithBudget(budget))
	defer m.Close()

	s, err := m.GetFile(t.Context(), path)
	require.NoError(t, err)
	defer s.Release()

	assert.True(t, s.Mapped())
	assert.Equal(t, int64(0), budget.HeapInUse())
}

func TestManager_HeapChargesBudget(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.idx", []byte("0123456789"))
	budget := resource.New(resource.Limits{HeapBytes: 100})
	m := New(WithBudget(budget), WithoutMmap())

	s, err := m.GetFile(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(10), budget.HeapInUse())

	require.NoError(t, s.Release())
	require.NoError(t, m.Close())
	assert.Equal(t, int64(0), budget.HeapInUse())

	_, err = m.GetFile(t.Context(), path)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_Compressed(t *testing.T) {
	data := bytes.Repeat([]byte("abcd"), 1000)
	dir := t.TempDir()
	for _, c := range []codec.Compression{codec.Zstd, codec.LZ4} {
		packed, err := codec.Compress(c, data)
		require.NoError(t, err)
		path := writeFile(t, dir, "col"+c.Ext(), packed)

		m := New(WithMinMapSize(1))
		s, err := m.GetFile(t.Context(), path)
		require.NoError(t, err)
		assert.False(t, s.Mapped())
		assert.Equal(t, data, s.Bytes())
		require.NoError(t, s.Release())
		require.NoError(t, m.Close())
	}
}

func TestManager_Errors(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()

	_, err := m.GetFile(t.Context(), filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = m.GetFile(t.Context(), dir)
	assert.Error(t, err)

	path := writeFile(t, dir, "a.idx", []byte("abc"))
	ffs := fs.NewFaultyFS(nil)
	ffs.Inject("a.idx", fs.Fault{Ops: fs.OpOpen})
	faulty := New(WithFileSystem(ffs))
	defer faulty.Close()
	_, err = faulty.GetFile(t.Context(), path)
	assert.ErrorIs(t, err, fs.ErrInjected)
}
