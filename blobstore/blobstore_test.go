package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/direkte/internal/fs"
)

func stores(t *testing.T) map[string]BlobStore {
	return map[string]BlobStore{
		"local":  NewLocalStore(t.TempDir()),
		"memory": NewMemoryStore(),
	}
}

func put(t *testing.T, store BlobStore, name, body string) {
	t.Helper()
	_, err := Upload(context.Background(), store, name, strings.NewReader(body))
	require.NoError(t, err)
}

func get(t *testing.T, store BlobStore, name string) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := Download(context.Background(), store, name, &buf)
	require.NoError(t, err)
	return buf.String()
}

func TestBlobStore_CommitMakesVisible(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			w, err := store.Create(ctx, "orders/status.idx")
			require.NoError(t, err)
			_, err = w.Write([]byte("#IBIS"))
			require.NoError(t, err)

			_, err = store.Open(ctx, "orders/status.idx")
			assert.ErrorIs(t, err, ErrNotFound, "uncommitted blobs are invisible")

			require.NoError(t, w.Commit())
			assert.NoError(t, w.Abort(), "abort after commit is a no-op")
			_, err = w.Write([]byte("x"))
			assert.ErrorIs(t, err, ErrFinished)
			assert.ErrorIs(t, w.Commit(), ErrFinished)

			r, err := store.Open(ctx, "orders/status.idx")
			require.NoError(t, err)
			assert.Equal(t, int64(5), r.Size())
			body, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, "#IBIS", string(body))
		})
	}
}

func TestBlobStore_AbortKeepsPrevious(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			put(t, store, "status.idx", "v1")

			w, err := store.Create(ctx, "status.idx")
			require.NoError(t, err)
			_, err = w.Write([]byte("v2, half written"))
			require.NoError(t, err)
			require.NoError(t, w.Abort())

			assert.Equal(t, "v1", get(t, store, "status.idx"))
			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"status.idx"}, names)
		})
	}
}

func TestBlobStore_ListAndDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			put(t, store, "orders/status.idx", "a")
			put(t, store, "orders/region.idx", "b")
			put(t, store, "users/age.idx", "c")

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"orders/region.idx", "orders/status.idx", "users/age.idx"}, names)

			names, err = store.List(ctx, "orders/")
			require.NoError(t, err)
			assert.Equal(t, []string{"orders/region.idx", "orders/status.idx"}, names)

			require.NoError(t, store.Delete(ctx, "orders/region.idx"))
			require.NoError(t, store.Delete(ctx, "orders/region.idx"))
			_, err = store.Open(ctx, "orders/region.idx")
			assert.ErrorIs(t, err, ErrNotFound)

			names, err = store.List(ctx, "orders/")
			require.NoError(t, err)
			assert.Equal(t, []string{"orders/status.idx"}, names)
		})
	}
}

func TestUploadDownload(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			data := bytes.Repeat([]byte("direkte"), 4096)

			n, err := Upload(ctx, store, "big.idx", bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, int64(len(data)), n)

			var got bytes.Buffer
			n, err = Download(ctx, store, "big.idx", &got)
			require.NoError(t, err)
			assert.Equal(t, int64(len(data)), n)
			assert.Equal(t, data, got.Bytes())

			put(t, store, "empty.idx", "")
			assert.Empty(t, get(t, store, "empty.idx"))

			_, err = Download(ctx, store, "missing.idx", &got)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

type failingReader struct{ left int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.left == 0 {
		return 0, errors.New("source failed")
	}
	n := min(r.left, len(p))
	r.left -= n
	return n, nil
}

func TestUpload_FailureAborts(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := Upload(ctx, store, "partial.idx", &failingReader{left: 100})
			require.Error(t, err)
			_, err = store.Open(ctx, "partial.idx")
			assert.ErrorIs(t, err, ErrNotFound)

			canceled, cancel := context.WithCancel(ctx)
			cancel()
			_, err = Upload(canceled, store, "canceled.idx", strings.NewReader("abc"))
			assert.ErrorIs(t, err, context.Canceled)

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, names)
		})
	}
}

type truncatingStore struct{ *MemoryStore }

type shortReader struct{ Reader }

func (shortReader) Size() int64 { return 1 << 10 }

func (s truncatingStore) Open(ctx context.Context, name string) (Reader, error) {
	r, err := s.MemoryStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return shortReader{r}, nil
}

func TestDownload_Short(t *testing.T) {
	store := truncatingStore{NewMemoryStore()}
	put(t, store, "status.idx", "#IBIS")

	var buf bytes.Buffer
	n, err := Download(context.Background(), store, "status.idx", &buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, int64(5), n)
}

func TestLocalStore_PartFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	w, err := store.Create(ctx, "status.idx")
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), partSuffix))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Commit())
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "status.idx", entries[0].Name())
}

func TestLocalStore_Faults(t *testing.T) {
	tests := []struct {
		name  string
		fault fs.Fault
	}{
		{"Write", fs.Fault{Ops: fs.OpWrite, After: 3}},
		{"Sync", fs.Fault{Ops: fs.OpSync}},
		{"Close", fs.Fault{Ops: fs.OpClose}},
		{"Rename", fs.Fault{Ops: fs.OpRename}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			faulty := fs.NewFaultyFS(nil)
			store := NewLocalStoreFS(faulty, dir, true)
			put(t, store, "status.idx", "v1")

			faulty.Inject(partSuffix, tt.fault)
			_, err := Upload(context.Background(), store, "status.idx", strings.NewReader("version two"))
			assert.ErrorIs(t, err, fs.ErrInjected)

			assert.Equal(t, "v1", get(t, store, "status.idx"))
			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Len(t, entries, 1, "part files are removed")
			assert.Equal(t, "status.idx", entries[0].Name())
		})
	}
}

func TestLocalStore_MissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "absent"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
