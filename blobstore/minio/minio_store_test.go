package minio

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/direkte/blobstore"
)

const listing = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
<Name>indexes</Name><Prefix>orders/</Prefix><KeyCount>2</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>
<Contents><Key>orders/status.idx</Key><Size>56</Size></Contents>
<Contents><Key>orders/archive/region.idx</Key><Size>72</Size></Contents>
</ListBucketResult>`

// fakeServer answers just enough of the S3 API for the store's read paths.
func fakeServer(t *testing.T) (*Store, func() []string) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch {
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/indexes/":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(listing))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	store, err := New(strings.TrimPrefix(srv.URL, "http://"), "indexes",
		WithCredentials("key", "secret"),
		WithRegion("us-east-1"),
		WithPrefix("/orders/"),
	)
	require.NoError(t, err)
	return store, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(seen)
	}
}

func TestStore_Keys(t *testing.T) {
	store := NewStore(nil, "indexes", "orders/")
	assert.Equal(t, "orders/status.idx", store.key("status.idx"))
	assert.Equal(t, "status.idx", store.name("orders/status.idx"))

	bare := NewStore(nil, "indexes", "")
	assert.Equal(t, "status.idx", bare.key("status.idx"))
	assert.Equal(t, "", bare.key(""))
}

func TestStore_OpenMissing(t *testing.T) {
	store, seen := fakeServer(t)
	_, err := store.Open(context.Background(), "status.idx")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	assert.Contains(t, seen(), "GET /indexes/orders/status.idx")
}

func TestStore_Delete(t *testing.T) {
	store, seen := fakeServer(t)
	require.NoError(t, store.Delete(context.Background(), "status.idx"))
	assert.Contains(t, seen(), "DELETE /indexes/orders/status.idx")
}

func TestStore_List(t *testing.T) {
	store, _ := fakeServer(t)
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"archive/region.idx", "status.idx"}, names)
}

// TestStore_Integration needs a running server at MINIO_ENDPOINT.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}
	ctx := context.Background()

	store, err := New(endpoint, "direkte-test",
		WithCredentials("minioadmin", "minioadmin"),
		WithPrefix(fmt.Sprintf("run-%d", time.Now().UnixNano())),
	)
	require.NoError(t, err)
	if ok, err := store.client.BucketExists(ctx, store.bucket); err != nil {
		t.Skipf("server not reachable: %v", err)
	} else if !ok {
		require.NoError(t, store.client.MakeBucket(ctx, store.bucket, minio.MakeBucketOptions{}))
	}

	data := bytes.Repeat([]byte("#IBIS"), 1<<12)
	_, err = blobstore.Upload(ctx, store, "status.idx", bytes.NewReader(data))
	require.NoError(t, err)

	var got bytes.Buffer
	_, err = blobstore.Download(ctx, store, "status.idx", &got)
	require.NoError(t, err)
	assert.Equal(t, data, got.Bytes())

	w, err := store.Create(ctx, "aborted.idx")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"status.idx"}, names)

	require.NoError(t, store.Delete(ctx, "status.idx"))
	_, err = store.Open(ctx, "status.idx")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
