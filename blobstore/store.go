package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist. It matches
// os.ErrNotExist so callers can treat a missing blob like a missing file.
var ErrNotFound = os.ErrNotExist

// ErrFinished is returned by a Writer that was already committed or aborted.
var ErrFinished = errors.New("blobstore: writer already finished")

// ContentType is the media type remote stores attach to index files.
const ContentType = "application/x-direkte-index"

// BlobStore holds whole index files under slash separated names.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open returns a reader over the full content of the blob name.
	Open(ctx context.Context, name string) (Reader, error)
	// Create starts writing the blob name. Nothing becomes visible under
	// name until the returned Writer is committed.
	Create(ctx context.Context, name string) (Writer, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Reader streams one blob from its first byte.
type Reader interface {
	io.ReadCloser
	// Size is the length of the blob as reported when it was opened.
	Size() int64
}

// Writer receives the bytes of a new blob.
type Writer interface {
	io.Writer
	// Commit publishes the written bytes under the blob name, replacing
	// any previous blob of that name.
	Commit() error
	// Abort drops the written bytes. It is a no-op after Commit.
	Abort() error
}
