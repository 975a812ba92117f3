package blobstore

import (
	"context"
	"fmt"
	"io"
)

// Upload copies r into the blob name and commits it. On any failure the
// partial blob is aborted and the previous content of name stays in place.
func Upload(ctx context.Context, store BlobStore, name string, r io.Reader) (int64, error) {
	w, err := store.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, r)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = w.Abort()
		return n, err
	}
	return n, w.Commit()
}

// Download copies the blob name into w. A blob that ends before its
// advertised size fails with io.ErrUnexpectedEOF.
func Download(ctx context.Context, store BlobStore, name string, w io.Writer) (int64, error) {
	r, err := store.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	n, err := io.Copy(w, r)
	if err != nil {
		return n, err
	}
	if n != r.Size() {
		return n, fmt.Errorf("blobstore: %s: read %d of %d bytes: %w", name, n, r.Size(), io.ErrUnexpectedEOF)
	}
	return n, nil
}
