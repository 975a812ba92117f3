package direkte

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hupe1980/direkte/blobstore"
	"github.com/hupe1980/direkte/column"
	"github.com/hupe1980/direkte/internal/indexfile"
)

// Publish streams the index file image to the blob name of store. The blob
// holds the same bytes Write would put on disk.
func (x *Index) Publish(ctx context.Context, store blobstore.BlobStore, name string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	n, err := x.publishLocked(ctx, store, name)
	err = translateError(err)
	x.log.LogPublish(ctx, name, n, err)
	return err
}

func (x *Index) publishLocked(ctx context.Context, store blobstore.BlobStore, name string) (int64, error) {
	x.trimLocked(ctx)
	if err := x.activateAllLocked(ctx); err != nil {
		return 0, err
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := indexfile.Encode(pw, x.nrows, x.bits, x.opts.offsetWidth)
		_ = pw.CloseWithError(err)
	}()
	n, err := blobstore.Upload(ctx, store, name, pr)
	_ = pr.CloseWithError(err)
	<-done
	return n, err
}

// OpenBlob downloads the blob name of store to localPath and opens it there.
// If the blob cannot be fetched the index is rebuilt from meta.DataPath, as
// Open does for an unreadable file.
func OpenBlob(ctx context.Context, store blobstore.BlobStore, name, localPath string, meta column.Meta, opts ...Option) (*Index, error) {
	o := applyOptions(opts)
	if err := fetch(ctx, o, store, name, localPath); err != nil {
		if meta.DataPath == "" {
			return nil, translateError(err)
		}
		o.logger.WithColumn(meta.Name).LogOpenFallback(ctx, name, err)
		return BuildFile(ctx, meta, opts...)
	}
	return Open(ctx, meta, localPath, opts...)
}

// fetch copies a blob to path through a temporary file.
func fetch(ctx context.Context, o options, store blobstore.BlobStore, name, path string) error {
	path = filepath.Clean(path)
	fsys := o.fs
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := fsys.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, err = blobstore.Download(ctx, store, name, f)
	if err == nil && o.fsync {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		_ = o.fm.Flush(path)
		err = fsys.Rename(tmp, path)
	}
	if err != nil {
		_ = fsys.Remove(tmp)
	}
	return err
}
