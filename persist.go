package direkte

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/direkte/bitvector"
	"github.com/hupe1980/direkte/column"
	"github.com/hupe1980/direkte/internal/indexfile"
)

// Open reads the index file at path. If the file is missing or unusable and
// meta names a data file, the index is rebuilt from the column instead and
// the read error is only logged.
func Open(ctx context.Context, meta column.Meta, path string, opts ...Option) (*Index, error) {
	o := applyOptions(opts)
	x := newIndex(meta, o)
	err := x.read(ctx, path)
	if err == nil {
		return x, nil
	}
	if meta.DataPath == "" {
		return nil, translateError(err)
	}
	x.log.LogOpenFallback(ctx, path, err)
	return BuildFile(ctx, meta, opts...)
}

// read attaches x to the index file at path.
func (x *Index) read(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	s, err := x.opts.fm.GetFile(ctx, path)
	if err != nil {
		x.log.LogRead(ctx, path, 0, false, err)
		return err
	}
	blk, err := indexfile.Parse(s.Bytes())
	if err == nil {
		if rows := x.meta.Rows(); (x.meta.Mask != nil || rows != 0) && rows != blk.NRows {
			err = &ErrRowCount{Expected: rows, Actual: blk.NRows}
		}
	}
	if err != nil {
		x.log.LogRead(ctx, path, 0, s.Mapped(), err)
		_ = s.Release()
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.clearLocked()
	x.nrows = blk.NRows
	x.bits = make([]*bitvector.Bitmap, blk.K)
	x.offsets = blk.Offsets
	x.storage = s
	x.path = path
	x.log.LogRead(ctx, path, int(blk.K), s.Mapped(), nil)

	if x.opts.preload {
		if err := x.activateAllLocked(ctx); err != nil {
			x.clearLocked()
			return err
		}
	}
	return nil
}

// Write stores the index at path. Trailing empty bitmaps are dropped first.
//
// The file is written next to path under a temporary name and renamed over
// path, so readers of the previous file keep a consistent view. Concurrent
// writers of the same path are excluded by a lock on path + ".lock"; the
// loser fails with ErrConflict.
func (x *Index) Write(ctx context.Context, path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	start := time.Now()
	size, err := x.writeLocked(ctx, filepath.Clean(path))
	err = translateError(err)
	x.opts.metricsCollector.RecordWrite(size, time.Since(start), err)
	x.log.LogWrite(ctx, path, size, err)
	return err
}

func (x *Index) writeLocked(ctx context.Context, path string) (int64, error) {
	width := x.opts.offsetWidth
	if width != 0 && width != 4 && width != 8 {
		return 0, fmt.Errorf("%w: offset width %d", ErrBadInput, width)
	}
	fsys := x.opts.fs
	lock, err := fsys.TryLock(path + ".lock")
	if err != nil {
		return 0, err
	}
	defer lock.Close()

	x.trimLocked(ctx)
	if err := x.activateAllLocked(ctx); err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := fsys.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return 0, err
	}
	offsets, err := indexfile.Write(f, x.nrows, x.bits, width)
	if err == nil && x.opts.fsync {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = fsys.Remove(tmp)
		return 0, err
	}

	// The bitmaps may alias the storage of the file being replaced.
	if err := x.detachLocked(ctx); err != nil {
		_ = fsys.Remove(tmp)
		return 0, err
	}
	if err := x.opts.fm.Flush(path); err != nil {
		x.log.WarnContext(ctx, "flush of replaced index file failed", "path", path, "error", err)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return 0, err
	}
	if x.opts.fsync {
		if err := fsys.SyncDir(dir); err != nil {
			return 0, err
		}
	}
	x.offsets = offsets
	x.path = path
	return offsets[len(offsets)-1], nil
}

// WriteArrays returns the index in array form: the keys of the non-empty
// bitmaps, the start of each bitmap in words, and the serialized bitmaps as
// 32-bit words.
func (x *Index) WriteArrays(ctx context.Context) (keys []float64, starts []int64, words []uint32, err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.activateAllLocked(ctx); err != nil {
		return nil, nil, nil, translateError(err)
	}
	keys, starts, words = indexfile.ToArrays(x.bits)
	return keys, starts, words, nil
}

// FromArrays reverses WriteArrays.
func FromArrays(meta column.Meta, nrows uint32, keys []float64, starts []int64, words []uint32, opts ...Option) (*Index, error) {
	bits, err := indexfile.FromArrays(nrows, keys, starts, words)
	if err != nil {
		if errors.Is(err, bitvector.ErrCorrupt) {
			return nil, fmt.Errorf("%w: %w", ErrBadInput, err)
		}
		return nil, translateError(err)
	}
	x := newIndex(meta, applyOptions(opts))
	x.nrows = nrows
	x.bits = bits
	return x, nil
}
