package direkte

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/direkte/bitvector"
	"github.com/hupe1980/direkte/column"
	"github.com/hupe1980/direkte/internal/conv"
)

// Append merges other, an index over rows appended to the column, into x.
// Every bitmap of x is extended by other.NRows() rows; keys only other holds
// become new bitmaps.
func (x *Index) Append(ctx context.Context, other *Index) error {
	if other == x {
		return fmt.Errorf("%w: index appended to itself", ErrBadInput)
	}
	add, nnew, mask, err := other.snapshot(ctx)
	if err != nil {
		return translateError(err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	return x.merge(ctx, add, nnew, mask)
}

// snapshot decodes every bitmap of x and returns them with the row count
// and non-null mask. The bitmaps are shared, not copied.
func (x *Index) snapshot(ctx context.Context) ([]*bitvector.Bitmap, uint32, *bitvector.Bitmap, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.activateAllLocked(ctx); err != nil {
		return nil, 0, nil, err
	}
	var mask *bitvector.Bitmap
	if x.meta.Mask != nil && x.meta.Mask.Size() == x.nrows {
		mask = x.meta.Mask
	}
	return append([]*bitvector.Bitmap(nil), x.bits...), x.nrows, mask, nil
}

// AppendRows indexes the rows of src selected by mask and appends them. A
// nil mask selects all src.Len() rows.
func (x *Index) AppendRows(ctx context.Context, src column.Source, mask *bitvector.Bitmap) error {
	x.mu.Lock()
	meta := x.meta
	meta.UpperBound = uint64(max(len(x.bits), 1) - 1)
	x.mu.Unlock()

	meta.Mask = mask
	if mask == nil {
		meta.NRows = src.Len()
	}
	add, err := buildBitmaps(ctx, meta, src)
	if err != nil {
		err = translateError(err)
		x.opts.metricsCollector.RecordAppend(0, 0, err)
		x.log.LogAppend(ctx, meta.Rows(), 0, err)
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	return x.merge(ctx, add, meta.Rows(), mask)
}

// AppendFile appends nnew rows. If path holds an index of exactly nnew rows
// it is merged; otherwise x is rebuilt from the column combined, which must
// describe all rows, old and new.
func (x *Index) AppendFile(ctx context.Context, path string, nnew uint32, combined column.Meta) error {
	x.mu.Lock()
	meta := x.meta
	x.mu.Unlock()

	part := newIndex(column.Meta{Name: meta.Name, Type: meta.Type, NRows: nnew}, x.opts)
	err := part.read(ctx, path)
	if err == nil && part.NRows() != nnew {
		err = &ErrRowCount{Expected: nnew, Actual: part.NRows()}
	}
	if err == nil {
		defer part.Close()
		return x.Append(ctx, part)
	}
	_ = part.Close()
	x.log.LogOpenFallback(ctx, path, err)

	x.mu.Lock()
	defer x.mu.Unlock()

	start := time.Now()
	err = x.rebuildLocked(ctx, nnew, combined)
	err = translateError(err)
	x.opts.metricsCollector.RecordAppend(nnew, time.Since(start), err)
	x.log.LogAppend(ctx, nnew, x.nrows, err)
	return err
}

func (x *Index) rebuildLocked(ctx context.Context, nnew uint32, combined column.Meta) error {
	if want := uint64(x.nrows) + uint64(nnew); uint64(combined.Rows()) != want {
		return &ErrRowCount{Expected: uint32(min(want, math.MaxUint32)), Actual: combined.Rows()}
	}
	if combined.DataPath == "" {
		return fmt.Errorf("%w: column %q has no data file", ErrBadInput, combined.Name)
	}
	src, err := column.OpenFile(ctx, x.opts.fm, combined.DataPath, combined.Type)
	if err != nil {
		return err
	}
	defer src.Close()

	bits, err := buildBitmaps(ctx, combined, src)
	if err != nil {
		return err
	}
	x.clearLocked()
	x.meta = combined
	x.nrows = combined.Rows()
	x.bits = bits
	return nil
}

// merge extends x by nnew rows whose bitmaps are add. mask marks the
// non-null rows among the new ones, nil meaning all.
func (x *Index) merge(ctx context.Context, add []*bitvector.Bitmap, nnew uint32, mask *bitvector.Bitmap) error {
	start := time.Now()
	err := translateError(x.mergeLocked(ctx, add, nnew, mask))
	if errors.Is(err, ErrInvariant) {
		x.clearLocked()
	}
	x.opts.metricsCollector.RecordAppend(nnew, time.Since(start), err)
	x.log.LogAppend(ctx, nnew, x.nrows, err)
	return err
}

func (x *Index) mergeLocked(ctx context.Context, add []*bitvector.Bitmap, nnew uint32, mask *bitvector.Bitmap) error {
	total, err := conv.Int64ToUint32(int64(x.nrows) + int64(nnew))
	if err != nil {
		return fmt.Errorf("%d + %d rows: %w", x.nrows, nnew, err)
	}
	for v, b := range add {
		if b != nil && b.Size() != nnew {
			return fmt.Errorf("%w: appended bitmap %d holds %d bits, want %d", bitvector.ErrLengthMismatch, v, b.Size(), nnew)
		}
	}
	if err := x.detachLocked(ctx); err != nil {
		return err
	}

	if len(add) > len(x.bits) {
		x.bits = append(x.bits, make([]*bitvector.Bitmap, len(add)-len(x.bits))...)
	}
	for v, b := range x.bits {
		var o *bitvector.Bitmap
		if v < len(add) && add[v] != nil && !add[v].IsEmpty() {
			o = add[v]
		}
		if b == nil {
			if o == nil {
				continue
			}
			b = bitvector.NewFilled(x.nrows, false)
			x.bits[v] = b
		}
		if o != nil {
			b.Append(o)
		} else {
			b.AdjustSize(b.Size(), total)
		}
	}

	x.extendMetaLocked(nnew, mask)
	x.nrows = total
	x.trimLocked(ctx)
	return nil
}

// extendMetaLocked grows the column description by nnew rows. It runs
// before nrows is updated.
func (x *Index) extendMetaLocked(nnew uint32, mask *bitvector.Bitmap) {
	total := x.nrows + nnew
	if x.meta.Mask == nil && mask == nil {
		x.meta.NRows = total
		return
	}
	combined := bitvector.NewFilled(x.nrows, true)
	if x.meta.Mask != nil && x.meta.Mask.Size() == x.nrows {
		combined = x.meta.Mask.Clone()
	}
	if mask == nil || mask.Size() != nnew {
		mask = bitvector.NewFilled(nnew, true)
	}
	combined.Append(mask)
	x.meta.Mask = combined
	x.meta.NRows = total
}
