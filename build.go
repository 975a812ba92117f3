package direkte

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/direkte/bitvector"
	"github.com/hupe1980/direkte/column"
	"github.com/hupe1980/direkte/internal/conv"
)

// Build constructs an index over the non-null rows of meta from the values
// yielded by src.
func Build(ctx context.Context, meta column.Meta, src column.Source, opts ...Option) (*Index, error) {
	x := newIndex(meta, applyOptions(opts))
	if err := x.build(ctx, src); err != nil {
		return nil, err
	}
	return x, nil
}

// BuildFile constructs an index from the column file meta.DataPath.
func BuildFile(ctx context.Context, meta column.Meta, opts ...Option) (*Index, error) {
	o := applyOptions(opts)
	if meta.DataPath == "" {
		return nil, fmt.Errorf("%w: column %q has no data file", ErrBadInput, meta.Name)
	}
	src, err := column.OpenFile(ctx, o.fm, meta.DataPath, meta.Type)
	if err != nil {
		return nil, translateError(err)
	}
	defer src.Close()

	x := newIndex(meta, o)
	if err := x.build(ctx, src); err != nil {
		return nil, err
	}
	return x, nil
}

// build replaces the bitmaps of x by ones computed from src. On error x is
// left cleared.
func (x *Index) build(ctx context.Context, src column.Source) error {
	start := time.Now()
	nrows := x.meta.Rows()
	bits, err := buildBitmaps(ctx, x.meta, src)
	if err != nil {
		err = translateError(err)
	}
	x.opts.metricsCollector.RecordBuild(nrows, time.Since(start), err)
	x.log.LogBuild(ctx, nrows, len(bits), time.Since(start), err)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.clearLocked()
	if err != nil {
		return err
	}
	x.nrows = nrows
	x.bits = bits
	return nil
}

func buildBitmaps(ctx context.Context, meta column.Meta, src column.Source) ([]*bitvector.Bitmap, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	mask := meta.NonNull()
	nrows := mask.Size()

	k0 := uint64(2)
	if meta.UpperBound < maxPrealloc {
		k0 = max(k0, meta.UpperBound+1)
	} else {
		k0 = maxPrealloc
	}
	bits := make([]*bitvector.Bitmap, k0)

	err := src.Scan(mask, func(row uint32, v int64) error {
		if row&0xFFFF == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if v < 0 || v > math.MaxInt32 {
			return fmt.Errorf("%w: %d at row %d", column.ErrValueOutOfRange, v, row)
		}
		if int(v) >= len(bits) {
			bits = grow(bits, int(v)+1)
		}
		b := bits[v]
		if b == nil {
			b = bitvector.New()
			bits[v] = b
		}
		return b.SetBit(row, true)
	})
	if err != nil {
		return nil, err
	}
	return finish(bits, nrows), nil
}

// grow extends bits to at least n slots, doubling the current size.
func grow(bits []*bitvector.Bitmap, n int) []*bitvector.Bitmap {
	n = max(2*len(bits), n)
	return append(bits, make([]*bitvector.Bitmap, n-len(bits))...)
}

// finish trims trailing absent or empty slots and pads every bitmap to nrows.
func finish(bits []*bitvector.Bitmap, nrows uint32) []*bitvector.Bitmap {
	for len(bits) > 0 {
		if b := bits[len(bits)-1]; b != nil && !b.IsEmpty() {
			break
		}
		bits = bits[:len(bits)-1]
	}
	for _, b := range bits {
		if b != nil {
			b.AdjustSize(b.Size(), nrows)
		}
	}
	return bits
}

// Dummy creates the index of a column in which every one of nrows rows
// holds the value popu: popu absent keys followed by an all-ones bitmap.
// With no rows there is nothing to hold and the index has no keys.
func Dummy(meta column.Meta, popu, nrows uint32, opts ...Option) (*Index, error) {
	if popu > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %w: key %d", ErrBadInput, column.ErrValueOutOfRange, popu)
	}
	x := newIndex(meta, applyOptions(opts))
	if nrows == 0 {
		return x, nil
	}
	x.nrows = nrows
	x.bits = make([]*bitvector.Bitmap, popu+1)
	x.bits[popu] = bitvector.NewFilled(nrows, true)
	return x, nil
}

// FromInts builds an index in which row i holds ids[i]. Values at or above
// card are skipped and leave their row unset.
func FromInts(meta column.Meta, card uint32, ids []uint32, opts ...Option) (*Index, error) {
	nrows, err := conv.IntToUint32(len(ids))
	if err != nil {
		return nil, translateError(err)
	}
	if card > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %w: cardinality %d", ErrBadInput, column.ErrValueOutOfRange, card)
	}
	x := newIndex(meta, applyOptions(opts))
	x.nrows = nrows
	x.bits = make([]*bitvector.Bitmap, card)
	for i, v := range ids {
		if v >= card {
			continue
		}
		b := x.bits[v]
		if b == nil {
			b = bitvector.New()
			x.bits[v] = b
		}
		if err := b.SetBit(uint32(i), true); err != nil {
			return nil, translateError(err)
		}
	}
	for _, b := range x.bits {
		if b != nil {
			b.AdjustSize(b.Size(), nrows)
		}
	}
	return x, nil
}
