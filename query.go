package direkte

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/direkte/bitvector"
	"github.com/hupe1980/direkte/internal/cost"
	"github.com/hupe1980/direkte/query"
)

// EvaluateRange returns the rows whose value satisfies r. A range with an
// unknown operator selects every row.
func (x *Index) EvaluateRange(ctx context.Context, r query.Range) *bitvector.Bitmap {
	x.mu.Lock()
	defer x.mu.Unlock()

	ib, ie, ok := r.Locate(uint32(len(x.bits)))
	if !ok {
		x.log.LogUnknownOperator(ctx, r.String())
		return bitvector.NewFilled(x.nrows, true)
	}
	return x.unionLocked(ctx, keyRange(ib, ie))
}

// EvaluateSet returns the rows whose value is one of the set's values.
// Values outside the key range match nothing.
func (x *Index) EvaluateSet(ctx context.Context, s query.Set) *bitvector.Bitmap {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.unionLocked(ctx, s.Keys(uint32(len(x.bits))))
}

// Evaluate dispatches p to EvaluateRange or EvaluateSet.
func (x *Index) Evaluate(ctx context.Context, p query.Predicate) *bitvector.Bitmap {
	switch p := p.(type) {
	case query.Range:
		return x.EvaluateRange(ctx, p)
	case *query.Range:
		return x.EvaluateRange(ctx, *p)
	case query.Set:
		return x.EvaluateSet(ctx, p)
	case *query.Set:
		return x.EvaluateSet(ctx, *p)
	}
	x.log.LogUnknownOperator(ctx, fmt.Sprint(p))
	return bitvector.NewFilled(x.NRows(), true)
}

func keyRange(ib, ie uint32) []uint32 {
	keys := make([]uint32, 0, ie-ib)
	for v := ib; v < ie; v++ {
		keys = append(keys, v)
	}
	return keys
}

// unionLocked ORs the bitmaps of keys into a new bitmap of nrows bits.
func (x *Index) unionLocked(ctx context.Context, keys []uint32) *bitvector.Bitmap {
	start := time.Now()
	res := bitvector.NewFilled(x.nrows, false)
	n := 0
	for _, v := range keys {
		b := x.activateLocked(ctx, v)
		if b == nil {
			continue
		}
		if err := res.Or(b); err != nil {
			x.log.LogActivate(ctx, int(v), err)
			continue
		}
		n++
	}
	x.opts.metricsCollector.RecordQuery(n, time.Since(start))
	return res
}

// countLocked sums the set bits of the bitmaps of keys. Keys are distinct,
// so the sum is the number of matching rows.
func (x *Index) countLocked(ctx context.Context, keys []uint32) uint32 {
	var n uint32
	for _, v := range keys {
		if b := x.activateLocked(ctx, v); b != nil {
			n += b.Count()
		}
	}
	return n
}

// EstimateRange returns the number of rows satisfying r. The count is exact
// for a direct index. A range with an unknown operator counts every row.
func (x *Index) EstimateRange(ctx context.Context, r query.Range) uint32 {
	x.mu.Lock()
	defer x.mu.Unlock()

	ib, ie, ok := r.Locate(uint32(len(x.bits)))
	if !ok {
		x.log.LogUnknownOperator(ctx, r.String())
		return x.nrows
	}
	return x.countLocked(ctx, keyRange(ib, ie))
}

// EstimateSet returns the number of rows whose value is in s.
func (x *Index) EstimateSet(ctx context.Context, s query.Set) uint32 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.countLocked(ctx, s.Keys(uint32(len(x.bits))))
}

// EstimateCost returns the number of index bytes evaluating p touches.
//
// For a range it is the smaller of the bitmaps inside and outside the
// located key interval, as either union yields the answer. For a set it is
// the size of the named bitmaps. An index without an offset table costs a
// scan of the column.
func (x *Index) EstimateCost(p query.Predicate) int64 {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.offsets == nil {
		return cost.Scan(x.meta.Type.Size(), x.nrows)
	}
	k := uint32(len(x.bits))
	switch p := p.(type) {
	case query.Range:
		return x.rangeCostLocked(p, k)
	case *query.Range:
		return x.rangeCostLocked(*p, k)
	case query.Set:
		return cost.Keys(x.offsets, p.Keys(k))
	case *query.Set:
		return cost.Keys(x.offsets, p.Keys(k))
	}
	return cost.Total(x.offsets)
}

func (x *Index) rangeCostLocked(r query.Range, k uint32) int64 {
	ib, ie, ok := r.Locate(k)
	if !ok {
		return cost.Total(x.offsets)
	}
	return cost.Range(x.offsets, ib, ie)
}

// Ints writes the value of every row into out: out[i] = v when bitmap v
// holds row i. Rows held by no bitmap keep their value in out.
func (x *Index) Ints(ctx context.Context, out []uint32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if uint64(len(out)) < uint64(x.nrows) {
		return translateError(&ErrRowCount{Expected: x.nrows, Actual: uint32(len(out))})
	}
	for v := range x.bits {
		b := x.activateLocked(ctx, uint32(v))
		if b == nil {
			continue
		}
		for start, end := range b.Runs() {
			for i := start; i < end; i++ {
				out[i] = uint32(v)
			}
		}
	}
	return nil
}

// KeysOfMask returns, in increasing order, the keys whose bitmaps share a
// row with mask. mask must span NRows rows.
func (x *Index) KeysOfMask(ctx context.Context, mask *bitvector.Bitmap) ([]uint32, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if mask.Size() != x.nrows {
		return nil, translateError(&ErrRowCount{Expected: x.nrows, Actual: mask.Size()})
	}
	var keys []uint32
	for v := range x.bits {
		b := x.activateLocked(ctx, uint32(v))
		if b == nil {
			continue
		}
		hit, err := b.Intersects(mask)
		if err != nil {
			return nil, translateError(err)
		}
		if hit {
			keys = append(keys, uint32(v))
		}
	}
	return keys, nil
}
