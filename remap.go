package direkte

import (
	"context"
	"fmt"
	"math"

	"github.com/hupe1980/direkte/bitvector"
	"github.com/hupe1980/direkte/column"
)

// RemapKeys renames every key j to o2n[j], moving its bitmap. Keys with an
// empty bitmap are dropped. o2n must cover every key, and two keys must not
// share a target; such a mapping fails with ErrConflict and leaves x
// unchanged.
func (x *Index) RemapKeys(ctx context.Context, o2n []uint32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	err := translateError(x.remapLocked(ctx, o2n))
	x.log.LogRemap(ctx, len(o2n), err)
	return err
}

func (x *Index) remapLocked(ctx context.Context, o2n []uint32) error {
	if len(o2n) < len(x.bits) {
		return fmt.Errorf("%w: mapping covers %d of %d keys", ErrBadInput, len(o2n), len(x.bits))
	}
	owner := make(map[uint32]uint32, len(x.bits))
	k := 0
	for j := range x.bits {
		t := o2n[j]
		if t > math.MaxInt32 {
			return fmt.Errorf("%w: key %d maps to %d", column.ErrValueOutOfRange, j, t)
		}
		if prev, dup := owner[t]; dup {
			return &ErrDuplicateKey{Target: t, Keys: [2]uint32{prev, uint32(j)}}
		}
		owner[t] = uint32(j)
	}

	if err := x.detachLocked(ctx); err != nil {
		return err
	}
	for j, b := range x.bits {
		if b != nil && !b.IsEmpty() {
			k = max(k, int(o2n[j])+1)
		}
	}
	bits := make([]*bitvector.Bitmap, k)
	for j, b := range x.bits {
		if b == nil || b.IsEmpty() {
			continue
		}
		bits[o2n[j]] = b
	}
	x.bits = bits
	return nil
}
