package bitvector

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// ToRoaring converts b into a roaring bitmap of its set positions.
func (b *Bitmap) ToRoaring() *roaring.Bitmap {
	rb := roaring.New()
	for start, end := range b.Runs() {
		rb.AddRange(uint64(start), uint64(end))
	}
	rb.RunOptimize()
	return rb
}

// FromRoaring builds a bitmap of n bits whose set positions are the
// members of rb. Members at or beyond n are rejected.
func FromRoaring(rb *roaring.Bitmap, n uint32) (*Bitmap, error) {
	b := New()
	if rb.IsEmpty() {
		b.AppendFill(false, n)
		return b, nil
	}
	if m := rb.Maximum(); m >= n {
		return nil, fmt.Errorf("%w: member %d beyond size %d", ErrLengthMismatch, m, n)
	}
	it := rb.Iterator()
	for it.HasNext() {
		// Roaring iterates in ascending order, so SetBit cannot fail.
		_ = b.SetBit(it.Next(), true)
	}
	b.AdjustSize(b.Size(), n)
	return b, nil
}
