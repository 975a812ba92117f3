package column

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/hupe1980/direkte/bitvector"
)

// Integer is the set of element types an Array can hold.
type Integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

// Array is an in-memory column.
type Array[T Integer] []T

// ElementSize implements Source.
func (a Array[T]) ElementSize() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Len implements Source.
func (a Array[T]) Len() uint32 {
	if int64(len(a)) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(len(a))
}

// Scan implements Source.
func (a Array[T]) Scan(mask *bitvector.Bitmap, fn func(row uint32, v int64) error) error {
	return scanRows(mask, a.Len(), func(row uint32) error {
		v := a[row]
		if v > 0 && int64(v) < 0 {
			return fmt.Errorf("%w: %d at row %d", ErrValueOutOfRange, uint64(v), row)
		}
		return fn(row, int64(v))
	})
}
