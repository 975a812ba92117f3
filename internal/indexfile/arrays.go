package indexfile

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/direkte/bitvector"
)

// ToArrays returns the in-memory form of an index: the keys of the
// non-empty bitmaps, their start positions in words (one more entry than
// keys), and the concatenated serialized bitmaps.
func ToArrays(bms []*bitvector.Bitmap) (keys []float64, starts []int64, words []uint32) {
	starts = []int64{0}
	var buf []byte
	for v, b := range bms {
		if bodySize(b) == 0 {
			continue
		}
		buf, _ = b.AppendBinary(buf[:0])
		for i := 0; i < len(buf); i += 4 {
			words = append(words, binary.LittleEndian.Uint32(buf[i:]))
		}
		keys = append(keys, float64(v))
		starts = append(starts, int64(len(words)))
	}
	return keys, starts, words
}

// FromArrays reverses ToArrays. Keys must be distinct non-negative integers
// in increasing order; missing keys become nil slots. Every bitmap must
// hold nrows bits.
func FromArrays(nrows uint32, keys []float64, starts []int64, words []uint32) ([]*bitvector.Bitmap, error) {
	if len(starts) != len(keys)+1 {
		return nil, fmt.Errorf("%w: %d keys, %d starts", ErrBadArrays, len(keys), len(starts))
	}
	if len(keys) == 0 {
		return nil, nil
	}
	last := keys[len(keys)-1]
	if last < 0 || last >= math.MaxUint32 {
		return nil, fmt.Errorf("%w: key %g", ErrBadArrays, last)
	}
	bms := make([]*bitvector.Bitmap, int(last)+1)
	prev := -1.0
	for i, key := range keys {
		if key != math.Trunc(key) || key <= prev || key > last {
			return nil, fmt.Errorf("%w: key %g after %g", ErrBadArrays, key, prev)
		}
		prev = key
		lo, hi := starts[i], starts[i+1]
		if lo < 0 || hi < lo || hi > int64(len(words)) {
			return nil, fmt.Errorf("%w: bitmap %g spans words [%d, %d) of %d", ErrBadArrays, key, lo, hi, len(words))
		}
		buf := make([]byte, 0, 4*(hi-lo))
		for _, w := range words[lo:hi] {
			buf = binary.LittleEndian.AppendUint32(buf, w)
		}
		b, err := bitvector.Decode(buf)
		if err != nil {
			return nil, fmt.Errorf("bitmap %g: %w", key, err)
		}
		if b.Size() != nrows {
			return nil, fmt.Errorf("%w: bitmap %g holds %d bits, want %d", ErrBadArrays, key, b.Size(), nrows)
		}
		bms[int(key)] = b
	}
	return bms, nil
}
