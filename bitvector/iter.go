package bitvector

import "iter"

// Runs returns the maximal runs of set bits as half-open [start, end)
// ranges in increasing order. The sequence is lazy and may be iterated
// any number of times.
func (b *Bitmap) Runs() iter.Seq2[uint32, uint32] {
	return func(yield func(uint32, uint32) bool) {
		var start, end uint32
		open := false
		emit := func(s, e uint32) bool {
			if open && s == end {
				end = e
				return true
			}
			if open && !yield(start, end) {
				return false
			}
			start, end, open = s, e, true
			return true
		}

		var pos uint32
		for _, w := range b.words {
			if isFill(w) {
				span := fillCount(w) * GroupBits
				if w&fillOne != 0 && span > 0 && !emit(pos, pos+span) {
					return
				}
				pos += span
				continue
			}
			if !literalRuns(w, GroupBits, pos, emit) {
				return
			}
			pos += GroupBits
		}
		if !literalRuns(b.active, b.nactive, pos, emit) {
			return
		}
		if open {
			yield(start, end)
		}
	}
}

// literalRuns emits the set bits of a literal holding width bits, the
// first of them in bit width-1.
func literalRuns(w, width, pos uint32, emit func(uint32, uint32) bool) bool {
	for j := uint32(0); j < width && w != 0; j++ {
		mask := uint32(1) << (width - 1 - j)
		if w&mask == 0 {
			continue
		}
		w &^= mask
		if !emit(pos+j, pos+j+1) {
			return false
		}
	}
	return true
}

// Bits returns the positions of set bits in increasing order.
func (b *Bitmap) Bits() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for start, end := range b.Runs() {
			for i := start; i < end; i++ {
				if !yield(i) {
					return
				}
			}
		}
	}
}
