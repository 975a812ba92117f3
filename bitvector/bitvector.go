package bitvector

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

const (
	// GroupBits is the number of payload bits in a literal word.
	GroupBits = 31

	allOnes  uint32 = 0x7FFFFFFF
	fillFlag uint32 = 0x80000000
	fillOne  uint32 = 0x40000000
	maxCount uint32 = 0x3FFFFFFF
)

var (
	// ErrOutOfOrder is returned when a bit is set before the current end of the bitmap.
	ErrOutOfOrder = errors.New("bitvector: position precedes current size")
	// ErrLengthMismatch is returned when a binary operation gets operands of different sizes.
	ErrLengthMismatch = errors.New("bitvector: operands differ in size")
	// ErrCorrupt is returned when a serialized bitmap cannot be decoded.
	ErrCorrupt = errors.New("bitvector: corrupt encoding")
)

// Bitmap is a WAH compressed sequence of bits.
//
// The zero value is an empty bitmap ready to use. A Bitmap is not safe for
// concurrent mutation; concurrent readers are fine.
type Bitmap struct {
	words   []uint32
	nbits   uint32 // bits held by words, always a multiple of GroupBits
	active  uint32 // pending bits, the most recent one in bit 0
	nactive uint32
	shared  bool // words alias a buffer owned by someone else
}

// New returns an empty bitmap.
func New() *Bitmap {
	return &Bitmap{}
}

// NewFilled returns a bitmap of n bits, all equal to bit.
func NewFilled(n uint32, bit bool) *Bitmap {
	b := &Bitmap{}
	b.AppendFill(bit, n)
	return b
}

func isFill(w uint32) bool { return w&fillFlag != 0 }

func fillCount(w uint32) uint32 { return w & maxCount }

func fillPattern(w uint32) uint32 {
	if w&fillOne != 0 {
		return allOnes
	}
	return 0
}

func lowMask(n uint32) uint32 { return uint32(1)<<n - 1 }

// Size returns the logical length in bits.
func (b *Bitmap) Size() uint32 { return b.nbits + b.nactive }

// Count returns the number of set bits.
func (b *Bitmap) Count() uint32 {
	var n uint32
	for _, w := range b.words {
		switch {
		case !isFill(w):
			n += uint32(bits.OnesCount32(w))
		case w&fillOne != 0:
			n += fillCount(w) * GroupBits
		}
	}
	return n + uint32(bits.OnesCount32(b.active))
}

// IsEmpty reports whether no bit is set.
func (b *Bitmap) IsEmpty() bool {
	if b.active != 0 {
		return false
	}
	for _, w := range b.words {
		if (!isFill(w) && w != 0) || w&(fillFlag|fillOne) == fillFlag|fillOne {
			return false
		}
	}
	return true
}

// Words returns the number of encoded words, excluding the active word.
func (b *Bitmap) Words() int { return len(b.words) }

// Shared reports whether the bitmap still aliases an external buffer.
func (b *Bitmap) Shared() bool { return b.shared }

// own detaches the bitmap from a borrowed buffer before it is mutated.
func (b *Bitmap) own() {
	if !b.shared {
		return
	}
	w := make([]uint32, len(b.words), len(b.words)+4)
	copy(w, b.words)
	b.words = w
	b.shared = false
}

// Own copies an aliased buffer into memory owned by the bitmap. It is a
// no-op for bitmaps that already own their words.
func (b *Bitmap) Own() { b.own() }

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	c := *b
	c.words = make([]uint32, len(b.words))
	copy(c.words, b.words)
	c.shared = false
	return &c
}

// appendGroups appends n groups equal to pattern. Uniform patterns are
// merged into fills; other patterns are appended as n literals.
func (b *Bitmap) appendGroups(pattern, n uint32) {
	if n == 0 {
		return
	}
	b.own()
	b.nbits += n * GroupBits
	if pattern != 0 && pattern != allOnes {
		for ; n > 0; n-- {
			b.words = append(b.words, pattern)
		}
		return
	}

	fill := fillFlag
	if pattern == allOnes {
		fill |= fillOne
	}
	if k := len(b.words); k > 0 {
		last := b.words[k-1]
		switch {
		case last == pattern:
			b.words = b.words[:k-1]
			n++
		case isFill(last) && last&^maxCount == fill && fillCount(last) < maxCount:
			take := min(maxCount-fillCount(last), n)
			b.words[k-1] = last + take
			n -= take
		}
	}
	for n > 0 {
		if n == 1 {
			b.words = append(b.words, pattern)
			return
		}
		take := min(n, maxCount)
		b.words = append(b.words, fill|take)
		n -= take
	}
}

func (b *Bitmap) flushActive() {
	b.appendGroups(b.active, 1)
	b.active, b.nactive = 0, 0
}

// AppendBit appends a single bit.
func (b *Bitmap) AppendBit(bit bool) {
	b.active <<= 1
	if bit {
		b.active |= 1
	}
	b.nactive++
	if b.nactive == GroupBits {
		b.flushActive()
	}
}

// appendBits appends the k low bits of v, most significant first.
func (b *Bitmap) appendBits(v, k uint32) {
	for k > 0 {
		take := min(GroupBits-b.nactive, k)
		chunk := (v >> (k - take)) & lowMask(take)
		b.active = b.active<<take | chunk
		b.nactive += take
		k -= take
		if b.nactive == GroupBits {
			b.flushActive()
		}
	}
}

// AppendFill appends n copies of bit.
func (b *Bitmap) AppendFill(bit bool, n uint32) {
	if n == 0 {
		return
	}
	var pattern uint32
	if bit {
		pattern = allOnes
	}
	if b.nactive > 0 {
		take := min(GroupBits-b.nactive, n)
		b.appendBits(pattern&lowMask(take), take)
		n -= take
		if n == 0 {
			return
		}
	}
	if g := n / GroupBits; g > 0 {
		b.appendGroups(pattern, g)
		n -= g * GroupBits
	}
	b.active = pattern & lowMask(n)
	b.nactive = n
}

// SetBit extends the bitmap with zeros up to position i and appends bit.
// Positions before the current size are rejected with ErrOutOfOrder.
func (b *Bitmap) SetBit(i uint32, bit bool) error {
	size := b.Size()
	if i < size {
		return fmt.Errorf("%w: %d < %d", ErrOutOfOrder, i, size)
	}
	b.AppendFill(false, i-size)
	b.AppendBit(bit)
	return nil
}

// AdjustSize truncates the bitmap to lo bits if it is longer, then pads it
// with zeros up to hi bits.
func (b *Bitmap) AdjustSize(lo, hi uint32) {
	if b.Size() > lo {
		b.truncate(lo)
	}
	if size := b.Size(); size < hi {
		b.AppendFill(false, hi-size)
	}
}

func (b *Bitmap) truncate(n uint32) {
	if n >= b.Size() {
		return
	}
	if n >= b.nbits {
		drop := b.Size() - n
		b.active >>= drop
		b.nactive -= drop
		return
	}

	var out Bitmap
	remaining := n
	for _, w := range b.words {
		if remaining == 0 {
			break
		}
		if isFill(w) {
			take := min(fillCount(w)*GroupBits, remaining)
			out.AppendFill(w&fillOne != 0, take)
			remaining -= take
			continue
		}
		take := min(GroupBits, remaining)
		out.appendBits(w>>(GroupBits-take), take)
		remaining -= take
	}
	*b = out
}

// Append concatenates o to the end of b.
func (b *Bitmap) Append(o *Bitmap) {
	if b == o {
		o = o.Clone()
	}
	r := newRunReader(o.words)
	if b.nactive == 0 {
		for r.n > 0 {
			k := r.n
			b.appendGroups(r.pattern, k)
			r.advance(k)
		}
		b.active, b.nactive = o.active, o.nactive
		return
	}
	for r.n > 0 {
		k := r.n
		if r.fill {
			b.AppendFill(r.pattern != 0, k*GroupBits)
		} else {
			b.appendBits(r.pattern, GroupBits)
		}
		r.advance(k)
	}
	b.appendBits(o.active, o.nactive)
}

// Test reports whether bit i is set. It walks the encoding and costs
// O(words).
func (b *Bitmap) Test(i uint32) bool {
	if i >= b.Size() {
		return false
	}
	var pos uint32
	for _, w := range b.words {
		span := uint32(GroupBits)
		if isFill(w) {
			span = fillCount(w) * GroupBits
		}
		if i < pos+span {
			if isFill(w) {
				return w&fillOne != 0
			}
			return w>>(GroupBits-1-(i-pos))&1 != 0
		}
		pos += span
	}
	return b.active>>(b.nactive-1-(i-pos))&1 != 0
}

// String renders the bitmap as a string of '0' and '1', position 0 first.
func (b *Bitmap) String() string {
	var sb strings.Builder
	sb.Grow(int(b.Size()))
	var pos uint32
	for start, end := range b.Runs() {
		sb.WriteString(strings.Repeat("0", int(start-pos)))
		sb.WriteString(strings.Repeat("1", int(end-start)))
		pos = end
	}
	sb.WriteString(strings.Repeat("0", int(b.Size()-pos)))
	return sb.String()
}

// Parse builds a bitmap from a string of '0' and '1'. Other characters are
// rejected.
func Parse(s string) (*Bitmap, error) {
	b := New()
	for i, c := range s {
		switch c {
		case '0':
			b.AppendBit(false)
		case '1':
			b.AppendBit(true)
		default:
			return nil, fmt.Errorf("bitvector: invalid character %q at %d", c, i)
		}
	}
	return b, nil
}
