package bitvector

import "fmt"

// runReader walks the words of a bitmap one run at a time. A run is either
// a single literal group or the remainder of a fill.
type runReader struct {
	words   []uint32
	i       int
	pattern uint32
	n       uint32 // groups left in the current run
	fill    bool
}

func newRunReader(words []uint32) runReader {
	r := runReader{words: words}
	r.load()
	return r
}

func (r *runReader) load() {
	for r.i < len(r.words) {
		w := r.words[r.i]
		r.i++
		if isFill(w) {
			if fillCount(w) == 0 {
				continue
			}
			r.fill, r.n, r.pattern = true, fillCount(w), fillPattern(w)
			return
		}
		r.fill, r.n, r.pattern = false, 1, w
		return
	}
	r.n = 0
}

func (r *runReader) advance(k uint32) {
	r.n -= k
	if r.n == 0 {
		r.load()
	}
}

type logicOp uint8

const (
	opAnd logicOp = iota
	opOr
	opXor
)

func (op logicOp) apply(a, b uint32) uint32 {
	switch op {
	case opAnd:
		return a & b
	case opOr:
		return a | b
	default:
		return a ^ b
	}
}

// combine evaluates op over two bitmaps of equal size without decompressing
// them. Fills of both operands are consumed together; a fill against a
// literal advances one group at a time.
func combine(x, y *Bitmap, op logicOp) (*Bitmap, error) {
	if x.Size() != y.Size() {
		return nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, x.Size(), y.Size())
	}
	out := &Bitmap{words: make([]uint32, 0, max(len(x.words), len(y.words)))}
	rx, ry := newRunReader(x.words), newRunReader(y.words)
	for rx.n > 0 && ry.n > 0 {
		k := uint32(1)
		if rx.fill && ry.fill {
			k = min(rx.n, ry.n)
		}
		out.appendGroups(op.apply(rx.pattern, ry.pattern), k)
		rx.advance(k)
		ry.advance(k)
	}
	out.active = op.apply(x.active, y.active)
	out.nactive = x.nactive
	return out, nil
}

// Or replaces b with b OR o. Both bitmaps must have the same size.
func (b *Bitmap) Or(o *Bitmap) error {
	r, err := combine(b, o, opOr)
	if err != nil {
		return err
	}
	*b = *r
	return nil
}

// And replaces b with b AND o. Both bitmaps must have the same size.
func (b *Bitmap) And(o *Bitmap) error {
	r, err := combine(b, o, opAnd)
	if err != nil {
		return err
	}
	*b = *r
	return nil
}

// Xor replaces b with b XOR o. Both bitmaps must have the same size.
func (b *Bitmap) Xor(o *Bitmap) error {
	r, err := combine(b, o, opXor)
	if err != nil {
		return err
	}
	*b = *r
	return nil
}

// Or returns the union of the given bitmaps as a new bitmap. An empty
// argument list yields an empty bitmap.
func Or(bms ...*Bitmap) (*Bitmap, error) {
	if len(bms) == 0 {
		return New(), nil
	}
	res := bms[0].Clone()
	for _, bm := range bms[1:] {
		if err := res.Or(bm); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Intersects reports whether b and o share a set bit.
func (b *Bitmap) Intersects(o *Bitmap) (bool, error) {
	r, err := combine(b, o, opAnd)
	if err != nil {
		return false, err
	}
	return !r.IsEmpty(), nil
}

// Equal reports whether b and o hold the same bit sequence, regardless of
// how either is packed.
func (b *Bitmap) Equal(o *Bitmap) bool {
	if b.Size() != o.Size() || b.active != o.active {
		return false
	}
	rx, ry := newRunReader(b.words), newRunReader(o.words)
	for rx.n > 0 && ry.n > 0 {
		if rx.pattern != ry.pattern {
			return false
		}
		k := uint32(1)
		if rx.fill && ry.fill {
			k = min(rx.n, ry.n)
		}
		rx.advance(k)
		ry.advance(k)
	}
	return rx.n == 0 && ry.n == 0
}
