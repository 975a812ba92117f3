package bitvector

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomBits returns an oracle bit string with long runs so that both fills
// and literals show up in the encoding.
func randomBits(r *rand.Rand, n int, density float64) string {
	var sb strings.Builder
	for sb.Len() < n {
		run := 1 + r.IntN(120)
		c := "0"
		if r.Float64() < density {
			c = "1"
		}
		if r.IntN(3) == 0 {
			run = 1
		}
		sb.WriteString(strings.Repeat(c, min(run, n-sb.Len())))
	}
	return sb.String()
}

func fromString(t *testing.T, s string) *Bitmap {
	t.Helper()
	b := New()
	for i, c := range s {
		if c == '1' {
			require.NoError(t, b.SetBit(uint32(i), true))
		}
	}
	b.AdjustSize(b.Size(), uint32(len(s)))
	return b
}

func orString(a, b string) string {
	out := []byte(a)
	for i := range out {
		if b[i] == '1' {
			out[i] = '1'
		}
	}
	return string(out)
}

func andString(a, b string) string {
	out := []byte(a)
	for i := range out {
		if b[i] == '0' {
			out[i] = '0'
		}
	}
	return string(out)
}

var sizes = []int{0, 1, 6, 30, 31, 32, 62, 63, 93, 500, 4000}

func TestBitmap_SetBitAndCount(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for _, n := range sizes {
		for _, density := range []float64{0, 0.1, 0.5, 0.9, 1} {
			want := randomBits(r, n, density)
			b := fromString(t, want)

			assert.Equal(t, uint32(n), b.Size())
			assert.Equal(t, uint32(strings.Count(want, "1")), b.Count())
			assert.Equal(t, want, b.String())
			assert.LessOrEqual(t, b.Count(), b.Size())
			assert.Equal(t, b.Count() == 0, b.IsEmpty())
		}
	}
}

func TestBitmap_Tiny(t *testing.T) {
	b0 := New()
	require.NoError(t, b0.SetBit(0, true))
	require.NoError(t, b0.SetBit(4, true))
	b0.AdjustSize(b0.Size(), 6)

	assert.Equal(t, "100010", b0.String())
	assert.Equal(t, uint32(2), b0.Count())
	assert.True(t, b0.Test(0))
	assert.False(t, b0.Test(1))
	assert.True(t, b0.Test(4))
	assert.False(t, b0.Test(6))
}

func TestBitmap_SetBitOutOfOrder(t *testing.T) {
	b := New()
	require.NoError(t, b.SetBit(10, true))
	err := b.SetBit(3, true)
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, uint32(11), b.Size())
}

func TestBitmap_Fills(t *testing.T) {
	ones := NewFilled(31*100, true)
	assert.Equal(t, 1, ones.Words())
	assert.Equal(t, uint32(3100), ones.Count())
	assert.Equal(t, 8, ones.SerializedSize())

	zeros := NewFilled(31*100+5, false)
	assert.Equal(t, 1, zeros.Words())
	assert.Equal(t, uint32(0), zeros.Count())
	assert.Equal(t, 12, zeros.SerializedSize())
	assert.True(t, zeros.IsEmpty())

	// A single uniform group stays a literal.
	single := NewFilled(31, false)
	assert.Equal(t, 1, single.Words())
	assert.Equal(t, strings.Repeat("0", 31), single.String())
}

func TestBitmap_DeterministicPacking(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for _, n := range sizes {
		want := randomBits(r, n, 0.3)
		viaSet := fromString(t, want)
		viaAppend, err := Parse(want)
		require.NoError(t, err)

		a, err := viaSet.MarshalBinary()
		require.NoError(t, err)
		b, err := viaAppend.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, a, b, "n=%d", n)
	}
}

func TestBitmap_Logic(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	for _, n := range sizes {
		for _, density := range []float64{0.05, 0.5, 0.95} {
			sa, sb := randomBits(r, n, density), randomBits(r, n, 1-density)

			or := fromString(t, sa)
			require.NoError(t, or.Or(fromString(t, sb)))
			assert.Equal(t, orString(sa, sb), or.String())
			assert.True(t, or.Equal(fromString(t, orString(sa, sb))))

			and := fromString(t, sa)
			require.NoError(t, and.And(fromString(t, sb)))
			assert.Equal(t, andString(sa, sb), and.String())

			hit, err := fromString(t, sa).Intersects(fromString(t, sb))
			require.NoError(t, err)
			assert.Equal(t, strings.Contains(andString(sa, sb), "1"), hit)

			x := fromString(t, sa)
			require.NoError(t, x.Xor(fromString(t, sa)))
			assert.True(t, x.IsEmpty())
			assert.Equal(t, uint32(n), x.Size())
		}
	}
}

func TestBitmap_OrLengthMismatch(t *testing.T) {
	a := NewFilled(10, false)
	b := NewFilled(11, true)
	assert.ErrorIs(t, a.Or(b), ErrLengthMismatch)
	assert.Equal(t, uint32(10), a.Size())

	_, err := Or(a, b)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestOr_Variadic(t *testing.T) {
	a, _ := Parse("1000")
	b, _ := Parse("0100")
	c, _ := Parse("0001")

	res, err := Or(a, b, c)
	require.NoError(t, err)
	assert.Equal(t, "1101", res.String())
	assert.Equal(t, "1000", a.String(), "inputs are not modified")

	empty, err := Or()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), empty.Size())
}

func TestBitmap_AdjustSize(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))
	for _, n := range sizes {
		s := randomBits(r, n, 0.5)
		for _, lo := range []int{0, n / 3, n / 2, n} {
			b := fromString(t, s)
			b.AdjustSize(uint32(lo), uint32(n+40))
			want := s[:lo] + strings.Repeat("0", n+40-lo)
			assert.Equal(t, want, b.String(), "n=%d lo=%d", n, lo)
		}

		// Idempotent when both bounds equal the current size.
		b := fromString(t, s)
		before, _ := b.MarshalBinary()
		b.AdjustSize(uint32(n), uint32(n))
		after, _ := b.MarshalBinary()
		assert.Equal(t, before, after)
	}
}

func TestBitmap_Append(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 10))
	for _, n := range sizes {
		for _, m := range []int{0, 5, 31, 100} {
			sa, sb := randomBits(r, n, 0.4), randomBits(r, m, 0.6)
			a := fromString(t, sa)
			a.Append(fromString(t, sb))
			assert.Equal(t, sa+sb, a.String(), "n=%d m=%d", n, m)
			assert.True(t, a.Equal(fromString(t, sa+sb)))
		}
	}

	self, _ := Parse("101")
	self.Append(self)
	assert.Equal(t, "101101", self.String())
}

func TestBitmap_Runs(t *testing.T) {
	b, err := Parse("0110")
	require.NoError(t, err)
	b.AppendFill(true, 100)
	b.AppendFill(false, 3)
	b.AppendBit(true)

	var runs [][2]uint32
	for s, e := range b.Runs() {
		runs = append(runs, [2]uint32{s, e})
	}
	assert.Equal(t, [][2]uint32{{1, 3}, {4, 104}, {107, 108}}, runs)

	// Restartable and stoppable.
	first := slices.Collect(b.Bits())
	second := slices.Collect(b.Bits())
	assert.Equal(t, first, second)
	assert.Len(t, first, 2+100+1)

	var got []uint32
	for i := range b.Bits() {
		if len(got) == 3 {
			break
		}
		got = append(got, i)
	}
	assert.Equal(t, []uint32{1, 2, 4}, got)
}

func TestBitmap_Codec(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 12))
	for _, n := range sizes {
		b := fromString(t, randomBits(r, n, 0.3))
		data, err := b.MarshalBinary()
		require.NoError(t, err)
		assert.Len(t, data, b.SerializedSize())

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.True(t, b.Equal(decoded))
		assert.False(t, decoded.Shared())

		var viaUnmarshal Bitmap
		require.NoError(t, viaUnmarshal.UnmarshalBinary(data))
		assert.Equal(t, b.String(), viaUnmarshal.String())

		again, err := decoded.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, data, again)
	}
}

func TestBitmap_ViewCopyOnWrite(t *testing.T) {
	src := NewFilled(31*3, false)
	require.NoError(t, src.SetBit(31*3+40, true))
	src.AppendFill(true, 62)

	data, err := src.MarshalBinary()
	require.NoError(t, err)
	pristine := append([]byte(nil), data...)

	v, err := View(data)
	require.NoError(t, err)
	assert.True(t, v.Equal(src))

	v.AppendFill(true, 200)
	require.NoError(t, v.Or(NewFilled(v.Size(), true)))
	assert.False(t, v.Shared())
	assert.Equal(t, pristine, data, "mutation must not write through to the viewed buffer")
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unaligned", []byte{1, 2, 3}},
		{"active count too large", []byte{0, 0, 0, 0, 31, 0, 0, 0}},
		{"missing active word", []byte{3, 0, 0, 0}},
		{"active bits beyond count", []byte{0xff, 0, 0, 0, 2, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestRoaringInterop(t *testing.T) {
	r := rand.New(rand.NewPCG(13, 14))
	s := randomBits(r, 2000, 0.3)
	b := fromString(t, s)

	rb := b.ToRoaring()
	assert.Equal(t, uint64(b.Count()), rb.GetCardinality())

	back, err := FromRoaring(rb, 2000)
	require.NoError(t, err)
	assert.Equal(t, s, back.String())

	_, err = FromRoaring(rb, 10)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("01x")
	assert.Error(t, err)
}
