package query

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRange_Locate(t *testing.T) {
	tests := []struct {
		name   string
		r      Range
		ib, ie uint32
	}{
		{"x >= 1", Compare(OpGreaterEqual, 1), 1, 3},
		{"x > 1", Compare(OpGreaterThan, 1), 2, 3},
		{"x > 0.5", Compare(OpGreaterThan, 0.5), 1, 3},
		{"x >= 0.5", Compare(OpGreaterEqual, 0.5), 1, 3},
		{"x < 2", Compare(OpLessThan, 2), 0, 2},
		{"x < 1.5", Compare(OpLessThan, 1.5), 0, 2},
		{"x <= 1", Compare(OpLessEqual, 1), 0, 2},
		{"x <= 1.5", Compare(OpLessEqual, 1.5), 0, 2},
		{"x < 0", Compare(OpLessThan, 0), 0, 0},
		{"x >= -4", Compare(OpGreaterEqual, -4), 0, 3},
		{"x > 99", Compare(OpGreaterThan, 99), 3, 3},
		{"x == 1", Equal(1), 1, 2},
		{"x == 1.5", Equal(1.5), 0, 0},
		{"x == 7", Equal(7), 3, 3},
		{"x == -1", Equal(-1), 0, 0},
		{"0.5 < x <= 2", NewRange(OpLessThan, 0.5, OpLessEqual, 2), 1, 3},
		{"1 <= x < 2", Between(1, 2), 1, 2},
		{"2 < x < 1", NewRange(OpLessThan, 2, OpLessThan, 1), 3, 3},
		{"2 > x", NewRange(OpGreaterThan, 2, OpNone, 0), 0, 2},
		{"unbounded", Range{}, 0, 3},
		{"NaN", Compare(OpLessThan, math.NaN()), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ib, ie, ok := tt.r.Locate(3)
			assert.True(t, ok)
			assert.Equal(t, tt.ib, ib, "ib")
			assert.Equal(t, tt.ie, ie, "ie")
		})
	}
}

func TestRange_LocateUnknownOperator(t *testing.T) {
	r := Range{RightOp: Operator("like"), Right: 1}
	assert.False(t, r.Valid())
	ib, ie, ok := r.Locate(5)
	assert.False(t, ok)
	assert.Equal(t, uint32(0), ib)
	assert.Equal(t, uint32(5), ie)
}

func TestRange_LocateMatchesOracle(t *testing.T) {
	ops := []Operator{OpNone, OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual, OpEqual}
	r := rand.New(rand.NewPCG(1, 1))
	const k = 12
	for range 2000 {
		q := NewRange(
			ops[r.IntN(len(ops))], float64(r.IntN(32)-8)/2,
			ops[r.IntN(len(ops))], float64(r.IntN(32)-8)/2,
		)
		ib, ie, ok := q.Locate(k)
		assert.True(t, ok)
		assert.LessOrEqual(t, ib, ie)
		for x := uint32(0); x < k; x++ {
			in := x >= ib && x < ie
			assert.Equal(t, q.Matches(float64(x)), in, "%s at %d", q, x)
		}
	}
}

func TestSet_Keys(t *testing.T) {
	s := NewSet(7, 2, 0, 2.5, -1, 2)
	assert.Equal(t, []float64{-1, 0, 2, 2.5, 7}, s.Values)
	assert.Equal(t, []uint32{0, 2}, s.Keys(3))
	assert.Equal(t, []uint32{0, 2, 7}, s.Keys(8))
	assert.Empty(t, NewSet().Keys(3))
}

func TestPredicate_String(t *testing.T) {
	assert.Equal(t, "x >= 1", Compare(OpGreaterEqual, 1).String())
	assert.Equal(t, "0.5 < x <= 2", NewRange(OpLessThan, 0.5, OpLessEqual, 2).String())
	assert.Equal(t, "x in {0, 2, 7}", NewSet(0, 2, 7).String())

	var p Predicate = Equal(3)
	assert.Equal(t, "3 == x == 3", p.String())
}
