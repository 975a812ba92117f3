// Package query describes the predicates a direct bitmap index answers and
// maps them onto half-open intervals of bitmap keys.
package query

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Operator represents a comparison operator of a range bound.
type Operator string

const (
	// OpNone leaves a side of the range unbounded.
	OpNone Operator = ""
	// OpLessThan represents the strict less-than operator.
	OpLessThan Operator = "lt"
	// OpLessEqual represents the less-than-or-equal operator.
	OpLessEqual Operator = "lte"
	// OpGreaterThan represents the strict greater-than operator.
	OpGreaterThan Operator = "gt"
	// OpGreaterEqual represents the greater-than-or-equal operator.
	OpGreaterEqual Operator = "gte"
	// OpEqual represents the equality operator.
	OpEqual Operator = "eq"
)

// Valid reports whether op is one of the known operators.
func (op Operator) Valid() bool {
	switch op {
	case OpNone, OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual, OpEqual:
		return true
	default:
		return false
	}
}

// Symbol returns the mathematical spelling of op.
func (op Operator) Symbol() string {
	switch op {
	case OpLessThan:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpEqual:
		return "=="
	default:
		return string(op)
	}
}

// flip returns the operator o such that "v op x" is equivalent to "x o v".
func (op Operator) flip() Operator {
	switch op {
	case OpLessThan:
		return OpGreaterThan
	case OpLessEqual:
		return OpGreaterEqual
	case OpGreaterThan:
		return OpLessThan
	case OpGreaterEqual:
		return OpLessEqual
	default:
		return op
	}
}

// Predicate is either a Range or a Set.
type Predicate interface {
	fmt.Stringer
	predicate()
}

// Range is a continuous predicate "Left LeftOp x RightOp Right". A side with
// OpNone is unbounded.
type Range struct {
	LeftOp  Operator
	Left    float64
	RightOp Operator
	Right   float64
}

// NewRange creates the range "left leftOp x rightOp right".
func NewRange(leftOp Operator, left float64, rightOp Operator, right float64) Range {
	return Range{LeftOp: leftOp, Left: left, RightOp: rightOp, Right: right}
}

// Compare creates the one-sided range "x op v".
func Compare(op Operator, v float64) Range {
	return Range{RightOp: op, Right: v}
}

// Equal creates the range "x == v".
func Equal(v float64) Range {
	return Range{LeftOp: OpEqual, Left: v, RightOp: OpEqual, Right: v}
}

// Between creates the half-open range "lo <= x < hi".
func Between(lo, hi float64) Range {
	return Range{LeftOp: OpLessEqual, Left: lo, RightOp: OpLessThan, Right: hi}
}

func (Range) predicate() {}

// Valid reports whether both operators are known.
func (r Range) Valid() bool {
	return r.LeftOp.Valid() && r.RightOp.Valid()
}

func (r Range) String() string {
	var sb strings.Builder
	if r.LeftOp != OpNone {
		sb.WriteString(formatFloat(r.Left))
		sb.WriteByte(' ')
		sb.WriteString(r.LeftOp.Symbol())
		sb.WriteByte(' ')
	}
	sb.WriteByte('x')
	if r.RightOp != OpNone {
		sb.WriteByte(' ')
		sb.WriteString(r.RightOp.Symbol())
		sb.WriteByte(' ')
		sb.WriteString(formatFloat(r.Right))
	}
	return sb.String()
}

// Matches reports whether the value v satisfies the range.
func (r Range) Matches(v float64) bool {
	return matches(v, r.LeftOp.flip(), r.Left) && matches(v, r.RightOp, r.Right)
}

func matches(x float64, op Operator, v float64) bool {
	switch op {
	case OpNone:
		return true
	case OpLessThan:
		return x < v
	case OpLessEqual:
		return x <= v
	case OpGreaterThan:
		return x > v
	case OpGreaterEqual:
		return x >= v
	case OpEqual:
		return x == v
	default:
		return false
	}
}

// Locate maps the range onto the half-open interval [ib, ie) of integer keys
// in [0, k) that satisfy it. An empty result has ib == ie. ok is false when
// an operator is unknown.
func (r Range) Locate(k uint32) (ib, ie uint32, ok bool) {
	if !r.Valid() {
		return 0, k, false
	}
	lo, hi := 0.0, float64(k)
	lo, hi = bound(lo, hi, r.LeftOp.flip(), r.Left)
	lo, hi = bound(lo, hi, r.RightOp, r.Right)
	if !(lo < hi) {
		// Also catches NaN bounds.
		e := uint32(min(max(lo, 0), float64(k)))
		return e, e, true
	}
	return uint32(lo), uint32(hi), true
}

// bound narrows the integer interval [lo, hi) by the constraint "x op v".
func bound(lo, hi float64, op Operator, v float64) (float64, float64) {
	if math.IsNaN(v) && op != OpNone {
		return lo, lo
	}
	switch op {
	case OpLessThan:
		hi = min(hi, math.Ceil(v))
	case OpLessEqual:
		hi = min(hi, math.Floor(v)+1)
	case OpGreaterThan:
		lo = max(lo, math.Floor(v)+1)
	case OpGreaterEqual:
		lo = max(lo, math.Ceil(v))
	case OpEqual:
		if v != math.Floor(v) {
			return lo, lo
		}
		lo, hi = max(lo, v), min(hi, v+1)
	}
	return lo, hi
}

// Set is a discrete predicate "x in Values".
type Set struct {
	Values []float64
}

// NewSet creates a set predicate. The values are sorted and deduplicated.
func NewSet(values ...float64) Set {
	vs := slices.Clone(values)
	slices.Sort(vs)
	return Set{Values: slices.Compact(vs)}
}

func (Set) predicate() {}

func (s Set) String() string {
	parts := make([]string, len(s.Values))
	for i, v := range s.Values {
		parts[i] = formatFloat(v)
	}
	return "x in {" + strings.Join(parts, ", ") + "}"
}

// Keys returns the distinct keys floor(v) in [0, k) named by the set, in
// increasing order.
func (s Set) Keys(k uint32) []uint32 {
	keys := make([]uint32, 0, len(s.Values))
	for _, v := range s.Values {
		f := math.Floor(v)
		if !(f >= 0 && f < float64(k)) {
			continue
		}
		keys = append(keys, uint32(f))
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
