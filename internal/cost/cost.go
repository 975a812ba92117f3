// Package cost estimates how many index bytes a query has to touch.
//
// Every estimate is computed from the offset table of an index file:
// offsets[v+1]-offsets[v] is the serialized size of the bitmap for key v.
package cost

// Interval is a half-open interval [Begin, End) of keys.
type Interval struct {
	Begin, End uint32
}

// Total returns the number of bytes held by all bitmaps.
func Total(offsets []int64) int64 {
	if len(offsets) < 2 {
		return 0
	}
	return offsets[len(offsets)-1] - offsets[0]
}

// Span returns the bytes of the bitmaps in [ib, ie), clamped to the table.
func Span(offsets []int64, ib, ie uint32) int64 {
	k := uint32(max(len(offsets)-1, 0))
	ie = min(ie, k)
	if ib >= ie {
		return 0
	}
	return offsets[ie] - offsets[ib]
}

// Range returns the cost of evaluating the union of the bitmaps in [ib, ie).
// A union can always be computed as the complement of the union of the
// remaining bitmaps, so the cost is the smaller of the two.
func Range(offsets []int64, ib, ie uint32) int64 {
	return Intervals(offsets, Interval{ib, ie})
}

// Intervals is Range over a union of disjoint intervals.
func Intervals(offsets []int64, ivs ...Interval) int64 {
	var mid int64
	for _, iv := range ivs {
		mid += Span(offsets, iv.Begin, iv.End)
	}
	return min(mid, Total(offsets)-mid)
}

// Complement returns the intervals of [0, k) not covered by [ib, ie).
func Complement(k, ib, ie uint32) []Interval {
	ie = min(ie, k)
	ib = min(ib, ie)
	var out []Interval
	if ib > 0 {
		out = append(out, Interval{0, ib})
	}
	if ie < k {
		out = append(out, Interval{ie, k})
	}
	return out
}

// Keys returns the bytes of the bitmaps named by keys. Keys beyond the
// table are ignored.
func Keys(offsets []int64, keys []uint32) int64 {
	var sum int64
	for _, v := range keys {
		sum += Span(offsets, v, v+1)
	}
	return sum
}

// Scan is the cost of reading a column of nrows values of elemSize bytes.
func Scan(elemSize int, nrows uint32) int64 {
	return int64(elemSize) * int64(nrows)
}
