// Package column describes the base data an index is built from: column
// metadata, the non-null mask, and value sources backed by files or
// in-memory arrays.
package column

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/direkte/bitvector"
)

var (
	// ErrValueOutOfRange is returned for values an index cannot key on.
	ErrValueOutOfRange = errors.New("column: value out of range")
	// ErrUnsupportedType is returned for element types without integer keys.
	ErrUnsupportedType = errors.New("column: unsupported element type")
	// ErrShortColumn is returned when the mask names rows the data lacks.
	ErrShortColumn = errors.New("column: fewer values than rows")
)

// ElementType is the physical type of the values of a column.
type ElementType uint8

// Supported element types.
const (
	Int8 ElementType = iota + 1
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	Text
)

var typeNames = map[ElementType]string{
	Int8: "int8", Uint8: "uint8", Int16: "int16", Uint16: "uint16",
	Int32: "int32", Uint32: "uint32", Int64: "int64", Uint64: "uint64",
	Float32: "float32", Float64: "float64", Text: "text",
}

func (t ElementType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseElementType returns the type with the given name.
func ParseElementType(name string) (ElementType, error) {
	for t, s := range typeNames {
		if s == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, name)
}

// Size returns the width of one value in bytes, or 0 for Text.
func (t ElementType) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// IsInteger reports whether t is a fixed-width integer type.
func (t ElementType) IsInteger() bool {
	return t >= Int8 && t <= Uint64
}

// Signed reports whether t is a signed integer type.
func (t ElementType) Signed() bool {
	switch t {
	case Int8, Int16, Int32, Int64:
		return true
	default:
		return false
	}
}

// Meta describes a column as far as an index needs it.
type Meta struct {
	Name string
	Type ElementType
	// UpperBound is the largest value the column is declared to hold.
	UpperBound uint64
	// Mask marks the rows holding a value. A nil mask means all NRows rows.
	Mask *bitvector.Bitmap
	// NRows is the number of rows when Mask is nil.
	NRows uint32
	// DataPath is the file holding the values, if any.
	DataPath string
}

// Rows returns the number of rows of the column.
func (m Meta) Rows() uint32 {
	if m.Mask != nil {
		return m.Mask.Size()
	}
	return m.NRows
}

// NonNull returns the non-null mask, materializing the all-rows mask when
// Mask is nil.
func (m Meta) NonNull() *bitvector.Bitmap {
	if m.Mask != nil {
		return m.Mask
	}
	return bitvector.NewFilled(m.NRows, true)
}

// Validate checks that the column can carry a direct index.
func (m Meta) Validate() error {
	if !m.Type.IsInteger() {
		return fmt.Errorf("%w: column %q is %s", ErrUnsupportedType, m.Name, m.Type)
	}
	return nil
}

// MaskFromRoaring converts a roaring set of non-null row ids into a mask of
// nrows bits.
func MaskFromRoaring(rb *roaring.Bitmap, nrows uint32) (*bitvector.Bitmap, error) {
	return bitvector.FromRoaring(rb, nrows)
}

// Source yields the values of a column.
type Source interface {
	// ElementSize returns the width of one value in bytes.
	ElementSize() int
	// Len returns the number of values available.
	Len() uint32
	// Scan calls fn with the row and value of every row set in mask, in
	// increasing row order. It stops at the first error fn returns.
	Scan(mask *bitvector.Bitmap, fn func(row uint32, v int64) error) error
}

// scanRows walks the set rows of mask, failing with ErrShortColumn once a
// row reaches n.
func scanRows(mask *bitvector.Bitmap, n uint32, fn func(row uint32) error) error {
	for start, end := range mask.Runs() {
		if end > n {
			return fmt.Errorf("%w: row %d of %d", ErrShortColumn, max(start, n), n)
		}
		for row := start; row < end; row++ {
			if err := fn(row); err != nil {
				return err
			}
		}
	}
	return nil
}
