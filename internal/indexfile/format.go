package indexfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// HeaderSize is the size of the fixed header preceding the offset table.
	HeaderSize = 16

	// TypeDirekte identifies a direct equality bitmap index.
	TypeDirekte = 0x0B

	// wideLimit is the file size from which offsets need 8 bytes.
	wideLimit = 1 << 31
)

// Magic opens every index file.
var Magic = [5]byte{'#', 'I', 'B', 'I', 'S'}

var (
	// ErrBadMagic is returned when the file does not start with the index magic.
	ErrBadMagic = errors.New("indexfile: bad magic")
	// ErrBadOffsetWidth is returned when the offset width is neither 4 nor 8.
	ErrBadOffsetWidth = errors.New("indexfile: bad offset width")
	// ErrTruncated is returned when the file is shorter than its header or offsets claim.
	ErrTruncated = errors.New("indexfile: truncated")
	// ErrNonMonotonicOffsets is returned when the offset table decreases.
	ErrNonMonotonicOffsets = errors.New("indexfile: non-monotonic offsets")
	// ErrBadArrays is returned when the array form of an index is inconsistent.
	ErrBadArrays = errors.New("indexfile: inconsistent arrays")
)

// Header is the fixed part of an index file.
type Header struct {
	OffsetWidth uint8
	NRows       uint32
	K           uint32
}

// TableEnd returns the position of the first byte after the offset table.
func (h Header) TableEnd() int64 {
	return HeaderSize + int64(h.OffsetWidth)*(int64(h.K)+1)
}

// MarshalBinary encodes the 16 header bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	if h.OffsetWidth != 4 && h.OffsetWidth != 8 {
		return nil, fmt.Errorf("%w: %d", ErrBadOffsetWidth, h.OffsetWidth)
	}
	buf := make([]byte, HeaderSize)
	copy(buf, Magic[:])
	buf[5] = TypeDirekte
	buf[6] = h.OffsetWidth
	binary.LittleEndian.PutUint32(buf[8:], h.NRows)
	binary.LittleEndian.PutUint32(buf[12:], h.K)
	return buf, nil
}

// ParseHeader decodes and validates the fixed header.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d for the header", ErrTruncated, len(data), HeaderSize)
	}
	if [5]byte(data[:5]) != Magic || data[5] != TypeDirekte {
		return Header{}, fmt.Errorf("%w: %q type 0x%02x", ErrBadMagic, data[:5], data[5])
	}
	h := Header{
		OffsetWidth: data[6],
		NRows:       binary.LittleEndian.Uint32(data[8:]),
		K:           binary.LittleEndian.Uint32(data[12:]),
	}
	if h.OffsetWidth != 4 && h.OffsetWidth != 8 {
		return Header{}, fmt.Errorf("%w: %d", ErrBadOffsetWidth, h.OffsetWidth)
	}
	return h, nil
}

// Block is a parsed index file: its header and absolute bitmap offsets.
type Block struct {
	Header
	Offsets []int64 // K+1 entries
}

// Parse validates the header and offset table of an index file held in
// data. The bitmap bodies are not decoded.
func Parse(data []byte) (*Block, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	end := h.TableEnd()
	if int64(len(data)) < end {
		return nil, fmt.Errorf("%w: %d bytes, offset table ends at %d", ErrTruncated, len(data), end)
	}
	offsets := make([]int64, h.K+1)
	table := data[HeaderSize:end]
	for i := range offsets {
		if h.OffsetWidth == 4 {
			offsets[i] = int64(binary.LittleEndian.Uint32(table[4*i:]))
		} else {
			u := binary.LittleEndian.Uint64(table[8*i:])
			if u > math.MaxInt64 {
				return nil, fmt.Errorf("%w: offset %d overflows", ErrNonMonotonicOffsets, i)
			}
			offsets[i] = int64(u)
		}
	}
	if offsets[0] < end {
		return nil, fmt.Errorf("%w: first bitmap at %d inside the offset table ending at %d", ErrNonMonotonicOffsets, offsets[0], end)
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return nil, fmt.Errorf("%w: offsets[%d]=%d < offsets[%d]=%d", ErrNonMonotonicOffsets, i, offsets[i], i-1, offsets[i-1])
		}
	}
	if last := offsets[h.K]; last > int64(len(data)) {
		return nil, fmt.Errorf("%w: %d bytes, bitmaps end at %d", ErrTruncated, len(data), last)
	}
	return &Block{Header: h, Offsets: offsets}, nil
}

// Body returns the serialized bytes of bitmap v. The slice aliases data and
// is empty for an absent bitmap.
func (b *Block) Body(data []byte, v uint32) []byte {
	return data[b.Offsets[v]:b.Offsets[v+1]:b.Offsets[v+1]]
}

// OffsetWidth returns the smallest offset width for an index with k bitmaps
// whose bodies take body bytes: 4 when the file stays strictly below 2^31
// bytes, 8 otherwise.
func OffsetWidth(k int, body int64) uint8 {
	if HeaderSize+4*int64(k+1)+body < wideLimit {
		return 4
	}
	return 8
}
