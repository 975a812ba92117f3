package indexfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/direkte/bitvector"
)

// bodySize returns the number of bytes bitmap b occupies in an index file.
// Absent and empty bitmaps take none.
func bodySize(b *bitvector.Bitmap) int64 {
	if b == nil || b.IsEmpty() {
		return 0
	}
	return int64(b.SerializedSize())
}

// Layout computes the header and offsets of an index over bms. A width of
// zero selects the smallest sufficient offset width.
func Layout(nrows uint32, bms []*bitvector.Bitmap, width uint8) (Header, []int64, error) {
	var body int64
	for _, b := range bms {
		body += bodySize(b)
	}
	if width == 0 {
		width = OffsetWidth(len(bms), body)
	}
	h := Header{OffsetWidth: width, NRows: nrows, K: uint32(len(bms))}
	if width != 4 && width != 8 {
		return Header{}, nil, fmt.Errorf("%w: %d", ErrBadOffsetWidth, width)
	}
	if width == 4 && h.TableEnd()+body >= wideLimit {
		return Header{}, nil, fmt.Errorf("%w: %d bytes do not fit 4 byte offsets", ErrBadOffsetWidth, h.TableEnd()+body)
	}
	offsets := make([]int64, len(bms)+1)
	offsets[0] = h.TableEnd()
	for i, b := range bms {
		offsets[i+1] = offsets[i] + bodySize(b)
	}
	return h, offsets, nil
}

func appendOffsets(dst []byte, width uint8, offsets []int64) []byte {
	for _, off := range offsets {
		if width == 4 {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(off))
		} else {
			dst = binary.LittleEndian.AppendUint64(dst, uint64(off))
		}
	}
	return dst
}

// countingWriter tracks the number of bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// writeBodies writes the non-empty bitmaps in order and returns the
// cumulative offsets observed, starting at start.
func writeBodies(w io.Writer, start int64, bms []*bitvector.Bitmap) ([]int64, error) {
	cw := &countingWriter{w: w, n: start}
	offsets := make([]int64, 0, len(bms)+1)
	offsets = append(offsets, start)
	var buf []byte
	for v, b := range bms {
		if bodySize(b) > 0 {
			var err error
			buf, err = b.AppendBinary(buf[:0])
			if err != nil {
				return nil, err
			}
			if _, err := cw.Write(buf); err != nil {
				return nil, fmt.Errorf("write bitmap %d: %w", v, err)
			}
		}
		offsets = append(offsets, cw.n)
	}
	return offsets, nil
}

// Write emits an index file to f in two phases: the header and a
// placeholder offset table, then the bitmap bodies while recording their
// offsets, and finally the real offset table written in place. A width of
// zero selects the smallest sufficient offset width. The last returned
// offset is the file length.
func Write(f io.WriteSeeker, nrows uint32, bms []*bitvector.Bitmap, width uint8) ([]int64, error) {
	h, _, err := Layout(nrows, bms, width)
	if err != nil {
		return nil, err
	}
	head, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}

	bw := bufio.NewWriterSize(f, 256*1024)
	if _, err := bw.Write(head); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := bw.Write(make([]byte, h.TableEnd()-HeaderSize)); err != nil {
		return nil, fmt.Errorf("reserve offsets: %w", err)
	}
	offsets, err := writeBodies(bw, h.TableEnd(), bms)
	if err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("write bitmaps: %w", err)
	}

	if _, err := f.Seek(HeaderSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to offsets: %w", err)
	}
	if _, err := f.Write(appendOffsets(nil, h.OffsetWidth, offsets)); err != nil {
		return nil, fmt.Errorf("write offsets: %w", err)
	}
	if _, err := f.Seek(offsets[len(offsets)-1], io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to end: %w", err)
	}
	return offsets, nil
}

// Encode streams an index file to w. Offsets are computed up front from
// the bitmap sizes, so w need not be seekable. It returns the offsets.
func Encode(w io.Writer, nrows uint32, bms []*bitvector.Bitmap, width uint8) ([]int64, error) {
	h, offsets, err := Layout(nrows, bms, width)
	if err != nil {
		return nil, err
	}
	head, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(w, 256*1024)
	if _, err := bw.Write(appendOffsets(head, h.OffsetWidth, offsets)); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	written, err := writeBodies(bw, h.TableEnd(), bms)
	if err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("write bitmaps: %w", err)
	}
	if got, want := written[len(written)-1], offsets[len(offsets)-1]; got != want {
		return nil, fmt.Errorf("indexfile: wrote %d bytes, expected %d", got, want)
	}
	return offsets, nil
}

// Size returns the length of the index file Write or Encode would produce.
func Size(nrows uint32, bms []*bitvector.Bitmap, width uint8) (int64, error) {
	_, offsets, err := Layout(nrows, bms, width)
	if err != nil {
		return 0, err
	}
	return offsets[len(offsets)-1], nil
}
