package bitvector

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unsafe"
)

var hostLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// SerializedSize returns the number of bytes written by WriteTo.
func (b *Bitmap) SerializedSize() int {
	n := len(b.words) + 1
	if b.nactive > 0 {
		n++
	}
	return 4 * n
}

// AppendBinary appends the serialized bitmap to dst.
func (b *Bitmap) AppendBinary(dst []byte) ([]byte, error) {
	for _, w := range b.words {
		dst = binary.LittleEndian.AppendUint32(dst, w)
	}
	if b.nactive > 0 {
		dst = binary.LittleEndian.AppendUint32(dst, b.active)
	}
	return binary.LittleEndian.AppendUint32(dst, b.nactive), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (b *Bitmap) MarshalBinary() ([]byte, error) {
	return b.AppendBinary(make([]byte, 0, b.SerializedSize()))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The bitmap keeps
// no reference to data.
func (b *Bitmap) UnmarshalBinary(data []byte) error {
	d, err := decode(data, false)
	if err != nil {
		return err
	}
	*b = *d
	return nil
}

// WriteTo writes the serialized bitmap to w.
func (b *Bitmap) WriteTo(w io.Writer) (int64, error) {
	buf, _ := b.MarshalBinary()
	n, err := w.Write(buf)
	return int64(n), err
}

// Decode returns a bitmap decoded from a private copy of data.
func Decode(data []byte) (*Bitmap, error) {
	return decode(data, false)
}

// View decodes data in place when the host byte order and alignment allow
// it. The returned bitmap aliases data until its first mutation or a call
// to Own; the caller must keep data alive and unchanged until then.
func View(data []byte) (*Bitmap, error) {
	return decode(data, true)
}

func decode(data []byte, alias bool) (*Bitmap, error) {
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrCorrupt, len(data))
	}
	nw := len(data)/4 - 1
	nactive := binary.LittleEndian.Uint32(data[4*nw:])
	if nactive >= GroupBits {
		return nil, fmt.Errorf("%w: active bit count %d", ErrCorrupt, nactive)
	}
	b := &Bitmap{nactive: nactive}
	if nactive > 0 {
		if nw == 0 {
			return nil, fmt.Errorf("%w: missing active word", ErrCorrupt)
		}
		nw--
		b.active = binary.LittleEndian.Uint32(data[4*nw:])
		if b.active&^lowMask(nactive) != 0 {
			return nil, fmt.Errorf("%w: active word 0x%08x exceeds %d bits", ErrCorrupt, b.active, nactive)
		}
	}

	body := data[:4*nw]
	switch {
	case nw == 0:
	case alias && hostLittleEndian && uintptr(unsafe.Pointer(&body[0]))%4 == 0:
		b.words = unsafe.Slice((*uint32)(unsafe.Pointer(&body[0])), nw)
		b.shared = true
	default:
		b.words = make([]uint32, nw)
		for i := range b.words {
			b.words[i] = binary.LittleEndian.Uint32(body[4*i:])
		}
	}

	var nbits uint64
	for _, w := range b.words {
		if isFill(w) {
			nbits += uint64(fillCount(w)) * GroupBits
		} else {
			nbits += GroupBits
		}
	}
	if nbits+uint64(nactive) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bits exceed the addressable size", ErrCorrupt, nbits+uint64(nactive))
	}
	b.nbits = uint32(nbits)
	return b, nil
}
