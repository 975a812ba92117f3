package column

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/hupe1980/direkte/bitvector"
	"github.com/hupe1980/direkte/codec"
	"github.com/hupe1980/direkte/internal/filemanager"
	"github.com/hupe1980/direkte/internal/fs"
)

// File is a column of fixed-width little-endian integers stored in a file.
// Files ending in ".zst" or ".lz4" are decompressed when loaded.
type File struct {
	typ     ElementType
	storage *filemanager.Storage
}

// OpenFile opens the column file at path through fm. The caller must Close
// the returned File.
func OpenFile(ctx context.Context, fm *filemanager.Manager, path string, typ ElementType) (*File, error) {
	if !typ.IsInteger() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, typ)
	}
	s, err := fm.GetFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if s.Len()%typ.Size() != 0 {
		_ = s.Release()
		return nil, fmt.Errorf("%w: %s holds %d bytes, not a multiple of %d", ErrShortColumn, path, s.Len(), typ.Size())
	}
	return &File{typ: typ, storage: s}, nil
}

// Close releases the underlying storage.
func (f *File) Close() error {
	if f.storage == nil {
		return nil
	}
	err := f.storage.Release()
	f.storage = nil
	return err
}

// ElementSize implements Source.
func (f *File) ElementSize() int { return f.typ.Size() }

// Len implements Source.
func (f *File) Len() uint32 {
	n := int64(f.storage.Len() / f.typ.Size())
	if n > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}

// Scan implements Source.
func (f *File) Scan(mask *bitvector.Bitmap, fn func(row uint32, v int64) error) error {
	data := f.storage.Bytes()
	size := f.typ.Size()
	return scanRows(mask, f.Len(), func(row uint32) error {
		v, err := decodeValue(f.typ, data[int(row)*size:])
		if err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		return fn(row, v)
	})
}

func decodeValue(t ElementType, b []byte) (int64, error) {
	switch t {
	case Int8:
		return int64(int8(b[0])), nil
	case Uint8:
		return int64(b[0]), nil
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(b))), nil
	case Uint16:
		return int64(binary.LittleEndian.Uint16(b)), nil
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(b))), nil
	case Uint32:
		return int64(binary.LittleEndian.Uint32(b)), nil
	case Int64:
		return int64(binary.LittleEndian.Uint64(b)), nil
	case Uint64:
		u := binary.LittleEndian.Uint64(b)
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d", ErrValueOutOfRange, u)
		}
		return int64(u), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

func appendValue(dst []byte, t ElementType, v int64) ([]byte, error) {
	var ok bool
	switch t {
	case Int8:
		ok = v >= math.MinInt8 && v <= math.MaxInt8
		dst = append(dst, byte(v))
	case Uint8:
		ok = v >= 0 && v <= math.MaxUint8
		dst = append(dst, byte(v))
	case Int16:
		ok = v >= math.MinInt16 && v <= math.MaxInt16
		dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
	case Uint16:
		ok = v >= 0 && v <= math.MaxUint16
		dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
	case Int32:
		ok = v >= math.MinInt32 && v <= math.MaxInt32
		dst = binary.LittleEndian.AppendUint32(dst, uint32(v))
	case Uint32:
		ok = v >= 0 && v <= math.MaxUint32
		dst = binary.LittleEndian.AppendUint32(dst, uint32(v))
	case Int64:
		ok = true
		dst = binary.LittleEndian.AppendUint64(dst, uint64(v))
	case Uint64:
		ok = v >= 0
		dst = binary.LittleEndian.AppendUint64(dst, uint64(v))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d does not fit %s", ErrValueOutOfRange, v, t)
	}
	return dst, nil
}

// Encode returns values in the file representation of t, compressed with c.
func Encode(t ElementType, values []int64, c codec.Compression) ([]byte, error) {
	buf := make([]byte, 0, len(values)*t.Size())
	for _, v := range values {
		var err error
		if buf, err = appendValue(buf, t, v); err != nil {
			return nil, err
		}
	}
	return codec.Compress(c, buf)
}

// WriteFile writes values as a column file of type t. The compression is
// chosen by the extension of path.
func WriteFile(fsys fs.FileSystem, path string, t ElementType, values []int64) error {
	data, err := Encode(t, values, codec.ForPath(path))
	if err != nil {
		return err
	}
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
