// Package codec centralizes the compression of column and index files.
//
// The codec of a file is selected by its extension, so a compressed file is
// self-describing: "col.i32.zst" holds zstd frames, "col.i32.lz4" holds lz4
// frames and anything else is stored as is.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies a compression format.
type Compression uint8

const (
	// None stores bytes uncompressed.
	None Compression = iota
	// LZ4 uses lz4 frames (fast, good for hot data).
	LZ4
	// Zstd uses zstd frames (better ratio, good for cold data).
	Zstd
)

// String returns the stable name of the compression.
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// Ext returns the file extension that selects c, including the dot.
func (c Compression) Ext() string {
	switch c {
	case LZ4:
		return ".lz4"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// ByName returns a compression by its stable name.
func ByName(name string) (Compression, bool) {
	switch name {
	case "", "none":
		return None, true
	case "lz4":
		return LZ4, true
	case "zstd", "zst":
		return Zstd, true
	default:
		return None, false
	}
}

// ForPath returns the compression selected by the extension of path.
func ForPath(path string) Compression {
	switch filepath.Ext(path) {
	case ".lz4":
		return LZ4
	case ".zst":
		return Zstd
	default:
		return None
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compress returns data compressed with c.
func Compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case None:
		return data, nil
	case Zstd:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	case LZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("codec: unknown compression %s", c)
	}
}

// Decompress returns data decompressed with c. sizeHint, when positive,
// presizes the output.
func Decompress(c Compression, data []byte, sizeHint int) ([]byte, error) {
	switch c {
	case None:
		return data, nil
	case Zstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, make([]byte, 0, max(sizeHint, 0)))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	case LZ4:
		out := bytes.NewBuffer(make([]byte, 0, max(sizeHint, 0)))
		if _, err := io.Copy(out, lz4.NewReader(bytes.NewReader(data))); err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out.Bytes(), nil
	default:
		return nil, fmt.Errorf("codec: unknown compression %s", c)
	}
}
