package mmap

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned by a Mapping after Close.
	ErrClosed = errors.New("mmap: closed")
	// ErrTooLarge is returned for files that do not fit the address space.
	ErrTooLarge = errors.New("mmap: file too large")
	// ErrRange is returned for byte ranges outside the mapping.
	ErrRange = errors.New("mmap: range out of bounds")
)

// Advice describes the expected access pattern of a mapping.
type Advice uint8

// Access patterns.
const (
	Normal Advice = iota
	Sequential
	Random
	WillNeed
)

// Mapping is a read-only view of a whole file.
type Mapping struct {
	path   string
	data   []byte
	unmap  func() error
	closed atomic.Bool
}

// Open maps the file at path. An empty file yields an empty mapping that
// holds no system resources.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > math.MaxInt {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, info.Size())
	}
	m := &Mapping{path: path}
	if info.Size() == 0 {
		return m, nil
	}
	m.data, m.unmap, err = mapFile(f, int(info.Size()))
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return m, nil
}

// Path returns the mapped file.
func (m *Mapping) Path() string { return m.path }

// Len returns the number of mapped bytes.
func (m *Mapping) Len() int { return len(m.data) }

// Bytes returns the mapped content, or nil after Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Advise hints the access pattern of the whole mapping.
func (m *Mapping) Advise(a Advice) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return advise(m.data, a)
}

// Prefetch asks the kernel to read [off, off+n) ahead of use. The range is
// widened to page boundaries.
func (m *Mapping) Prefetch(off, n int64) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if off < 0 || n < 0 || off+n > int64(len(m.data)) {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrRange, off, off+n, len(m.data))
	}
	if n == 0 {
		return nil
	}
	page := int64(os.Getpagesize())
	lo := off / page * page
	return advise(m.data[lo:off+n], WillNeed)
}

// Close unmaps the file. Later calls are no-ops.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || m.unmap == nil {
		return nil
	}
	return m.unmap()
}
