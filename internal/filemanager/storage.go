package filemanager

import (
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hupe1980/direkte/internal/mmap"
	"github.com/hupe1980/direkte/internal/resource"
)

// Storage is the content of one file, either memory-mapped or copied onto
// the heap. It is reference counted: the manager holds one reference while
// the storage is reachable by name, and every GetFile hands out another.
// The bytes stay valid until the last reference is released.
type Storage struct {
	id      uuid.UUID
	path    string
	info    os.FileInfo // file state when loaded
	data    []byte
	mapping *mmap.Mapping         // nil for heap storages
	heap    *resource.Reservation // nil for mapped storages
	mgr     *Manager
	refs    atomic.Int32
}

// ID identifies this generation of the file. A path that is flushed and
// loaded again yields a storage with a new ID.
func (s *Storage) ID() uuid.UUID { return s.id }

// Path returns the file the storage was loaded from.
func (s *Storage) Path() string { return s.path }

// Bytes returns the file content. The caller must hold a reference.
func (s *Storage) Bytes() []byte { return s.data }

// Len returns the size of the file content in bytes.
func (s *Storage) Len() int { return len(s.data) }

// Mapped reports whether the content is memory-mapped.
func (s *Storage) Mapped() bool { return s.mapping != nil }

// Prefetch asks the system to read [off, off+n) of a mapped storage ahead
// of use. It does nothing for heap storages.
func (s *Storage) Prefetch(off, n int64) error {
	if s.mapping == nil {
		return nil
	}
	return s.mapping.Prefetch(off, n)
}

// Refs returns the current reference count.
func (s *Storage) Refs() int32 { return s.refs.Load() }

// Acquire adds a reference. It returns false if the storage has already
// been freed.
func (s *Storage) Acquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference and frees the content when it was the last.
func (s *Storage) Release() error {
	n := s.refs.Add(-1)
	switch {
	case n > 0:
		return nil
	case n < 0:
		panic("filemanager: storage released more often than acquired")
	}
	return s.free()
}

func (s *Storage) free() error {
	s.data = nil
	if s.mgr != nil {
		s.mgr.freed(s)
	}
	if s.mapping != nil {
		return s.mapping.Close()
	}
	return nil
}
