package filemanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/direkte/codec"
	"github.com/hupe1980/direkte/internal/fs"
	"github.com/hupe1980/direkte/internal/mmap"
	"github.com/hupe1980/direkte/internal/resource"
)

// ErrClosed is returned by a manager after Close.
var ErrClosed = errors.New("filemanager: closed")

// DefaultMinMapSize is the file size from which files are memory-mapped
// instead of read onto the heap.
const DefaultMinMapSize = 64 * 1024

// Manager shares file storages between the readers of a process.
type Manager struct {
	fs         fs.FileSystem
	budget     *resource.Budget
	logger     *slog.Logger
	minMapSize int64
	noMmap     bool

	mu     sync.Mutex
	files  map[string]*Storage
	closed bool
	group  singleflight.Group

	loads       atomic.Int64
	hits        atomic.Int64
	stale       atomic.Int64
	mappedBytes atomic.Int64
	heapBytes   atomic.Int64
	live        atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithFileSystem sets the file system used for heap loads.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(m *Manager) { m.fs = fsys }
}

// WithBudget bounds heap memory, decoders and read throughput.
func WithBudget(b *resource.Budget) Option {
	return func(m *Manager) { m.budget = b }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMinMapSize sets the file size from which files are memory-mapped.
func WithMinMapSize(n int64) Option {
	return func(m *Manager) { m.minMapSize = n }
}

// WithoutMmap reads every file onto the heap.
func WithoutMmap() Option {
	return func(m *Manager) { m.noMmap = true }
}

// New creates a file manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		fs:         fs.Default,
		logger:     slog.New(slog.DiscardHandler),
		minMapSize: DefaultMinMapSize,
		files:      make(map[string]*Storage),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Budget returns the resource budget, which may be nil.
func (m *Manager) Budget() *resource.Budget { return m.budget }

// GetFile returns the storage of path with a reference held for the
// caller, who must Release it. Concurrent first loads of a path share one
// read. A linked storage whose file changed on disk since it was loaded is
// unlinked and the file is loaded again.
func (m *Manager) GetFile(ctx context.Context, path string) (*Storage, error) {
	path = filepath.Clean(path)
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		s, ok := m.files[path]
		m.mu.Unlock()
		if ok {
			if !m.current(s) {
				m.unlink(ctx, s)
				continue
			}
			if s.Acquire() {
				m.hits.Add(1)
				return s, nil
			}
			continue
		}

		v, err, _ := m.group.Do(path, func() (any, error) {
			return m.load(ctx, path)
		})
		if err != nil {
			return nil, err
		}
		if s := v.(*Storage); s.Acquire() {
			return s, nil
		}
		// Flushed between load and acquire: look again.
	}
}

// current reports whether the file behind s is unchanged since it was
// loaded: same size, modification time and, where known, identity.
func (m *Manager) current(s *Storage) bool {
	info, err := m.fs.Stat(s.path)
	if err != nil {
		return false
	}
	return sameFile(s.info, info)
}

func sameFile(a, b os.FileInfo) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Size() != b.Size() || !a.ModTime().Equal(b.ModTime()) {
		return false
	}
	if a.Sys() != nil && b.Sys() != nil {
		return os.SameFile(a, b)
	}
	return true
}

// unlink drops the manager's reference to a stale storage if it is still
// the one linked under its path.
func (m *Manager) unlink(ctx context.Context, s *Storage) {
	m.mu.Lock()
	linked := m.files[s.path] == s
	if linked {
		delete(m.files, s.path)
	}
	m.mu.Unlock()
	if !linked {
		return
	}
	m.logger.DebugContext(ctx, "file changed on disk, reloading",
		slog.String("path", s.path), slog.String("id", s.id.String()))
	m.stale.Add(1)
	_ = s.Release()
}

func (m *Manager) load(ctx context.Context, path string) (*Storage, error) {
	m.mu.Lock()
	if s, ok := m.files[path]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	info, err := m.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("filemanager: %s is a directory", path)
	}

	s := &Storage{id: uuid.New(), path: path, info: info, mgr: m}
	comp := codec.ForPath(path)
	mappable := !m.noMmap && comp == codec.None
	switch {
	case mappable && info.Size() >= m.minMapSize:
		err = m.mapFile(s)
	default:
		err = m.readFile(ctx, s, info.Size(), comp)
		if errors.Is(err, resource.ErrOverBudget) && mappable {
			m.logger.DebugContext(ctx, "heap budget exhausted, mapping file", slog.String("path", path))
			err = m.mapFile(s)
		}
	}
	if err != nil {
		return nil, err
	}
	s.refs.Store(1)
	m.loads.Add(1)
	m.live.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		_ = s.Release()
		return nil, ErrClosed
	}
	m.files[path] = s
	m.logger.DebugContext(ctx, "loaded file",
		slog.String("path", path),
		slog.Int("bytes", s.Len()),
		slog.Bool("mapped", s.Mapped()),
		slog.String("id", s.id.String()))
	return s, nil
}

func (m *Manager) mapFile(s *Storage) error {
	mp, err := mmap.Open(s.path)
	if err != nil {
		return err
	}
	_ = mp.Advise(mmap.Random)
	s.mapping = mp
	s.data = mp.Bytes()
	m.mappedBytes.Add(int64(len(s.data)))
	return nil
}

func (m *Manager) readFile(ctx context.Context, s *Storage, size int64, comp codec.Compression) error {
	res, err := m.budget.Reserve(size)
	if err != nil {
		return err
	}
	data, err := m.readAll(ctx, s.path, size, comp)
	if err == nil && int64(len(data)) != size {
		if err = res.Resize(int64(len(data))); err != nil {
			err = fmt.Errorf("%w: %s inflates to %d bytes", err, s.path, len(data))
		}
	}
	if err != nil {
		res.Release()
		return err
	}
	s.data = data
	s.heap = res
	m.heapBytes.Add(res.Bytes())
	return nil
}

func (m *Manager) readAll(ctx context.Context, path string, size int64, comp codec.Compression) ([]byte, error) {
	f, err := m.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw := make([]byte, size)
	if _, err := io.ReadFull(m.budget.Reader(ctx, f), raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data, err := codec.Decompress(comp, raw, 0)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// freed is called by a storage whose last reference is gone.
func (m *Manager) freed(s *Storage) {
	m.live.Add(-1)
	if s.mapping != nil {
		m.mappedBytes.Add(-int64(s.mapping.Len()))
		return
	}
	m.heapBytes.Add(-s.heap.Bytes())
	s.heap.Release()
}

// Flush unlinks path: later GetFile calls load the file afresh, while
// readers holding the old storage keep it until they release it.
func (m *Manager) Flush(path string) error {
	path = filepath.Clean(path)
	m.mu.Lock()
	s, ok := m.files[path]
	delete(m.files, path)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if refs := s.Refs(); refs > 1 {
		m.logger.Debug("flushing file still in use",
			slog.String("path", path), slog.Int("readers", int(refs-1)))
	}
	return s.Release()
}

// Contains reports whether path currently has a linked storage.
func (m *Manager) Contains(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[filepath.Clean(path)]
	return ok
}

// Close flushes every storage and rejects further loads.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	files := m.files
	m.files = make(map[string]*Storage)
	m.mu.Unlock()

	var errs []error
	for _, s := range files {
		if err := s.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats is a snapshot of the manager's counters.
type Stats struct {
	Linked      int   // storages reachable by name
	Live        int64 // storages not yet freed, linked or not
	Loads       int64
	Hits        int64
	Stale       int64 // storages relinked because the file changed
	MappedBytes int64
	HeapBytes   int64
}

// Stats returns current counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	linked := len(m.files)
	m.mu.Unlock()
	return Stats{
		Linked:      linked,
		Live:        m.live.Load(),
		Loads:       m.loads.Load(),
		Hits:        m.hits.Load(),
		Stale:       m.stale.Load(),
		MappedBytes: m.mappedBytes.Load(),
		HeapBytes:   m.heapBytes.Load(),
	}
}
