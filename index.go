package direkte

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/direkte/bitvector"
	"github.com/hupe1980/direkte/column"
	"github.com/hupe1980/direkte/internal/cost"
	"github.com/hupe1980/direkte/internal/filemanager"
)

// maxPrealloc caps the number of bitmap slots reserved up front from the
// declared upper bound of a column.
const maxPrealloc = 1 << 20

// Index is a direct equality bitmap index: bitmap v marks the rows whose
// value is v.
//
// An index opened from a file decodes its bitmaps on first use, aliasing the
// file storage shared through the FileManager. All methods are safe for
// concurrent use; mutators are serialized with queries by an internal lock.
type Index struct {
	mu    sync.Mutex
	meta  column.Meta
	nrows uint32
	// bits[v] is nil for an absent key, or for a key not yet decoded from
	// storage.
	bits []*bitvector.Bitmap
	// offsets describe the index file last read or written. nil for an
	// index that only lives in memory.
	offsets []int64
	storage *filemanager.Storage
	path    string

	opts options
	log  *Logger
}

func newIndex(meta column.Meta, o options) *Index {
	return &Index{
		meta: meta,
		opts: o,
		log:  o.logger.WithColumn(meta.Name),
	}
}

// Meta returns the column description the index was created with. After an
// append its row count covers the appended rows.
func (x *Index) Meta() column.Meta {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.meta
}

// NRows returns the number of rows every bitmap spans.
func (x *Index) NRows() uint32 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.nrows
}

// K returns the number of bitmap slots.
func (x *Index) K() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.bits)
}

// Offsets returns a copy of the offset table of the index file the index was
// read from or last written to, or nil for an in-memory index.
func (x *Index) Offsets() []int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.offsets == nil {
		return nil
	}
	return append([]int64(nil), x.offsets...)
}

// Bitmap returns a copy of the bitmap for key v. Absent keys yield an empty
// bitmap of NRows bits.
func (x *Index) Bitmap(ctx context.Context, v uint32) *bitvector.Bitmap {
	x.mu.Lock()
	defer x.mu.Unlock()
	if int(v) < len(x.bits) {
		if b := x.activateLocked(ctx, v); b != nil {
			return b.Clone()
		}
	}
	return bitvector.NewFilled(x.nrows, false)
}

// RowsOf returns the rows holding key v as a roaring bitmap.
func (x *Index) RowsOf(ctx context.Context, v uint32) *roaring.Bitmap {
	x.mu.Lock()
	defer x.mu.Unlock()
	if int(v) < len(x.bits) {
		if b := x.activateLocked(ctx, v); b != nil {
			return b.ToRoaring()
		}
	}
	return roaring.New()
}

// activateLocked returns bitmap v, decoding it from storage on first use. A
// bitmap that fails to decode is logged and replaced by an empty one.
func (x *Index) activateLocked(ctx context.Context, v uint32) *bitvector.Bitmap {
	if b := x.bits[v]; b != nil || x.storage == nil {
		return b
	}
	body := x.storage.Bytes()[x.offsets[v]:x.offsets[v+1]]
	if len(body) == 0 {
		return nil
	}
	b, err := x.decode(body)
	x.opts.metricsCollector.RecordActivation(len(body), err)
	if err != nil {
		x.log.LogActivate(ctx, int(v), err)
		b = bitvector.NewFilled(x.nrows, false)
	}
	x.bits[v] = b
	return b
}

func (x *Index) decode(body []byte) (*bitvector.Bitmap, error) {
	b, err := bitvector.View(body)
	if err != nil {
		return nil, err
	}
	if b.Size() != x.nrows {
		return nil, fmt.Errorf("%w: %d bits in an index of %d rows", bitvector.ErrCorrupt, b.Size(), x.nrows)
	}
	return b, nil
}

// ActivateAll decodes every bitmap not yet decoded, spreading the work over
// the worker slots of the file manager's resource controller.
func (x *Index) ActivateAll(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return translateError(x.activateAllLocked(ctx))
}

func (x *Index) activateAllLocked(ctx context.Context) error {
	if x.storage == nil {
		return nil
	}
	data := x.storage.Bytes()
	if k := len(x.bits); k > 0 {
		if err := x.storage.Prefetch(x.offsets[0], x.offsets[k]-x.offsets[0]); err != nil {
			x.log.DebugContext(ctx, "prefetch failed", "error", err)
		}
	}
	decoded := make([]*bitvector.Bitmap, len(x.bits))
	errs := make([]error, len(x.bits))

	budget := x.opts.fm.Budget()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(budget.Decoders())
	for v := range x.bits {
		if x.bits[v] != nil || x.offsets[v] == x.offsets[v+1] {
			continue
		}
		g.Go(func() error {
			return budget.Decode(gctx, func() {
				decoded[v], errs[v] = x.decode(data[x.offsets[v]:x.offsets[v+1]])
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for v, b := range decoded {
		if b == nil && errs[v] == nil {
			continue
		}
		x.opts.metricsCollector.RecordActivation(int(x.offsets[v+1]-x.offsets[v]), errs[v])
		if errs[v] != nil {
			x.log.LogActivate(ctx, v, errs[v])
			b = bitvector.NewFilled(x.nrows, false)
		}
		x.bits[v] = b
	}
	return nil
}

// detachLocked decodes every bitmap into private memory and drops the file
// storage, so that the bitmaps can be mutated or the file replaced. The
// offset table no longer describes the bitmaps afterwards.
func (x *Index) detachLocked(ctx context.Context) error {
	if err := x.activateAllLocked(ctx); err != nil {
		return err
	}
	for _, b := range x.bits {
		if b != nil {
			b.Own()
		}
	}
	x.offsets = nil
	return x.releaseLocked()
}

func (x *Index) releaseLocked() error {
	if x.storage == nil {
		return nil
	}
	err := x.storage.Release()
	x.storage = nil
	return err
}

// clearLocked drops all bitmaps and the storage.
func (x *Index) clearLocked() {
	_ = x.releaseLocked()
	x.bits = nil
	x.offsets = nil
	x.nrows = 0
}

// Close releases the file storage backing the index and drops its bitmaps.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	err := x.releaseLocked()
	x.clearLocked()
	return translateError(err)
}

// trimLocked drops trailing absent or empty bitmaps.
func (x *Index) trimLocked(ctx context.Context) {
	for n := len(x.bits); n > 0; n-- {
		b := x.activateLocked(ctx, uint32(n-1))
		if b != nil && !b.IsEmpty() {
			break
		}
		x.bits = x.bits[:n-1]
		if x.offsets != nil {
			x.offsets = x.offsets[:n]
		}
	}
}

// Stats describes the state of an index.
type Stats struct {
	NRows uint32
	K     int
	// Counts[v] is the number of rows holding key v.
	Counts []uint32
	// Activated is the number of bitmaps held in memory.
	Activated int
	// FileBytes is the size of the backing index file, or zero.
	FileBytes int64
	// EncodedBytes is the serialized size of all bitmaps.
	EncodedBytes int64
	Backed       bool
	Mapped       bool
	Path         string
}

// Stats reports counts and sizes. Counting decodes every bitmap.
func (x *Index) Stats(ctx context.Context) Stats {
	x.mu.Lock()
	defer x.mu.Unlock()

	st := Stats{
		NRows:  x.nrows,
		K:      len(x.bits),
		Counts: make([]uint32, len(x.bits)),
		Backed: x.storage != nil,
		Path:   x.path,
	}
	if x.storage != nil {
		st.Mapped = x.storage.Mapped()
		st.FileBytes = int64(x.storage.Len())
	}
	for v := range x.bits {
		if x.bits[v] != nil {
			st.Activated++
		}
	}
	for v := range x.bits {
		if b := x.activateLocked(ctx, uint32(v)); b != nil {
			st.Counts[v] = b.Count()
			if !b.IsEmpty() {
				st.EncodedBytes += int64(b.SerializedSize())
			}
		}
	}
	return st
}

// String returns a one-line summary of the index without decoding bitmaps.
func (x *Index) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "direkte{column=%q rows=%d keys=%d", x.meta.Name, x.nrows, len(x.bits))
	if x.offsets != nil {
		fmt.Fprintf(&sb, " bytes=%d", cost.Total(x.offsets))
	}
	if x.path != "" {
		fmt.Fprintf(&sb, " file=%s", x.path)
	}
	sb.WriteByte('}')
	return sb.String()
}
