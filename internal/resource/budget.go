package resource

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrOverBudget is returned when a heap reservation does not fit.
var ErrOverBudget = errors.New("resource: heap budget exhausted")

// Limits bounds the resources of one file manager. Zero values mean
// unlimited, except Decoders which defaults to one.
type Limits struct {
	// HeapBytes caps the file bytes held on the heap.
	HeapBytes int64
	// ReadBytesPerSec throttles reads of files onto the heap.
	ReadBytesPerSec int64
	// Decoders caps the bitmaps decoded at once.
	Decoders int
}

// Budget hands out heap reservations, decoder slots and read throughput.
// A nil Budget grants everything.
type Budget struct {
	limits   Limits
	heap     *semaphore.Weighted // nil when HeapBytes is unlimited
	inUse    atomic.Int64
	decoders *semaphore.Weighted
	reads    *rate.Limiter // nil when reads are unthrottled
}

// New returns a budget enforcing l.
func New(l Limits) *Budget {
	l.Decoders = max(l.Decoders, 1)
	b := &Budget{limits: l, decoders: semaphore.NewWeighted(int64(l.Decoders))}
	if l.HeapBytes > 0 {
		b.heap = semaphore.NewWeighted(l.HeapBytes)
	}
	if l.ReadBytesPerSec > 0 {
		b.reads = rate.NewLimiter(rate.Limit(l.ReadBytesPerSec), int(l.ReadBytesPerSec))
	}
	return b
}

// Limits returns the limits b enforces.
func (b *Budget) Limits() Limits {
	if b == nil {
		return Limits{Decoders: 1}
	}
	return b.limits
}

// HeapInUse reports the heap bytes currently reserved.
func (b *Budget) HeapInUse() int64 {
	if b == nil {
		return 0
	}
	return b.inUse.Load()
}

func (b *Budget) take(n int64) bool {
	if b == nil || n <= 0 {
		return true
	}
	if b.heap != nil && !b.heap.TryAcquire(n) {
		return false
	}
	b.inUse.Add(n)
	return true
}

func (b *Budget) give(n int64) {
	if b == nil || n <= 0 {
		return
	}
	if b.heap != nil {
		b.heap.Release(n)
	}
	b.inUse.Add(-n)
}

// Reserve holds n heap bytes without blocking.
func (b *Budget) Reserve(n int64) (*Reservation, error) {
	if !b.take(n) {
		return nil, ErrOverBudget
	}
	return &Reservation{budget: b, n: max(n, 0)}, nil
}

// Reservation is a share of the heap budget. It is not safe for
// concurrent use.
type Reservation struct {
	budget *Budget
	n      int64
}

// Bytes returns the reserved size.
func (r *Reservation) Bytes() int64 {
	if r == nil {
		return 0
	}
	return r.n
}

// Resize grows or shrinks the reservation to n bytes. A growth that does
// not fit fails with ErrOverBudget and keeps the old size.
func (r *Reservation) Resize(n int64) error {
	switch {
	case n > r.n:
		if !r.budget.take(n - r.n) {
			return ErrOverBudget
		}
	case n < r.n:
		r.budget.give(r.n - n)
	}
	r.n = n
	return nil
}

// Release returns the reservation to the budget. Further calls do nothing.
func (r *Reservation) Release() {
	if r == nil {
		return
	}
	r.budget.give(r.n)
	r.n = 0
}

// Decoders returns the number of decoder slots.
func (b *Budget) Decoders() int {
	return b.Limits().Decoders
}

// Decode runs fn once a decoder slot is free.
func (b *Budget) Decode(ctx context.Context, fn func()) error {
	if b == nil {
		fn()
		return nil
	}
	if err := b.decoders.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.decoders.Release(1)
	fn()
	return nil
}

// Reader throttles reads from r to the read budget of b.
func (b *Budget) Reader(ctx context.Context, r io.Reader) io.Reader {
	if b == nil || b.reads == nil {
		return r
	}
	return &throttledReader{ctx: ctx, r: r, lim: b.reads}
}

type throttledReader struct {
	ctx context.Context
	r   io.Reader
	lim *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if len(p) > t.lim.Burst() {
		p = p[:t.lim.Burst()]
	}
	if err := t.lim.WaitN(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.r.Read(p)
}
