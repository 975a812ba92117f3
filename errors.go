package direkte

import (
	"errors"
	"fmt"
	iofs "io/fs"

	"github.com/hupe1980/direkte/bitvector"
	"github.com/hupe1980/direkte/column"
	"github.com/hupe1980/direkte/internal/conv"
	"github.com/hupe1980/direkte/internal/fs"
	"github.com/hupe1980/direkte/internal/indexfile"
)

// Error kinds. Every error returned by this package matches exactly one of
// them with errors.Is.
var (
	// ErrBadInput is returned for values an index cannot hold and for
	// columns of the wrong type.
	ErrBadInput = errors.New("direkte: bad input")
	// ErrIO is returned when reading or writing an index or column file fails.
	ErrIO = errors.New("direkte: i/o error")
	// ErrBadFormat is returned for index files that fail validation.
	ErrBadFormat = errors.New("direkte: bad index format")
	// ErrConflict is returned when a write races another writer and for
	// key remappings with duplicate targets.
	ErrConflict = errors.New("direkte: conflict")
	// ErrInvariant is returned when an internal invariant is violated. The
	// index is left cleared.
	ErrInvariant = errors.New("direkte: invariant violated")
)

var kinds = []error{ErrBadInput, ErrIO, ErrBadFormat, ErrConflict, ErrInvariant}

// ErrDuplicateKey is returned by RemapKeys when two keys map to the same
// target.
type ErrDuplicateKey struct {
	Target uint32
	Keys   [2]uint32
}

func (e *ErrDuplicateKey) Error() string {
	return fmt.Sprintf("keys %d and %d both map to %d", e.Keys[0], e.Keys[1], e.Target)
}

// ErrRowCount is returned when two operands disagree on the number of rows.
type ErrRowCount struct {
	Expected uint32
	Actual   uint32
}

func (e *ErrRowCount) Error() string {
	return fmt.Sprintf("row count mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Code maps err to the integer status codes of the index API: 0 for nil,
// then -1 bad input, -2 i/o, -3 bad format, -4 conflict, -5 invariant.
func Code(err error) int {
	if err == nil {
		return 0
	}
	for i, kind := range kinds {
		if errors.Is(err, kind) {
			return -(i + 1)
		}
	}
	return -2
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return err
		}
	}

	switch {
	case errors.Is(err, bitvector.ErrOutOfOrder),
		errors.Is(err, bitvector.ErrLengthMismatch):
		return fmt.Errorf("%w: %w", ErrInvariant, err)

	case errors.Is(err, indexfile.ErrBadMagic),
		errors.Is(err, indexfile.ErrBadOffsetWidth),
		errors.Is(err, indexfile.ErrTruncated),
		errors.Is(err, indexfile.ErrNonMonotonicOffsets),
		errors.Is(err, bitvector.ErrCorrupt):
		return fmt.Errorf("%w: %w", ErrBadFormat, err)

	case errors.Is(err, column.ErrValueOutOfRange),
		errors.Is(err, column.ErrUnsupportedType),
		errors.Is(err, column.ErrShortColumn),
		errors.Is(err, indexfile.ErrBadArrays),
		errors.Is(err, conv.ErrOverflow):
		return fmt.Errorf("%w: %w", ErrBadInput, err)

	case errors.Is(err, fs.ErrLocked):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}

	var dk *ErrDuplicateKey
	if errors.As(err, &dk) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	var rc *ErrRowCount
	if errors.As(err, &rc) {
		return fmt.Errorf("%w: %w", ErrBadInput, err)
	}
	var pe *iofs.PathError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	return fmt.Errorf("%w: %w", ErrIO, err)
}
