//go:build unix

package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int) ([]byte, func() error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unix.Munmap(data) }, nil
}

var madvice = [...]int{
	Normal:     unix.MADV_NORMAL,
	Sequential: unix.MADV_SEQUENTIAL,
	Random:     unix.MADV_RANDOM,
	WillNeed:   unix.MADV_WILLNEED,
}

func advise(data []byte, a Advice) error {
	if len(data) == 0 || int(a) >= len(madvice) {
		return nil
	}
	// EINVAL only reports an unaligned tail; the hint is advisory.
	if err := unix.Madvise(data, madvice[a]); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}
