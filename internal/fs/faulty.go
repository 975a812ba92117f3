package fs

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
)

// ErrInjected is reported by injected faults that carry no error of their own.
var ErrInjected = errors.New("fs: injected fault")

// Op is a set of file operations a Fault applies to.
type Op uint8

const (
	OpOpen Op = 1 << iota
	OpWrite
	OpSync
	OpClose
	OpRename
)

// Fault fails the operations in Ops on files whose name contains the
// pattern it was injected under. A write fault lets After bytes through
// before the first failing write.
type Fault struct {
	Ops   Op
	After int64
	Err   error
}

func (f Fault) hits(op Op) bool { return f.Ops&op != 0 }

func (f Fault) cause() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

type injection struct {
	pattern string
	fault   Fault
}

// FaultyFS wraps a FileSystem and fails chosen operations. Every file
// opened through it counts its writes against an optional global budget.
type FaultyFS struct {
	base FileSystem

	mu         sync.Mutex
	injections []injection
	written    int64
	budget     int64
}

// NewFaultyFS wraps base, or Default when base is nil.
func NewFaultyFS(base FileSystem) *FaultyFS {
	if base == nil {
		base = Default
	}
	return &FaultyFS{base: base, budget: -1}
}

// Inject adds a fault for names containing pattern. Later injections win
// over earlier ones for the same name.
func (f *FaultyFS) Inject(pattern string, fault Fault) {
	f.mu.Lock()
	f.injections = append(f.injections, injection{pattern, fault})
	f.mu.Unlock()
}

// Reset drops all injected faults and the write budget.
func (f *FaultyFS) Reset() {
	f.mu.Lock()
	f.injections, f.budget = nil, -1
	f.mu.Unlock()
}

// LimitWrites fails any write that would take the bytes written through f
// past n. A negative n removes the limit.
func (f *FaultyFS) LimitWrites(n int64) {
	f.mu.Lock()
	f.budget = n
	f.mu.Unlock()
}

// Written reports the bytes written through f so far.
func (f *FaultyFS) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

func (f *FaultyFS) lookup(name string) Fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.injections) - 1; i >= 0; i-- {
		if strings.Contains(name, f.injections[i].pattern) {
			return f.injections[i].fault
		}
	}
	return Fault{}
}

// charge books n bytes against the budget.
func (f *FaultyFS) charge(n int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.budget >= 0 && f.written+n > f.budget {
		return false
	}
	f.written += n
	return true
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	fault := f.lookup(name)
	if fault.hits(OpOpen) {
		return nil, &os.PathError{Op: "open", Path: name, Err: fault.cause()}
	}
	file, err := f.base.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, owner: f, fault: fault}, nil
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if fault := f.lookup(oldpath); fault.hits(OpRename) {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fault.cause()}
	}
	return f.base.Rename(oldpath, newpath)
}

func (f *FaultyFS) Remove(name string) error                     { return f.base.Remove(name) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error)        { return f.base.Stat(name) }
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error { return f.base.MkdirAll(path, perm) }
func (f *FaultyFS) TryLock(name string) (io.Closer, error)       { return f.base.TryLock(name) }
func (f *FaultyFS) SyncDir(dir string) error                     { return f.base.SyncDir(dir) }

type faultyFile struct {
	File
	owner *FaultyFS
	fault Fault
	n     int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	size := int64(len(p))
	if ff.fault.hits(OpWrite) && ff.n+size > ff.fault.After {
		return 0, ff.fault.cause()
	}
	if !ff.owner.charge(size) {
		return 0, ErrInjected
	}
	n, err := ff.File.Write(p)
	ff.n += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.hits(OpSync) {
		return ff.fault.cause()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	err := ff.File.Close()
	if ff.fault.hits(OpClose) {
		return ff.fault.cause()
	}
	return err
}
