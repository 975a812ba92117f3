package blobstore

import (
	"context"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/direkte/internal/fs"
)

const partSuffix = ".part"

// LocalStore keeps blobs as files below a root directory. Writes go to a
// sibling part file that Commit renames over the target.
type LocalStore struct {
	root  string
	fsys  fs.FileSystem
	fsync bool
}

// NewLocalStore returns a store rooted at dir that syncs committed blobs.
func NewLocalStore(dir string) *LocalStore {
	return NewLocalStoreFS(fs.Default, dir, true)
}

// NewLocalStoreFS returns a store rooted at dir that performs its file
// operations through fsys.
func NewLocalStoreFS(fsys fs.FileSystem, dir string, fsync bool) *LocalStore {
	return &LocalStore{root: dir, fsys: fsys, fsync: fsync}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open opens the file behind name.
func (s *LocalStore) Open(_ context.Context, name string) (Reader, error) {
	f, err := s.fsys.OpenFile(s.path(name), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileReader{File: f, size: info.Size()}, nil
}

// Create opens a part file next to the target of name.
func (s *LocalStore) Create(_ context.Context, name string) (Writer, error) {
	target := s.path(name)
	if err := s.fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, err
	}
	part := target + "." + uuid.NewString() + partSuffix
	f, err := s.fsys.OpenFile(part, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileWriter{store: s, f: f, part: part, target: target}, nil
}

// Delete removes the file behind name.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := s.fsys.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List walks the root directory. Part files of unfinished writes are skipped.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(p string, d iofs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir(), strings.HasSuffix(p, partSuffix):
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if rel = filepath.ToSlash(rel); strings.HasPrefix(rel, prefix) {
			names = append(names, rel)
		}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

type fileReader struct {
	fs.File
	size int64
}

func (r *fileReader) Size() int64 { return r.size }

type fileWriter struct {
	store        *LocalStore
	f            fs.File
	part, target string
	done         bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, ErrFinished
	}
	return w.f.Write(p)
}

func (w *fileWriter) Commit() error {
	if w.done {
		return ErrFinished
	}
	w.done = true

	var err error
	if w.store.fsync {
		err = w.f.Sync()
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = w.store.fsys.Rename(w.part, w.target)
	}
	if err != nil {
		_ = w.store.fsys.Remove(w.part)
		return err
	}
	if w.store.fsync {
		return w.store.fsys.SyncDir(filepath.Dir(w.target))
	}
	return nil
}

func (w *fileWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.f.Close()
	return w.store.fsys.Remove(w.part)
}
