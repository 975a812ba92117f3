package blobstore

import (
	"context"
	"io"
	"sync/atomic"
)

// PutFunc uploads everything read from r as one object.
type PutFunc func(ctx context.Context, r io.Reader) error

// Stream returns a Writer whose bytes are piped into put, which runs on
// its own goroutine. Commit closes the pipe and returns the result of put.
// Abort cancels the context handed to put and fails the pipe, so a store
// that uploads in parts can drop them.
func Stream(ctx context.Context, put PutFunc) Writer {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	w := &streamWriter{pw: pw, cancel: cancel, done: make(chan error, 1)}
	go func() {
		err := put(ctx, pr)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w
}

type streamWriter struct {
	pw       *io.PipeWriter
	cancel   context.CancelFunc
	done     chan error
	finished atomic.Bool
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if w.finished.Load() {
		return 0, ErrFinished
	}
	return w.pw.Write(p)
}

func (w *streamWriter) Commit() error {
	if !w.finished.CompareAndSwap(false, true) {
		return ErrFinished
	}
	defer w.cancel()
	_ = w.pw.Close()
	return <-w.done
}

func (w *streamWriter) Abort() error {
	if !w.finished.CompareAndSwap(false, true) {
		return nil
	}
	w.cancel()
	_ = w.pw.CloseWithError(context.Canceled)
	<-w.done
	return nil
}
