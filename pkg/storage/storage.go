// Package storage defines the FileStore interface used to persist task
// state. It abstracts the underlying backend so that a task can keep its
// fitted model on local disk, in an S3-compatible object store, or in an
// embedded BadgerDB without changing the code that reads and writes it.
//
// Every store is rooted: paths passed to Read, Write and Delete are
// resolved relative to the root given at construction (a directory, or a
// bucket prefix).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a blob does not exist. It matches
	// fs.ErrNotExist so callers may test for either.
	ErrNotFound = fmt.Errorf("storage: not found: %w", fs.ErrNotExist)

	// ErrConfiguration is returned when a store cannot be built from the
	// given configuration. No I/O has happened when it is returned.
	ErrConfiguration = errors.New("storage: invalid configuration")
)

// FileStore is a minimal interface for blob-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
type FileStore interface {
	// Read opens the named blob for reading.
	// The caller must close the returned ReadCloser when done.
	// If the blob does not exist, an error wrapping ErrNotFound is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named blob for writing.
	// Nothing is visible to readers until Close returns nil; if the writer
	// is aborted with CloseWithError, any previous blob is left untouched.
	Write(ctx context.Context, path string) (Writer, error)

	// Delete removes the named blob.
	// If the blob does not exist, an error wrapping ErrNotFound is returned.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named blob exists.
	Exists(ctx context.Context, path string) (bool, error)

	// Root returns the root the store resolves paths against.
	Root() string

	// Close releases resources held by the store.
	Close() error
}

// Writer is the write side of a blob. Close commits the data,
// CloseWithError discards it.
type Writer interface {
	io.WriteCloser
	CloseWithError(err error) error
}

// WriteFunc opens path for writing, hands the writer to fn and commits the
// blob if fn succeeds. If fn fails the write is aborted and fn's error is
// returned. The writer is released on every path.
func WriteFunc(ctx context.Context, s FileStore, path string, fn func(w io.Writer) error) (err error) {
	w, err := s.Write(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = w.CloseWithError(fmt.Errorf("storage: write %s: panic: %v", path, r))
			panic(r)
		}
	}()
	if err := fn(w); err != nil {
		if cerr := w.CloseWithError(err); cerr != nil && !errors.Is(cerr, err) {
			return errors.Join(err, cerr)
		}
		return err
	}
	return w.Close()
}

// ReadFunc opens path for reading and hands the reader to fn. The reader
// is closed on every path.
func ReadFunc(ctx context.Context, s FileStore, path string, fn func(r io.Reader) error) (err error) {
	r, err := s.Read(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(r)
}

// notFound wraps ErrNotFound with the path that was missing.
func notFound(op, path string) error {
	return fmt.Errorf("storage: %s %s: %w", op, path, ErrNotFound)
}
