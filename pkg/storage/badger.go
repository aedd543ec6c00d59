package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a FileStore backed by an embedded BadgerDB. Each blob is a
// single key; writes commit in one transaction on Close.
type Badger struct {
	db  *badger.DB
	dir string
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	// Useful for testing with a real badger engine.
	InMemory bool

	// Logger receives badger's warnings and errors. If nil, slog.Default()
	// is used. Badger's info and debug output is always dropped.
	Logger *slog.Logger
}

// NewBadger opens (or creates) a BadgerDB-backed store.
func NewBadger(bopts BadgerOptions) (*Badger, error) {
	if !bopts.InMemory && bopts.Dir == "" {
		return nil, fmt.Errorf("%w: badger dir is required for on-disk mode", ErrConfiguration)
	}
	dbOpts := badger.DefaultOptions(bopts.Dir)
	if bopts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	logger := bopts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(slogBadgerLogger{l: logger.With("component", "badger")})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db, dir: bopts.Dir}, nil
}

// Root returns the BadgerDB directory ("" when in memory).
func (b *Badger) Root() string { return b.dir }

// Read returns the stored value for path.
func (b *Badger) Read(_ context.Context, path string) (io.ReadCloser, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound("read", path)
	}
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(val)), nil
}

// Write buffers the blob; Close stores it in a single transaction.
func (b *Badger) Write(_ context.Context, path string) (Writer, error) {
	return &badgerWriter{db: b.db, key: []byte(path)}, nil
}

// Delete removes the key for path.
func (b *Badger) Delete(_ context.Context, path string) error {
	k := []byte(path)
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); err != nil {
			return err
		}
		return txn.Delete(k)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound("delete", path)
	}
	return err
}

// Exists reports whether path has a value.
func (b *Badger) Exists(_ context.Context, path string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(path))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Close closes the underlying database and releases its directory lock.
func (b *Badger) Close() error {
	return b.db.Close()
}

type badgerWriter struct {
	db     *badger.DB
	key    []byte
	buf    bytes.Buffer
	closed bool
}

func (w *badgerWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("storage: write %s: writer closed", w.key)
	}
	return w.buf.Write(p)
}

func (w *badgerWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.db.Update(func(txn *badger.Txn) error {
		return txn.Set(w.key, w.buf.Bytes())
	})
}

func (w *badgerWriter) CloseWithError(err error) error {
	w.closed = true
	w.buf.Reset()
	return err
}

// slogBadgerLogger routes badger's logger onto slog, dropping info and
// debug output.
type slogBadgerLogger struct {
	l *slog.Logger
}

func (s slogBadgerLogger) Errorf(f string, v ...any)   { s.l.Error(fmt.Sprintf(f, v...)) }
func (s slogBadgerLogger) Warningf(f string, v ...any) { s.l.Warn(fmt.Sprintf(f, v...)) }
func (slogBadgerLogger) Infof(string, ...any)          {}
func (slogBadgerLogger) Debugf(string, ...any)         {}

// Compile-time interface check.
var _ FileStore = (*Badger)(nil)
