package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Memory is an in-memory FileStore. It is safe for concurrent use and
// intended primarily for testing.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	root  string
}

// NewMemory creates an empty in-memory store. The root is informational.
func NewMemory(root string) *Memory {
	return &Memory{blobs: make(map[string][]byte), root: root}
}

func (m *Memory) Root() string { return m.root }

func (m *Memory) Read(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	v, ok := m.blobs[path]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound("read", path)
	}
	return io.NopCloser(bytes.NewReader(v)), nil
}

func (m *Memory) Write(_ context.Context, path string) (Writer, error) {
	return &memoryWriter{m: m, path: path}, nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[path]; !ok {
		return notFound("delete", path)
	}
	delete(m.blobs, path)
	return nil
}

func (m *Memory) Exists(_ context.Context, path string) (bool, error) {
	m.mu.RLock()
	_, ok := m.blobs[path]
	m.mu.RUnlock()
	return ok, nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

type memoryWriter struct {
	m      *Memory
	path   string
	buf    bytes.Buffer
	closed bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("storage: write %s: writer closed", w.path)
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	data := bytes.Clone(w.buf.Bytes())
	w.m.mu.Lock()
	w.m.blobs[w.path] = data
	w.m.mu.Unlock()
	return nil
}

func (w *memoryWriter) CloseWithError(err error) error {
	w.closed = true
	w.buf.Reset()
	return err
}

var _ FileStore = (*Memory)(nil)
