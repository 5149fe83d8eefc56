package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Memory keeps blobs in a process-lifetime map. It is the zero-config
// backend and the one used by most tests.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Write(ctx context.Context, src io.Reader, dst string) error {
	key, err := normalizePath(dst)
	if err != nil {
		return err
	}

	// Buffer outside the lock; the map only ever sees complete content.
	data, err := io.ReadAll(src)
	if err != nil {
		return writeError(dst, err)
	}
	if err := ctx.Err(); err != nil {
		return writeError(dst, err)
	}

	m.mu.Lock()
	m.blobs[key] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	key, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, ok := m.blobs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	// Stored slices are never mutated after publish, but callers get a copy
	// so nothing they do can leak back into the map.
	out := make([]byte, len(data))
	copy(out, data)
	return io.NopCloser(bytes.NewReader(out)), nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	key, err := normalizePath(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}
