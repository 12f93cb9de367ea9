// Package storage provides concrete pagecache.BackingStore implementations.
// None of them are imported by the pagecache package itself — they are the
// "external collaborator" spec.md deliberately keeps out of the core.
package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/kvstorelabs/pagecachectl/pagecache"
)

// MemoryStore is a flat byte-addressed region, grounded on the teacher's
// readFromDisk/writeToDisk pair but generalized away from a tablespace
// file to a plain in-memory byte range — useful for tests and for the
// round-trip properties that don't need real persistence.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore allocates a store covering [0, size).
func NewMemoryStore(size uint64) *MemoryStore {
	return &MemoryStore{data: make([]byte, size)}
}

func (m *MemoryStore) ReadStorage(_ context.Context, address pagecache.DataAddress, buf []byte, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := uint64(address) + uint64(len(buf))
	if end > uint64(len(m.data)) {
		return errors.Errorf("memory_store: read [%d,%d) out of range (size %d)", address, end, len(m.data))
	}
	copy(buf, m.data[address:end])
	return nil
}

func (m *MemoryStore) WriteStorage(_ context.Context, address pagecache.DataAddress, buf []byte, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := uint64(address) + uint64(len(buf))
	if end > uint64(len(m.data)) {
		return errors.Errorf("memory_store: write [%d,%d) out of range (size %d)", address, end, len(m.data))
	}
	copy(m.data[address:end], buf)
	return nil
}

// Snapshot returns a copy of the whole backing region, for test assertions.
func (m *MemoryStore) Snapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}
