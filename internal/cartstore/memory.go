package cartstore

import (
	"context"
	"sync"

	"github.com/noah-isme/cart-engine/internal/cart"
)

// Memory is an in-process Storage for tests and embedders that keep cart
// state for the lifetime of the process.
type Memory struct {
	mu    sync.RWMutex
	snaps map[string]cart.Snapshot
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{snaps: map[string]cart.Snapshot{}}
}

// Load returns the stored snapshot, reporting absence via the boolean.
func (m *Memory) Load(_ context.Context, name string) (cart.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[name]
	return snap, ok, nil
}

// Save stores the snapshot.
func (m *Memory) Save(_ context.Context, name string, snap cart.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[name] = snap
	return nil
}

// Delete removes the snapshot if present.
func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, name)
	return nil
}
