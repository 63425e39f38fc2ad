package ledger

import (
	"context"
	"sync"

	"github.com/edgecore/core-runtime/internal/asset"
)

// MemoryLedger backs asset.Ledger with an in-process map, for devices
// running without a fleet-shared Redis instance: still at-most-once
// within this process, just not across devices.
type MemoryLedger struct {
	mu      sync.Mutex
	claimed map[asset.ID]struct{}
}

// NewMemoryLedger returns an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{claimed: map[asset.ID]struct{}{}}
}

// Reserve implements asset.Ledger.
func (m *MemoryLedger) Reserve(ctx context.Context, id asset.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claimed[id]; ok {
		return false, nil
	}
	m.claimed[id] = struct{}{}
	return true, nil
}

// Confirm implements asset.Ledger.
func (m *MemoryLedger) Confirm(ctx context.Context, id asset.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, id)
	return nil
}

// Release implements asset.Ledger.
func (m *MemoryLedger) Release(ctx context.Context, id asset.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, id)
	return nil
}
