// Package sessionstore persists provisioning sessions so a host can resume
// a workflow after a crash or timeout without re-deriving which on-chain
// steps already completed. The host must ensure at most one active writer
// per device wallet.
package sessionstore

import (
	"context"
	"sync"

	"github.com/kokio-labs/esimpay/types"
)

// Store abstracts session persistence.
type Store interface {
	// Get returns the session for a device wallet, or nil when none exists.
	Get(ctx context.Context, deviceWallet string) (*types.ProvisioningSession, error)
	Save(ctx context.Context, session types.ProvisioningSession) error
}

// MemoryStore is mostly for tests and single-process hosts.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]types.ProvisioningSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]types.ProvisioningSession),
	}
}

func (m *MemoryStore) Get(_ context.Context, deviceWallet string) (*types.ProvisioningSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.data[deviceWallet]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, session types.ProvisioningSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[session.DeviceWallet] = session
	return nil
}
