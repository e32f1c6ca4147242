package keypair

import (
	"context"
	"crypto"
	"sync"

	"credhub/internal/sentinel"
)

// MemoryVault keeps private keys in process memory, keyed by alias.
// Intended for tests and local development; production deployments back the
// Vault interface with an external secret store.
type MemoryVault struct {
	mu   sync.RWMutex
	keys map[string]crypto.PrivateKey
}

// NewMemoryVault constructs an empty vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{keys: make(map[string]crypto.PrivateKey)}
}

// Store saves a private key under the alias.
func (v *MemoryVault) Store(alias string, key crypto.PrivateKey) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[alias] = key
}

// ResolveKey returns the key stored under the alias or sentinel.ErrNotFound.
func (v *MemoryVault) ResolveKey(_ context.Context, alias string) (crypto.PrivateKey, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[alias]; ok {
		return key, nil
	}
	return nil, sentinel.ErrNotFound
}

var _ Vault = (*MemoryVault)(nil)
