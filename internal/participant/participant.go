// Package participant exposes the participant-context directory the
// presentation pipeline resolves DIDs and token aliases from.
package participant

import (
	"context"
	"sync"

	"credhub/internal/sentinel"
)

// Context is the resolved identity of a participant hosted by this hub.
type Context struct {
	ParticipantContextID string
	DID                  string
	TokenAlias           string
}

// Directory resolves participant contexts by id.
type Directory interface {
	ParticipantContext(ctx context.Context, participantContextID string) (Context, error)
}

// MemoryDirectory is an in-memory participant directory. Safe for concurrent use.
type MemoryDirectory struct {
	mu           sync.RWMutex
	participants map[string]Context
}

// NewMemoryDirectory constructs an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{participants: make(map[string]Context)}
}

// Put registers or replaces a participant context.
func (d *MemoryDirectory) Put(pc Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.participants[pc.ParticipantContextID] = pc
}

// ParticipantContext returns the participant or sentinel.ErrNotFound.
func (d *MemoryDirectory) ParticipantContext(_ context.Context, participantContextID string) (Context, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if pc, ok := d.participants[participantContextID]; ok {
		return pc, nil
	}
	return Context{}, sentinel.ErrNotFound
}

var _ Directory = (*MemoryDirectory)(nil)
