package keypair

import (
	"context"
	"slices"
	"sync"
	"time"

	"credhub/internal/sentinel"
)

// EventType names a key lifecycle transition.
type EventType string

const (
	EventAdded     EventType = "key_added"
	EventActivated EventType = "key_activated"
	EventRotated   EventType = "key_rotated"
	EventRevoked   EventType = "key_revoked"
)

// Event describes one key lifecycle transition.
type Event struct {
	Type                 EventType
	KeyID                string
	ParticipantContextID string
	OccurredAt           time.Time
}

// Observer receives lifecycle events. Observers are invoked synchronously
// after the owning state transition commits; a slow observer delays the
// caller, not the transition.
type Observer func(ctx context.Context, event Event)

// MemoryDirectory is an in-memory key-pair directory with lifecycle
// transitions and an observer list. Safe for concurrent use.
type MemoryDirectory struct {
	mu        sync.RWMutex
	pairs     map[string]Resource
	observers []Observer
}

// NewMemoryDirectory constructs an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{pairs: make(map[string]Resource)}
}

// Subscribe appends an observer for lifecycle events.
func (d *MemoryDirectory) Subscribe(obs Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, obs)
}

// Add registers a new key pair in the created state.
func (d *MemoryDirectory) Add(ctx context.Context, resource Resource) error {
	d.mu.Lock()
	if _, exists := d.pairs[resource.KeyID]; exists {
		d.mu.Unlock()
		return sentinel.ErrInvalidState
	}
	resource.State = StateCreated
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = time.Now()
	}
	d.pairs[resource.KeyID] = resource
	d.mu.Unlock()

	d.notify(ctx, Event{Type: EventAdded, KeyID: resource.KeyID, ParticipantContextID: resource.ParticipantContextID, OccurredAt: time.Now()})
	return nil
}

// Activate transitions a created or rotated key pair to activated.
func (d *MemoryDirectory) Activate(ctx context.Context, keyID string) error {
	return d.transition(ctx, keyID, StateActivated, EventActivated, StateCreated, StateRotated)
}

// Rotate marks an activated key pair as rotated. Rotated keys are no longer
// selected for new presentations but remain valid until revoked.
func (d *MemoryDirectory) Rotate(ctx context.Context, keyID string) error {
	return d.transition(ctx, keyID, StateRotated, EventRotated, StateActivated)
}

// Revoke terminally revokes a key pair.
func (d *MemoryDirectory) Revoke(ctx context.Context, keyID string) error {
	return d.transition(ctx, keyID, StateRevoked, EventRevoked, StateCreated, StateActivated, StateRotated)
}

func (d *MemoryDirectory) transition(ctx context.Context, keyID string, to State, eventType EventType, from ...State) error {
	d.mu.Lock()
	resource, ok := d.pairs[keyID]
	if !ok {
		d.mu.Unlock()
		return sentinel.ErrNotFound
	}
	if !slices.Contains(from, resource.State) {
		d.mu.Unlock()
		return sentinel.ErrInvalidState
	}
	resource.State = to
	d.pairs[keyID] = resource
	d.mu.Unlock()

	d.notify(ctx, Event{Type: eventType, KeyID: keyID, ParticipantContextID: resource.ParticipantContextID, OccurredAt: time.Now()})
	return nil
}

// ActiveKeyPairsForUsage returns activated pairs tagged with the usage.
func (d *MemoryDirectory) ActiveKeyPairsForUsage(_ context.Context, participantContextID string, usage Usage) ([]Resource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []Resource
	for _, resource := range d.pairs {
		if resource.ParticipantContextID != participantContextID {
			continue
		}
		if resource.State != StateActivated {
			continue
		}
		if !slices.Contains(resource.Usages, usage) {
			continue
		}
		result = append(result, resource)
	}
	return result, nil
}

// notify invokes observers outside the directory lock.
func (d *MemoryDirectory) notify(ctx context.Context, event Event) {
	d.mu.RLock()
	observers := slices.Clone(d.observers)
	d.mu.RUnlock()
	for _, obs := range observers {
		obs(ctx, event)
	}
}

var _ Directory = (*MemoryDirectory)(nil)
