package store

import (
	"context"
	"slices"
	"sync"

	"credhub/internal/credential/models"
)

// InMemoryStore is an in-memory implementation of Store for tests or local use.
// It is safe for concurrent access but does not persist across process restarts.
type InMemoryStore struct {
	mu        sync.RWMutex
	resources map[string]models.CredentialResource
	order     []string
}

// NewInMemoryStore constructs an empty in-memory credential store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{resources: make(map[string]models.CredentialResource)}
}

// Save stores a resource, keeping first-insertion order for queries.
func (s *InMemoryStore) Save(_ context.Context, resource models.CredentialResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.resources[resource.ID]; !exists {
		s.order = append(s.order, resource.ID)
	}
	s.resources[resource.ID] = copyResource(resource)
	return nil
}

// Update overwrites an existing resource or returns ErrNotFound.
func (s *InMemoryStore) Update(_ context.Context, resource models.CredentialResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.resources[resource.ID]; !exists {
		return ErrNotFound
	}
	s.resources[resource.ID] = copyResource(resource)
	return nil
}

// FindByID retrieves a resource by id or returns ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, id string) (models.CredentialResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if res, ok := s.resources[id]; ok {
		return copyResource(res), nil
	}
	return models.CredentialResource{}, ErrNotFound
}

// Query returns resources for the criterion's participant whose credential
// types include the criterion's credential type, in insertion order.
func (s *InMemoryStore) Query(_ context.Context, criterion models.Criterion) ([]models.CredentialResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.CredentialResource
	for _, id := range s.order {
		res := s.resources[id]
		if res.ParticipantContextID != criterion.ParticipantContextID {
			continue
		}
		if !slices.Contains(res.Container.Credential.Types, criterion.CredentialType) {
			continue
		}
		result = append(result, copyResource(res))
	}
	return result, nil
}

// QueryByStates returns resources in any of the given states, in insertion order.
func (s *InMemoryStore) QueryByStates(_ context.Context, states []models.CredentialState) ([]models.CredentialResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.CredentialResource
	for _, id := range s.order {
		res := s.resources[id]
		if slices.Contains(states, res.State) {
			result = append(result, copyResource(res))
		}
	}
	return result, nil
}

// copyResource deep-copies the maps and slices callers could otherwise mutate
// through a returned resource.
func copyResource(res models.CredentialResource) models.CredentialResource {
	out := res
	if res.Metadata != nil {
		out.Metadata = make(map[string]string, len(res.Metadata))
		for k, v := range res.Metadata {
			out.Metadata[k] = v
		}
	}
	out.Container.Credential.Types = slices.Clone(res.Container.Credential.Types)
	if res.Container.Credential.Subject != nil {
		out.Container.Credential.Subject = make(models.Claims, len(res.Container.Credential.Subject))
		for k, v := range res.Container.Credential.Subject {
			out.Container.Credential.Subject[k] = v
		}
	}
	if res.Container.Credential.ExpirationDate != nil {
		exp := *res.Container.Credential.ExpirationDate
		out.Container.Credential.ExpirationDate = &exp
	}
	return out
}
