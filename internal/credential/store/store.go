package store

import (
	"context"

	"credhub/internal/credential/models"
	pkgerrors "credhub/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "credential not found")
)

// Store persists credential resources. Query results are returned in stable
// insertion order so disclosure responses are deterministic.
type Store interface {
	Save(ctx context.Context, resource models.CredentialResource) error
	Update(ctx context.Context, resource models.CredentialResource) error
	FindByID(ctx context.Context, id string) (models.CredentialResource, error)

	// Query returns all resources matching the criterion (participant and
	// credential type).
	Query(ctx context.Context, criterion models.Criterion) ([]models.CredentialResource, error)

	// QueryByStates returns all resources whose state is in the given set,
	// across all participants. Used by the watchdog.
	QueryByStates(ctx context.Context, states []models.CredentialState) ([]models.CredentialResource, error)
}
