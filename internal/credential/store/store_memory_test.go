package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credhub/internal/credential/models"
)

func newTestResource(participantID, credentialType string, state models.CredentialState) models.CredentialResource {
	now := time.Now()
	return models.CredentialResource{
		ID:                   uuid.NewString(),
		ParticipantContextID: participantID,
		IssuerID:             "did:web:issuer.example",
		HolderID:             "did:web:holder.example",
		State:                state,
		Metadata:             map[string]string{},
		Container: models.VerifiableCredentialContainer{
			Raw:    `{"type":["VerifiableCredential","` + credentialType + `"]}`,
			Format: models.FormatJSONLD,
			Credential: models.VerifiableCredential{
				ID:           uuid.NewString(),
				Types:        []string{"VerifiableCredential", credentialType},
				Issuer:       "did:web:issuer.example",
				IssuanceDate: now.Add(-time.Hour),
				Subject:      models.Claims{"member": true},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInMemoryStoreOperations(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	// Save and find
	res := newTestResource("participant-1", "MembershipCredential", models.StateIssued)
	require.NoError(t, store.Save(ctx, res))

	fetched, err := store.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, fetched.ID)

	// Update
	res.State = models.StateRevoked
	require.NoError(t, store.Update(ctx, res))
	fetched, err = store.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateRevoked, fetched.State)

	// Update of unknown id
	ghost := newTestResource("participant-1", "MembershipCredential", models.StateIssued)
	require.ErrorIs(t, store.Update(ctx, ghost), ErrNotFound)

	// Find non-existing
	_, err = store.FindByID(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStoreQuery(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	membership := newTestResource("participant-1", "MembershipCredential", models.StateIssued)
	license := newTestResource("participant-1", "DriverLicense", models.StateIssued)
	other := newTestResource("participant-2", "MembershipCredential", models.StateIssued)
	require.NoError(t, store.Save(ctx, membership))
	require.NoError(t, store.Save(ctx, license))
	require.NoError(t, store.Save(ctx, other))

	result, err := store.Query(ctx, models.Criterion{
		ParticipantContextID: "participant-1",
		CredentialType:       "MembershipCredential",
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, membership.ID, result[0].ID)

	// Copy integrity: mutating the result must not affect the store.
	result[0].Metadata["injected"] = "value"
	result[0].Container.Credential.Subject["member"] = false
	fetched, err := store.FindByID(ctx, membership.ID)
	require.NoError(t, err)
	assert.NotContains(t, fetched.Metadata, "injected")
	assert.Equal(t, true, fetched.Container.Credential.Subject["member"])
}

func TestInMemoryStoreQueryByStates(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	issued := newTestResource("participant-1", "MembershipCredential", models.StateIssued)
	expired := newTestResource("participant-1", "MembershipCredential", models.StateExpired)
	errored := newTestResource("participant-1", "MembershipCredential", models.StateError)
	require.NoError(t, store.Save(ctx, issued))
	require.NoError(t, store.Save(ctx, expired))
	require.NoError(t, store.Save(ctx, errored))

	result, err := store.QueryByStates(ctx, models.ActionableStates())
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, issued.ID, result[0].ID)
}
