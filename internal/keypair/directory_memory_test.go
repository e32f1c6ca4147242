package keypair

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credhub/internal/sentinel"
)

func newTestPair(keyID, participantID string, isDefault bool) Resource {
	return Resource{
		KeyID:                keyID,
		ParticipantContextID: participantID,
		PrivateKeyAlias:      "alias-" + keyID,
		IsDefaultPair:        isDefault,
		Usages:               []Usage{UsagePresentationSigning},
	}
}

func TestMemoryDirectoryLifecycle(t *testing.T) {
	dir := NewMemoryDirectory()
	ctx := context.Background()

	require.NoError(t, dir.Add(ctx, newTestPair("key-1", "participant-1", true)))

	// Created keys are not active yet.
	active, err := dir.ActiveKeyPairsForUsage(ctx, "participant-1", UsagePresentationSigning)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, dir.Activate(ctx, "key-1"))
	active, err = dir.ActiveKeyPairsForUsage(ctx, "participant-1", UsagePresentationSigning)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "key-1", active[0].KeyID)

	// Rotated keys drop out of selection.
	require.NoError(t, dir.Rotate(ctx, "key-1"))
	active, err = dir.ActiveKeyPairsForUsage(ctx, "participant-1", UsagePresentationSigning)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Invalid transitions are rejected.
	require.ErrorIs(t, dir.Activate(ctx, "missing"), sentinel.ErrNotFound)
	require.ErrorIs(t, dir.Rotate(ctx, "key-1"), sentinel.ErrInvalidState)
	require.NoError(t, dir.Revoke(ctx, "key-1"))
	require.ErrorIs(t, dir.Revoke(ctx, "key-1"), sentinel.ErrInvalidState)
}

func TestMemoryDirectoryObservers(t *testing.T) {
	dir := NewMemoryDirectory()
	ctx := context.Background()

	var events []Event
	dir.Subscribe(func(_ context.Context, event Event) {
		events = append(events, event)
	})

	require.NoError(t, dir.Add(ctx, newTestPair("key-1", "participant-1", false)))
	require.NoError(t, dir.Activate(ctx, "key-1"))
	require.NoError(t, dir.Revoke(ctx, "key-1"))

	require.Len(t, events, 3)
	assert.Equal(t, EventAdded, events[0].Type)
	assert.Equal(t, EventActivated, events[1].Type)
	assert.Equal(t, EventRevoked, events[2].Type)
	assert.Equal(t, "key-1", events[0].KeyID)
	assert.Equal(t, "participant-1", events[0].ParticipantContextID)
}

func TestMemoryVault(t *testing.T) {
	vault := NewMemoryVault()
	ctx := context.Background()

	_, err := vault.ResolveKey(ctx, "missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	vault.Store("alias-1", struct{}{})
	key, err := vault.ResolveKey(ctx, "alias-1")
	require.NoError(t, err)
	assert.NotNil(t, key)
}
