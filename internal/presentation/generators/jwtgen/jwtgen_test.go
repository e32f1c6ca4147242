package jwtgen

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credhub/internal/credential/models"
	"credhub/internal/keypair"
)

func newSigningSetup(t *testing.T) (*Generator, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	vault := keypair.NewMemoryVault()
	vault.Store("alias-1", priv)

	gen, err := New(vault, WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	return gen, pub
}

func TestGeneratePresentation(t *testing.T) {
	gen, pub := newSigningSetup(t)

	ldCred := models.VerifiableCredentialContainer{
		Raw:    `{"type":["VerifiableCredential","MembershipCredential"],"credentialSubject":{"member":true}}`,
		Format: models.FormatJSONLD,
		Credential: models.VerifiableCredential{
			ID:    "cred-ld",
			Types: []string{"VerifiableCredential", "MembershipCredential"},
		},
	}
	jwtCred := models.VerifiableCredentialContainer{
		Raw:    "eyJhbGciOiJFZERTQSJ9.e30.sig",
		Format: models.FormatJWT,
		Credential: models.VerifiableCredential{
			ID:    "cred-jwt",
			Types: []string{"VerifiableCredential"},
		},
	}

	raw, err := gen.GeneratePresentation(context.Background(), "participant-1",
		[]models.VerifiableCredentialContainer{ldCred, jwtCred},
		"alias-1", "key-1", "did:web:holder.example",
		map[string]any{"aud": "did:web:verifier.example", "controller": "did:web:holder.example"},
	)
	require.NoError(t, err)

	var compact string
	require.NoError(t, json.Unmarshal(raw, &compact))

	token, err := jwt.Parse(compact, func(token *jwt.Token) (any, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"EdDSA"}), jwt.WithAudience("did:web:verifier.example"), jwt.WithTimeFunc(func() time.Time {
		return time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	require.True(t, token.Valid)

	assert.Equal(t, "key-1", token.Header["kid"])

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "did:web:holder.example", claims["iss"])
	assert.Equal(t, "did:web:holder.example", claims["controller"])

	vp, ok := claims["vp"].(map[string]any)
	require.True(t, ok)
	embedded, ok := vp["verifiableCredential"].([]any)
	require.True(t, ok)
	require.Len(t, embedded, 2)

	// Linked-data credentials embed as objects, token credentials as strings.
	_, isObject := embedded[0].(map[string]any)
	assert.True(t, isObject)
	assert.Equal(t, jwtCred.Raw, embedded[1])
}

func TestGeneratePresentationErrors(t *testing.T) {
	gen, _ := newSigningSetup(t)

	t.Run("unknown key alias", func(t *testing.T) {
		_, err := gen.GeneratePresentation(context.Background(), "participant-1", nil, "missing", "key-1", "did:web:holder.example", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "resolve signing key 'missing'")
	})

	t.Run("unsupported key type", func(t *testing.T) {
		vault := keypair.NewMemoryVault()
		vault.Store("alias-hmac", []byte("secret"))
		g, err := New(vault)
		require.NoError(t, err)

		_, err = g.GeneratePresentation(context.Background(), "participant-1", nil, "alias-hmac", "key-1", "did:web:holder.example", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported signing key type")
	})

	t.Run("malformed linked-data credential", func(t *testing.T) {
		cred := models.VerifiableCredentialContainer{
			Raw:        "{not json",
			Format:     models.FormatJSONLD,
			Credential: models.VerifiableCredential{ID: "cred-bad"},
		}
		_, err := gen.GeneratePresentation(context.Background(), "participant-1",
			[]models.VerifiableCredentialContainer{cred}, "alias-1", "key-1", "did:web:holder.example", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embed credential 'cred-bad'")
	})
}
