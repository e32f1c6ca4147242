// Package jwtgen generates signed-token presentations enveloping credentials
// in a JWT with a vp claim.
package jwtgen

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"credhub/internal/credential/models"
	"credhub/internal/keypair"
)

const defaultTokenValidity = 5 * time.Minute

// Generator produces JWT verifiable presentations. The same generator serves
// the jwt and jose format tags.
type Generator struct {
	vault    keypair.Vault
	validity time.Duration
	clock    func() time.Time
}

// Option configures the Generator.
type Option func(*Generator)

// WithValidity overrides the presentation token lifetime.
func WithValidity(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.validity = d
		}
	}
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		g.clock = clock
	}
}

// New constructs a Generator resolving signing keys from the vault.
func New(vault keypair.Vault, opts ...Option) (*Generator, error) {
	if vault == nil {
		return nil, fmt.Errorf("key vault is required")
	}
	g := &Generator{
		vault:    vault,
		validity: defaultTokenValidity,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// GeneratePresentation envelopes the credentials in a signed JWT. Linked-data
// credentials are embedded as JSON objects, token credentials as their compact
// serialization.
func (g *Generator) GeneratePresentation(
	ctx context.Context,
	participantContextID string,
	credentials []models.VerifiableCredentialContainer,
	privateKeyAlias string,
	keyID string,
	issuerDID string,
	claims map[string]any,
) (json.RawMessage, error) {
	key, err := g.vault.ResolveKey(ctx, privateKeyAlias)
	if err != nil {
		return nil, fmt.Errorf("resolve signing key '%s': %w", privateKeyAlias, err)
	}
	method, err := signingMethodFor(key)
	if err != nil {
		return nil, err
	}

	embedded := make([]any, 0, len(credentials))
	for _, cred := range credentials {
		if cred.Format.IsTokenBased() {
			embedded = append(embedded, cred.Raw)
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(cred.Raw), &doc); err != nil {
			return nil, fmt.Errorf("embed credential '%s': %w", cred.Credential.ID, err)
		}
		embedded = append(embedded, doc)
	}

	now := g.clock()
	tokenClaims := jwt.MapClaims{
		"iss": issuerDID,
		"sub": issuerDID,
		"jti": "urn:uuid:" + uuid.NewString(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(g.validity).Unix(),
		"vp": map[string]any{
			"@context":             []string{"https://www.w3.org/2018/credentials/v1"},
			"type":                 []string{"VerifiablePresentation"},
			"holder":               issuerDID,
			"verifiableCredential": embedded,
		},
	}
	for k, v := range claims {
		tokenClaims[k] = v
	}

	token := jwt.NewWithClaims(method, tokenClaims)
	token.Header["kid"] = keyID

	signed, err := token.SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("sign presentation: %w", err)
	}
	return json.Marshal(signed)
}

// signingMethodFor maps key material to a JOSE signing algorithm.
func signingMethodFor(key any) (jwt.SigningMethod, error) {
	switch k := key.(type) {
	case ed25519.PrivateKey:
		return jwt.SigningMethodEdDSA, nil
	case *ecdsa.PrivateKey:
		switch k.Curve {
		case elliptic.P256():
			return jwt.SigningMethodES256, nil
		case elliptic.P384():
			return jwt.SigningMethodES384, nil
		case elliptic.P521():
			return jwt.SigningMethodES512, nil
		}
		return nil, fmt.Errorf("unsupported ecdsa curve %s", k.Curve.Params().Name)
	case *rsa.PrivateKey:
		return jwt.SigningMethodRS256, nil
	default:
		return nil, fmt.Errorf("unsupported signing key type %T", key)
	}
}
