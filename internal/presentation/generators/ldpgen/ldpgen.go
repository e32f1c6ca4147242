// Package ldpgen generates linked-data presentations embedding linked-data
// credentials as JSON objects. Proof generation is delegated to a Signer so
// canonicalization and proof-suite internals stay outside this engine.
package ldpgen

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"credhub/internal/credential/models"
	"credhub/internal/keypair"
)

// Signer produces the proof object for a presentation document.
type Signer interface {
	SignPresentation(ctx context.Context, payload []byte, privateKeyAlias, keyID, controller string) (map[string]any, error)
}

// Generator produces JSON-LD verifiable presentations.
type Generator struct {
	signer Signer
}

// New constructs a Generator with the given proof signer.
func New(signer Signer) (*Generator, error) {
	if signer == nil {
		return nil, fmt.Errorf("proof signer is required")
	}
	return &Generator{signer: signer}, nil
}

// GeneratePresentation builds and signs a linked-data presentation. Token
// credentials cannot be embedded; passing one is a caller error the assembler
// prevents by partitioning.
func (g *Generator) GeneratePresentation(
	ctx context.Context,
	participantContextID string,
	credentials []models.VerifiableCredentialContainer,
	privateKeyAlias string,
	keyID string,
	issuerDID string,
	claims map[string]any,
) (json.RawMessage, error) {
	embedded := make([]any, 0, len(credentials))
	for _, cred := range credentials {
		if cred.Format.IsTokenBased() {
			return nil, fmt.Errorf("cannot embed signed-token credential '%s' into a linked-data presentation", cred.Credential.ID)
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(cred.Raw), &doc); err != nil {
			return nil, fmt.Errorf("embed credential '%s': %w", cred.Credential.ID, err)
		}
		embedded = append(embedded, doc)
	}

	doc := map[string]any{
		"@context":             []string{"https://www.w3.org/2018/credentials/v1"},
		"type":                 []string{"VerifiablePresentation"},
		"id":                   "urn:uuid:" + uuid.NewString(),
		"holder":               issuerDID,
		"verifiableCredential": embedded,
	}
	for k, v := range claims {
		doc[k] = v
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal presentation: %w", err)
	}

	proof, err := g.signer.SignPresentation(ctx, payload, privateKeyAlias, keyID, issuerDID)
	if err != nil {
		return nil, fmt.Errorf("sign presentation: %w", err)
	}
	doc["proof"] = proof

	return json.Marshal(doc)
}

// Ed25519Signer signs the compact JSON serialization of the presentation with
// an Ed25519 key from the vault.
type Ed25519Signer struct {
	vault keypair.Vault
	clock func() time.Time
}

// NewEd25519Signer constructs a Signer over the vault.
func NewEd25519Signer(vault keypair.Vault) (*Ed25519Signer, error) {
	if vault == nil {
		return nil, fmt.Errorf("key vault is required")
	}
	return &Ed25519Signer{vault: vault, clock: time.Now}, nil
}

func (s *Ed25519Signer) SignPresentation(ctx context.Context, payload []byte, privateKeyAlias, keyID, controller string) (map[string]any, error) {
	key, err := s.vault.ResolveKey(ctx, privateKeyAlias)
	if err != nil {
		return nil, fmt.Errorf("resolve signing key '%s': %w", privateKeyAlias, err)
	}
	edKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key '%s' is not an ed25519 key", keyID)
	}

	signature := ed25519.Sign(edKey, payload)
	return map[string]any{
		"type":               "Ed25519Signature2020",
		"created":            s.clock().UTC().Format(time.RFC3339),
		"verificationMethod": controller + "#" + keyID,
		"proofPurpose":       "assertionMethod",
		"proofValue":         base64.RawURLEncoding.EncodeToString(signature),
	}, nil
}

var _ Signer = (*Ed25519Signer)(nil)
