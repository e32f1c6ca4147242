// Package presentation assembles signed verifiable presentations from
// disclosed credentials, dispatching to format-specific generators.
package presentation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"credhub/internal/credential/models"
	"credhub/internal/keypair"
	"credhub/internal/participant"
)

// ControllerClaim is injected into every generator invocation, carrying the
// issuer DID the verifier should resolve the signing key against.
const ControllerClaim = "controller"

// Generator produces one signed presentation in a specific format.
// Implementations own the signing and serialization; their failures propagate
// unchanged through the registry.
type Generator interface {
	GeneratePresentation(
		ctx context.Context,
		participantContextID string,
		credentials []models.VerifiableCredentialContainer,
		privateKeyAlias string,
		keyID string,
		issuerDID string,
		claims map[string]any,
	) (json.RawMessage, error)
}

// CreatorRegistry maps credential formats to presentation generators and
// selects signing key material per request. Registrations and lookups may
// interleave; the last registration for a format wins.
type CreatorRegistry struct {
	mu         sync.RWMutex
	generators map[models.CredentialFormat]Generator

	keys         keypair.Directory
	participants participant.Directory
	logger       *slog.Logger
}

// RegistryOption configures the CreatorRegistry.
type RegistryOption func(*CreatorRegistry)

// WithRegistryLogger sets the logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *CreatorRegistry) {
		r.logger = logger
	}
}

// NewRegistry constructs a registry over the key-pair and participant directories.
func NewRegistry(keys keypair.Directory, participants participant.Directory, opts ...RegistryOption) (*CreatorRegistry, error) {
	if keys == nil || participants == nil {
		return nil, fmt.Errorf("key-pair directory and participant directory are required")
	}
	r := &CreatorRegistry{
		generators:   make(map[models.CredentialFormat]Generator),
		keys:         keys,
		participants: participants,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Register associates a generator with a format, replacing any previous one.
func (r *CreatorRegistry) Register(format models.CredentialFormat, generator Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[format] = generator
}

// CreatePresentation resolves the participant and signing key, then dispatches
// to the generator registered for the format. A missing generator is a
// configuration error, not a retryable condition.
func (r *CreatorRegistry) CreatePresentation(
	ctx context.Context,
	participantContextID string,
	credentials []models.VerifiableCredentialContainer,
	format models.CredentialFormat,
	additionalClaims map[string]any,
) (json.RawMessage, error) {
	pc, err := r.participants.ParticipantContext(ctx, participantContextID)
	if err != nil {
		return nil, fmt.Errorf("resolve participant context '%s': %w", participantContextID, err)
	}

	pair, err := r.selectSigningKey(ctx, participantContextID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	generator, ok := r.generators[format]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no presentation generator registered for format '%s'", format)
	}

	claims := make(map[string]any, len(additionalClaims)+1)
	for k, v := range additionalClaims {
		claims[k] = v
	}
	claims[ControllerClaim] = pc.DID

	return generator.GeneratePresentation(ctx, participantContextID, credentials, pair.PrivateKeyAlias, pair.KeyID, pc.DID, claims)
}

// selectSigningKey picks the participant's presentation-signing key. When
// several keys are active the default pair wins; otherwise selection falls
// back to the lowest key id so repeated calls pick the same key.
func (r *CreatorRegistry) selectSigningKey(ctx context.Context, participantContextID string) (keypair.Resource, error) {
	pairs, err := r.keys.ActiveKeyPairsForUsage(ctx, participantContextID, keypair.UsagePresentationSigning)
	if err != nil {
		return keypair.Resource{}, err
	}
	if len(pairs) == 0 {
		return keypair.Resource{}, fmt.Errorf("No active key pair found for participant '%s'", participantContextID)
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].KeyID < pairs[j].KeyID })
	for _, pair := range pairs {
		if pair.IsDefaultPair {
			return pair, nil
		}
	}
	return pairs[0], nil
}
