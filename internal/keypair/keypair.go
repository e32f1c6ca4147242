// Package keypair holds the signing key-pair directory the presentation
// pipeline selects keys from. Key material itself stays behind the Vault
// interface; the directory only tracks aliases and lifecycle state.
package keypair

import (
	"context"
	"crypto"
	"time"
)

// State tracks a key pair through its rotation lifecycle.
type State string

const (
	StateCreated   State = "created"
	StateActivated State = "activated"
	StateRotated   State = "rotated"
	StateRevoked   State = "revoked"
)

// Usage tags what a key pair may be used for.
type Usage string

const (
	// UsagePresentationSigning marks keys eligible for signing presentations.
	UsagePresentationSigning Usage = "presentation_signing"
)

// Resource describes one key pair owned by a participant.
type Resource struct {
	KeyID                string
	ParticipantContextID string
	PrivateKeyAlias      string
	IsDefaultPair        bool
	State                State
	Usages               []Usage
	CreatedAt            time.Time
}

// Directory lists key pairs. The presentation registry performs client-side
// selection of the default pair, so a plain listing call suffices.
type Directory interface {
	// ActiveKeyPairsForUsage returns all key pairs of the participant that
	// are in the activated state and tagged with the given usage.
	ActiveKeyPairsForUsage(ctx context.Context, participantContextID string, usage Usage) ([]Resource, error)
}

// Vault resolves a private key alias to usable key material. Implemented by
// the key storage collaborator; generators never see raw aliases resolved
// anywhere else.
type Vault interface {
	ResolveKey(ctx context.Context, alias string) (crypto.PrivateKey, error)
}
