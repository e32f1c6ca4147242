package models

import (
	"encoding/json"
	"time"
)

// CredentialFormat tags the wire format a credential (and the presentation
// embedding it) is expressed in. The format of a stored credential is fixed at
// creation and never changes.
type CredentialFormat string

const (
	// FormatJSONLD is a linked-data credential with an embedded proof.
	FormatJSONLD CredentialFormat = "json-ld"

	// FormatJWT is a credential enveloped in a signed JWT.
	FormatJWT CredentialFormat = "jwt"

	// FormatJOSE is a credential enveloped in a general JOSE structure.
	FormatJOSE CredentialFormat = "jose"
)

// IsTokenBased reports whether the format is a signed-token envelope.
// Token envelopes can embed linked-data credentials; the reverse does not hold.
func (f CredentialFormat) IsTokenBased() bool {
	return f == FormatJWT || f == FormatJOSE
}

// String returns the format tag as a string.
func (f CredentialFormat) String() string {
	return string(f)
}

// CredentialState tracks a stored credential through its lifecycle.
type CredentialState string

const (
	StateCreated   CredentialState = "created"
	StateIssued    CredentialState = "issued"
	StateSuspended CredentialState = "suspended"
	StateRevoked   CredentialState = "revoked"
	StateExpired   CredentialState = "expired"
	StateError     CredentialState = "error"
)

// ActionableStates lists the states the watchdog reconciles. Terminal states
// (expired, error) are left alone until a renewal flow replaces the resource.
func ActionableStates() []CredentialState {
	return []CredentialState{StateCreated, StateIssued, StateSuspended, StateRevoked}
}

// VcStatus is the verdict reported by the external status-check service.
type VcStatus string

const (
	StatusValid     VcStatus = "valid"
	StatusRevoked   VcStatus = "revoked"
	StatusSuspended VcStatus = "suspended"
	StatusExpired   VcStatus = "expired"
)

// State maps a status-check verdict onto the corresponding credential state.
func (s VcStatus) State() CredentialState {
	switch s {
	case StatusRevoked:
		return StateRevoked
	case StatusSuspended:
		return StateSuspended
	case StatusExpired:
		return StateExpired
	default:
		return StateIssued
	}
}

// Claims represents the structured claims of a credential subject.
type Claims map[string]interface{}

// VerifiableCredential is the structured view of a credential payload.
type VerifiableCredential struct {
	ID             string
	Types          []string
	Issuer         string
	IssuanceDate   time.Time
	ExpirationDate *time.Time
	Subject        Claims
}

// VerifiableCredentialContainer pairs the raw wire form of a credential with
// its structured view and format tag. This is what disclosure queries return
// and what presentation generators consume.
type VerifiableCredentialContainer struct {
	Raw        string
	Format     CredentialFormat
	Credential VerifiableCredential
}

// MetadataCredentialObjectID is the metadata key under which issuance stashes
// the correlation id the renewal initiator needs.
const MetadataCredentialObjectID = "credentialObjectId"

// CredentialResource is the persisted record for a held credential. It is
// created by issuance, mutated by the watchdog and renewal flows, and read-only
// for the query path.
type CredentialResource struct {
	ID                   string
	ParticipantContextID string
	IssuerID             string
	HolderID             string
	State                CredentialState
	Metadata             map[string]string
	Container            VerifiableCredentialContainer
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Format returns the immutable format tag of the stored credential.
func (r CredentialResource) Format() CredentialFormat {
	return r.Container.Format
}

// Criterion is the store query predicate built from a scope: all credentials
// of one type belonging to one participant.
type Criterion struct {
	ParticipantContextID string
	CredentialType       string
}

// RenewalDescriptor names one credential type/format the renewal initiator
// should request reissuance for.
type RenewalDescriptor struct {
	CredentialType string
	Format         CredentialFormat
}

// Presentation is one signed presentation produced for a disclosure, carrying
// its format tag and the raw JSON form (a quoted token for signed-token
// formats, an object for linked-data).
type Presentation struct {
	Format CredentialFormat `json:"format"`
	Raw    json.RawMessage  `json:"presentation"`
}
