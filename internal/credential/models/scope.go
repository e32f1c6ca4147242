package models

import (
	"fmt"
	"strings"

	dErrors "credhub/pkg/domain-errors"
)

// OperationRead is the only scope operation the engine understands today.
const OperationRead = "read"

const scopeSegments = 3

// Scope is a namespaced capability granting or requesting read access to one
// credential type: "<namespace>:<credentialType>:<operation>".
type Scope struct {
	Namespace      string
	CredentialType string
	Operation      string
}

// ParseScope parses a scope string. It is pure and total: malformed input is
// reported as a domain error with code invalid_scope, never a panic. The error
// message distinguishes wrong segment count, empty segments, and unsupported
// operations.
func ParseScope(raw string) (Scope, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != scopeSegments {
		return Scope{}, invalidScope(raw, fmt.Sprintf("expected %d colon-separated segments, got %d", scopeSegments, len(parts)))
	}
	for _, part := range parts {
		if part == "" {
			return Scope{}, invalidScope(raw, "empty segment")
		}
	}
	if parts[2] != OperationRead {
		return Scope{}, invalidScope(raw, fmt.Sprintf("unsupported operation '%s'", parts[2]))
	}
	return Scope{
		Namespace:      parts[0],
		CredentialType: parts[1],
		Operation:      parts[2],
	}, nil
}

func invalidScope(raw, reason string) error {
	return dErrors.New(dErrors.CodeInvalidScope, fmt.Sprintf("invalid scope '%s': %s", raw, reason))
}

// String renders the scope in its canonical wire form. For every well-formed
// scope, ParseScope(s.String()) yields s back.
func (s Scope) String() string {
	return s.Namespace + ":" + s.CredentialType + ":" + s.Operation
}

// Criterion converts the scope into the store predicate matching credentials
// of this type held for the given participant.
func (s Scope) Criterion(participantContextID string) Criterion {
	return Criterion{
		ParticipantContextID: participantContextID,
		CredentialType:       s.CredentialType,
	}
}
