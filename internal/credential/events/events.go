// Package events publishes credential and key lifecycle records to an
// external sink.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"credhub/internal/credential/models"
	"credhub/internal/keypair"
)

// Event types emitted by this service.
const (
	TypeCredentialStateChanged = "credential.state_changed"
	TypeRenewalRequested       = "credential.renewal_requested"
	TypeKeyPairTransitioned    = "keypair.transitioned"
)

// Event is one lifecycle record. Key determines the partition so records for
// the same entity stay ordered.
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// Sink delivers lifecycle events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// CredentialStateChanged is the payload for a watchdog state transition.
type CredentialStateChanged struct {
	CredentialID         string                 `json:"credentialId"`
	ParticipantContextID string                 `json:"participantContextId"`
	PreviousState        models.CredentialState `json:"previousState"`
	State                models.CredentialState `json:"state"`
}

// RenewalRequested is the payload for a renewal initiation.
type RenewalRequested struct {
	RequestID            string                     `json:"requestId"`
	ParticipantContextID string                     `json:"participantContextId"`
	IssuerID             string                     `json:"issuerId"`
	CorrelationID        string                     `json:"correlationId"`
	Credentials          []models.RenewalDescriptor `json:"credentials"`
}

// KeyPairTransitioned is the payload for a key lifecycle transition.
type KeyPairTransitioned struct {
	KeyID                string `json:"keyId"`
	ParticipantContextID string `json:"participantContextId"`
	Transition           string `json:"transition"`
}

// KeyObserver bridges key directory transitions into the sink. Publish
// failures are logged, never surfaced to the directory.
func KeyObserver(sink Sink, logger *slog.Logger) keypair.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, event keypair.Event) {
		err := sink.Publish(ctx, Event{
			Type:       TypeKeyPairTransitioned,
			Key:        event.KeyID,
			OccurredAt: event.OccurredAt,
			Payload: KeyPairTransitioned{
				KeyID:                event.KeyID,
				ParticipantContextID: event.ParticipantContextID,
				Transition:           string(event.Type),
			},
		})
		if err != nil {
			logger.WarnContext(ctx, "publish key lifecycle event failed",
				"key_id", event.KeyID, "error", err)
		}
	}
}

// NoopSink discards events. Used when no brokers are configured.
type NoopSink struct{}

func (NoopSink) Publish(context.Context, Event) error { return nil }

func marshalEvent(event Event) ([]byte, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return value, nil
}
