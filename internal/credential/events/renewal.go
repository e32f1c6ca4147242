package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"credhub/internal/credential/models"
)

// RenewalPublisher initiates credential renewal by publishing a request
// record. A downstream issuance flow consumes it and updates the credential
// out-of-band.
type RenewalPublisher struct {
	sink  Sink
	clock func() time.Time
}

// NewRenewalPublisher wires a renewal initiator onto the sink.
func NewRenewalPublisher(sink Sink) *RenewalPublisher {
	return &RenewalPublisher{sink: sink, clock: time.Now}
}

// InitiateRequest publishes one renewal request stamped with a fresh
// request id. The correlation id keys the record so retries for the same
// offer stay ordered.
func (p *RenewalPublisher) InitiateRequest(ctx context.Context, participantContextID, issuerID, correlationID string, descriptors []models.RenewalDescriptor) error {
	return p.sink.Publish(ctx, Event{
		Type:       TypeRenewalRequested,
		Key:        correlationID,
		OccurredAt: p.clock(),
		Payload: RenewalRequested{
			RequestID:            uuid.NewString(),
			ParticipantContextID: participantContextID,
			IssuerID:             issuerID,
			CorrelationID:        correlationID,
			Credentials:          descriptors,
		},
	})
}
