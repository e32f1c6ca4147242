// Package httptransport is the thin HTTP layer over the disclosure pipeline.
// It delegates to the resolver and assembler without embedding business logic
// so transport concerns remain isolated.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	contracts "credhub/contracts/presentation"
	"credhub/internal/credential/models"
	"credhub/internal/credential/resolver"
	"credhub/internal/transport/http/shared"
	dErrors "credhub/pkg/domain-errors"
)

// QueryService answers disclosure queries.
type QueryService interface {
	Query(ctx context.Context, participantContextID string, req resolver.DisclosureRequest) ([]models.VerifiableCredentialContainer, error)
}

// PresentationService assembles signed presentations for disclosed
// credentials.
type PresentationService interface {
	CreatePresentation(ctx context.Context, participantContextID string, credentials []models.VerifiableCredentialContainer, presentationDefinition any, audience string) ([]models.Presentation, error)
}

// Handler serves the disclosure API.
type Handler struct {
	resolver  QueryService
	assembler PresentationService
	logger    *slog.Logger
}

// NewHandler wires the disclosure endpoint onto its services.
func NewHandler(queries QueryService, presentations PresentationService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{resolver: queries, assembler: presentations, logger: logger}
}

// handleQuery authorizes a disclosure request against the caller's token
// scopes and returns signed presentations for the surviving credentials.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req contracts.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.ParticipantContextID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "participantContextId is required"))
		return
	}

	credentials, err := h.resolver.Query(r.Context(), req.ParticipantContextID, resolver.DisclosureRequest{
		RequestedScopes:               req.Scopes,
		GrantedScopes:                 GrantedScopes(r.Context()),
		PresentationDefinitionPresent: len(req.PresentationDefinition) > 0,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	presentations, err := h.assembler.CreatePresentation(r.Context(), req.ParticipantContextID, credentials, nil, req.Audience)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "presentation assembly failed",
			"participant_context_id", req.ParticipantContextID, "error", err)
		shared.WriteError(w, err)
		return
	}

	response := contracts.QueryResponse{
		Presentations: make([]contracts.PresentationEntry, 0, len(presentations)),
	}
	for _, p := range presentations {
		response.Presentations = append(response.Presentations, contracts.PresentationEntry{
			Format:       p.Format.String(),
			Presentation: p.Raw,
		})
	}
	shared.WriteJSON(w, http.StatusOK, response)
}
