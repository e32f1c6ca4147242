package presentation

// Package presentation hosts the stable DTOs for the disclosure API. These
// shapes are the wire contract between callers and the query endpoint; keep
// them decoupled from the internal credential and presentation models.

import "encoding/json"

// ContractVersion identifies the contract schema version for compatibility checks.
// Bump on breaking changes to the shapes below; consumers can pin or roll forward.
const ContractVersion = "v0.1.0"

// QueryRequest is one inbound disclosure request. Granted scopes are derived
// from the caller's access token by the transport layer, never taken from the
// body.
type QueryRequest struct {
	ParticipantContextID   string          `json:"participantContextId"`
	Scopes                 []string        `json:"scope,omitempty"`
	PresentationDefinition json.RawMessage `json:"presentationDefinition,omitempty"`
	Audience               string          `json:"audience,omitempty"`
}

// PresentationEntry is one signed presentation in a query response.
type PresentationEntry struct {
	Format       string          `json:"format"`
	Presentation json.RawMessage `json:"presentation"`
}

// QueryResponse carries every presentation produced for one disclosure.
type QueryResponse struct {
	Presentations []PresentationEntry `json:"presentations"`
}

// ErrorResponse is the uniform error body for the disclosure API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
