// Package revocation exposes the revocation oracle the query path consults
// before disclosing a credential.
package revocation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"credhub/internal/credential/models"
)

// Checker reports whether a credential is still valid per its revocation
// status. A nil return means valid; an *InvalidError carries the oracle's
// reason; any other error is a transport problem.
type Checker interface {
	CheckValidity(ctx context.Context, container models.VerifiableCredentialContainer) error
}

// InvalidError is the oracle's verdict that a credential is no longer valid.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return e.Reason
}

// HTTPChecker asks a remote validity endpoint for a verdict. The endpoint
// receives the raw credential and answers 2xx for valid, 4xx with a textual
// reason for invalid.
type HTTPChecker struct {
	endpoint string
	client   *http.Client
}

// NewHTTPChecker constructs a checker against the given validity endpoint.
func NewHTTPChecker(endpoint string) *HTTPChecker {
	return &HTTPChecker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPChecker) CheckValidity(ctx context.Context, container models.VerifiableCredentialContainer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader([]byte(container.Raw)))
	if err != nil {
		return fmt.Errorf("build validity request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeFor(container.Format))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validity check: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		reason := strings.TrimSpace(string(body))
		if reason == "" {
			reason = "revoked"
		}
		return &InvalidError{Reason: reason}
	default:
		return fmt.Errorf("validity check: unexpected status %d", resp.StatusCode)
	}
}

func contentTypeFor(format models.CredentialFormat) string {
	if format.IsTokenBased() {
		return "application/jwt"
	}
	return "application/json"
}

// NoopChecker accepts every credential. Used when no oracle is configured.
type NoopChecker struct{}

func (NoopChecker) CheckValidity(context.Context, models.VerifiableCredentialContainer) error {
	return nil
}
