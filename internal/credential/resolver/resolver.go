// Package resolver implements the disclosure decision path: authorize a
// requested scope set against the caller's granted scopes, fetch candidate
// credentials, and filter them by temporal and revocation validity.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credhub/internal/credential/metrics"
	"credhub/internal/credential/models"
	"credhub/internal/credential/revocation"
	"credhub/internal/credential/store"
	"credhub/internal/credential/tracer"
	dErrors "credhub/pkg/domain-errors"
)

// DisclosureRequest is one inbound query for credentials.
//
// GrantedScopes is authoritative: it is derived from the caller's verified
// token, not from the request body. An empty RequestedScopes list means
// "everything I've been granted". PresentationDefinition signals a DIF
// Presentation Exchange query, which this engine does not implement.
type DisclosureRequest struct {
	RequestedScopes               []string
	GrantedScopes                 []string
	PresentationDefinitionPresent bool
}

// Resolver answers disclosure queries. It is stateless between calls and safe
// for concurrent use as long as its collaborators are.
type Resolver struct {
	store      store.Store
	revocation revocation.Checker
	clock      func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     tracer.Tracer
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for exclusion diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithTracer sets the tracer for query spans.
func WithTracer(t tracer.Tracer) Option {
	return func(r *Resolver) {
		r.tracer = t
	}
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) {
		r.clock = clock
	}
}

// New constructs a Resolver. The store and revocation checker are required.
func New(credStore store.Store, checker revocation.Checker, opts ...Option) (*Resolver, error) {
	if credStore == nil || checker == nil {
		return nil, fmt.Errorf("credential store and revocation checker are required")
	}
	r := &Resolver{
		store:      credStore,
		revocation: checker,
		clock:      time.Now,
		logger:     slog.Default(),
		tracer:     tracer.NewNoop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Query resolves a disclosure request into the list of credentials the caller
// may see. Failures carry one of the domain codes unsupported, invalid_scope,
// unauthorized_scope, or storage_failure; the credential store is never
// mutated.
func (r *Resolver) Query(ctx context.Context, participantContextID string, req DisclosureRequest) (result []models.VerifiableCredentialContainer, err error) {
	start := r.clock()
	ctx, span := r.tracer.Start(ctx, "credential.query",
		tracer.String("participant_context_id", participantContextID),
		tracer.Int("requested_scopes", len(req.RequestedScopes)),
	)
	defer func() {
		span.End(err)
		if r.metrics != nil {
			r.metrics.ObserveQuery(outcome(err), r.clock().Sub(start))
		}
	}()

	if req.PresentationDefinitionPresent {
		return nil, dErrors.New(dErrors.CodeUnsupported, "presentationDefinition queries are not supported")
	}

	// An empty requested-scope list means "everything I've been granted".
	effective := req.RequestedScopes
	if len(effective) == 0 {
		effective = req.GrantedScopes
	}
	if len(effective) == 0 {
		return []models.VerifiableCredentialContainer{}, nil
	}

	effectiveScopes, err := parseScopes(effective)
	if err != nil {
		return nil, err
	}
	grantedScopes, err := parseScopes(req.GrantedScopes)
	if err != nil {
		return nil, err
	}

	if err := authorize(effectiveScopes, grantedScopes); err != nil {
		return nil, err
	}

	resources, err := r.fetch(ctx, participantContextID, effectiveScopes)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(tracer.Int("candidates", len(resources)))

	result = r.filterValid(ctx, resources)
	return result, nil
}

// parseScopes parses every raw scope; the first malformed scope aborts with
// its invalid_scope error identifying the offending string.
func parseScopes(raw []string) ([]models.Scope, error) {
	scopes := make([]models.Scope, 0, len(raw))
	for _, s := range raw {
		scope, err := models.ParseScope(s)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	return scopes, nil
}

// authorize checks that every effective scope's (credentialType, operation)
// pair is covered by the granted set.
func authorize(effective, granted []models.Scope) error {
	if len(granted) == 0 {
		return dErrors.New(dErrors.CodeUnauthorizedScope,
			fmt.Sprintf("Invalid query: %d credentials requested, but no scopes are granted.", len(effective)))
	}

	grantedSet := make(map[[2]string]struct{}, len(granted))
	for _, scope := range granted {
		grantedSet[[2]string{scope.CredentialType, scope.Operation}] = struct{}{}
	}
	for _, scope := range effective {
		if _, ok := grantedSet[[2]string{scope.CredentialType, scope.Operation}]; !ok {
			return dErrors.New(dErrors.CodeUnauthorizedScope, "Invalid query: requested Credentials outside of scope.")
		}
	}
	return nil
}

// fetch queries the store once per effective scope and aggregates results,
// deduplicating by resource id in case scopes overlap.
func (r *Resolver) fetch(ctx context.Context, participantContextID string, scopes []models.Scope) ([]models.CredentialResource, error) {
	seen := make(map[string]struct{})
	var resources []models.CredentialResource
	for _, scope := range scopes {
		fetched, err := r.store.Query(ctx, scope.Criterion(participantContextID))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, err.Error())
		}
		for _, res := range fetched {
			if _, dup := seen[res.ID]; dup {
				continue
			}
			seen[res.ID] = struct{}{}
			resources = append(resources, res)
		}
	}
	return resources, nil
}

// filterValid applies the per-credential validity checks in fixed order:
// expiry, then not-yet-valid, then the revocation oracle. The first failing
// check determines the diagnostic; surviving credentials keep fetch order.
func (r *Resolver) filterValid(ctx context.Context, resources []models.CredentialResource) []models.VerifiableCredentialContainer {
	now := r.clock()
	result := make([]models.VerifiableCredentialContainer, 0, len(resources))
	for _, res := range resources {
		cred := res.Container.Credential
		if cred.ExpirationDate != nil && now.After(*cred.ExpirationDate) {
			r.exclude(ctx, "expired", fmt.Sprintf("Credential '%s' is expired.", res.ID))
			continue
		}
		if now.Before(cred.IssuanceDate) {
			r.exclude(ctx, "not_yet_valid", fmt.Sprintf("Credential '%s' is not yet valid.", res.ID))
			continue
		}
		if err := r.revocation.CheckValidity(ctx, res.Container); err != nil {
			r.exclude(ctx, "revoked", fmt.Sprintf("Credential '%s' not valid: %s.", res.ID, err.Error()))
			continue
		}
		result = append(result, res.Container)
	}
	return result
}

func (r *Resolver) exclude(ctx context.Context, reason, diagnostic string) {
	r.logger.InfoContext(ctx, diagnostic, "reason", reason)
	if r.metrics != nil {
		r.metrics.CredentialsFiltered.WithLabelValues(reason).Inc()
	}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return string(domainErr.Code)
	}
	return "error"
}
