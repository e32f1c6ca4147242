// Package watchdog reconciles stored credentials against their live status
// and triggers renewal before expiry.
package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"credhub/internal/credential/events"
	"credhub/internal/credential/metrics"
	"credhub/internal/credential/models"
	"credhub/internal/credential/store"
)

// StatusClient checks a credential's live status against its issuer or a
// status list.
type StatusClient interface {
	CheckStatus(ctx context.Context, resource models.CredentialResource) (models.VcStatus, error)
}

// RenewalInitiator asks the issuer for a reissuance of the named credential
// types. The reissued credential arrives asynchronously through a separate
// flow; a successful initiation requires no local follow-up.
type RenewalInitiator interface {
	InitiateRequest(ctx context.Context, participantContextID, issuerID, correlationID string, descriptors []models.RenewalDescriptor) error
}

// Result summarizes one reconciliation run.
type Result struct {
	Checked           int
	StateTransitions  int
	RenewalsRequested int
	CheckFailures     int
}

// Watchdog periodically re-validates actionable credentials. One tick is
// idempotent: a second run over an unchanged store performs no writes.
type Watchdog struct {
	store     store.Store
	status    StatusClient
	renewal   RenewalInitiator
	period    time.Duration
	delay     time.Duration
	grace     time.Duration
	parallel  int
	clock     func() time.Time
	logger    *slog.Logger
	collector *metrics.Metrics
	sink      events.Sink
}

// Option configures the Watchdog.
type Option func(*Watchdog)

// WithPeriod overrides the tick period when greater than zero.
func WithPeriod(period time.Duration) Option {
	return func(w *Watchdog) {
		if period > 0 {
			w.period = period
		}
	}
}

// WithInitialDelay overrides the delay before the first tick.
func WithInitialDelay(delay time.Duration) Option {
	return func(w *Watchdog) {
		if delay >= 0 {
			w.delay = delay
		}
	}
}

// WithGracePeriod overrides the pre-expiry window in which renewal is
// attempted.
func WithGracePeriod(grace time.Duration) Option {
	return func(w *Watchdog) {
		if grace > 0 {
			w.grace = grace
		}
	}
}

// WithParallelism bounds how many candidates are processed concurrently.
func WithParallelism(n int) Option {
	return func(w *Watchdog) {
		if n > 0 {
			w.parallel = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(w *Watchdog) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watchdog) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(collector *metrics.Metrics) Option {
	return func(w *Watchdog) {
		if collector != nil {
			w.collector = collector
		}
	}
}

// WithSink publishes state transitions as lifecycle events.
func WithSink(sink events.Sink) Option {
	return func(w *Watchdog) {
		if sink != nil {
			w.sink = sink
		}
	}
}

// New constructs a Watchdog with required collaborators and options applied.
func New(credentialStore store.Store, status StatusClient, renewal RenewalInitiator, opts ...Option) (*Watchdog, error) {
	if credentialStore == nil || status == nil || renewal == nil {
		return nil, fmt.Errorf("credentialStore, status, and renewal are required")
	}
	w := &Watchdog{
		store:    credentialStore,
		status:   status,
		renewal:  renewal,
		period:   time.Minute,
		delay:    5 * time.Second,
		grace:    7 * 24 * time.Hour,
		parallel: 4,
		clock:    time.Now,
		logger:   slog.Default(),
		sink:     events.NoopSink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Start runs the reconciliation loop until ctx is cancelled. Ticks never
// overlap: the next tick is scheduled only after the previous one returns.
func (w *Watchdog) Start(ctx context.Context) error {
	select {
	case <-time.After(w.delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "credential reconciliation failed", "error", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single reconciliation pass. Candidates are processed
// independently; one candidate's failure never aborts the others. The only
// error returned is a failure to list candidates at all.
func (w *Watchdog) RunOnce(ctx context.Context) (Result, error) {
	if w.collector != nil {
		w.collector.WatchdogTicksTotal.Inc()
	}

	candidates, err := w.store.QueryByStates(ctx, models.ActionableStates())
	if err != nil {
		return Result{}, fmt.Errorf("query actionable credentials: %w", err)
	}

	now := w.clock()
	results := make([]candidateResult, len(candidates))

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(w.parallel)
	for i, resource := range candidates {
		grp.Go(func() error {
			results[i] = w.processCandidate(grpCtx, resource, now)
			return nil
		})
	}
	// Goroutines never return errors; Wait only fences completion.
	_ = grp.Wait()

	res := Result{Checked: len(candidates)}
	for _, cr := range results {
		if cr.transitioned {
			res.StateTransitions++
		}
		if cr.renewed {
			res.RenewalsRequested++
		}
		if cr.checkFailed {
			res.CheckFailures++
		}
	}
	return res, nil
}

type candidateResult struct {
	transitioned bool
	renewed      bool
	checkFailed  bool
}

func (w *Watchdog) processCandidate(ctx context.Context, resource models.CredentialResource, now time.Time) candidateResult {
	var res candidateResult

	status, err := w.status.CheckStatus(ctx, resource)
	switch {
	case err != nil:
		res.checkFailed = true
		if w.collector != nil {
			w.collector.StatusCheckFailuresTotal.Inc()
		}
		w.logger.WarnContext(ctx, "credential status check failed",
			"credential_id", resource.ID, "error", err)
		res.transitioned = w.transition(ctx, resource, models.StateError)
	case status.State() != resource.State:
		res.transitioned = w.transition(ctx, resource, status.State())
	}

	if w.withinGraceWindow(resource, now) {
		res.renewed = w.requestRenewal(ctx, resource)
	}
	return res
}

// transition persists the new state and reports whether the write succeeded.
func (w *Watchdog) transition(ctx context.Context, resource models.CredentialResource, state models.CredentialState) bool {
	previous := resource.State
	resource.State = state
	if err := w.store.Update(ctx, resource); err != nil {
		w.logger.ErrorContext(ctx, "persist credential state failed",
			"credential_id", resource.ID, "state", string(state), "error", err)
		return false
	}
	if w.collector != nil {
		w.collector.StateTransitionsTotal.WithLabelValues(string(state)).Inc()
	}
	w.logger.InfoContext(ctx, "credential state updated",
		"credential_id", resource.ID,
		"previous_state", string(previous),
		"state", string(state))

	err := w.sink.Publish(ctx, events.Event{
		Type:       events.TypeCredentialStateChanged,
		Key:        resource.ID,
		OccurredAt: w.clock(),
		Payload: events.CredentialStateChanged{
			CredentialID:         resource.ID,
			ParticipantContextID: resource.ParticipantContextID,
			PreviousState:        previous,
			State:                state,
		},
	})
	if err != nil {
		w.logger.WarnContext(ctx, "publish credential lifecycle event failed",
			"credential_id", resource.ID, "error", err)
	}
	return true
}

func (w *Watchdog) withinGraceWindow(resource models.CredentialResource, now time.Time) bool {
	exp := resource.Container.Credential.ExpirationDate
	if exp == nil {
		return false
	}
	return exp.Sub(now) <= w.grace
}

// requestRenewal asks the issuer to reissue the credential. The correlation
// id stamped at issuance time links the request to the original offer; without
// it the issuer cannot be addressed, so renewal is skipped.
func (w *Watchdog) requestRenewal(ctx context.Context, resource models.CredentialResource) bool {
	correlationID, ok := resource.Metadata[models.MetadataCredentialObjectID]
	if !ok || correlationID == "" {
		w.logger.WarnContext(ctx, "No CredentialObjectId found for credential, cannot request renewal",
			"credential_id", resource.ID)
		return false
	}

	descriptors := []models.RenewalDescriptor{{
		CredentialType: primaryType(resource),
		Format:         resource.Format(),
	}}
	if err := w.renewal.InitiateRequest(ctx, resource.ParticipantContextID, resource.IssuerID, correlationID, descriptors); err != nil {
		if w.collector != nil {
			w.collector.RenewalFailuresTotal.Inc()
		}
		w.logger.WarnContext(ctx, "credential renewal request failed",
			"credential_id", resource.ID, "issuer_id", resource.IssuerID, "error", err)
		return false
	}
	if w.collector != nil {
		w.collector.RenewalsRequestedTotal.Inc()
	}
	w.logger.InfoContext(ctx, "credential renewal requested",
		"credential_id", resource.ID, "issuer_id", resource.IssuerID)
	return true
}

// primaryType picks the most specific type tag, skipping the generic
// VerifiableCredential marker.
func primaryType(resource models.CredentialResource) string {
	for _, t := range resource.Container.Credential.Types {
		if t != "VerifiableCredential" {
			return t
		}
	}
	if len(resource.Container.Credential.Types) > 0 {
		return resource.Container.Credential.Types[0]
	}
	return ""
}
