package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credhub/internal/credential/models"
	"credhub/internal/credential/store"
)

type fakeStatusClient struct {
	mu       sync.Mutex
	statuses map[string]models.VcStatus
	failing  map[string]error
	calls    []string
}

func (c *fakeStatusClient) CheckStatus(_ context.Context, resource models.CredentialResource) (models.VcStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, resource.ID)
	if err, ok := c.failing[resource.ID]; ok {
		return "", err
	}
	if status, ok := c.statuses[resource.ID]; ok {
		return status, nil
	}
	return models.StatusValid, nil
}

type renewalCall struct {
	participantContextID string
	issuerID             string
	correlationID        string
	descriptors          []models.RenewalDescriptor
}

type fakeRenewalInitiator struct {
	mu    sync.Mutex
	err   error
	calls []renewalCall
}

func (r *fakeRenewalInitiator) InitiateRequest(_ context.Context, participantContextID, issuerID, correlationID string, descriptors []models.RenewalDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, renewalCall{participantContextID, issuerID, correlationID, descriptors})
	return r.err
}

// countingStore wraps the memory store to observe write traffic.
type countingStore struct {
	store.Store
	mu      sync.Mutex
	updates []models.CredentialResource
}

func (s *countingStore) Update(ctx context.Context, resource models.CredentialResource) error {
	s.mu.Lock()
	s.updates = append(s.updates, resource)
	s.mu.Unlock()
	return s.Store.Update(ctx, resource)
}

func (s *countingStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

type WatchdogSuite struct {
	suite.Suite

	store   *countingStore
	status  *fakeStatusClient
	renewal *fakeRenewalInitiator
	now     time.Time
}

func TestWatchdogSuite(t *testing.T) {
	suite.Run(t, new(WatchdogSuite))
}

func (s *WatchdogSuite) SetupTest() {
	s.store = &countingStore{Store: store.NewInMemoryStore()}
	s.status = &fakeStatusClient{
		statuses: map[string]models.VcStatus{},
		failing:  map[string]error{},
	}
	s.renewal = &fakeRenewalInitiator{}
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *WatchdogSuite) newWatchdog(opts ...Option) *Watchdog {
	opts = append([]Option{
		WithClock(func() time.Time { return s.now }),
		WithGracePeriod(7 * 24 * time.Hour),
	}, opts...)
	w, err := New(s.store, s.status, s.renewal, opts...)
	s.Require().NoError(err)
	return w
}

func (s *WatchdogSuite) seed(id string, state models.CredentialState, expiry *time.Time, metadata map[string]string) models.CredentialResource {
	resource := models.CredentialResource{
		ID:                   id,
		ParticipantContextID: "participant-1",
		IssuerID:             "did:web:issuer.example",
		HolderID:             "did:web:holder.example",
		State:                state,
		Metadata:             metadata,
		Container: models.VerifiableCredentialContainer{
			Raw:    `{"type":["VerifiableCredential","MembershipCredential"]}`,
			Format: models.FormatJSONLD,
			Credential: models.VerifiableCredential{
				ID:             id,
				Types:          []string{"VerifiableCredential", "MembershipCredential"},
				Issuer:         "did:web:issuer.example",
				IssuanceDate:   s.now.Add(-30 * 24 * time.Hour),
				ExpirationDate: expiry,
			},
		},
	}
	s.Require().NoError(s.store.Save(context.Background(), resource))
	return resource
}

func (s *WatchdogSuite) stateOf(id string) models.CredentialState {
	resource, err := s.store.FindByID(context.Background(), id)
	s.Require().NoError(err)
	return resource.State
}

func (s *WatchdogSuite) TestUnchangedStatusWritesNothing() {
	farOut := s.now.Add(365 * 24 * time.Hour)
	s.seed("cred-1", models.StateIssued, &farOut, nil)

	w := s.newWatchdog()
	res, err := w.RunOnce(context.Background())
	s.Require().NoError(err)

	s.Equal(1, res.Checked)
	s.Zero(res.StateTransitions)
	s.Zero(s.store.updateCount())
	s.Empty(s.renewal.calls)
}

func (s *WatchdogSuite) TestRevokedStatusPersisted() {
	farOut := s.now.Add(365 * 24 * time.Hour)
	s.seed("cred-1", models.StateIssued, &farOut, nil)
	s.status.statuses["cred-1"] = models.StatusRevoked

	w := s.newWatchdog()
	res, err := w.RunOnce(context.Background())
	s.Require().NoError(err)

	s.Equal(1, res.StateTransitions)
	s.Equal(models.StateRevoked, s.stateOf("cred-1"))
}

func (s *WatchdogSuite) TestStatusCheckFailureMarksError() {
	farOut := s.now.Add(365 * 24 * time.Hour)
	s.seed("cred-1", models.StateIssued, &farOut, nil)
	s.seed("cred-2", models.StateIssued, &farOut, nil)
	s.status.failing["cred-1"] = errors.New("status list unreachable")

	w := s.newWatchdog()
	res, err := w.RunOnce(context.Background())
	s.Require().NoError(err)

	s.Equal(2, res.Checked)
	s.Equal(1, res.CheckFailures)
	s.Equal(models.StateError, s.stateOf("cred-1"))
	// The failing candidate never blocks its neighbours.
	s.Equal(models.StateIssued, s.stateOf("cred-2"))
}

func (s *WatchdogSuite) TestTerminalStatesSkipped() {
	s.seed("cred-err", models.StateError, nil, nil)
	s.seed("cred-exp", models.StateExpired, nil, nil)

	w := s.newWatchdog()
	res, err := w.RunOnce(context.Background())
	s.Require().NoError(err)

	s.Zero(res.Checked)
	s.Empty(s.status.calls)
}

func (s *WatchdogSuite) TestRenewalWithinGraceWindow() {
	soon := s.now.Add(48 * time.Hour)
	s.seed("cred-1", models.StateIssued, &soon, map[string]string{
		models.MetadataCredentialObjectID: "offer-42",
	})

	w := s.newWatchdog()
	res, err := w.RunOnce(context.Background())
	s.Require().NoError(err)

	s.Equal(1, res.RenewalsRequested)
	s.Require().Len(s.renewal.calls, 1)
	call := s.renewal.calls[0]
	s.Equal("participant-1", call.participantContextID)
	s.Equal("did:web:issuer.example", call.issuerID)
	s.Equal("offer-42", call.correlationID)
	s.Require().Len(call.descriptors, 1)
	s.Equal("MembershipCredential", call.descriptors[0].CredentialType)
	s.Equal(models.FormatJSONLD, call.descriptors[0].Format)
}

func (s *WatchdogSuite) TestMissingCorrelationIDSkipsRenewalButKeepsStateUpdate() {
	soon := s.now.Add(48 * time.Hour)
	s.seed("cred-1", models.StateIssued, &soon, nil)
	s.status.statuses["cred-1"] = models.StatusSuspended

	w := s.newWatchdog()
	res, err := w.RunOnce(context.Background())
	s.Require().NoError(err)

	s.Empty(s.renewal.calls)
	s.Zero(res.RenewalsRequested)
	s.Equal(models.StateSuspended, s.stateOf("cred-1"))
}

func (s *WatchdogSuite) TestRenewalFailureIsNonFatal() {
	soon := s.now.Add(48 * time.Hour)
	s.seed("cred-1", models.StateIssued, &soon, map[string]string{
		models.MetadataCredentialObjectID: "offer-42",
	})
	s.seed("cred-2", models.StateIssued, &soon, map[string]string{
		models.MetadataCredentialObjectID: "offer-43",
	})
	s.renewal.err = fmt.Errorf("issuer endpoint returned 503")

	w := s.newWatchdog()
	res, err := w.RunOnce(context.Background())
	s.Require().NoError(err)

	s.Equal(2, res.Checked)
	s.Zero(res.RenewalsRequested)
	s.Len(s.renewal.calls, 2)
}

func (s *WatchdogSuite) TestNoExpiryNeverRenews() {
	s.seed("cred-1", models.StateIssued, nil, map[string]string{
		models.MetadataCredentialObjectID: "offer-42",
	})

	w := s.newWatchdog()
	_, err := w.RunOnce(context.Background())
	s.Require().NoError(err)

	s.Empty(s.renewal.calls)
}

func (s *WatchdogSuite) TestSecondRunIsIdempotent() {
	farOut := s.now.Add(365 * 24 * time.Hour)
	s.seed("cred-1", models.StateIssued, &farOut, nil)
	s.status.statuses["cred-1"] = models.StatusRevoked

	w := s.newWatchdog()
	_, err := w.RunOnce(context.Background())
	s.Require().NoError(err)
	first := s.store.updateCount()
	s.Equal(1, first)

	// Revoked is terminal for reconciliation; the second run sees no
	// actionable work left for this resource beyond re-checking it.
	s.status.statuses["cred-1"] = models.StatusRevoked
	_, err = w.RunOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(first, s.store.updateCount())
}

func (s *WatchdogSuite) TestQueryFailureAbortsTick() {
	failing := &failingStore{err: errors.New("connection refused")}
	w, err := New(failing, s.status, s.renewal)
	s.Require().NoError(err)

	_, err = w.RunOnce(context.Background())
	s.Require().Error(err)
	s.Contains(err.Error(), "connection refused")
}

type failingStore struct {
	store.Store
	err error
}

func (s *failingStore) QueryByStates(context.Context, []models.CredentialState) ([]models.CredentialResource, error) {
	return nil, s.err
}
