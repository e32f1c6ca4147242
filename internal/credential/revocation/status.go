package revocation

import (
	"context"
	"errors"
	"strings"
	"time"

	"credhub/internal/credential/models"
)

// StatusAdapter turns validity verdicts into the status values the watchdog
// reconciles against. Expiry is decided locally; the oracle is only asked
// about revocation and suspension.
type StatusAdapter struct {
	checker Checker
	clock   func() time.Time
}

// NewStatusAdapter wraps a checker for watchdog use.
func NewStatusAdapter(checker Checker) *StatusAdapter {
	return &StatusAdapter{checker: checker, clock: time.Now}
}

func (a *StatusAdapter) CheckStatus(ctx context.Context, resource models.CredentialResource) (models.VcStatus, error) {
	if exp := resource.Container.Credential.ExpirationDate; exp != nil && a.clock().After(*exp) {
		return models.StatusExpired, nil
	}

	err := a.checker.CheckValidity(ctx, resource.Container)
	if err == nil {
		return models.StatusValid, nil
	}

	var invalid *InvalidError
	if errors.As(err, &invalid) {
		if strings.Contains(strings.ToLower(invalid.Reason), "suspend") {
			return models.StatusSuspended, nil
		}
		return models.StatusRevoked, nil
	}
	return "", err
}
