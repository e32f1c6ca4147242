package revocation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credhub/internal/credential/models"
)

func container(id string, format models.CredentialFormat) models.VerifiableCredentialContainer {
	return models.VerifiableCredentialContainer{
		Raw:        `{"id":"` + id + `"}`,
		Format:     format,
		Credential: models.VerifiableCredential{ID: id},
	}
}

func TestHTTPChecker(t *testing.T) {
	t.Run("valid verdict", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		checker := NewHTTPChecker(srv.URL)
		require.NoError(t, checker.CheckValidity(context.Background(), container("cred-1", models.FormatJSONLD)))
	})

	t.Run("invalid verdict carries reason", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("credential was revoked by issuer"))
		}))
		defer srv.Close()

		checker := NewHTTPChecker(srv.URL)
		err := checker.CheckValidity(context.Background(), container("cred-1", models.FormatJSONLD))

		var invalid *InvalidError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "credential was revoked by issuer", invalid.Reason)
	})

	t.Run("token formats post as jwt", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/jwt", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		checker := NewHTTPChecker(srv.URL)
		require.NoError(t, checker.CheckValidity(context.Background(), container("cred-1", models.FormatJWT)))
	})

	t.Run("server errors are transport failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		checker := NewHTTPChecker(srv.URL)
		err := checker.CheckValidity(context.Background(), container("cred-1", models.FormatJSONLD))
		require.Error(t, err)

		var invalid *InvalidError
		assert.False(t, errors.As(err, &invalid))
	})
}

type scriptedChecker struct {
	err   error
	calls int
}

func (c *scriptedChecker) CheckValidity(context.Context, models.VerifiableCredentialContainer) error {
	c.calls++
	return c.err
}

func TestStatusAdapter(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	newResource := func(exp *time.Time) models.CredentialResource {
		return models.CredentialResource{
			ID:    "cred-1",
			State: models.StateIssued,
			Container: models.VerifiableCredentialContainer{
				Format:     models.FormatJSONLD,
				Credential: models.VerifiableCredential{ID: "cred-1", ExpirationDate: exp},
			},
		}
	}

	t.Run("expiry decided locally", func(t *testing.T) {
		oracle := &scriptedChecker{}
		adapter := NewStatusAdapter(oracle)
		adapter.clock = func() time.Time { return now }

		past := now.Add(-time.Hour)
		status, err := adapter.CheckStatus(context.Background(), newResource(&past))
		require.NoError(t, err)
		assert.Equal(t, models.StatusExpired, status)
		assert.Zero(t, oracle.calls)
	})

	t.Run("valid", func(t *testing.T) {
		adapter := NewStatusAdapter(&scriptedChecker{})
		status, err := adapter.CheckStatus(context.Background(), newResource(nil))
		require.NoError(t, err)
		assert.Equal(t, models.StatusValid, status)
	})

	t.Run("revoked", func(t *testing.T) {
		adapter := NewStatusAdapter(&scriptedChecker{err: &InvalidError{Reason: "revoked by issuer"}})
		status, err := adapter.CheckStatus(context.Background(), newResource(nil))
		require.NoError(t, err)
		assert.Equal(t, models.StatusRevoked, status)
	})

	t.Run("suspended", func(t *testing.T) {
		adapter := NewStatusAdapter(&scriptedChecker{err: &InvalidError{Reason: "credential suspended pending review"}})
		status, err := adapter.CheckStatus(context.Background(), newResource(nil))
		require.NoError(t, err)
		assert.Equal(t, models.StatusSuspended, status)
	})

	t.Run("transport failure propagates", func(t *testing.T) {
		adapter := NewStatusAdapter(&scriptedChecker{err: errors.New("oracle unreachable")})
		_, err := adapter.CheckStatus(context.Background(), newResource(nil))
		require.Error(t, err)
	})
}

// fakeCmdable implements the two redis commands the cache issues. Every
// other Cmdable method panics through the embedded nil interface.
type fakeCmdable struct {
	redis.Cmdable
	values map[string]string
	getErr error
}

func (f *fakeCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		cmd := redis.NewStringCmd(ctx)
		cmd.SetErr(f.getErr)
		return cmd
	}
	value, ok := f.values[key]
	if !ok {
		cmd := redis.NewStringCmd(ctx)
		cmd.SetErr(redis.Nil)
		return cmd
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeCmdable) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func TestCachedChecker(t *testing.T) {
	t.Run("verdicts cached and reused", func(t *testing.T) {
		oracle := &scriptedChecker{err: &InvalidError{Reason: "revoked"}}
		cache := &fakeCmdable{values: map[string]string{}}
		checker := NewCached(oracle, cache, time.Minute)

		cred := container("cred-1", models.FormatJSONLD)
		for i := 0; i < 3; i++ {
			err := checker.CheckValidity(context.Background(), cred)
			var invalid *InvalidError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "revoked", invalid.Reason)
		}
		assert.Equal(t, 1, oracle.calls)
	})

	t.Run("valid verdict cached", func(t *testing.T) {
		oracle := &scriptedChecker{}
		cache := &fakeCmdable{values: map[string]string{}}
		checker := NewCached(oracle, cache, time.Minute)

		cred := container("cred-1", models.FormatJSONLD)
		require.NoError(t, checker.CheckValidity(context.Background(), cred))
		require.NoError(t, checker.CheckValidity(context.Background(), cred))
		assert.Equal(t, 1, oracle.calls)
	})

	t.Run("transport errors never cached", func(t *testing.T) {
		oracle := &scriptedChecker{err: errors.New("oracle unreachable")}
		cache := &fakeCmdable{values: map[string]string{}}
		checker := NewCached(oracle, cache, time.Minute)

		cred := container("cred-1", models.FormatJSONLD)
		require.Error(t, checker.CheckValidity(context.Background(), cred))
		require.Error(t, checker.CheckValidity(context.Background(), cred))
		assert.Equal(t, 2, oracle.calls)
		assert.Empty(t, cache.values)
	})

	t.Run("cache outage falls through to oracle", func(t *testing.T) {
		oracle := &scriptedChecker{}
		cache := &fakeCmdable{values: map[string]string{}, getErr: errors.New("connection refused")}
		checker := NewCached(oracle, cache, time.Minute)

		require.NoError(t, checker.CheckValidity(context.Background(), container("cred-1", models.FormatJSONLD)))
		assert.Equal(t, 1, oracle.calls)
	})
}
