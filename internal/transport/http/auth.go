package httptransport

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"credhub/internal/transport/http/shared"
	dErrors "credhub/pkg/domain-errors"
)

type contextKey string

const grantedScopesKey contextKey = "granted_scopes"

// GrantedScopes returns the scope strings carried by the caller's access
// token, or nil when the request was not authenticated.
func GrantedScopes(ctx context.Context) []string {
	scopes, _ := ctx.Value(grantedScopesKey).([]string)
	return scopes
}

// BearerAuth verifies the Authorization header and stashes the token's scopes
// in the request context. The scope claim is a space-separated string, the
// shape self-issued ID tokens carry it in.
func BearerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid access token"))
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid access token"))
				return
			}

			ctx := context.WithValue(r.Context(), grantedScopesKey, scopesFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func scopesFromClaims(claims jwt.MapClaims) []string {
	raw, ok := claims["scope"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return strings.Fields(v)
	case []any:
		scopes := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		return scopes
	default:
		return nil
	}
}
