package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/qnachat/authcore/internal/models"
	"github.com/qnachat/authcore/internal/services"
	pkghttp "github.com/qnachat/authcore/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// PrincipalContextKey is the key for storing the authenticated principal
	PrincipalContextKey contextKey = "principal"
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	Username string
	Role     models.Role
	Token    string
}

// Authorizer is the slice of the gateway the middleware needs.
type Authorizer interface {
	Authorize(token string, requiredRole models.Role) (*services.AuthzResult, error)
}

// RequireRole validates the bearer token and enforces a minimum role before
// the handler runs. Missing and expired sessions return 401; a valid session
// below the required role returns 403.
func RequireRole(gateway Authorizer, requiredRole models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			result, err := gateway.Authorize(token, requiredRole)
			if err != nil {
				switch {
				case errors.Is(err, models.ErrForbidden):
					pkghttp.WriteForbidden(w, "insufficient permissions")
				default:
					pkghttp.WriteUnauthorized(w, "invalid or expired session")
				}
				return
			}

			principal := &Principal{
				Username: result.Username,
				Role:     result.Role,
				Token:    token,
			}
			ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the opaque session token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// PrincipalFromContext extracts the authenticated principal from the request
// context. Returns nil outside of RequireRole.
func PrincipalFromContext(r *http.Request) *Principal {
	principal, ok := r.Context().Value(PrincipalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return principal
}
