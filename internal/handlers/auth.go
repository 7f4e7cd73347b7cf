package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/qnachat/authcore/internal/auth"
	"github.com/qnachat/authcore/internal/models"
	"github.com/qnachat/authcore/internal/services"
	pkghttp "github.com/qnachat/authcore/pkg/http"
)

// AuthGatewayInterface defines the gateway operations the auth handler needs
type AuthGatewayInterface interface {
	Authenticate(ctx context.Context, username, password, sourceAddress string) (*services.AuthResult, error)
	Authorize(token string, requiredRole models.Role) (*services.AuthzResult, error)
	Logout(ctx context.Context, token, sourceAddress string)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	gateway  AuthGatewayInterface
	ipConfig *pkghttp.IPConfig
}

func NewAuthHandler(gateway AuthGatewayInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		gateway:  gateway,
		ipConfig: ipConfig,
	}
}

// Request/response DTOs

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

type SessionResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Login authenticates a username/password pair and returns a session token.
// Invalid credentials always produce the same 401 regardless of cause;
// lockouts produce 429 with a Retry-After header.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sourceAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.gateway.Authenticate(r.Context(), req.Username, req.Password, sourceAddress)
	if err != nil {
		if retryAfter, locked := models.IsLocked(err); locked {
			pkghttp.WriteLocked(w, retryAfter)
			return
		}
		if errors.Is(err, models.ErrInvalidCredentials) {
			pkghttp.WriteUnauthorized(w, "Authentication failed")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token: result.Token,
		Role:  result.Role.String(),
	})
}

// Logout revokes the caller's session. Always 204; revoking a dead token is
// not an error.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
		return
	}

	sourceAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	h.gateway.Logout(r.Context(), token, sourceAddress)
	w.WriteHeader(http.StatusNoContent)
}

// Session reports who the caller is. Runs behind RequireRole, so the
// principal is always present.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Username: principal.Username,
		Role:     principal.Role.String(),
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// parseTimeParam parses an optional RFC 3339 query parameter.
func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}
