package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/qnachat/authcore/internal/auth"
	"github.com/qnachat/authcore/internal/models"
	pkghttp "github.com/qnachat/authcore/pkg/http"
)

// AdminGatewayInterface defines the gateway operations the admin handler needs
type AdminGatewayInterface interface {
	CreateAccount(ctx context.Context, actor, username, password string, role models.Role, sourceAddress string) error
	ChangePassword(ctx context.Context, actor, username, newPassword, sourceAddress string) error
	DeleteAccount(ctx context.Context, actor, username, sourceAddress string) error
	RevokeAllSessions(ctx context.Context, actor, username, sourceAddress string) int
	QueryActivity(ctx context.Context, filter models.ActivityFilter) ([]*models.ActivityRecord, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
}

// AdminHandler handles account administration and activity queries. Every
// route is registered behind RequireRole(admin).
type AdminHandler struct {
	gateway  AdminGatewayInterface
	ipConfig *pkghttp.IPConfig
}

func NewAdminHandler(gateway AdminGatewayInterface, ipConfig *pkghttp.IPConfig) *AdminHandler {
	return &AdminHandler{
		gateway:  gateway,
		ipConfig: ipConfig,
	}
}

type CreateAccountRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,max=128"`
	Role     string `json:"role" validate:"required,oneof=user admin"`
}

type ChangePasswordRequest struct {
	Password string `json:"password" validate:"required,max=128"`
}

type AccountResponse struct {
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	Disabled    bool       `json:"disabled"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type ActivityRecordResponse struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Actor         string    `json:"actor"`
	SourceAddress string    `json:"source_address"`
	Action        string    `json:"action"`
	Outcome       string    `json:"outcome"`
	Detail        string    `json:"detail,omitempty"`
}

type RevokeSessionsResponse struct {
	Revoked int `json:"revoked"`
}

// CreateAccount provisions a new account.
func (h *AdminHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.gateway.CreateAccount(r.Context(), h.actor(r), req.Username, req.Password, models.ParseRole(req.Role), h.sourceAddress(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateAccount):
			pkghttp.WriteConflict(w, "Account already exists")
		case errors.Is(err, models.ErrWeakPassword):
			pkghttp.WriteBadRequest(w, "Password does not meet the minimum policy")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// ChangePassword replaces the password for the account in the URL. Every
// live session for that account is revoked as part of the change.
func (h *AdminHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.gateway.ChangePassword(r.Context(), h.actor(r), username, req.Password, h.sourceAddress(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownAccount):
			pkghttp.WriteNotFound(w, "Account not found")
		case errors.Is(err, models.ErrWeakPassword):
			pkghttp.WriteBadRequest(w, "Password does not meet the minimum policy")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount disables the account in the URL. The account row and its
// activity history survive.
func (h *AdminHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	err := h.gateway.DeleteAccount(r.Context(), h.actor(r), username, h.sourceAddress(r))
	if err != nil {
		if errors.Is(err, models.ErrUnknownAccount) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RevokeSessions force-logs-out every session for the account in the URL.
func (h *AdminHandler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	revoked := h.gateway.RevokeAllSessions(r.Context(), h.actor(r), username, h.sourceAddress(r))
	writeJSON(w, http.StatusOK, RevokeSessionsResponse{Revoked: revoked})
}

// ListAccounts returns the account roster without password hashes.
func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.gateway.ListAccounts(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AccountResponse{
			Username:    a.Username,
			Role:        a.Role.String(),
			Disabled:    a.Disabled,
			CreatedAt:   a.CreatedAt,
			LastLoginAt: a.LastLoginAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// QueryActivity returns activity records matching the query parameters:
// actor, outcome, from/to (RFC 3339), and limit.
func (h *AdminHandler) QueryActivity(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := models.ActivityFilter{
		Actor:   query.Get("actor"),
		Outcome: query.Get("outcome"),
	}

	from, err := parseTimeParam(query.Get("from"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid 'from' timestamp, expected RFC 3339")
		return
	}
	filter.From = from

	to, err := parseTimeParam(query.Get("to"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid 'to' timestamp, expected RFC 3339")
		return
	}
	filter.To = to

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			pkghttp.WriteBadRequest(w, "Invalid 'limit', expected a positive integer")
			return
		}
		filter.Limit = limit
	}

	records, err := h.gateway.QueryActivity(r.Context(), filter)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]ActivityRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, ActivityRecordResponse{
			ID:            rec.ID.String(),
			Timestamp:     rec.Timestamp,
			Actor:         rec.Actor,
			SourceAddress: rec.SourceAddress,
			Action:        rec.Action,
			Outcome:       rec.Outcome,
			Detail:        rec.Detail,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) actor(r *http.Request) string {
	if principal := auth.PrincipalFromContext(r); principal != nil {
		return principal.Username
	}
	return models.ActorAnonymous
}

func (h *AdminHandler) sourceAddress(r *http.Request) string {
	return pkghttp.ExtractClientIP(r, h.ipConfig)
}
