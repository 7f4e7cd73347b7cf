package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qnachat/authcore/internal/auth"
	"github.com/qnachat/authcore/internal/models"
	"github.com/qnachat/authcore/internal/services"
	pkghttp "github.com/qnachat/authcore/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithPrincipal attaches an authenticated principal to the request context,
// simulating the RequireRole middleware.
func WithPrincipal(req *http.Request, username string, role models.Role) *http.Request {
	principal := &auth.Principal{
		Username: username,
		Role:     role,
		Token:    "test-token",
	}
	ctx := context.WithValue(req.Context(), auth.PrincipalContextKey, principal)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks the status code and decodes the JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks the status code and error code of a failure
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockGateway implements AuthGatewayInterface and AdminGatewayInterface with
// overridable behaviors.
type MockGateway struct {
	AuthenticateFunc      func(ctx context.Context, username, password, sourceAddress string) (*services.AuthResult, error)
	AuthorizeFunc         func(token string, requiredRole models.Role) (*services.AuthzResult, error)
	LogoutFunc            func(ctx context.Context, token, sourceAddress string)
	CreateAccountFunc     func(ctx context.Context, actor, username, password string, role models.Role, sourceAddress string) error
	ChangePasswordFunc    func(ctx context.Context, actor, username, newPassword, sourceAddress string) error
	DeleteAccountFunc     func(ctx context.Context, actor, username, sourceAddress string) error
	RevokeAllSessionsFunc func(ctx context.Context, actor, username, sourceAddress string) int
	QueryActivityFunc     func(ctx context.Context, filter models.ActivityFilter) ([]*models.ActivityRecord, error)
	ListAccountsFunc      func(ctx context.Context) ([]*models.Account, error)
}

func (m *MockGateway) Authenticate(ctx context.Context, username, password, sourceAddress string) (*services.AuthResult, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, username, password, sourceAddress)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockGateway) Authorize(token string, requiredRole models.Role) (*services.AuthzResult, error) {
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(token, requiredRole)
	}
	return nil, models.ErrUnauthenticated
}

func (m *MockGateway) Logout(ctx context.Context, token, sourceAddress string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, token, sourceAddress)
	}
}

func (m *MockGateway) CreateAccount(ctx context.Context, actor, username, password string, role models.Role, sourceAddress string) error {
	if m.CreateAccountFunc != nil {
		return m.CreateAccountFunc(ctx, actor, username, password, role, sourceAddress)
	}
	return nil
}

func (m *MockGateway) ChangePassword(ctx context.Context, actor, username, newPassword, sourceAddress string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, actor, username, newPassword, sourceAddress)
	}
	return nil
}

func (m *MockGateway) DeleteAccount(ctx context.Context, actor, username, sourceAddress string) error {
	if m.DeleteAccountFunc != nil {
		return m.DeleteAccountFunc(ctx, actor, username, sourceAddress)
	}
	return nil
}

func (m *MockGateway) RevokeAllSessions(ctx context.Context, actor, username, sourceAddress string) int {
	if m.RevokeAllSessionsFunc != nil {
		return m.RevokeAllSessionsFunc(ctx, actor, username, sourceAddress)
	}
	return 0
}

func (m *MockGateway) QueryActivity(ctx context.Context, filter models.ActivityFilter) ([]*models.ActivityRecord, error) {
	if m.QueryActivityFunc != nil {
		return m.QueryActivityFunc(ctx, filter)
	}
	return nil, nil
}

func (m *MockGateway) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	if m.ListAccountsFunc != nil {
		return m.ListAccountsFunc(ctx)
	}
	return nil, nil
}
