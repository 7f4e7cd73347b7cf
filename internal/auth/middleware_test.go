package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnachat/authcore/internal/models"
	"github.com/qnachat/authcore/internal/services"
)

type stubAuthorizer struct {
	result *services.AuthzResult
	err    error
	token  string
}

func (s *stubAuthorizer) Authorize(token string, _ models.Role) (*services.AuthzResult, error) {
	s.token = token
	return s.result, s.err
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"valid", "Bearer abc123", "abc123", true},
		{"case insensitive scheme", "bearer abc123", "abc123", true},
		{"missing header", "", "", false},
		{"wrong scheme", "Basic abc123", "", false},
		{"no token", "Bearer ", "", false},
		{"bare token", "abc123", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			token, ok := BearerToken(r)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, token)
		})
	}
}

func TestRequireRole_InjectsPrincipal(t *testing.T) {
	authorizer := &stubAuthorizer{
		result: &services.AuthzResult{Username: "alice", Role: models.RoleAdmin},
	}

	var seen *Principal
	handler := RequireRole(authorizer, models.RoleUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "some-token", authorizer.token)
	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.Username)
	assert.Equal(t, models.RoleAdmin, seen.Role)
	assert.Equal(t, "some-token", seen.Token)
}

func TestRequireRole_MissingHeader(t *testing.T) {
	handler := RequireRole(&stubAuthorizer{}, models.RoleUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole_Unauthenticated(t *testing.T) {
	authorizer := &stubAuthorizer{err: models.ErrUnauthenticated}
	handler := RequireRole(authorizer, models.RoleUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer stale-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole_Forbidden(t *testing.T) {
	authorizer := &stubAuthorizer{err: models.ErrForbidden}
	handler := RequireRole(authorizer, models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer user-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPrincipalFromContext_AbsentIsNil(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, PrincipalFromContext(r))
}
