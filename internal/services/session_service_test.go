package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnachat/authcore/internal/models"
)

func TestSessionRegistry_IssueAndValidate(t *testing.T) {
	registry := NewSessionRegistry(30*time.Minute, true)

	token, err := registry.Issue("alice", models.RoleUser)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	session, ok := registry.Validate(token)
	require.True(t, ok)
	assert.Equal(t, "alice", session.Username)
	assert.Equal(t, models.RoleUser, session.Role)
}

func TestSessionRegistry_TokensAreUnique(t *testing.T) {
	registry := NewSessionRegistry(30*time.Minute, true)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := registry.Issue("alice", models.RoleUser)
		require.NoError(t, err)
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestSessionRegistry_ExpiryBoundary(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	registry := NewSessionRegistry(30*time.Minute, false)
	registry.now = clock.Now

	token, err := registry.Issue("alice", models.RoleUser)
	require.NoError(t, err)

	clock.Advance(30*time.Minute - time.Millisecond)
	_, ok := registry.Validate(token)
	assert.True(t, ok, "a session just before its deadline is valid")

	clock.Advance(time.Millisecond)
	_, ok = registry.Validate(token)
	assert.False(t, ok, "a session exactly at its deadline is invalid")

	// the expired record was evicted, not merely rejected
	clock.Advance(-time.Hour)
	_, ok = registry.Validate(token)
	assert.False(t, ok)
}

func TestSessionRegistry_SlidingExpiryRefreshes(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	registry := NewSessionRegistry(30*time.Minute, true)
	registry.now = clock.Now

	token, err := registry.Issue("alice", models.RoleUser)
	require.NoError(t, err)

	// keep touching the session every 20 minutes; sliding expiry keeps it alive
	for i := 0; i < 4; i++ {
		clock.Advance(20 * time.Minute)
		_, ok := registry.Validate(token)
		require.True(t, ok, "touch %d", i)
	}

	clock.Advance(31 * time.Minute)
	_, ok := registry.Validate(token)
	assert.False(t, ok, "idle past the TTL expires even a sliding session")
}

func TestSessionRegistry_FixedExpiryIgnoresActivity(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	registry := NewSessionRegistry(30*time.Minute, false)
	registry.now = clock.Now

	token, err := registry.Issue("alice", models.RoleUser)
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	_, ok := registry.Validate(token)
	require.True(t, ok)

	// the touch above must not have pushed the deadline
	clock.Advance(11 * time.Minute)
	_, ok = registry.Validate(token)
	assert.False(t, ok)
}

func TestSessionRegistry_Revoke(t *testing.T) {
	registry := NewSessionRegistry(30*time.Minute, true)

	token, err := registry.Issue("alice", models.RoleUser)
	require.NoError(t, err)

	registry.Revoke(token)
	_, ok := registry.Validate(token)
	assert.False(t, ok)

	// revoking again is a no-op
	registry.Revoke(token)
}

func TestSessionRegistry_RevokeAllFor(t *testing.T) {
	registry := NewSessionRegistry(30*time.Minute, true)

	var aliceTokens []string
	for i := 0; i < 3; i++ {
		token, err := registry.Issue("alice", models.RoleUser)
		require.NoError(t, err)
		aliceTokens = append(aliceTokens, token)
	}
	bobToken, err := registry.Issue("bob", models.RoleUser)
	require.NoError(t, err)

	revoked := registry.RevokeAllFor("alice")
	assert.Equal(t, 3, revoked)

	for _, token := range aliceTokens {
		_, ok := registry.Validate(token)
		assert.False(t, ok)
	}
	_, ok := registry.Validate(bobToken)
	assert.True(t, ok, "other accounts keep their sessions")
}

func TestSessionRegistry_SweepExpired(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	registry := NewSessionRegistry(30*time.Minute, false)
	registry.now = clock.Now

	for i := 0; i < 5; i++ {
		_, err := registry.Issue("alice", models.RoleUser)
		require.NoError(t, err)
	}
	clock.Advance(15 * time.Minute)
	fresh, err := registry.Issue("bob", models.RoleUser)
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)
	removed := registry.SweepExpired()
	assert.Equal(t, 5, removed)

	_, ok := registry.Validate(fresh)
	assert.True(t, ok)
}

func TestSessionRegistry_ValidateReturnsCopy(t *testing.T) {
	registry := NewSessionRegistry(30*time.Minute, true)

	token, err := registry.Issue("alice", models.RoleAdmin)
	require.NoError(t, err)

	session, ok := registry.Validate(token)
	require.True(t, ok)
	session.Role = models.RoleNone

	again, ok := registry.Validate(token)
	require.True(t, ok)
	assert.Equal(t, models.RoleAdmin, again.Role, "mutating the returned value must not touch registry state")
}
