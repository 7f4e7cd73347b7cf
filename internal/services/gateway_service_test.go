package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnachat/authcore/internal/models"
)

type gatewayFixture struct {
	gateway      *AuthGateway
	accountRepo  *memAccountRepo
	activityRepo *memActivityRepo
	sessions     *SessionRegistry
	clock        *fakeClock
}

func newGatewayFixture(t *testing.T, maxAttempts int) *gatewayFixture {
	t.Helper()

	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	accountRepo := newMemAccountRepo()
	activityRepo := newMemActivityRepo()

	sessions := NewSessionRegistry(30*time.Minute, true)
	sessions.now = clock.Now

	creds := NewCredentialService(accountRepo, sessions, 8, testLogger())
	creds.now = clock.Now

	accountTracker := NewAttemptTracker(maxAttempts, 15*time.Minute)
	accountTracker.now = clock.Now
	addressTracker := NewAttemptTracker(maxAttempts, 15*time.Minute)
	addressTracker.now = clock.Now

	activity := NewActivityLog(activityRepo, testReporter())
	activity.now = clock.Now

	return &gatewayFixture{
		gateway:      NewAuthGateway(creds, accountTracker, addressTracker, sessions, activity, testLogger()),
		accountRepo:  accountRepo,
		activityRepo: activityRepo,
		sessions:     sessions,
		clock:        clock,
	}
}

func (f *gatewayFixture) mustCreate(t *testing.T, username, password string, role models.Role) {
	t.Helper()
	require.NoError(t, f.gateway.CreateAccount(context.Background(), "admin", username, password, role, "10.0.0.1"))
}

func TestAuthGateway_LoginSuccess(t *testing.T) {
	f := newGatewayFixture(t, 3)
	ctx := context.Background()
	f.mustCreate(t, "alice", "correct-horse", models.RoleUser)

	result, err := f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, models.RoleUser, result.Role)

	record := f.activityRepo.lastRecord()
	require.NotNil(t, record)
	assert.Equal(t, models.ActivityLoginSucceeded, record.Action)
	assert.Equal(t, "alice", record.Actor)
	assert.Equal(t, "1.2.3.4", record.SourceAddress)

	account, err := f.accountRepo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, account.LastLoginAt)
}

func TestAuthGateway_LockoutRejectsEvenCorrectPassword(t *testing.T) {
	f := newGatewayFixture(t, 3)
	ctx := context.Background()
	f.mustCreate(t, "alice", "correct-horse", models.RoleUser)

	for i := 0; i < 3; i++ {
		_, err := f.gateway.Authenticate(ctx, "alice", "wrong", "1.2.3.4")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	_, err := f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
	retryAfter, locked := models.IsLocked(err)
	require.True(t, locked, "the correct password during a lockout is still rejected")
	assert.Greater(t, retryAfter, time.Duration(0))

	record := f.activityRepo.lastRecord()
	require.NotNil(t, record)
	assert.Equal(t, models.ActivityLoginBlocked, record.Action)

	// blocked attempts never extend the lockout
	f.clock.Advance(15 * time.Minute)
	result, err := f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestAuthGateway_AddressLockoutCoversManyAccounts(t *testing.T) {
	f := newGatewayFixture(t, 3)
	ctx := context.Background()
	f.mustCreate(t, "alice", "correct-horse", models.RoleUser)
	f.mustCreate(t, "carol", "battery-staple", models.RoleUser)

	// spray from one address against distinct usernames
	_, _ = f.gateway.Authenticate(ctx, "alice", "wrong", "9.9.9.9")
	_, _ = f.gateway.Authenticate(ctx, "nobody1", "wrong", "9.9.9.9")
	_, _ = f.gateway.Authenticate(ctx, "nobody2", "wrong", "9.9.9.9")

	// the address is locked; even an untouched account from it is blocked
	_, err := f.gateway.Authenticate(ctx, "carol", "battery-staple", "9.9.9.9")
	_, locked := models.IsLocked(err)
	assert.True(t, locked)

	// a different address still works
	result, err := f.gateway.Authenticate(ctx, "carol", "battery-staple", "8.8.8.8")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestAuthGateway_SuccessResetsCounters(t *testing.T) {
	f := newGatewayFixture(t, 3)
	ctx := context.Background()
	f.mustCreate(t, "alice", "correct-horse", models.RoleUser)

	for i := 0; i < 2; i++ {
		_, err := f.gateway.Authenticate(ctx, "alice", "wrong", "1.2.3.4")
		require.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	_, err := f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
	require.NoError(t, err)

	// the counter restarted from zero, two failures do not lock
	for i := 0; i < 2; i++ {
		_, err := f.gateway.Authenticate(ctx, "alice", "wrong", "1.2.3.4")
		require.ErrorIs(t, err, models.ErrInvalidCredentials)
	}
	_, err = f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
	assert.NoError(t, err)
}

func TestAuthGateway_FailureShapeHidesCause(t *testing.T) {
	f := newGatewayFixture(t, 5)
	ctx := context.Background()
	f.mustCreate(t, "alice", "correct-horse", models.RoleUser)

	_, wrongPwd := f.gateway.Authenticate(ctx, "alice", "wrong", "1.2.3.4")
	_, unknown := f.gateway.Authenticate(ctx, "nobody", "wrong", "1.2.3.4")

	assert.ErrorIs(t, wrongPwd, models.ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, models.ErrInvalidCredentials)
	assert.Equal(t, wrongPwd.Error(), unknown.Error())

	// the activity log keeps the distinction the caller never sees
	records, err := f.activityRepo.Query(ctx, models.ActivityFilter{Outcome: models.OutcomeFailure})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "bad_password", records[0].Detail)
	assert.Equal(t, "unknown_account", records[1].Detail)
}

func TestAuthGateway_StorageOutageFailsClosedWithoutPenalty(t *testing.T) {
	f := newGatewayFixture(t, 3)
	ctx := context.Background()
	f.mustCreate(t, "alice", "correct-horse", models.RoleUser)

	f.accountRepo.setFail(true)
	for i := 0; i < 5; i++ {
		_, err := f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	// outage failures did not feed the trackers
	f.accountRepo.setFail(false)
	result, err := f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestAuthGateway_AuthorizeRoles(t *testing.T) {
	f := newGatewayFixture(t, 3)
	ctx := context.Background()
	f.mustCreate(t, "alice", "correct-horse", models.RoleUser)
	f.mustCreate(t, "root", "super-secret-admin", models.RoleAdmin)

	userResult, err := f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
	require.NoError(t, err)
	adminResult, err := f.gateway.Authenticate(ctx, "root", "super-secret-admin", "1.2.3.4")
	require.NoError(t, err)

	authz, err := f.gateway.Authorize(userResult.Token, models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "alice", authz.Username)

	_, err = f.gateway.Authorize(userResult.Token, models.RoleAdmin)
	assert.ErrorIs(t, err, models.ErrForbidden)

	// admin satisfies the user requirement
	_, err = f.gateway.Authorize(adminResult.Token, models.RoleUser)
	assert.NoError(t, err)

	_, err = f.gateway.Authorize("no-such-token", models.RoleUser)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestAuthGateway_ExpiredSessionIsUnauthenticated(t *testing.T) {
	f := newGatewayFixture(t, 3)
	ctx := context.Background()
	f.mustCreate(t, "alice", "correct-horse", models.RoleUser)

	result, err := f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
	require.NoError(t, err)

	f.clock.Advance(31 * time.Minute)
	_, err = f.gateway.Authorize(result.Token, models.RoleUser)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestAuthGateway_Logout(t *testing.T) {
	f := newGatewayFixture(t, 3)
	ctx := context.Background()
	f.mustCreate(t, "alice", "correct-horse", models.RoleUser)

	result, err := f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
	require.NoError(t, err)

	f.gateway.Logout(ctx, result.Token, "1.2.3.4")
	_, err = f.gateway.Authorize(result.Token, models.RoleUser)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	record := f.activityRepo.lastRecord()
	require.NotNil(t, record)
	assert.Equal(t, models.ActivityLogout, record.Action)

	// logging out an unknown token writes nothing
	before := len(f.activityRepo.actions())
	f.gateway.Logout(ctx, "no-such-token", "1.2.3.4")
	assert.Len(t, f.activityRepo.actions(), before)
}

func TestAuthGateway_ChangePasswordInvalidatesSessions(t *testing.T) {
	f := newGatewayFixture(t, 3)
	ctx := context.Background()
	f.mustCreate(t, "alice", "correct-horse", models.RoleUser)

	result, err := f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
	require.NoError(t, err)

	require.NoError(t, f.gateway.ChangePassword(ctx, "admin", "alice", "battery-staple", "10.0.0.1"))

	_, err = f.gateway.Authorize(result.Token, models.RoleUser)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	_, err = f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	fresh, err := f.gateway.Authenticate(ctx, "alice", "battery-staple", "1.2.3.4")
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.Token)
}

func TestAuthGateway_DeleteAccountKeepsHistory(t *testing.T) {
	f := newGatewayFixture(t, 3)
	ctx := context.Background()
	f.mustCreate(t, "bob", "correct-horse", models.RoleUser)

	result, err := f.gateway.Authenticate(ctx, "bob", "correct-horse", "1.2.3.4")
	require.NoError(t, err)

	require.NoError(t, f.gateway.DeleteAccount(ctx, "admin", "bob", "10.0.0.1"))

	_, err = f.gateway.Authorize(result.Token, models.RoleUser)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	_, err = f.gateway.Authenticate(ctx, "bob", "correct-horse", "1.2.3.4")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	// bob's earlier login survives in the record
	records, qerr := f.gateway.QueryActivity(ctx, models.ActivityFilter{Actor: "bob"})
	require.NoError(t, qerr)
	assert.NotEmpty(t, records)
}

func TestAuthGateway_RevokeAllSessions(t *testing.T) {
	f := newGatewayFixture(t, 3)
	ctx := context.Background()
	f.mustCreate(t, "alice", "correct-horse", models.RoleUser)

	first, err := f.gateway.Authenticate(ctx, "alice", "correct-horse", "1.2.3.4")
	require.NoError(t, err)
	second, err := f.gateway.Authenticate(ctx, "alice", "correct-horse", "5.6.7.8")
	require.NoError(t, err)

	revoked := f.gateway.RevokeAllSessions(ctx, "admin", "alice", "10.0.0.1")
	assert.Equal(t, 2, revoked)

	_, err = f.gateway.Authorize(first.Token, models.RoleUser)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	_, err = f.gateway.Authorize(second.Token, models.RoleUser)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestAuthGateway_CreateAccountAuditsFailures(t *testing.T) {
	f := newGatewayFixture(t, 3)
	ctx := context.Background()

	err := f.gateway.CreateAccount(ctx, "admin", "alice", "short", models.RoleUser, "10.0.0.1")
	assert.ErrorIs(t, err, models.ErrWeakPassword)

	record := f.activityRepo.lastRecord()
	require.NotNil(t, record)
	assert.Equal(t, models.ActivityAccountCreated, record.Action)
	assert.Equal(t, models.OutcomeFailure, record.Outcome)
	assert.NotContains(t, record.Detail, "short", "the attempted password never reaches the log")
}

func TestAuthGateway_ConcurrentLoginsStayConsistent(t *testing.T) {
	f := newGatewayFixture(t, 1000)
	ctx := context.Background()
	f.mustCreate(t, "alice", "correct-horse", models.RoleUser)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, failures := 0, 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		wrong := i%2 == 0
		go func() {
			defer wg.Done()
			password := "correct-horse"
			if wrong {
				password = "wrong"
			}
			_, err := f.gateway.Authenticate(ctx, "alice", password, "1.2.3.4")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
			} else {
				successes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, successes)
	assert.Equal(t, 10, failures)
	records, err := f.activityRepo.Query(ctx, models.ActivityFilter{Actor: "alice"})
	require.NoError(t, err)
	assert.Len(t, records, 20, "every attempt left exactly one record")
}
