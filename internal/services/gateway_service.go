package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/qnachat/authcore/internal/models"
)

// AuthResult is a successful authentication: an opaque session token plus
// the role copied into the session.
type AuthResult struct {
	Token string
	Role  models.Role
}

// AuthzResult is a successful authorization check.
type AuthzResult struct {
	Username string
	Role     models.Role
}

// AuthGateway is the façade the application layer calls. It orchestrates
// the attempt trackers, credential store, session registry, and activity
// log; callers never touch those directly.
type AuthGateway struct {
	creds          *CredentialService
	accountTracker *AttemptTracker
	addressTracker *AttemptTracker
	sessions       *SessionRegistry
	activity       *ActivityLog
	logger         *slog.Logger
}

func NewAuthGateway(
	creds *CredentialService,
	accountTracker *AttemptTracker,
	addressTracker *AttemptTracker,
	sessions *SessionRegistry,
	activity *ActivityLog,
	logger *slog.Logger,
) *AuthGateway {
	return &AuthGateway{
		creds:          creds,
		accountTracker: accountTracker,
		addressTracker: addressTracker,
		sessions:       sessions,
		activity:       activity,
		logger:         logger,
	}
}

// Authenticate verifies credentials from a source address and issues a
// session on success. Outcomes: (result, nil), models.ErrInvalidCredentials,
// or *models.LockedError.
//
// Lockout checks run before any hashing work: a blocked request must not
// cost a bcrypt comparison, and must not touch the counters.
func (g *AuthGateway) Authenticate(ctx context.Context, username, password, sourceAddress string) (*AuthResult, error) {
	username = models.NormalizeUsername(username)

	accountOK, accountRetry := g.accountTracker.Check(username)
	addressOK, addressRetry := g.addressTracker.Check(sourceAddress)
	if !accountOK || !addressOK {
		// report the longer cooldown without revealing which dimension fired
		retry := accountRetry
		if addressRetry > retry {
			retry = addressRetry
		}
		g.activity.Append(ctx, username, sourceAddress, models.ActivityLoginBlocked, models.OutcomeFailure, "lockout active")
		return nil, &models.LockedError{RetryAfter: retry}
	}

	check, err := g.creds.Verify(ctx, username, password)
	if err != nil {
		// storage outage: fail closed, alert, and leave the counters alone
		// so an infrastructure problem cannot lock out the whole user base
		if errors.Is(err, models.ErrStorageUnavailable) {
			g.logger.Error("authentication failing closed", slog.Any("error", err))
			g.activity.Append(ctx, username, sourceAddress, models.ActivityLoginFailed, models.OutcomeFailure, "storage unavailable")
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if !check.Valid {
		g.accountTracker.RecordFailure(username)
		g.addressTracker.RecordFailure(sourceAddress)
		g.activity.Append(ctx, username, sourceAddress, models.ActivityLoginFailed, models.OutcomeFailure, check.Reason)
		return nil, models.ErrInvalidCredentials
	}

	g.accountTracker.RecordSuccess(username)
	g.addressTracker.RecordSuccess(sourceAddress)

	token, err := g.sessions.Issue(username, check.Role)
	if err != nil {
		g.logger.Error("session issuance failed", slog.Any("error", err))
		return nil, models.ErrInvalidCredentials
	}

	g.creds.RecordLogin(ctx, username)
	g.activity.Append(ctx, username, sourceAddress, models.ActivityLoginSucceeded, models.OutcomeSuccess, "")

	return &AuthResult{Token: token, Role: check.Role}, nil
}

// Authorize validates a session token against a required role. Outcomes:
// (result, nil), models.ErrUnauthenticated, or models.ErrForbidden. The
// distinction lets the caller render "please log in" versus "not permitted".
// Read-path checks are deliberately not written to the activity log.
func (g *AuthGateway) Authorize(token string, requiredRole models.Role) (*AuthzResult, error) {
	session, ok := g.sessions.Validate(token)
	if !ok {
		return nil, models.ErrUnauthenticated
	}

	if !session.Role.Satisfies(requiredRole) {
		return nil, models.ErrForbidden
	}

	return &AuthzResult{Username: session.Username, Role: session.Role}, nil
}

// Logout revokes the session for token, if any, and records the event.
// Revoking an absent token is a no-op.
func (g *AuthGateway) Logout(ctx context.Context, token, sourceAddress string) {
	session, ok := g.sessions.Validate(token)
	g.sessions.Revoke(token)
	if ok {
		g.activity.Append(ctx, session.Username, sourceAddress, models.ActivityLogout, models.OutcomeSuccess, "")
	}
}

// Administrative operations. Callers must already hold an Authorized result
// with the admin role; the HTTP layer enforces that.

func (g *AuthGateway) CreateAccount(ctx context.Context, actor, username, password string, role models.Role, sourceAddress string) error {
	err := g.creds.CreateAccount(ctx, username, password, role)
	outcome := models.OutcomeSuccess
	detail := "role=" + role.String()
	if err != nil {
		outcome = models.OutcomeFailure
		detail = createFailureDetail(err)
	}
	g.activity.Append(ctx, actor, sourceAddress, models.ActivityAccountCreated, outcome, detail)
	return err
}

func (g *AuthGateway) ChangePassword(ctx context.Context, actor, username, newPassword, sourceAddress string) error {
	err := g.creds.ChangePassword(ctx, username, newPassword)
	outcome := models.OutcomeSuccess
	detail := "target=" + models.NormalizeUsername(username)
	if err != nil {
		outcome = models.OutcomeFailure
	}
	g.activity.Append(ctx, actor, sourceAddress, models.ActivityPasswordChanged, outcome, detail)
	return err
}

func (g *AuthGateway) DeleteAccount(ctx context.Context, actor, username, sourceAddress string) error {
	err := g.creds.DeleteAccount(ctx, username)
	outcome := models.OutcomeSuccess
	detail := "account soft-disabled, target=" + models.NormalizeUsername(username)
	if err != nil {
		outcome = models.OutcomeFailure
	}
	g.activity.Append(ctx, actor, sourceAddress, models.ActivityAccountDisabled, outcome, detail)
	return err
}

// RevokeAllSessions force-logs-out every session for username.
func (g *AuthGateway) RevokeAllSessions(ctx context.Context, actor, username, sourceAddress string) int {
	username = models.NormalizeUsername(username)
	revoked := g.sessions.RevokeAllFor(username)
	g.activity.Append(ctx, actor, sourceAddress, models.ActivitySessionsRevoked, models.OutcomeSuccess, "target="+username)
	return revoked
}

// QueryActivity exposes the activity log to admin callers.
func (g *AuthGateway) QueryActivity(ctx context.Context, filter models.ActivityFilter) ([]*models.ActivityRecord, error) {
	return g.activity.Query(ctx, filter)
}

// ListAccounts exposes the account roster to admin callers; hashes are
// stripped before anything leaves the credential service.
func (g *AuthGateway) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	return g.creds.ListAccounts(ctx)
}

// createFailureDetail keeps policy failures distinguishable in the log
// without ever echoing the attempted password.
func createFailureDetail(err error) string {
	switch {
	case errors.Is(err, models.ErrDuplicateAccount):
		return "duplicate account"
	case errors.Is(err, models.ErrWeakPassword):
		return "weak password rejected"
	default:
		return "error"
	}
}
