package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qnachat/authcore/internal/models"
	pkgauth "github.com/qnachat/authcore/pkg/auth"
)

// AccountRepository defines the durable credential store operations.
type AccountRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	UpdatePassword(ctx context.Context, username, passwordHash string, changedAt time.Time) error
	SetDisabled(ctx context.Context, username string, disabled bool) error
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
	List(ctx context.Context) ([]*models.Account, error)
	Count(ctx context.Context) (int, error)
}

// SessionRevoker is the slice of the session registry the credential store
// needs: a password change must drop every live session for the account.
type SessionRevoker interface {
	RevokeAllFor(username string) int
}

// Internal reasons recorded in the activity log. Callers outside this
// package only ever see the generic invalid-credentials outcome.
const (
	reasonUnknownAccount  = "unknown_account"
	reasonBadPassword     = "bad_password"
	reasonAccountDisabled = "account_disabled"
)

// CredentialCheck is the outcome of a verify call. Reason is for the
// activity log only and must never reach an unauthenticated caller.
type CredentialCheck struct {
	Valid  bool
	Role   models.Role
	Reason string
}

// CredentialService verifies and manages durable account credentials.
type CredentialService struct {
	repo      AccountRepository
	revoker   SessionRevoker
	minPwdLen int
	logger    *slog.Logger
	decoyHash string
	now       func() time.Time
}

func NewCredentialService(repo AccountRepository, revoker SessionRevoker, minPasswordLen int, logger *slog.Logger) *CredentialService {
	return &CredentialService{
		repo:      repo,
		revoker:   revoker,
		minPwdLen: minPasswordLen,
		logger:    logger,
		decoyHash: newDecoyHash(),
		now:       time.Now,
	}
}

// newDecoyHash produces a hash of a random value nobody knows. Verify
// compares against it when the account is missing or disabled so every
// failure path costs one bcrypt comparison.
func newDecoyHash() string {
	token, err := pkgauth.GenerateSessionToken()
	if err != nil {
		token = "decoy-fallback-entropy-source"
	}
	hash, err := pkgauth.HashPassword(token)
	if err != nil {
		// bcrypt only fails on invalid cost or oversized input; neither applies
		panic(fmt.Sprintf("decoy hash generation failed: %v", err))
	}
	return hash
}

// Verify checks a plaintext password against the stored hash. Unknown,
// disabled, and wrong-password outcomes are indistinguishable to the caller
// in both shape and timing; the distinction survives only in Reason.
// Storage failures fail closed with ErrStorageUnavailable.
func (s *CredentialService) Verify(ctx context.Context, username, password string) (CredentialCheck, error) {
	username = models.NormalizeUsername(username)

	account, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUnknownAccount) {
			_ = pkgauth.ComparePassword(s.decoyHash, password)
			return CredentialCheck{Reason: reasonUnknownAccount}, nil
		}
		s.logger.Error("credential lookup failed", slog.Any("error", err))
		return CredentialCheck{}, fmt.Errorf("%w: credential lookup", models.ErrStorageUnavailable)
	}

	if account.Disabled {
		_ = pkgauth.ComparePassword(s.decoyHash, password)
		return CredentialCheck{Reason: reasonAccountDisabled}, nil
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return CredentialCheck{Reason: reasonBadPassword}, nil
	}

	return CredentialCheck{Valid: true, Role: account.Role}, nil
}

// CreateAccount provisions a new account after enforcing the password
// policy. Usernames are case-normalized before uniqueness applies.
func (s *CredentialService) CreateAccount(ctx context.Context, username, password string, role models.Role) error {
	username = models.NormalizeUsername(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}

	if err := pkgauth.ValidatePassword(password, s.minPwdLen); err != nil {
		return fmt.Errorf("%w: %v", models.ErrWeakPassword, err)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	account := &models.Account{
		Username:          username,
		PasswordHash:      hash,
		Role:              role,
		CreatedAt:         now,
		PasswordChangedAt: &now,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return err
	}

	s.logger.Info("account created", slog.String("username", username), slog.String("role", role.String()))
	return nil
}

// ChangePassword replaces the stored hash and revokes every live session
// for the account. Old tokens fail validation immediately afterwards.
func (s *CredentialService) ChangePassword(ctx context.Context, username, newPassword string) error {
	username = models.NormalizeUsername(username)

	if err := pkgauth.ValidatePassword(newPassword, s.minPwdLen); err != nil {
		return fmt.Errorf("%w: %v", models.ErrWeakPassword, err)
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, username, hash, s.now()); err != nil {
		return err
	}

	revoked := s.revoker.RevokeAllFor(username)
	s.logger.Info("password changed",
		slog.String("username", username),
		slog.Int("sessions_revoked", revoked))
	return nil
}

// DeleteAccount soft-disables the account and revokes its sessions. The row
// stays put so audit history keeps a referent; Verify simply treats the
// account as invalid from here on.
func (s *CredentialService) DeleteAccount(ctx context.Context, username string) error {
	username = models.NormalizeUsername(username)

	if err := s.repo.SetDisabled(ctx, username, true); err != nil {
		return err
	}

	revoked := s.revoker.RevokeAllFor(username)
	s.logger.Info("account disabled",
		slog.String("username", username),
		slog.Int("sessions_revoked", revoked))
	return nil
}

// RecordLogin stamps last_login_at. Best-effort; a failure never blocks an
// otherwise successful authentication.
func (s *CredentialService) RecordLogin(ctx context.Context, username string) {
	if err := s.repo.UpdateLastLogin(ctx, models.NormalizeUsername(username), s.now()); err != nil {
		s.logger.Warn("failed to record last login", slog.String("username", username), slog.Any("error", err))
	}
}

// ListAccounts returns all accounts with password hashes stripped.
func (s *CredentialService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		a.PasswordHash = ""
	}
	return accounts, nil
}

// Bootstrap creates the initial admin account when the store is empty.
func (s *CredentialService) Bootstrap(ctx context.Context, adminUsername, adminPassword string) error {
	if adminPassword == "" {
		s.logger.Info("no admin bootstrap password configured, skipping")
		return nil
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count accounts: %w", err)
	}
	if count > 0 {
		return nil
	}

	if err := s.CreateAccount(ctx, adminUsername, adminPassword, models.RoleAdmin); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	s.logger.Info("bootstrap admin account created", slog.String("username", models.NormalizeUsername(adminUsername)))
	return nil
}
