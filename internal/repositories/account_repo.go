package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qnachat/authcore/internal/database"
	"github.com/qnachat/authcore/internal/models"
)

// AccountRepository is the Postgres-backed credential store.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.Postgres) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner covers pgx.Row and pgx.Rows for shared scan helpers
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var role string
	var passwordChangedAt, lastLoginAt *time.Time

	err := scanner.Scan(
		&account.Username, &account.PasswordHash, &role, &account.Disabled,
		&account.CreatedAt, &passwordChangedAt, &lastLoginAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.Role = models.ParseRole(role)
	account.PasswordChangedAt = passwordChangedAt
	account.LastLoginAt = lastLoginAt

	return &account, nil
}

const accountColumns = "username, password_hash, role, disabled, created_at, password_changed_at, last_login_at"

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, username))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (username, password_hash, role, disabled, created_at, password_changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		account.Username, account.PasswordHash, account.Role.String(),
		account.Disabled, account.CreatedAt, account.PasswordChangedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, username, passwordHash string, changedAt time.Time) error {
	query := `UPDATE accounts SET password_hash = $2, password_changed_at = $3 WHERE username = $1`

	tag, err := r.pool.Exec(ctx, query, username, passwordHash, changedAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUnknownAccount
	}
	return nil
}

func (r *AccountRepository) SetDisabled(ctx context.Context, username string, disabled bool) error {
	query := `UPDATE accounts SET disabled = $2 WHERE username = $1`

	tag, err := r.pool.Exec(ctx, query, username, disabled)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUnknownAccount
	}
	return nil
}

func (r *AccountRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	query := `UPDATE accounts SET last_login_at = $2 WHERE username = $1`

	_, err := r.pool.Exec(ctx, query, username, at)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanAccountRows(rows)
}

func (r *AccountRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)

	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return accounts, nil
}
