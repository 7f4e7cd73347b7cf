package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/qnachat/authcore/internal/models"
)

// SQLiteAccountRepository is the credential store for single-node
// deployments backed by an embedded SQLite file.
type SQLiteAccountRepository struct {
	db *sql.DB
}

func NewSQLiteAccountRepository(db *sql.DB) *SQLiteAccountRepository {
	return &SQLiteAccountRepository{db: db}
}

func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrUnknownAccount
	}
	if strings.Contains(err.Error(), "UNIQUE constraint") {
		return models.ErrDuplicateAccount
	}
	return errors.Join(models.ErrStorageUnavailable, err)
}

func (r *SQLiteAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	var role string
	var passwordChangedAt, lastLoginAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT username, password_hash, role, disabled, created_at, password_changed_at, last_login_at
		 FROM accounts WHERE username = ?`, username,
	).Scan(&account.Username, &account.PasswordHash, &role, &account.Disabled,
		&account.CreatedAt, &passwordChangedAt, &lastLoginAt)
	if err != nil {
		return nil, mapSQLiteError(err)
	}

	account.Role = models.ParseRole(role)
	if passwordChangedAt.Valid {
		t := passwordChangedAt.Time
		account.PasswordChangedAt = &t
	}
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		account.LastLoginAt = &t
	}
	return &account, nil
}

func (r *SQLiteAccountRepository) Create(ctx context.Context, account *models.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash, role, disabled, created_at, password_changed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account.Username, account.PasswordHash, account.Role.String(),
		account.Disabled, account.CreatedAt, account.PasswordChangedAt,
	)
	return mapSQLiteError(err)
}

func (r *SQLiteAccountRepository) UpdatePassword(ctx context.Context, username, passwordHash string, changedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, password_changed_at = ? WHERE username = ?`,
		passwordHash, changedAt, username,
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUnknownAccount
	}
	return nil
}

func (r *SQLiteAccountRepository) SetDisabled(ctx context.Context, username string, disabled bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET disabled = ? WHERE username = ?`, disabled, username,
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUnknownAccount
	}
	return nil
}

func (r *SQLiteAccountRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET last_login_at = ? WHERE username = ?`, at, username,
	)
	return mapSQLiteError(err)
}

func (r *SQLiteAccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username, password_hash, role, disabled, created_at, password_changed_at, last_login_at
		 FROM accounts ORDER BY created_at ASC`)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		var account models.Account
		var role string
		var passwordChangedAt, lastLoginAt sql.NullTime

		err := rows.Scan(&account.Username, &account.PasswordHash, &role, &account.Disabled,
			&account.CreatedAt, &passwordChangedAt, &lastLoginAt)
		if err != nil {
			return nil, mapSQLiteError(err)
		}

		account.Role = models.ParseRole(role)
		if passwordChangedAt.Valid {
			t := passwordChangedAt.Time
			account.PasswordChangedAt = &t
		}
		if lastLoginAt.Valid {
			t := lastLoginAt.Time
			account.LastLoginAt = &t
		}
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return accounts, nil
}

func (r *SQLiteAccountRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, mapSQLiteError(err)
	}
	return count, nil
}
