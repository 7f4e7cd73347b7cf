package database

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/qnachat/authcore/internal/models"
)

// MapPostgresError translates driver errors into the subsystem's error
// taxonomy. Anything unrecognized surfaces as ErrStorageUnavailable so the
// caller fails closed.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrUnknownAccount
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrDuplicateAccount
		}
	}

	return errors.Join(models.ErrStorageUnavailable, err)
}
