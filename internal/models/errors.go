package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrWeakPassword       = errors.New("password does not meet the minimum policy")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// LockedError is returned when authentication is temporarily denied for a
// key. RetryAfter is the remaining cooldown; it never reveals whether the
// account or the source address triggered the lockout.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("temporarily locked, retry after %s", e.RetryAfter.Round(time.Second))
}

// IsLocked reports whether err is a lockout and returns the remaining cooldown.
func IsLocked(err error) (time.Duration, bool) {
	var le *LockedError
	if errors.As(err, &le) {
		return le.RetryAfter, true
	}
	return 0, false
}
