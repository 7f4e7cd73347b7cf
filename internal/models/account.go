package models

import (
	"strings"
	"time"
)

// Role is a closed, totally ordered permission level: none < user < admin.
type Role int

const (
	RoleNone Role = iota
	RoleUser
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return "none"
	}
}

// Satisfies reports whether r meets the required level.
func (r Role) Satisfies(required Role) bool {
	return r >= required
}

// ParseRole maps a stored role string back to a Role. Unknown values map to
// RoleNone so a corrupted row can never grant access.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "user":
		return RoleUser
	default:
		return RoleNone
	}
}

// Account is the durable credential record for one user.
// PasswordHash is never logged and never returned to callers of the gateway.
type Account struct {
	Username          string
	PasswordHash      string
	Role              Role
	Disabled          bool
	CreatedAt         time.Time
	PasswordChangedAt *time.Time
	LastLoginAt       *time.Time
}

// NormalizeUsername applies the canonical form used as the unique account
// key: trimmed and lowercased.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
