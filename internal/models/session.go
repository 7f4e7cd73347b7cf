package models

import "time"

// Session is an issued authentication session. Role is copied at issuance
// and not re-derived per request; a password or role change revokes the
// session instead.
type Session struct {
	Token      string
	Username   string
	Role       Role
	IssuedAt   time.Time
	ExpiresAt  time.Time
	LastSeenAt time.Time
}
