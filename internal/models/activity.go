package models

import (
	"time"

	"github.com/google/uuid"
)

// Activity actions recorded in the security log
const (
	ActivityLoginSucceeded   = "login_succeeded"
	ActivityLoginFailed      = "login_failed"
	ActivityLoginBlocked     = "login_blocked"
	ActivityLogout           = "logout"
	ActivityAccountCreated   = "account_created"
	ActivityPasswordChanged  = "password_changed"
	ActivityAccountDisabled  = "account_disabled"
	ActivitySessionsRevoked  = "sessions_revoked"
)

// Outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// ActorAnonymous is recorded when no authenticated actor is known.
const ActorAnonymous = "anonymous"

// ActivityRecord is one append-only entry in the security activity log.
// Detail must never contain a password or hash.
type ActivityRecord struct {
	ID            uuid.UUID
	Timestamp     time.Time
	Actor         string
	SourceAddress string
	Action        string
	Outcome       string
	Detail        string
}

// ActivityFilter narrows an activity log query. Zero values match everything.
// Results are always ordered by timestamp ascending.
type ActivityFilter struct {
	Actor   string
	From    time.Time
	To      time.Time
	Outcome string
	Limit   int
}
