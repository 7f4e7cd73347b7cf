package services

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/qnachat/authcore/internal/models"
	pkgauth "github.com/qnachat/authcore/pkg/auth"
)

const sessionShards = 16

type sessionShard struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

// SessionRegistry issues, validates, and revokes opaque session tokens.
// Sessions live in memory only; a restart logs everyone out, which is
// acceptable for a single logical authority.
//
// Expiry is sliding by default (activity refreshes the deadline); fixed
// expiry is selectable via config.
type SessionRegistry struct {
	shards  [sessionShards]sessionShard
	ttl     time.Duration
	sliding bool
	now     func() time.Time
}

func NewSessionRegistry(ttl time.Duration, sliding bool) *SessionRegistry {
	r := &SessionRegistry{
		ttl:     ttl,
		sliding: sliding,
		now:     time.Now,
	}
	for i := range r.shards {
		r.shards[i].sessions = make(map[string]*models.Session)
	}
	return r
}

func (r *SessionRegistry) shard(token string) *sessionShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return &r.shards[h.Sum32()%sessionShards]
}

// Issue creates a session for username with the role copied at issuance and
// returns the opaque token. The caller owns transporting it to the client.
func (r *SessionRegistry) Issue(username string, role models.Role) (string, error) {
	token, err := pkgauth.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	now := r.now()
	session := &models.Session{
		Token:      token,
		Username:   username,
		Role:       role,
		IssuedAt:   now,
		ExpiresAt:  now.Add(r.ttl),
		LastSeenAt: now,
	}

	s := r.shard(token)
	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()

	return token, nil
}

// Validate fails closed: an unknown token or one at or past its deadline is
// invalid, and an expired record is evicted on the spot. With sliding expiry
// enabled, a valid lookup pushes the deadline forward by the full TTL.
// The returned session is a copy; callers cannot mutate registry state.
func (r *SessionRegistry) Validate(token string) (models.Session, bool) {
	s := r.shard(token)
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return models.Session{}, false
	}

	now := r.now()
	if !now.Before(session.ExpiresAt) {
		delete(s.sessions, token)
		return models.Session{}, false
	}

	session.LastSeenAt = now
	if r.sliding {
		session.ExpiresAt = now.Add(r.ttl)
	}

	return *session, true
}

// Revoke removes a session. Removing an absent token is not an error.
func (r *SessionRegistry) Revoke(token string) {
	s := r.shard(token)
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// RevokeAllFor removes every session issued to username and returns how
// many were dropped. Used by password change and admin forced logout.
func (r *SessionRegistry) RevokeAllFor(username string) int {
	revoked := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for token, session := range s.sessions {
			if session.Username == username {
				delete(s.sessions, token)
				revoked++
			}
		}
		s.mu.Unlock()
	}
	return revoked
}

// SweepExpired evicts expired sessions eagerly. Memory bound only; Validate
// already evicts lazily.
func (r *SessionRegistry) SweepExpired() int {
	now := r.now()
	removed := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for token, session := range s.sessions {
			if !now.Before(session.ExpiresAt) {
				delete(s.sessions, token)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
