package services

import (
	"hash/fnv"
	"sync"
	"time"
)

// trackerShards bounds lock contention: unrelated keys almost never share a
// mutex, per-key read-modify-write stays atomic.
const trackerShards = 16

// attemptCounter tracks consecutive failures for one key.
type attemptCounter struct {
	failureCount   int
	firstFailureAt time.Time
	lockedUntil    time.Time // zero until the threshold is reached
}

type trackerShard struct {
	mu       sync.Mutex
	counters map[string]*attemptCounter
}

// AttemptTracker counts failed authentication attempts per key and produces
// lockout decisions. The gateway runs two independent instances, one keyed
// by account and one by source address, with separate cooldowns.
//
// State is in-memory only: a process restart amnesties all lockouts. That is
// documented behavior, not a bug.
type AttemptTracker struct {
	shards    [trackerShards]trackerShard
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// NewAttemptTracker creates a tracker that locks a key for cooldown after
// threshold consecutive failures.
func NewAttemptTracker(threshold int, cooldown time.Duration) *AttemptTracker {
	t := &AttemptTracker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
	for i := range t.shards {
		t.shards[i].counters = make(map[string]*attemptCounter)
	}
	return t
}

func (t *AttemptTracker) shard(key string) *trackerShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &t.shards[h.Sum32()%trackerShards]
}

// Check reports whether an attempt for key may proceed. A lockout whose
// deadline has passed is reset here (lazy expiry, no background sweep
// required). When not allowed, retryAfter is the remaining cooldown.
func (t *AttemptTracker) Check(key string) (allowed bool, retryAfter time.Duration) {
	s := t.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		return true, 0
	}

	if !c.lockedUntil.IsZero() {
		now := t.now()
		if now.Before(c.lockedUntil) {
			return false, c.lockedUntil.Sub(now)
		}
		delete(s.counters, key)
	}
	return true, 0
}

// RecordFailure increments the failure count for key. Reaching the threshold
// sets the lockout deadline; the count is capped at the threshold so it
// never grows unbounded.
func (t *AttemptTracker) RecordFailure(key string) {
	s := t.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := t.now()
	c, ok := s.counters[key]
	if ok && !c.lockedUntil.IsZero() && !now.Before(c.lockedUntil) {
		// expired lockout: this failure starts a fresh count
		ok = false
	}
	if !ok {
		c = &attemptCounter{firstFailureAt: now}
		s.counters[key] = c
	}

	c.failureCount++
	if c.failureCount >= t.threshold {
		c.failureCount = t.threshold
		c.lockedUntil = now.Add(t.cooldown)
	}
}

// RecordSuccess resets the counter for key to its zero state.
func (t *AttemptTracker) RecordSuccess(key string) {
	s := t.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
}

// SweepStale drops counters whose lockout has expired or whose failures are
// older than the cooldown. Purely a memory bound; correctness never depends
// on it running.
func (t *AttemptTracker) SweepStale() int {
	now := t.now()
	removed := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for key, c := range s.counters {
			expired := !c.lockedUntil.IsZero() && !now.Before(c.lockedUntil)
			stale := c.lockedUntil.IsZero() && now.Sub(c.firstFailureAt) > t.cooldown
			if expired || stale {
				delete(s.counters, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
