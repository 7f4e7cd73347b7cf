package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qnachat/authcore/internal/models"
	pkglogger "github.com/qnachat/authcore/pkg/logger"
)

// ActivityRepository defines the append-only activity sink.
type ActivityRepository interface {
	Insert(ctx context.Context, record *models.ActivityRecord) error
	Query(ctx context.Context, filter models.ActivityFilter) ([]*models.ActivityRecord, error)
}

const (
	// fallbackBufferSize bounds the records parked in memory while the sink
	// is down. Overflow drops the oldest record and screams via the reporter.
	fallbackBufferSize = 256

	appendTimeout = 2 * time.Second
)

// ActivityLog records security-relevant events. Append is best-effort
// relative to the security decision that triggered it: a sink failure parks
// the record in a process-local buffer and alerts the operator channel, and
// the authentication flow proceeds either way.
type ActivityLog struct {
	repo     ActivityRepository
	reporter *pkglogger.Reporter
	now      func() time.Time

	mu       sync.Mutex
	fallback []*models.ActivityRecord
}

func NewActivityLog(repo ActivityRepository, reporter *pkglogger.Reporter) *ActivityLog {
	return &ActivityLog{
		repo:     repo,
		reporter: reporter,
		now:      time.Now,
	}
}

// Append writes one record. It never returns an error and never blocks the
// triggering action beyond a short sink timeout. Detail must not contain
// passwords or hashes; callers own that invariant.
func (l *ActivityLog) Append(ctx context.Context, actor, sourceAddress, action, outcome, detail string) {
	if actor == "" {
		actor = models.ActorAnonymous
	}

	record := &models.ActivityRecord{
		ID:            uuid.New(),
		Timestamp:     l.now(),
		Actor:         actor,
		SourceAddress: sourceAddress,
		Action:        action,
		Outcome:       outcome,
		Detail:        detail,
	}

	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()

	if err := l.repo.Insert(insertCtx, record); err != nil {
		l.park(record)
		l.reporter.ActivitySinkFailure(action, l.PendingCount(), err)
	}
}

func (l *ActivityLog) park(record *models.ActivityRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.fallback) >= fallbackBufferSize {
		dropped := l.fallback[0]
		l.fallback = l.fallback[1:]
		l.reporter.ActivityRecordDropped(dropped.Action)
	}
	l.fallback = append(l.fallback, record)
}

// PendingCount reports how many records are parked in the fallback buffer.
func (l *ActivityLog) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fallback)
}

// Flush retries parked records against the sink, oldest first, stopping at
// the first failure. The background sweeper calls this periodically.
func (l *ActivityLog) Flush(ctx context.Context) int {
	l.mu.Lock()
	pending := l.fallback
	l.fallback = nil
	l.mu.Unlock()

	flushed := 0
	for i, record := range pending {
		if err := l.repo.Insert(ctx, record); err != nil {
			// put the rest back, preserving order ahead of new arrivals
			l.mu.Lock()
			l.fallback = append(pending[i:], l.fallback...)
			l.mu.Unlock()
			return flushed
		}
		flushed++
	}
	return flushed
}

// Query returns records matching the filter, ordered by timestamp
// ascending. Re-running the same filter restarts the sequence.
func (l *ActivityLog) Query(ctx context.Context, filter models.ActivityFilter) ([]*models.ActivityRecord, error) {
	return l.repo.Query(ctx, filter)
}
