package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/qnachat/authcore/internal/models"
	pkglogger "github.com/qnachat/authcore/pkg/logger"
)

// memAccountRepo is an in-memory AccountRepository for tests. Setting fail
// makes every call report a storage outage.
type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	fail     bool
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[string]*models.Account)}
}

func (r *memAccountRepo) setFail(fail bool) {
	r.mu.Lock()
	r.fail = fail
	r.mu.Unlock()
}

func (r *memAccountRepo) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, models.ErrStorageUnavailable
	}
	a, ok := r.accounts[username]
	if !ok {
		return nil, models.ErrUnknownAccount
	}
	copied := *a
	return &copied, nil
}

func (r *memAccountRepo) Create(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return models.ErrStorageUnavailable
	}
	if _, ok := r.accounts[account.Username]; ok {
		return models.ErrDuplicateAccount
	}
	copied := *account
	r.accounts[account.Username] = &copied
	return nil
}

func (r *memAccountRepo) UpdatePassword(_ context.Context, username, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return models.ErrStorageUnavailable
	}
	a, ok := r.accounts[username]
	if !ok {
		return models.ErrUnknownAccount
	}
	a.PasswordHash = passwordHash
	a.PasswordChangedAt = &changedAt
	return nil
}

func (r *memAccountRepo) SetDisabled(_ context.Context, username string, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return models.ErrStorageUnavailable
	}
	a, ok := r.accounts[username]
	if !ok {
		return models.ErrUnknownAccount
	}
	a.Disabled = disabled
	return nil
}

func (r *memAccountRepo) UpdateLastLogin(_ context.Context, username string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return models.ErrStorageUnavailable
	}
	a, ok := r.accounts[username]
	if !ok {
		return models.ErrUnknownAccount
	}
	a.LastLoginAt = &at
	return nil
}

func (r *memAccountRepo) List(_ context.Context) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, models.ErrStorageUnavailable
	}
	out := make([]*models.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		copied := *a
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *memAccountRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return 0, models.ErrStorageUnavailable
	}
	return len(r.accounts), nil
}

// memActivityRepo is an in-memory ActivityRepository with a failure toggle.
type memActivityRepo struct {
	mu      sync.Mutex
	records []*models.ActivityRecord
	fail    bool
}

func newMemActivityRepo() *memActivityRepo {
	return &memActivityRepo{}
}

func (r *memActivityRepo) setFail(fail bool) {
	r.mu.Lock()
	r.fail = fail
	r.mu.Unlock()
}

func (r *memActivityRepo) Insert(_ context.Context, record *models.ActivityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return models.ErrStorageUnavailable
	}
	copied := *record
	r.records = append(r.records, &copied)
	return nil
}

func (r *memActivityRepo) Query(_ context.Context, filter models.ActivityFilter) ([]*models.ActivityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, models.ErrStorageUnavailable
	}
	var out []*models.ActivityRecord
	for _, rec := range r.records {
		if filter.Actor != "" && rec.Actor != filter.Actor {
			continue
		}
		if !filter.From.IsZero() && rec.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !rec.Timestamp.Before(filter.To) {
			continue
		}
		if filter.Outcome != "" && rec.Outcome != filter.Outcome {
			continue
		}
		copied := *rec
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// actions returns the recorded action names in insertion order.
func (r *memActivityRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Action
	}
	return out
}

func (r *memActivityRepo) lastRecord() *models.ActivityRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return nil
	}
	copied := *r.records[len(r.records)-1]
	return &copied
}

// fakeClock is a manually advanced clock for expiry tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testReporter() *pkglogger.Reporter {
	return pkglogger.NewReporter(testLogger())
}
