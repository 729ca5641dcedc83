package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-radar/internal/domain"
	"subscription-radar/internal/domain/model"
	"subscription-radar/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func strptr(s string) *string { return &s }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// memTransactionRepo is a small in-memory implementation used by unit tests.
// Transactions are stored per user because the real store resolves ownership
// through the accounts table.
type memTransactionRepo struct {
	mu      sync.RWMutex
	store   map[string][]model.Transaction // by user ID
	listErr error                          // used by tests to simulate fetch failures
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{store: make(map[string][]model.Transaction)}
}

func (m *memTransactionRepo) add(userID string, t model.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = fmt.Sprintf("txn-%d", len(m.store[userID])+1)
	}
	t.Date = model.DateOnly(t.Date)
	m.store[userID] = append(m.store[userID], t)
}

func (m *memTransactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	m.add(t.AccountID, *t)
	return nil
}

func (m *memTransactionRepo) ListForDetection(ctx context.Context, tx repository.Tx, userID string, since time.Time) ([]model.Transaction, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Transaction
	for _, t := range m.store[userID] {
		if !t.Date.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTransactionRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]model.Transaction(nil), m.store[accountID]...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memSubscriptionRepo mirrors the natural-key upsert semantics of the real
// store: (user_id, merchant, amount, cadence) identifies a row across runs.
type memSubscriptionRepo struct {
	mu        sync.RWMutex
	store     map[string]*model.Subscription // by row ID
	upsertErr error
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func naturalKey(userID, merchant string, amount float64, cadence model.Cadence) string {
	return fmt.Sprintf("%s|%s|%.2f|%s", userID, merchant, amount, cadence)
}

func (m *memSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if naturalKey(s.UserID, s.Merchant, s.Amount, s.Cadence) == naturalKey(sub.UserID, sub.Merchant, sub.Amount, sub.Cadence) {
			return domain.ErrAlreadyExists
		}
	}
	cp := *sub
	m.store[sub.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, sub *model.Subscription) (*model.Subscription, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := naturalKey(sub.UserID, sub.Merchant, sub.Amount, sub.Cadence)
	for _, s := range m.store {
		if naturalKey(s.UserID, s.Merchant, s.Amount, s.Cadence) == key {
			cp := *sub
			cp.ID = s.ID
			cp.FirstDetectedAt = s.FirstDetectedAt
			m.store[s.ID] = &cp
			out := cp
			return &out, nil
		}
	}
	cp := *sub
	m.store[sub.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memSubscriptionRepo) FindByNaturalKey(ctx context.Context, tx repository.Tx, userID, merchant string, amount float64, cadence model.Cadence) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := naturalKey(userID, merchant, amount, cadence)
	for _, s := range m.store {
		if naturalKey(s.UserID, s.Merchant, s.Amount, s.Cadence) == key {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, userID, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok || s.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubscriptionRepo) ListUpcoming(ctx context.Context, tx repository.Tx, userID string, from, to time.Time) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.UserID != userID || s.Status != model.SubscriptionStatusActive || s.NextPaymentDate == nil {
			continue
		}
		if !s.NextPaymentDate.Before(from) && !s.NextPaymentDate.After(to) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubscriptionRepo) ListUpcomingAll(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status != model.SubscriptionStatusActive || s.NextPaymentDate == nil {
			continue
		}
		if !s.NextPaymentDate.Before(from) && !s.NextPaymentDate.After(to) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubscriptionRepo) UpdateDetectionFields(ctx context.Context, tx repository.Tx, userID, id string, upd repository.SubscriptionDetectionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.UserID != userID {
		return domain.ErrNotFound
	}
	if upd.Confidence != nil {
		s.Confidence = *upd.Confidence
	}
	if upd.Status != nil {
		s.Status = *upd.Status
	}
	return nil
}

func (m *memSubscriptionRepo) Update(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[sub.ID]
	if !ok || s.UserID != sub.UserID {
		return domain.ErrNotFound
	}
	cp := *sub
	m.store[sub.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) Delete(ctx context.Context, tx repository.Tx, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.UserID != userID {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *memSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.SubscriptionStatus]int)
	for _, s := range m.store {
		out[s.Status]++
	}
	return out, nil
}

// byNaturalKey is a test helper to look up the stored row for a detected
// subscription without knowing its surrogate ID.
func (m *memSubscriptionRepo) byNaturalKey(userID, merchant string, amount float64, cadence model.Cadence) *model.Subscription {
	s, err := m.FindByNaturalKey(context.Background(), repository.NoTX, userID, merchant, amount, cadence)
	if err != nil {
		return nil
	}
	return s
}

type memNotificationRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Notification
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{store: make(map[string]*model.Notification)}
}

func (m *memNotificationRepo) Create(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.store[n.ID] = &cp
	return nil
}

func (m *memNotificationRepo) ExistsForSubscriptionOn(ctx context.Context, tx repository.Tx, subscriptionID string, dayStart time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.store {
		if n.SubscriptionID == subscriptionID && model.DateOnly(n.ScheduledAt).Equal(model.DateOnly(dayStart)) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memNotificationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Notification
	for _, n := range m.store {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memNotificationRepo) UpdateStatus(ctx context.Context, tx repository.Tx, userID, id string, status model.NotificationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.store[id]
	if !ok || n.UserID != userID {
		return domain.ErrNotFound
	}
	n.Status = status
	return nil
}

func (m *memNotificationRepo) Delete(ctx context.Context, tx repository.Tx, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.store[id]
	if !ok || n.UserID != userID {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

type memAccountRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{store: make(map[string]*model.Account)}
}

func (m *memAccountRepo) Create(ctx context.Context, tx repository.Tx, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *memAccountRepo) FindByID(ctx context.Context, tx repository.Tx, userID, id string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.store[id]
	if !ok || a.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccountRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Account
	for _, a := range m.store {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memTxManager satisfies the transaction port without a database; the
// callback runs against the non-transactional path.
type memTxManager struct {
	calls int
}

func (m *memTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls++
	return fn(ctx, repository.NoTX)
}

// memLocker hands the lock to the first caller and rejects everyone else
// until Unlock, mimicking the Redis SET NX behavior.
type memLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]string)}
}

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrDetectionInProgress
	}
	token := fmt.Sprintf("token-%s", key)
	l.held[key] = token
	return token, nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return domain.ErrOperationFailed
	}
	delete(l.held, key)
	return nil
}
