package contract_test

// In-memory fakes for the service collaborators. They preserve the
// store's compare-and-swap semantics so race-sensitive paths behave the
// same as against PostgreSQL.

import (
	"context"
	"sync"
	"time"

	"taskpay/escrow-service/internal/audit"
	"taskpay/escrow-service/internal/commission"
	"taskpay/escrow-service/internal/contract"
	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/money"
	"taskpay/escrow-service/internal/notify"
)

// ── Contract store ─────────────────────────────────────────────────────────

type memStore struct {
	mu        sync.Mutex
	contracts map[string]contract.Contract
}

func newMemStore() *memStore {
	return &memStore{contracts: make(map[string]contract.Contract)}
}

func (s *memStore) Create(ctx context.Context, c *contract.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[c.ID] = *c
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*contract.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "contract %s not found", id)
	}
	return &c, nil
}

func (s *memStore) ListByJob(ctx context.Context, jobID string) ([]*contract.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*contract.Contract, 0)
	for _, c := range s.contracts {
		if c.JobID == jobID {
			cc := c
			out = append(out, &cc)
		}
	}
	return out, nil
}

func (s *memStore) CompareAndSwap(ctx context.Context, c *contract.Contract, expect contract.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.contracts[c.ID]
	if !ok || cur.Status != expect {
		return false, nil
	}
	s.contracts[c.ID] = *c
	return true, nil
}

// ── Membership ─────────────────────────────────────────────────────────────

type fakeMembers struct {
	mu       sync.Mutex
	profiles map[string]commission.Profile
	verified map[string]bool
	rates    map[string]money.Rate
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{
		profiles: make(map[string]commission.Profile),
		verified: make(map[string]bool),
		rates:    make(map[string]money.Rate),
	}
}

func (m *fakeMembers) addUser(id string, verified bool, p commission.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[id] = p
	m.verified[id] = verified
}

func (m *fakeMembers) Profile(ctx context.Context, userID string) (commission.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return commission.Profile{}, apperr.New(apperr.CodeNotFound, "user %s", userID)
	}
	return p, nil
}

func (m *fakeMembers) IsVerified(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verified[userID], nil
}

func (m *fakeMembers) ConsumeFreeContract(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[userID]
	if p.FreeContractsRemaining <= 0 {
		return apperr.New(apperr.CodeConflict, "user %s has no free contracts left", userID)
	}
	p.FreeContractsRemaining--
	m.profiles[userID] = p
	return nil
}

func (m *fakeMembers) GrantFreeContracts(ctx context.Context, userID string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[userID]
	p.FreeContractsRemaining += n
	m.profiles[userID] = p
	return nil
}

func (m *fakeMembers) SetCommissionRate(ctx context.Context, userID string, rate money.Rate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[userID]
	p.CurrentRate = rate
	m.rates[userID] = rate
	m.profiles[userID] = p
	return nil
}

// ── Locker ─────────────────────────────────────────────────────────────────

type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func(context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, true, nil
}

// ── Notifier spy ───────────────────────────────────────────────────────────

type spyNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *spyNotifier) Notify(ctx context.Context, ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *spyNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var c int
	for _, ev := range n.events {
		if ev.Type == eventType {
			c++
		}
	}
	return c
}

// ── Audit store ────────────────────────────────────────────────────────────

type memAuditStore struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *memAuditStore) Append(ctx context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *memAuditStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

// ── Wiring ─────────────────────────────────────────────────────────────────

type testEnv struct {
	svc      *contract.Service
	store    *memStore
	members  *fakeMembers
	notifier *spyNotifier
}

func newTestEnv() *testEnv {
	store := newMemStore()
	members := newFakeMembers()
	notifier := &spyNotifier{}
	trail := audit.NewTrail(&memAuditStore{}, []byte("test-key"))
	svc := contract.NewService(store, members, newMemLocker(), notifier, trail)
	return &testEnv{svc: svc, store: store, members: members, notifier: notifier}
}
