package payment_test

// In-memory fakes for the ledger's collaborators. The fake store keeps
// compare-and-swap semantics so idempotency and race behavior match the
// PostgreSQL implementation.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskpay/escrow-service/internal/audit"
	"taskpay/escrow-service/internal/contract"
	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/gateway"
	"taskpay/escrow-service/internal/money"
	"taskpay/escrow-service/internal/notify"
	"taskpay/escrow-service/internal/payment"
)

// ── Payment store ──────────────────────────────────────────────────────────

type memStore struct {
	mu       sync.Mutex
	payments map[string]payment.Payment
}

func newMemStore() *memStore {
	return &memStore{payments: make(map[string]payment.Payment)}
}

func (s *memStore) Create(ctx context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payments {
		if existing.GatewayOrderID == p.GatewayOrderID {
			return apperr.New(apperr.CodeConflict, "order %s already has a payment", p.GatewayOrderID)
		}
	}
	s.payments[p.ID] = *p
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "payment %s not found", id)
	}
	return &p, nil
}

func (s *memStore) GetByOrderID(ctx context.Context, orderID string) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.GatewayOrderID == orderID {
			pp := p
			return &pp, nil
		}
	}
	return nil, apperr.New(apperr.CodeNotFound, "no payment for order %s", orderID)
}

func (s *memStore) ListByContract(ctx context.Context, contractID string) ([]*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if p.ContractID == contractID {
			pp := p
			out = append(out, &pp)
		}
	}
	return out, nil
}

func (s *memStore) CompareAndSwap(ctx context.Context, p *payment.Payment, expect payment.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.payments[p.ID]
	if !ok || cur.Status != expect {
		return false, nil
	}
	s.payments[p.ID] = *p
	return true, nil
}

// ── Gateway ────────────────────────────────────────────────────────────────

type fakeGateway struct {
	mu       sync.Mutex
	orders   int
	captures int
	refunds  int

	// failCreates makes the next n CreateOrder calls fail transiently.
	failCreates int
	rejectNext  bool

	// captureAmount is what CaptureOrder reports back; tests set it to
	// match or mismatch the order.
	captureAmount money.Money
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreates > 0 {
		g.failCreates--
		return gateway.Order{}, gateway.Unavailable(fmt.Errorf("503"), "provider down")
	}
	g.orders++
	id := fmt.Sprintf("ORD-%d", g.orders)
	return gateway.Order{OrderID: id, ApprovalURL: "https://pay.example/approve/" + id}, nil
}

func (g *fakeGateway) CaptureOrder(ctx context.Context, orderID string) (gateway.Capture, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rejectNext {
		g.rejectNext = false
		return gateway.Capture{}, gateway.Rejected("insufficient funds")
	}
	g.captures++
	return gateway.Capture{
		CaptureID: "CAP-" + orderID,
		Payer:     gateway.PayerInfo{PayerID: "payer-1"},
		Amount:    g.captureAmount,
	}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, captureID string, amount *money.Money) (gateway.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	return gateway.Refund{RefundID: "REF-" + captureID}, nil
}

// ── Contract collaborator ──────────────────────────────────────────────────

// fakeContracts mirrors the contract service's transition guards so the
// ledger's ordering against them is exercised, not assumed.
type fakeContracts struct {
	mu        sync.Mutex
	contracts map[string]*contract.Contract
	released  int
	refunded  int

	// failHolds makes the next n MarkEscrowHeld calls fail, simulating a
	// concurrent modification on the contract row.
	failHolds int
}

func newFakeContracts() *fakeContracts {
	return &fakeContracts{contracts: make(map[string]*contract.Contract)}
}

func (f *fakeContracts) Get(ctx context.Context, id string) (*contract.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "contract %s not found", id)
	}
	cc := *c
	return &cc, nil
}

func (f *fakeContracts) MarkEscrowHeld(ctx context.Context, id string, amount money.Money) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHolds > 0 {
		f.failHolds--
		return apperr.New(apperr.CodeConflict, "contract %s was modified concurrently", id)
	}
	c := f.contracts[id]
	if c.Escrow.Status == contract.EscrowHeld && c.Escrow.Amount == amount && c.Status != contract.StatusAccepted {
		return nil
	}
	c.Escrow.Status = contract.EscrowHeld
	c.Escrow.Amount = amount
	if c.Status == contract.StatusAccepted {
		c.Status = contract.StatusInProgress
	}
	return nil
}

func (f *fakeContracts) MarkEscrowReleased(ctx context.Context, id, releasedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.contracts[id]
	if c.Status == contract.StatusCompleted && c.Escrow.Status == contract.EscrowReleased {
		return nil
	}
	if !contract.IsTransitionAllowed(c.Status, contract.StatusCompleted) {
		return apperr.New(apperr.CodeInvalidTransition,
			"transition %s → %s is not allowed", c.Status, contract.StatusCompleted)
	}
	c.Escrow.Status = contract.EscrowReleased
	c.Status = contract.StatusCompleted
	f.released++
	return nil
}

func (f *fakeContracts) MarkEscrowRefunded(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.contracts[id]
	c.Escrow.Status = contract.EscrowRefunded
	f.refunded++
	return nil
}

// ── Referral collaborator ──────────────────────────────────────────────────

type fakeReferrals struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeReferrals) OnContractCompleted(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	return nil
}

// ── Notifier spy / audit store ─────────────────────────────────────────────

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
