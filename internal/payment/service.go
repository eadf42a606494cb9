package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"taskpay/escrow-service/internal/audit"
	"taskpay/escrow-service/internal/contract"
	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/gateway"
	"taskpay/escrow-service/internal/money"
	"taskpay/escrow-service/internal/notify"
)

// AutoReleaseActor identifies the scheduled sweep in release stamps and
// actor checks. Everything else must be the contract's requester.
const AutoReleaseActor = "auto_release"

// Contracts is the slice of the contract service the ledger drives.
type Contracts interface {
	Get(ctx context.Context, id string) (*contract.Contract, error)
	MarkEscrowHeld(ctx context.Context, id string, amount money.Money) error
	MarkEscrowReleased(ctx context.Context, id, releasedBy string) error
	MarkEscrowRefunded(ctx context.Context, id string) error
}

// Referrals receives completion events; it no-ops for users without an
// open referral row, so calling it for both parties is safe.
type Referrals interface {
	OnContractCompleted(ctx context.Context, userID string) error
}

// Service encapsulates the payment ledger.
type Service struct {
	store     Store
	gw        gateway.Gateway
	retry     gateway.RetryPolicy
	contracts Contracts
	referrals Referrals
	notifier  notify.Notifier
	trail     *audit.Trail
}

// NewService returns a configured Service.
func NewService(store Store, gw gateway.Gateway, retry gateway.RetryPolicy,
	contracts Contracts, referrals Referrals, notifier notify.Notifier,
	trail *audit.Trail) *Service {
	return &Service{
		store:     store,
		gw:        gw,
		retry:     retry,
		contracts: contracts,
		referrals: referrals,
		notifier:  notifier,
		trail:     trail,
	}
}

// Get returns a payment by id.
func (s *Service) Get(ctx context.Context, id string) (*Payment, error) {
	return s.store.Get(ctx, id)
}

// ListByContract returns a contract's payments, oldest first.
func (s *Service) ListByContract(ctx context.Context, contractID string) ([]*Payment, error) {
	return s.store.ListByContract(ctx, contractID)
}

// OpenOrder creates a pending payment for a contract and opens a gateway
// order for it. A nil amount charges the contract's total price; a
// non-nil amount is used for extension price deltas, which get their own
// hold. Returns the payment and the payer approval URL.
func (s *Service) OpenOrder(ctx context.Context, contractID string, amount *money.Money) (*Payment, string, error) {
	c, err := s.contracts.Get(ctx, contractID)
	if err != nil {
		return nil, "", err
	}
	if c.Status != contract.StatusAccepted && c.Status != contract.StatusInProgress {
		return nil, "", apperr.New(apperr.CodeInvalidTransition,
			"contract %s is %s; orders require accepted or in_progress", contractID, c.Status)
	}

	charge := c.TotalPrice
	if amount != nil {
		if err := amount.Validate(); err != nil {
			return nil, "", apperr.Wrap(apperr.CodeValidation, err, "order amount")
		}
		if amount.Currency != c.TotalPrice.Currency {
			return nil, "", apperr.Wrap(apperr.CodeValidation, money.ErrCurrencyMismatch, "order amount")
		}
		charge = *amount
	}
	if charge.IsZero() {
		return nil, "", apperr.New(apperr.CodeValidation, "order amount must be positive")
	}

	var order gateway.Order
	err = s.retry.Do(ctx, func() error {
		var err error
		order, err = s.gw.CreateOrder(ctx, gateway.CreateOrderRequest{
			Amount:      charge,
			Description: fmt.Sprintf("contract %s", c.ID),
			ContractRef: c.ID,
		})
		return err
	})
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	p := &Payment{
		ID:             uuid.NewString(),
		ContractID:     c.ID,
		PayerID:        c.RequesterID,
		RecipientID:    c.WorkerID,
		Amount:         charge,
		Status:         StatusPending,
		GatewayOrderID: order.OrderID,
		IsEscrow:       c.Escrow.Enabled,
		PlatformFee:    money.Money{Amount: 0, Currency: charge.Currency},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, "", err
	}

	s.audit(ctx, c.RequesterID, "payment.open_order", audit.SeverityLow, p, "", StatusPending)
	return p, order.ApprovalURL, nil
}

// ConfirmCapture finalizes an approved order. Idempotent on the gateway
// order id: if the payment is already past pending the call is a no-op
// returning the existing record, which absorbs duplicate webhook
// deliveries and webhook-vs-poll races.
func (s *Service) ConfirmCapture(ctx context.Context, gatewayOrderID string) (*Payment, error) {
	p, err := s.store.GetByOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending {
		// Already applied by the other delivery path. Re-drive the
		// contract-side hold so a capture whose contract update was lost
		// (crash, concurrent-modification conflict) heals on the retry.
		if p.Status == StatusHeldEscrow {
			if err := s.syncEscrowHold(ctx, p.ContractID); err != nil {
				return nil, err
			}
		}
		return p, nil
	}

	var capture gateway.Capture
	err = s.retry.Do(ctx, func() error {
		var err error
		capture, err = s.gw.CaptureOrder(ctx, gatewayOrderID)
		return err
	})
	if err != nil {
		if apperr.Is(err, apperr.CodeGatewayRejected) {
			s.markFailed(ctx, p)
		}
		return nil, err
	}

	if capture.Amount.Amount != p.Amount.Amount || capture.Amount.Currency != p.Amount.Currency {
		return nil, apperr.New(apperr.CodeValidation,
			"capture amount %s does not match order amount %s", capture.Amount, p.Amount)
	}

	next := StatusCompleted
	if p.IsEscrow {
		next = StatusHeldEscrow
	}

	from := p.Status
	p.Status = next
	p.GatewayCaptureID = capture.CaptureID
	p.UpdatedAt = time.Now().UTC()

	ok, err := s.store.CompareAndSwap(ctx, p, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race with a concurrent confirmation — the winner
		// already applied the same transition.
		return s.store.GetByOrderID(ctx, gatewayOrderID)
	}

	if p.IsEscrow {
		if err := s.syncEscrowHold(ctx, p.ContractID); err != nil {
			return nil, err
		}
	}

	s.audit(ctx, p.PayerID, "payment.confirm_capture", audit.SeverityMedium, p, from, p.Status)
	return p, nil
}

// syncEscrowHold pushes the total currently held for a contract — the sum
// of its held_escrow payments, so extension deltas accumulate — to the
// contract side. Summing from the ledger makes the call idempotent:
// duplicate webhooks recompute the same total.
func (s *Service) syncEscrowHold(ctx context.Context, contractID string) error {
	payments, err := s.store.ListByContract(ctx, contractID)
	if err != nil {
		return err
	}
	var total money.Money
	for _, p := range payments {
		if p.Status != StatusHeldEscrow {
			continue
		}
		if total.Currency == "" {
			total = p.Amount
			continue
		}
		total, err = total.Add(p.Amount)
		if err != nil {
			return err
		}
	}
	if total.Currency == "" {
		return nil // nothing held
	}
	return s.contracts.MarkEscrowHeld(ctx, contractID, total)
}

// ReleaseEscrow moves a held payment to completed, stamps who released
// it, settles the platform fee, and drives the owning contract to
// completed. Only the contract's requester (approving the work) or the
// scheduled sweep may release. Idempotent: re-invocation on an
// already-released payment is a silent no-op, because the manual and
// scheduled release paths may race.
func (s *Service) ReleaseEscrow(ctx context.Context, paymentID, releasedBy string) (*Payment, error) {
	p, err := s.store.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	c, err := s.contracts.Get(ctx, p.ContractID)
	if err != nil {
		return nil, err
	}
	if releasedBy != AutoReleaseActor && releasedBy != c.RequesterID {
		return nil, apperr.New(apperr.CodeValidation,
			"user %s may not release escrow for contract %s; only the requester approves", releasedBy, c.ID)
	}

	if p.Status == StatusCompleted {
		// Already released. Re-drive the idempotent contract hook so a
		// crash between the payment flip and the contract update heals
		// on the next call.
		if err := s.contracts.MarkEscrowReleased(ctx, p.ContractID, releasedBy); err != nil {
			return nil, err
		}
		return p, nil
	}
	if p.Status != StatusHeldEscrow {
		return nil, apperr.New(apperr.CodeInvalidTransition,
			"payment %s is %s; release requires held_escrow", paymentID, p.Status)
	}

	// The contract guard comes before the payment flip: flipping first
	// would strand a completed payment on a contract that rejects the
	// waiting_approval → completed transition.
	if !contract.IsTransitionAllowed(c.Status, contract.StatusCompleted) {
		return nil, apperr.New(apperr.CodeInvalidTransition,
			"contract %s is %s; escrow release requires completed work awaiting approval", c.ID, c.Status)
	}

	now := time.Now().UTC()
	from := p.Status
	p.Status = StatusCompleted
	p.PlatformFee = c.Commission
	p.EscrowReleasedAt = &now
	p.EscrowReleasedBy = releasedBy
	p.UpdatedAt = now

	ok, err := s.store.CompareAndSwap(ctx, p, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race — the other caller released it; no duplicate
		// side effects.
		return s.store.Get(ctx, paymentID)
	}

	if err := s.contracts.MarkEscrowReleased(ctx, p.ContractID, releasedBy); err != nil {
		return nil, err
	}

	for _, userID := range []string{c.RequesterID, c.WorkerID} {
		if err := s.referrals.OnContractCompleted(ctx, userID); err != nil {
			slog.Warn("referral completion hook failed", "user", userID, "err", err)
		}
	}

	s.notifier.Notify(ctx, notify.Event{
		Type:       notify.EventEscrowReleased,
		Recipients: []string{c.RequesterID, c.WorkerID},
		ContractID: c.ID,
		PaymentID:  p.ID,
	})
	s.audit(ctx, releasedBy, "payment.release_escrow", audit.SeverityHigh, p, from, p.Status)
	return p, nil
}

// Refund reverses a pending or held payment. Captured funds are refunded
// at the gateway; an uncaptured order is simply closed out.
func (s *Service) Refund(ctx context.Context, paymentID, actorID, reason string) (*Payment, error) {
	p, err := s.store.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending && p.Status != StatusHeldEscrow {
		return nil, apperr.New(apperr.CodeInvalidTransition,
			"payment %s is %s; refund requires pending or held_escrow", paymentID, p.Status)
	}

	var refundID string
	if p.GatewayCaptureID != "" {
		var ref gateway.Refund
		err = s.retry.Do(ctx, func() error {
			var err error
			ref, err = s.gw.Refund(ctx, p.GatewayCaptureID, nil)
			return err
		})
		if err != nil {
			return nil, err
		}
		refundID = ref.RefundID
	}

	now := time.Now().UTC()
	from := p.Status
	p.Status = StatusRefunded
	p.RefundID = refundID
	p.RefundReason = reason
	p.RefundedAt = &now
	p.UpdatedAt = now

	ok, err := s.store.CompareAndSwap(ctx, p, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.CodeConflict,
			"payment %s was modified concurrently", paymentID)
	}

	if p.IsEscrow {
		if err := s.contracts.MarkEscrowRefunded(ctx, p.ContractID); err != nil {
			return nil, err
		}
	}

	s.notifier.Notify(ctx, notify.Event{
		Type:       notify.EventPaymentRefunded,
		Recipients: []string{p.PayerID, p.RecipientID},
		ContractID: p.ContractID,
		PaymentID:  p.ID,
		Data:       map[string]string{"reason": reason},
	})
	s.audit(ctx, actorID, "payment.refund", audit.SeverityCritical, p, from, p.Status)
	return p, nil
}

// markFailed parks a payment whose capture was terminally rejected.
func (s *Service) markFailed(ctx context.Context, p *Payment) {
	from := p.Status
	p.Status = StatusFailed
	p.UpdatedAt = time.Now().UTC()
	if _, err := s.store.CompareAndSwap(ctx, p, from); err != nil {
		slog.Warn("mark payment failed", "payment", p.ID, "err", err)
		return
	}
	s.audit(ctx, "system", "payment.capture_failed", audit.SeverityMedium, p, from, p.Status)
}

func (s *Service) audit(ctx context.Context, actor, action string, sev audit.Severity, p *Payment, from, to Status) {
	before, _ := json.Marshal(map[string]string{"status": string(from)})
	after, _ := json.Marshal(map[string]string{"status": string(to)})
	s.trail.Record(ctx, audit.Entry{
		PerformedBy: actor,
		Action:      action,
		Category:    "payment",
		Severity:    sev,
		TargetModel: "Payment",
		TargetID:    p.ID,
		Before:      before,
		After:       after,
	})
}
