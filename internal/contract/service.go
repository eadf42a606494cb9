package contract

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskpay/escrow-service/internal/audit"
	"taskpay/escrow-service/internal/commission"
	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/lock"
	"taskpay/escrow-service/internal/membership"
	"taskpay/escrow-service/internal/money"
	"taskpay/escrow-service/internal/notify"
)

// DefaultPairingTTL is how long both parties have to confirm the pairing
// code before the contract is force-cancelled.
const DefaultPairingTTL = 48 * time.Hour

const allocLockTTL = 10 * time.Second

// Service encapsulates all contract lifecycle logic.
// It is transport-agnostic: used by the HTTP layer and the payment ledger.
type Service struct {
	store      Store
	members    membership.Service
	locker     lock.Locker
	notifier   notify.Notifier
	trail      *audit.Trail
	pairingTTL time.Duration
}

// NewService returns a configured Service.
func NewService(store Store, members membership.Service, locker lock.Locker,
	notifier notify.Notifier, trail *audit.Trail) *Service {
	return &Service{
		store:      store,
		members:    members,
		locker:     locker,
		notifier:   notifier,
		trail:      trail,
		pairingTTL: DefaultPairingTTL,
	}
}

// Get returns a contract by id.
func (s *Service) Get(ctx context.Context, id string) (*Contract, error) {
	return s.store.Get(ctx, id)
}

// ListByJob returns all contracts created for a job.
func (s *Service) ListByJob(ctx context.Context, jobID string) ([]*Contract, error) {
	return s.store.ListByJob(ctx, jobID)
}

// ─── Creation ────────────────────────────────────────────────────────────────

// CreateInput describes a new single-worker contract.
type CreateInput struct {
	JobID       string
	RequesterID string
	WorkerID    string
	BasePrice   money.Money
	StartDate   time.Time
	EndDate     time.Time
	Escrow      bool

	// Set for multi-worker jobs by AllocateWorkers.
	AllocatedAmount *money.Money
	PercentOfBudget *money.Rate
}

// Create quotes the requester's commission and inserts a draft contract.
// A consumed free-contract credit is decremented on the membership side
// before the contract is persisted.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Contract, error) {
	if in.RequesterID == "" || in.WorkerID == "" || in.JobID == "" {
		return nil, apperr.New(apperr.CodeValidation, "jobId, requesterId and workerId are required")
	}
	if in.RequesterID == in.WorkerID {
		return nil, apperr.New(apperr.CodeValidation, "requester and worker must differ")
	}
	if err := in.BasePrice.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, "base price")
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, apperr.New(apperr.CodeValidation, "endDate before startDate")
	}

	profile, err := s.members.Profile(ctx, in.RequesterID)
	if err != nil {
		return nil, err
	}
	quote, err := commission.Calculate(profile, in.BasePrice)
	if err != nil {
		return nil, err
	}
	if quote.ConsumedFreeCredit {
		if err := s.members.ConsumeFreeContract(ctx, in.RequesterID); err != nil {
			return nil, err
		}
	}

	total, err := in.BasePrice.Add(quote.Commission)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, "total price")
	}

	now := time.Now().UTC()
	c := &Contract{
		ID:          uuid.NewString(),
		JobID:       in.JobID,
		RequesterID: in.RequesterID,
		WorkerID:    in.WorkerID,
		BasePrice:   in.BasePrice,
		Commission:  quote.Commission,
		TotalPrice:  total,
		Status:      StatusDraft,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Escrow: Escrow{
			Enabled: in.Escrow,
			Amount:  money.Money{Amount: 0, Currency: in.BasePrice.Currency},
		},
		AllocatedAmount: in.AllocatedAmount,
		PercentOfBudget: in.PercentOfBudget,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}

	s.audit(ctx, in.RequesterID, "contract.create", audit.SeverityLow, c, "", c.Status)
	return c, nil
}

// ─── Lifecycle transitions ───────────────────────────────────────────────────

// AcceptProposal moves draft → pending. Both parties must have passed
// identity verification; a fresh pairing code is issued with an expiry.
func (s *Service) AcceptProposal(ctx context.Context, id, actorID string, now time.Time) (*Contract, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.PartyOf(actorID) {
		return nil, apperr.New(apperr.CodeValidation, "user %s is not a party to contract %s", actorID, id)
	}
	if !IsTransitionAllowed(c.Status, StatusPending) {
		return nil, invalidTransition(c.Status, StatusPending)
	}

	for _, userID := range []string{c.RequesterID, c.WorkerID} {
		verified, err := s.members.IsVerified(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !verified {
			return nil, apperr.New(apperr.CodeValidation, "user %s has not completed identity verification", userID)
		}
	}

	from := c.Status
	c.Status = StatusPending
	c.PairingCode = newPairingCode()
	c.PairingExpiry = now.Add(s.pairingTTL)
	c.UpdatedAt = now

	if err := s.swap(ctx, c, from); err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, "contract.accept_proposal", audit.SeverityLow, c, from, c.Status)

	// The code travels only over the notification channel — it is never
	// serialized in API responses.
	data := map[string]string{"pairingExpiry": c.PairingExpiry.Format(time.RFC3339)}
	if c.Escrow.Enabled {
		data["pairingCode"] = c.PairingCode
	}
	s.notifyParties(ctx, c, notify.EventPairingCodeIssued, data)
	return c, nil
}

// ConfirmPairing records one party's pairing confirmation. When both
// parties have confirmed before expiry the contract moves to accepted.
// A confirmation after expiry force-cancels the contract.
//
// With escrow disabled the code is not checked: confirmation is an
// explicit dual sign-off instead.
func (s *Service) ConfirmPairing(ctx context.Context, id, actorID, code string, now time.Time) (*Contract, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.PartyOf(actorID) {
		return nil, apperr.New(apperr.CodeValidation, "user %s is not a party to contract %s", actorID, id)
	}
	if c.Status != StatusPending {
		return nil, invalidTransition(c.Status, StatusAccepted)
	}

	if now.After(c.PairingExpiry) {
		from := c.Status
		c.Status = StatusCancelled
		c.UpdatedAt = now
		if err := s.swap(ctx, c, from); err != nil {
			return nil, err
		}
		s.audit(ctx, actorID, "contract.pairing_expired", audit.SeverityMedium, c, from, c.Status)
		s.notifyParties(ctx, c, notify.EventContractCancelled, map[string]string{"reason": "pairing expired"})
		return nil, apperr.New(apperr.CodePairingExpired, "pairing window for contract %s elapsed", id)
	}

	if c.Escrow.Enabled && !strings.EqualFold(code, c.PairingCode) {
		return nil, apperr.New(apperr.CodeValidation, "pairing code does not match")
	}

	from := c.Status
	switch actorID {
	case c.RequesterID:
		c.RequesterConfirmed = true
	case c.WorkerID:
		c.WorkerConfirmed = true
	}
	if c.RequesterConfirmed && c.WorkerConfirmed {
		c.Status = StatusAccepted
	}
	c.UpdatedAt = now

	if err := s.swap(ctx, c, from); err != nil {
		return nil, err
	}
	if c.Status == StatusAccepted {
		s.audit(ctx, actorID, "contract.pairing_confirmed", audit.SeverityLow, c, from, c.Status)
		s.notifyParties(ctx, c, notify.EventContractAccepted, nil)
	}
	return c, nil
}

// StartWork moves accepted → in_progress. With escrow enabled the hold
// must be in place; without escrow the scheduled start date must have
// arrived.
func (s *Service) StartWork(ctx context.Context, id string, now time.Time) (*Contract, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsTransitionAllowed(c.Status, StatusInProgress) {
		return nil, invalidTransition(c.Status, StatusInProgress)
	}
	if c.Escrow.Enabled {
		if c.Escrow.Status != EscrowHeld {
			return nil, apperr.New(apperr.CodeValidation,
				"contract %s: escrow not held yet (status %q)", id, c.Escrow.Status)
		}
	} else if now.Before(c.StartDate) {
		return nil, apperr.New(apperr.CodeValidation,
			"contract %s: start date %s not reached", id, c.StartDate.Format(time.RFC3339))
	}

	from := c.Status
	c.Status = StatusInProgress
	c.UpdatedAt = now
	if err := s.swap(ctx, c, from); err != nil {
		return nil, err
	}
	s.audit(ctx, "system", "contract.start_work", audit.SeverityLow, c, from, c.Status)
	return c, nil
}

// MarkCompleted is the worker marking work done: in_progress →
// waiting_approval. The work-completed timestamp starts the auto-release
// grace window.
func (s *Service) MarkCompleted(ctx context.Context, id, workerID string, now time.Time) (*Contract, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if workerID != c.WorkerID {
		return nil, apperr.New(apperr.CodeValidation, "only the worker can mark work complete")
	}
	if !IsTransitionAllowed(c.Status, StatusWaitingApproval) {
		return nil, invalidTransition(c.Status, StatusWaitingApproval)
	}

	from := c.Status
	c.Status = StatusWaitingApproval
	c.WorkCompletedAt = &now
	c.UpdatedAt = now
	if err := s.swap(ctx, c, from); err != nil {
		return nil, err
	}
	s.audit(ctx, workerID, "contract.mark_completed", audit.SeverityLow, c, from, c.Status)
	return c, nil
}

// OpenDispute moves waiting_approval → disputed before auto-release fires.
func (s *Service) OpenDispute(ctx context.Context, id, actorID string) (*Contract, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.PartyOf(actorID) {
		return nil, apperr.New(apperr.CodeValidation, "user %s is not a party to contract %s", actorID, id)
	}
	if !IsTransitionAllowed(c.Status, StatusDisputed) {
		return nil, invalidTransition(c.Status, StatusDisputed)
	}

	from := c.Status
	c.Status = StatusDisputed
	c.UpdatedAt = time.Now().UTC()
	if err := s.swap(ctx, c, from); err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, "contract.open_dispute", audit.SeverityHigh, c, from, c.Status)
	s.notifyParties(ctx, c, notify.EventContractDisputed, nil)
	return c, nil
}

// Cancel ends a contract before work starts. Once escrow is held,
// cancellation must go through the dispute/refund path instead.
func (s *Service) Cancel(ctx context.Context, id, actorID string) (*Contract, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.PartyOf(actorID) {
		return nil, apperr.New(apperr.CodeValidation, "user %s is not a party to contract %s", actorID, id)
	}
	if c.Escrow.Status == EscrowHeld {
		return nil, apperr.New(apperr.CodeEscrowHeld,
			"contract %s has funds in escrow; open a dispute or refund instead", id)
	}
	if !IsCancellable(c.Status) {
		return nil, invalidTransition(c.Status, StatusCancelled)
	}

	from := c.Status
	c.Status = StatusCancelled
	c.UpdatedAt = time.Now().UTC()
	if err := s.swap(ctx, c, from); err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, "contract.cancel", audit.SeverityMedium, c, from, c.Status)
	s.notifyParties(ctx, c, notify.EventContractCancelled, nil)
	return c, nil
}

// SoftDelete marks a terminal contract deleted. The row is retained for
// audit.
func (s *Service) SoftDelete(ctx context.Context, id, actorID string) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !IsTerminal(c.Status) {
		return apperr.New(apperr.CodeInvalidTransition,
			"contract %s is %s; only completed or cancelled contracts can be deleted", id, c.Status)
	}
	c.Deleted = true
	c.UpdatedAt = time.Now().UTC()
	if err := s.swap(ctx, c, c.Status); err != nil {
		return err
	}
	s.audit(ctx, actorID, "contract.soft_delete", audit.SeverityHigh, c, c.Status, c.Status)
	return nil
}

// ─── Extensions ──────────────────────────────────────────────────────────────

// RequestExtension stages an end-date extension, optionally with a new
// total price. The change is held in pendingNewPrice/previousStatus until
// the counterpart responds; the status itself does not change.
func (s *Service) RequestExtension(ctx context.Context, id, actorID string, days int, newPrice *money.Money, now time.Time) (*Contract, error) {
	if days <= 0 {
		return nil, apperr.New(apperr.CodeValidation, "extension days must be positive")
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.PartyOf(actorID) {
		return nil, apperr.New(apperr.CodeValidation, "user %s is not a party to contract %s", actorID, id)
	}
	if c.Status != StatusInProgress {
		return nil, apperr.New(apperr.CodeInvalidTransition,
			"contract %s is %s; extensions require in_progress", id, c.Status)
	}
	if c.PendingExtensionDays > 0 {
		return nil, apperr.New(apperr.CodeConflict, "contract %s already has a pending extension", id)
	}
	if newPrice != nil {
		if err := newPrice.Validate(); err != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, err, "new price")
		}
		if newPrice.Currency != c.TotalPrice.Currency {
			return nil, apperr.Wrap(apperr.CodeValidation, money.ErrCurrencyMismatch, "new price")
		}
		if newPrice.Amount < c.TotalPrice.Amount {
			return nil, apperr.New(apperr.CodeValidation,
				"new price %d below current total %d", newPrice.Amount, c.TotalPrice.Amount)
		}
	}

	from := c.Status
	c.PendingExtensionDays = days
	c.PendingNewPrice = newPrice
	c.ExtensionRequestedBy = actorID
	c.PreviousStatus = from
	c.UpdatedAt = now
	if err := s.swap(ctx, c, from); err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, "contract.request_extension", audit.SeverityLow, c, from, c.Status)
	s.notifier.Notify(ctx, notify.Event{
		Type:       notify.EventExtensionRequested,
		Recipients: []string{c.Counterpart(actorID)},
		ContractID: c.ID,
		Data:       map[string]string{"days": fmt.Sprintf("%d", days)},
	})
	return c, nil
}

// RespondToExtension resolves a staged extension. On acceptance the end
// date moves and any price increase is returned as a delta the caller
// must escrow with a new hold — the captured amount of the original
// payment is immutable, so the delta is a separate payment. On rejection
// the staged change is discarded and previousStatus restored.
func (s *Service) RespondToExtension(ctx context.Context, id, actorID string, accept bool, now time.Time) (*Contract, *money.Money, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if c.PendingExtensionDays == 0 {
		return nil, nil, apperr.New(apperr.CodeValidation, "contract %s has no pending extension", id)
	}
	if actorID != c.Counterpart(c.ExtensionRequestedBy) {
		return nil, nil, apperr.New(apperr.CodeValidation,
			"only the counterpart may respond to the extension")
	}

	from := c.Status
	var delta *money.Money

	if accept {
		ext := Extension{
			Days:        c.PendingExtensionDays,
			RequestedBy: c.ExtensionRequestedBy,
			RequestedAt: now,
		}
		if c.PendingNewPrice != nil && c.PendingNewPrice.Amount > c.TotalPrice.Amount {
			d, err := c.PendingNewPrice.Sub(c.TotalPrice)
			if err != nil {
				return nil, nil, apperr.Wrap(apperr.CodeValidation, err, "price delta")
			}
			delta = &d
			ext.Amount = &d
			// The delta raises the worker's pay, not the platform fee.
			c.BasePrice, _ = c.BasePrice.Add(d)
			c.TotalPrice, _ = c.TotalPrice.Add(d)
		}
		c.EndDate = c.EndDate.AddDate(0, 0, c.PendingExtensionDays)
		c.ExtensionCount++
		c.Extensions = append(c.Extensions, ext)
	} else if c.PreviousStatus != "" {
		c.Status = c.PreviousStatus
	}

	c.PendingExtensionDays = 0
	c.PendingNewPrice = nil
	c.ExtensionRequestedBy = ""
	c.PreviousStatus = ""
	c.UpdatedAt = now

	if err := s.swap(ctx, c, from); err != nil {
		return nil, nil, err
	}
	s.audit(ctx, actorID, "contract.respond_extension", audit.SeverityLow, c, from, c.Status)
	s.notifyParties(ctx, c, notify.EventExtensionResolved,
		map[string]string{"accepted": fmt.Sprintf("%t", accept)})
	return c, delta, nil
}

// ─── Multi-worker allocation ─────────────────────────────────────────────────

// JobAllocation describes splitting one job's budget across K workers.
type JobAllocation struct {
	JobID       string
	RequesterID string
	JobPrice    money.Money
	StartDate   time.Time
	EndDate     time.Time
	Escrow      bool
	Allocations []Allocation
}

// AllocateWorkers creates one draft contract per selected worker under a
// job-scoped lock, so concurrent selection requests cannot oversell the
// budget. Existing non-cancelled allocations count against the job price.
func (s *Service) AllocateWorkers(ctx context.Context, in JobAllocation) ([]*Contract, error) {
	unlock, ok, err := s.locker.TryLock(ctx, "alloc:"+in.JobID, allocLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.CodeConflict, "job %s allocation is locked by another request", in.JobID)
	}
	defer unlock(ctx)

	shares, err := ResolveAllocations(in.JobPrice, in.Allocations)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.ListByJob(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	var committed int64
	for _, c := range existing {
		if c.Status == StatusCancelled || c.AllocatedAmount == nil {
			continue
		}
		committed += c.AllocatedAmount.Amount
		if _, dup := shares[c.WorkerID]; dup {
			return nil, apperr.New(apperr.CodeValidation,
				"worker %s already has a contract for job %s", c.WorkerID, in.JobID)
		}
	}
	var requested int64
	for _, share := range shares {
		requested += share.Amount
	}
	if committed+requested > in.JobPrice.Amount {
		return nil, apperr.New(apperr.CodeAllocationExceeded,
			"job %s: committed %d + requested %d exceeds price %d",
			in.JobID, committed, requested, in.JobPrice.Amount)
	}

	contracts := make([]*Contract, 0, len(shares))
	for _, a := range in.Allocations {
		share := shares[a.WorkerID]
		c, err := s.Create(ctx, CreateInput{
			JobID:           in.JobID,
			RequesterID:     in.RequesterID,
			WorkerID:        a.WorkerID,
			BasePrice:       share,
			StartDate:       in.StartDate,
			EndDate:         in.EndDate,
			Escrow:          in.Escrow,
			AllocatedAmount: &share,
			PercentOfBudget: a.Percent,
		})
		if err != nil {
			return contracts, err
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

// ─── Escrow hooks (driven by the payment ledger) ─────────────────────────────

// MarkEscrowHeld records the total amount currently held for the contract
// (the ledger sums its held payments, so extension deltas accumulate) and
// starts work when the contract was waiting on the hold. Idempotent: a
// re-drive with an unchanged total is a no-op, so duplicate capture
// confirmations do not re-notify.
func (s *Service) MarkEscrowHeld(ctx context.Context, id string, amount money.Money) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Escrow.Status == EscrowHeld && c.Escrow.Amount == amount && c.Status != StatusAccepted {
		return nil
	}
	from := c.Status
	c.Escrow.Status = EscrowHeld
	c.Escrow.Amount = amount
	if c.Status == StatusAccepted {
		c.Status = StatusInProgress
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.swap(ctx, c, from); err != nil {
		return err
	}
	s.audit(ctx, "system", "contract.escrow_held", audit.SeverityMedium, c, from, c.Status)
	s.notifyParties(ctx, c, notify.EventEscrowHeld, nil)
	return nil
}

// MarkEscrowReleased drives the contract to completed after its payment
// was released. Idempotent: an already-completed contract is a no-op.
func (s *Service) MarkEscrowReleased(ctx context.Context, id, releasedBy string) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == StatusCompleted && c.Escrow.Status == EscrowReleased {
		return nil // lost race with the other release path
	}
	if !IsTransitionAllowed(c.Status, StatusCompleted) {
		return invalidTransition(c.Status, StatusCompleted)
	}

	from := c.Status
	c.Status = StatusCompleted
	c.Escrow.Status = EscrowReleased
	c.UpdatedAt = time.Now().UTC()
	if err := s.swap(ctx, c, from); err != nil {
		return err
	}
	s.audit(ctx, releasedBy, "contract.escrow_released", audit.SeverityMedium, c, from, c.Status)
	return nil
}

// MarkEscrowRefunded records a refund and cancels the contract when the
// state machine allows it.
func (s *Service) MarkEscrowRefunded(ctx context.Context, id string) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	from := c.Status
	c.Escrow.Status = EscrowRefunded
	if IsTransitionAllowed(c.Status, StatusCancelled) {
		c.Status = StatusCancelled
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.swap(ctx, c, from); err != nil {
		return err
	}
	s.audit(ctx, "system", "contract.escrow_refunded", audit.SeverityHigh, c, from, c.Status)
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// swap persists c guarded on the status it was read at, translating a
// lost race into a conflict error.
func (s *Service) swap(ctx context.Context, c *Contract, expect Status) error {
	ok, err := s.store.CompareAndSwap(ctx, c, expect)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.CodeConflict,
			"contract %s was modified concurrently (expected status %s)", c.ID, expect)
	}
	return nil
}

func (s *Service) notifyParties(ctx context.Context, c *Contract, event string, data map[string]string) {
	s.notifier.Notify(ctx, notify.Event{
		Type:       event,
		Recipients: []string{c.RequesterID, c.WorkerID},
		ContractID: c.ID,
		Data:       data,
	})
}

func (s *Service) audit(ctx context.Context, actor, action string, sev audit.Severity, c *Contract, from, to Status) {
	before, _ := json.Marshal(map[string]string{"status": string(from)})
	after, _ := json.Marshal(map[string]string{"status": string(to)})
	s.trail.Record(ctx, audit.Entry{
		PerformedBy: actor,
		Action:      action,
		Category:    "contract",
		Severity:    sev,
		TargetModel: "Contract",
		TargetID:    c.ID,
		Before:      before,
		After:       after,
	})
}

func invalidTransition(from, to Status) error {
	return apperr.New(apperr.CodeInvalidTransition, "transition %s → %s is not allowed", from, to)
}

// newPairingCode returns a 6-character shared secret both parties must
// exchange before work begins.
func newPairingCode() string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		return strings.ToUpper(hex.EncodeToString([]byte(uuid.NewString()[:3])))
	}
	return strings.ToUpper(hex.EncodeToString(b[:]))
}
