package escrow

import (
	"context"
	"log"
	"time"

	"taskpay/escrow-service/internal/lock"
	"taskpay/escrow-service/internal/notify"
	"taskpay/escrow-service/internal/payment"
)

// AutoReleaseActor is stamped as escrowReleasedBy on scheduled releases.
// It is the ledger's actor constant: the release actor check admits only
// it and the contract's requester.
const AutoReleaseActor = payment.AutoReleaseActor

const (
	sweepBatchSize = 500
	claimTTL       = 5 * time.Minute
)

// Candidate is one contract a sweep selected.
type Candidate struct {
	ContractID      string
	PaymentID       string
	RequesterID     string
	WorkerID        string
	WorkCompletedAt time.Time
	EndDate         time.Time
}

// Store runs the sweep selection queries.
type Store interface {
	// DueForAutoRelease selects waiting_approval contracts with a held
	// escrow whose work completed at or before cutoff.
	DueForAutoRelease(ctx context.Context, cutoff time.Time, limit int) ([]Candidate, error)

	// DueForReminder selects contracts whose work completed inside
	// (from, to] and that have not been reminded yet.
	DueForReminder(ctx context.Context, from, to time.Time, limit int) ([]Candidate, error)

	// MarkReminderSent stamps the reminder flag, guarded on it being
	// unset. Returns false when another sweep instance got there first.
	MarkReminderSent(ctx context.Context, contractID string, at time.Time) (bool, error)

	// DueOverdue selects in_progress contracts past their end date that
	// have not been flagged yet.
	DueOverdue(ctx context.Context, now time.Time, limit int) ([]Candidate, error)

	// MarkOverdueFlagged stamps the overdue flag, guarded on it being
	// unset.
	MarkOverdueFlagged(ctx context.Context, contractID string, at time.Time) (bool, error)
}

// Payments is the slice of the payment ledger the sweeper drives.
type Payments interface {
	ReleaseEscrow(ctx context.Context, paymentID, releasedBy string) (*payment.Payment, error)
}

// Sweeper runs the recurring sweeps. Safe to run from multiple
// instances: release is idempotent, reminder/overdue stamps are guarded
// updates, and a per-contract claim lock keeps overlapping runs from
// duplicating work inside one window.
type Sweeper struct {
	store    Store
	payments Payments
	locker   lock.Locker
	notifier notify.Notifier
}

// NewSweeper returns a configured Sweeper.
func NewSweeper(store Store, payments Payments, locker lock.Locker, notifier notify.Notifier) *Sweeper {
	return &Sweeper{store: store, payments: payments, locker: locker, notifier: notifier}
}

// AutoRelease releases escrow for every contract whose approval grace
// window elapsed before now. Runs hourly.
func (s *Sweeper) AutoRelease(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-GraceWindow)
	candidates, err := s.store.DueForAutoRelease(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return err
	}

	var released int
	for _, c := range candidates {
		unlock, ok, err := s.locker.TryLock(ctx, "sweep:release:"+c.ContractID, claimTTL)
		if err != nil {
			return err
		}
		if !ok {
			continue // another instance is handling this contract
		}

		// ReleaseEscrow is idempotent and notifies both parties exactly
		// once (only the CAS winner sends).
		if _, err := s.payments.ReleaseEscrow(ctx, c.PaymentID, AutoReleaseActor); err != nil {
			log.Printf("[escrow] auto-release %s failed: %v — continuing", c.ContractID, err)
			unlock(ctx)
			continue
		}
		released++
		unlock(ctx)
	}

	if len(candidates) > 0 {
		log.Printf("[escrow] auto-release sweep done — selected=%d released=%d", len(candidates), released)
	}
	return nil
}

// Remind sends a single reminder to contracts inside the day-5-to-day-7
// window. Runs every 6 hours; the reminder-sent stamp prevents duplicate
// notifications across overlapping runs.
func (s *Sweeper) Remind(ctx context.Context, now time.Time) error {
	candidates, err := s.store.DueForReminder(ctx, now.Add(-GraceWindow), now.Add(-ReminderAfter), sweepBatchSize)
	if err != nil {
		return err
	}

	var sent int
	for _, c := range candidates {
		ok, err := s.store.MarkReminderSent(ctx, c.ContractID, now)
		if err != nil {
			return err
		}
		if !ok {
			continue // another instance already reminded
		}
		s.notifier.Notify(ctx, notify.Event{
			Type:       notify.EventReleaseReminder,
			Recipients: []string{c.RequesterID},
			ContractID: c.ContractID,
			PaymentID:  c.PaymentID,
		})
		sent++
	}

	if len(candidates) > 0 {
		log.Printf("[escrow] reminder sweep done — selected=%d sent=%d", len(candidates), sent)
	}
	return nil
}

// Overdue flags in_progress contracts past their end date and notifies
// both sides. It never changes contract status — a human or the dispute
// flow must act.
func (s *Sweeper) Overdue(ctx context.Context, now time.Time) error {
	candidates, err := s.store.DueOverdue(ctx, now, sweepBatchSize)
	if err != nil {
		return err
	}

	var flagged int
	for _, c := range candidates {
		ok, err := s.store.MarkOverdueFlagged(ctx, c.ContractID, now)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		s.notifier.Notify(ctx, notify.Event{
			Type:       notify.EventContractOverdue,
			Recipients: []string{c.RequesterID, c.WorkerID},
			ContractID: c.ContractID,
		})
		flagged++
	}

	if len(candidates) > 0 {
		log.Printf("[escrow] overdue sweep done — selected=%d flagged=%d", len(candidates), flagged)
	}
	return nil
}
