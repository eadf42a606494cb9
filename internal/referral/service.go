package referral

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskpay/escrow-service/internal/audit"
	"taskpay/escrow-service/internal/commission"
	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/lock"
	"taskpay/escrow-service/internal/membership"
	"taskpay/escrow-service/internal/notify"
)

const grantLockTTL = 10 * time.Second

// Store persists referral edges.
type Store interface {
	Create(ctx context.Context, r *Referral) error
	// GetOpenByReferredUser returns the referred user's referral in
	// registered status, or a NOT_FOUND error.
	GetOpenByReferredUser(ctx context.Context, referredUserID string) (*Referral, error)
	// CountByReferrer returns (total, completedOrCredited) for a referrer.
	CountByReferrer(ctx context.Context, referrerID string) (total, completed int, err error)
	// MarkCompleted transitions registered → completed with the reward
	// decision, guarded on the registered status. Returns false when the
	// row was already past registered.
	MarkCompleted(ctx context.Context, r *Referral) (bool, error)
	// MarkRewardGranted records that the referrer's reward was applied.
	MarkRewardGranted(ctx context.Context, id string) error
}

// Service applies referral rewards exactly once per tier.
type Service struct {
	store    Store
	members  membership.Service
	locker   lock.Locker
	notifier notify.Notifier
	trail    *audit.Trail
}

// NewService returns a configured Service.
func NewService(store Store, members membership.Service, locker lock.Locker,
	notifier notify.Notifier, trail *audit.Trail) *Service {
	return &Service{
		store:    store,
		members:  members,
		locker:   locker,
		notifier: notifier,
		trail:    trail,
	}
}

// Register records a new referral edge. A referrer holds at most
// MaxActiveReferrals; a user can be referred only once (the store's
// unique constraint backs the check against races).
func (s *Service) Register(ctx context.Context, referrerID, referredUserID string) (*Referral, error) {
	if referrerID == "" || referredUserID == "" {
		return nil, apperr.New(apperr.CodeValidation, "referrerId and referredUserId are required")
	}
	if referrerID == referredUserID {
		return nil, apperr.New(apperr.CodeValidation, "a user cannot refer themselves")
	}

	total, _, err := s.store.CountByReferrer(ctx, referrerID)
	if err != nil {
		return nil, err
	}
	if total >= MaxActiveReferrals {
		return nil, apperr.New(apperr.CodeReferralCapReached,
			"referrer %s already has %d referrals", referrerID, total)
	}

	now := time.Now().UTC()
	r := &Referral{
		ID:             uuid.NewString(),
		ReferrerID:     referrerID,
		ReferredUserID: referredUserID,
		Status:         StatusRegistered,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}

	s.audit(ctx, referrerID, "referral.register", audit.SeverityLow, r)
	return r, nil
}

// OnContractCompleted handles a user's contract completion. Users with
// no open referral row are a silent no-op, so the payment ledger calls
// this for both parties of every settled contract.
//
// The count-then-grant sequence is serialized per referrer: two referred
// users completing their first contracts concurrently must not read the
// same completed-count and double-grant a tier.
func (s *Service) OnContractCompleted(ctx context.Context, userID string) error {
	r, err := s.store.GetOpenByReferredUser(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil
		}
		return err
	}

	unlock, ok, err := s.locker.TryLock(ctx, "referral:"+r.ReferrerID, grantLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		// Another completion for the same referrer is being applied;
		// surface a conflict so the caller's retry re-reads the count.
		return apperr.New(apperr.CodeConflict,
			"referrer %s grant in progress", r.ReferrerID)
	}
	defer unlock(ctx)

	_, completedBefore, err := s.store.CountByReferrer(ctx, r.ReferrerID)
	if err != nil {
		return err
	}
	reward := TierFor(completedBefore, commission.ReferralRate)

	now := time.Now().UTC()
	r.Status = StatusCompleted
	r.FirstContractCompletedAt = &now
	r.RewardTier = reward.Tier
	r.RewardType = reward.Type
	r.UpdatedAt = now

	applied, err := s.store.MarkCompleted(ctx, r)
	if err != nil {
		return err
	}
	if !applied {
		return nil // already handled by an earlier completion event
	}

	switch reward.Type {
	case RewardFreeContracts:
		if err := s.members.GrantFreeContracts(ctx, r.ReferrerID, reward.FreeContracts); err != nil {
			return fmt.Errorf("grant tier %d: %w", reward.Tier, err)
		}
	case RewardReducedRate:
		if err := s.members.SetCommissionRate(ctx, r.ReferrerID, reward.Rate); err != nil {
			return fmt.Errorf("grant tier %d: %w", reward.Tier, err)
		}
	default:
		return nil
	}

	r.RewardGranted = true
	if err := s.store.MarkRewardGranted(ctx, r.ID); err != nil {
		return err
	}

	s.notifier.Notify(ctx, notify.Event{
		Type:       notify.EventReferralReward,
		Recipients: []string{r.ReferrerID},
		Data: map[string]string{
			"tier": fmt.Sprintf("%d", reward.Tier),
			"type": string(reward.Type),
		},
	})
	s.audit(ctx, "system", "referral.reward_granted", audit.SeverityMedium, r)
	return nil
}

func (s *Service) audit(ctx context.Context, actor, action string, sev audit.Severity, r *Referral) {
	after, _ := json.Marshal(map[string]string{
		"status": string(r.Status),
		"tier":   fmt.Sprintf("%d", r.RewardTier),
	})
	s.trail.Record(ctx, audit.Entry{
		PerformedBy: actor,
		Action:      action,
		Category:    "referral",
		Severity:    sev,
		TargetModel: "Referral",
		TargetID:    r.ID,
		After:       after,
	})
}
