package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperr "taskpay/escrow-service/internal/errors"
)

// PGStore persists referrals in PostgreSQL. The referrals table carries a
// unique constraint on referred_user_id: a user is referred at most once,
// even under racing registrations.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a configured PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, r *Referral) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO referrals
		   (id, referrer_id, referred_user_id, status, created_at, updated_at)
		 SELECT $1, $2, $3, $4, $5, $6
		 WHERE NOT EXISTS (
		   SELECT 1 FROM referrals WHERE referred_user_id = $3
		 )`,
		r.ID, r.ReferrerID, r.ReferredUserID, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert referral: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeConflict, "user %s was already referred", r.ReferredUserID)
	}
	return nil
}

func (s *PGStore) GetOpenByReferredUser(ctx context.Context, referredUserID string) (*Referral, error) {
	var (
		r      Referral
		status string
		rtype  string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, referrer_id, referred_user_id, status,
		        first_contract_completed_at, reward_granted, reward_type,
		        reward_tier, created_at, updated_at
		 FROM referrals
		 WHERE referred_user_id = $1 AND status = 'registered'`,
		referredUserID,
	).Scan(&r.ID, &r.ReferrerID, &r.ReferredUserID, &status,
		&r.FirstContractCompletedAt, &r.RewardGranted, &rtype,
		&r.RewardTier, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "no open referral for user %s", referredUserID)
	}
	if err != nil {
		return nil, fmt.Errorf("get referral: %w", err)
	}
	r.Status = Status(status)
	r.RewardType = RewardType(rtype)
	return &r, nil
}

func (s *PGStore) CountByReferrer(ctx context.Context, referrerID string) (int, int, error) {
	var total, completed int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status IN ('completed', 'credited'))
		 FROM referrals WHERE referrer_id = $1`,
		referrerID,
	).Scan(&total, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("count referrals: %w", err)
	}
	return total, completed, nil
}

// MarkCompleted is guarded on the registered status so a duplicate
// completion event cannot re-apply the same referral.
func (s *PGStore) MarkCompleted(ctx context.Context, r *Referral) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE referrals
		 SET status = $2,
		     first_contract_completed_at = $3,
		     reward_type = $4,
		     reward_tier = $5,
		     updated_at = $6
		 WHERE id = $1 AND status = 'registered'`,
		r.ID, string(r.Status), r.FirstContractCompletedAt,
		string(r.RewardType), r.RewardTier, r.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("mark referral completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) MarkRewardGranted(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE referrals
		 SET reward_granted = true, status = 'credited', updated_at = NOW()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark reward granted: %w", err)
	}
	return nil
}
