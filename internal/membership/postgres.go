package membership

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"taskpay/escrow-service/internal/commission"
	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/money"
)

// PGService reads and writes the membership columns of the users table.
// User management itself (registration, profiles) lives outside this
// engine; only these columns are the durable contract.
type PGService struct {
	pool *pgxpool.Pool
}

// NewPGService returns a configured PGService.
func NewPGService(pool *pgxpool.Pool) *PGService {
	return &PGService{pool: pool}
}

func (s *PGService) Profile(ctx context.Context, userID string) (commission.Profile, error) {
	var (
		p    commission.Profile
		tier string
		rate int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT membership_tier, free_contracts_remaining,
		        current_commission_rate_bps,
		        (SELECT COUNT(*) FROM contracts
		          WHERE requester_id = u.id
		            AND created_at >= date_trunc('month', NOW()))
		 FROM users u WHERE id = $1`,
		userID,
	).Scan(&tier, &p.FreeContractsRemaining, &rate, &p.ContractsThisMonth)
	if err != nil {
		return commission.Profile{}, apperr.Wrap(apperr.CodeNotFound, err, "user %s", userID)
	}
	p.Tier = commission.Tier(tier)
	p.CurrentRate = money.Rate(rate)
	return p, nil
}

func (s *PGService) IsVerified(ctx context.Context, userID string) (bool, error) {
	var verified bool
	err := s.pool.QueryRow(ctx,
		`SELECT identity_verified FROM users WHERE id = $1`, userID,
	).Scan(&verified)
	if err != nil {
		return false, apperr.Wrap(apperr.CodeNotFound, err, "user %s", userID)
	}
	return verified, nil
}

func (s *PGService) ConsumeFreeContract(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET free_contracts_remaining = free_contracts_remaining - 1
		 WHERE id = $1 AND free_contracts_remaining > 0`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("consume free contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeConflict, "user %s has no free contracts left", userID)
	}
	return nil
}

func (s *PGService) GrantFreeContracts(ctx context.Context, userID string, n int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET free_contracts_remaining = free_contracts_remaining + $2
		 WHERE id = $1`,
		userID, n,
	)
	if err != nil {
		return fmt.Errorf("grant free contracts: %w", err)
	}
	return nil
}

func (s *PGService) SetCommissionRate(ctx context.Context, userID string, rate money.Rate) error {
	if err := rate.Validate(); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "commission rate")
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET current_commission_rate_bps = $2 WHERE id = $1`,
		userID, int64(rate),
	)
	if err != nil {
		return fmt.Errorf("set commission rate: %w", err)
	}
	return nil
}
