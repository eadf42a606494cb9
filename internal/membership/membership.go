// Package membership is the boundary to the user/membership service: the
// engine reads tier, free-contract credits and commission-rate state, and
// writes back consumed credits and referral-granted rates.
package membership

import (
	"context"

	"taskpay/escrow-service/internal/commission"
	"taskpay/escrow-service/internal/money"
)

// Service is the collaborator contract. The production implementation
// reads the users table; tests substitute fakes.
type Service interface {
	// Profile returns the commission-relevant state of a user.
	Profile(ctx context.Context, userID string) (commission.Profile, error)

	// IsVerified reports whether the user passed identity verification.
	IsVerified(ctx context.Context, userID string) (bool, error)

	// ConsumeFreeContract decrements the user's free-contract counter.
	ConsumeFreeContract(ctx context.Context, userID string) error

	// GrantFreeContracts increments the user's free-contract counter by n.
	GrantFreeContracts(ctx context.Context, userID string, n int) error

	// SetCommissionRate permanently overrides the user's commission rate.
	SetCommissionRate(ctx context.Context, userID string, rate money.Rate) error
}
