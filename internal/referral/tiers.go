// Package referral tracks referral chains and applies reward tiers
// exactly once per referrer.
package referral

import "taskpay/escrow-service/internal/money"

// MaxActiveReferrals caps how many referrals a referrer may hold.
const MaxActiveReferrals = 3

// RewardType identifies what a completed referral earned the referrer.
type RewardType string

const (
	RewardNone          RewardType = ""
	RewardFreeContracts RewardType = "free_contracts"
	RewardReducedRate   RewardType = "reduced_rate"
)

// Reward is the grant decided for one completed referral.
type Reward struct {
	Tier          int
	Type          RewardType
	FreeContracts int
	Rate          money.Rate // set for RewardReducedRate
}

// TierFor decides the reward from the referrer's count of previously
// completed referrals (i.e. before the current one is marked). The tiers
// fire in strict order:
//
//	1st completed referral → 2 free contract credits
//	2nd → 1 free contract credit
//	3rd → permanent reduced commission rate
//
// Counts past the cap return no reward; registration already rejects a
// 4th referral, so this is belt only.
func TierFor(completedBefore int, reducedRate money.Rate) Reward {
	switch completedBefore {
	case 0:
		return Reward{Tier: 1, Type: RewardFreeContracts, FreeContracts: 2}
	case 1:
		return Reward{Tier: 2, Type: RewardFreeContracts, FreeContracts: 1}
	case 2:
		return Reward{Tier: 3, Type: RewardReducedRate, Rate: reducedRate}
	}
	return Reward{Type: RewardNone}
}
