// Package commission computes the platform fee for a contract.
//
// The calculator is pure — it reads the payer's membership profile and the
// contract's base price and returns a quote. Side effects (decrementing a
// free-contract credit) are reported in the quote and persisted by the
// caller.
package commission

import (
	"fmt"

	"taskpay/escrow-service/internal/money"
)

// DefaultRate is the platform commission applied when no discount wins.
const DefaultRate = money.Rate(500) // 5.00%

// ReferralRate is the permanently reduced rate granted at referral tier 3.
const ReferralRate = money.Rate(300) // 3.00%

// Tier is the payer's membership level.
type Tier string

const (
	TierBasic Tier = "basic"
	TierPlus  Tier = "plus"
	TierPro   Tier = "pro"
)

// tierDiscount describes a membership discount: the first Quota contracts
// in a calendar month are charged at Rate instead of the default.
type tierDiscount struct {
	Rate  money.Rate
	Quota int
}

var tierDiscounts = map[Tier]tierDiscount{
	TierPlus: {Rate: 400, Quota: 5},  // 4.00% on first 5 monthly contracts
	TierPro:  {Rate: 300, Quota: 10}, // 3.00% on first 10 monthly contracts
}

// Profile is the payer state the calculator needs, read from the
// membership service.
type Profile struct {
	Tier                   Tier
	FreeContractsRemaining int
	// CurrentRate is a permanent per-user override (e.g. set by referral
	// tier 3). Zero means "no override".
	CurrentRate money.Rate
	// ContractsThisMonth counts contracts already opened this calendar
	// month, used to decide whether a tier discount still applies.
	ContractsThisMonth int
}

// Quote is the result of a commission calculation.
type Quote struct {
	Commission         money.Money
	EffectiveRate      money.Rate
	ConsumedFreeCredit bool
}

// Calculate returns the commission owed on basePrice for the given payer.
//
//  1. A positive free-contract counter zeroes the commission and consumes
//     one credit.
//  2. Otherwise the effective rate is the lowest of: the platform default,
//     the membership tier discount (while within its monthly quota), and
//     the payer's permanent override rate.
//  3. Rounding is half-up to the currency's minor unit; never negative.
func Calculate(p Profile, basePrice money.Money) (Quote, error) {
	if err := basePrice.Validate(); err != nil {
		return Quote{}, fmt.Errorf("commission: base price: %w", err)
	}
	if err := p.CurrentRate.Validate(); err != nil {
		return Quote{}, fmt.Errorf("commission: current rate: %w", err)
	}

	if p.FreeContractsRemaining > 0 {
		return Quote{
			Commission:         money.Money{Amount: 0, Currency: basePrice.Currency},
			EffectiveRate:      0,
			ConsumedFreeCredit: true,
		}, nil
	}

	rate := DefaultRate
	if d, ok := tierDiscounts[p.Tier]; ok && p.ContractsThisMonth < d.Quota && d.Rate < rate {
		rate = d.Rate
	}
	if p.CurrentRate > 0 && p.CurrentRate < rate {
		rate = p.CurrentRate
	}

	return Quote{
		Commission:    rate.ApplyTo(basePrice),
		EffectiveRate: rate,
	}, nil
}
