// Package money defines the exact-arithmetic value types used by the
// settlement engine: Money (integer minor units + currency) and Rate
// (a percentage with two decimal places, stored as basis points).
//
// All arithmetic is integer — no floating point anywhere in the ledger.
package money

import (
	"errors"
	"fmt"
)

// ErrInvalidAmount is returned when an amount is negative where a
// non-negative amount is required.
var ErrInvalidAmount = errors.New("invalid amount: must not be negative")

// ErrCurrencyMismatch is returned when two Money values of different
// currencies are combined.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// Money is an amount in the smallest unit of its currency (e.g. cents
// for USD). Using integers keeps ledger arithmetic exact.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"` // ISO 4217, e.g. "USD"
}

// New returns a validated Money value.
func New(amount int64, currency string) (Money, error) {
	m := Money{Amount: amount, Currency: currency}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Validate rejects negative amounts and empty currency codes.
func (m Money) Validate() error {
	if m.Amount < 0 {
		return ErrInvalidAmount
	}
	if m.Currency == "" {
		return fmt.Errorf("money: currency code is required")
	}
	return nil
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// Add returns m + other. Fails with ErrCurrencyMismatch when the
// currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub returns m - other. Fails with ErrCurrencyMismatch when the
// currencies differ and ErrInvalidAmount when the result would be negative.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	if m.Amount < other.Amount {
		return Money{}, ErrInvalidAmount
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}

// Rate is a percentage with two decimal places, stored as basis points:
// 500 = 5.00%.
type Rate int64

// Percent converts a whole-percent value to a Rate (5 → 5.00%).
func Percent(p int64) Rate { return Rate(p * 100) }

// Validate rejects negative rates and rates above 100%.
func (r Rate) Validate() error {
	if r < 0 || r > 10000 {
		return fmt.Errorf("rate out of range: %d bps", int64(r))
	}
	return nil
}

// ApplyTo returns round(m × r), rounding half-up to the currency's minor
// unit. The result is never negative.
func (r Rate) ApplyTo(m Money) Money {
	// half-up: add half the divisor before truncating
	amount := (m.Amount*int64(r) + 5000) / 10000
	if amount < 0 {
		amount = 0
	}
	return Money{Amount: amount, Currency: m.Currency}
}

func (r Rate) String() string {
	return fmt.Sprintf("%d.%02d%%", int64(r)/100, int64(r)%100)
}
