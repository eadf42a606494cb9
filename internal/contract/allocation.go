package contract

import (
	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/money"
)

// Allocation is one worker's share of a multi-worker job budget, given
// either as a fixed amount or as a percentage of the job price.
type Allocation struct {
	WorkerID string
	Amount   *money.Money // exact share, or
	Percent  *money.Rate  // percentage of the job price
}

// ResolveAllocations turns a per-worker allocation table into concrete
// amounts and enforces the budget invariant:
// sum(allocatedAmount) <= jobPrice.
//
// Percentage shares are rounded half-up to the minor unit, matching
// commission rounding. Called before every allocation write — under the
// job lock — so concurrent selections cannot oversell the budget.
func ResolveAllocations(jobPrice money.Money, allocs []Allocation) (map[string]money.Money, error) {
	if err := jobPrice.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, "job price")
	}
	if len(allocs) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "at least one allocation is required")
	}

	resolved := make(map[string]money.Money, len(allocs))
	var total int64
	for _, a := range allocs {
		if a.WorkerID == "" {
			return nil, apperr.New(apperr.CodeValidation, "allocation missing worker id")
		}
		if _, dup := resolved[a.WorkerID]; dup {
			return nil, apperr.New(apperr.CodeValidation, "duplicate allocation for worker %s", a.WorkerID)
		}

		var share money.Money
		switch {
		case a.Amount != nil && a.Percent != nil:
			return nil, apperr.New(apperr.CodeValidation,
				"worker %s: allocation must set amount or percent, not both", a.WorkerID)
		case a.Amount != nil:
			if err := a.Amount.Validate(); err != nil {
				return nil, apperr.Wrap(apperr.CodeValidation, err, "worker %s", a.WorkerID)
			}
			if a.Amount.Currency != jobPrice.Currency {
				return nil, apperr.Wrap(apperr.CodeValidation, money.ErrCurrencyMismatch,
					"worker %s", a.WorkerID)
			}
			share = *a.Amount
		case a.Percent != nil:
			if err := a.Percent.Validate(); err != nil {
				return nil, apperr.Wrap(apperr.CodeValidation, err, "worker %s", a.WorkerID)
			}
			share = a.Percent.ApplyTo(jobPrice)
		default:
			return nil, apperr.New(apperr.CodeValidation,
				"worker %s: allocation must set amount or percent", a.WorkerID)
		}

		resolved[a.WorkerID] = share
		total += share.Amount
	}

	if total > jobPrice.Amount {
		return nil, apperr.New(apperr.CodeAllocationExceeded,
			"allocations total %d exceeds job price %d", total, jobPrice.Amount)
	}
	return resolved, nil
}
