package contract

import (
	"time"

	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/money"
)

// EscrowStatus tracks the escrow hold attached to a contract. It mirrors
// the owning Payment's lifecycle without duplicating its ledger.
type EscrowStatus string

const (
	EscrowNone     EscrowStatus = ""
	EscrowPending  EscrowStatus = "pending"
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
)

// Escrow describes the funds withheld for a contract.
type Escrow struct {
	Enabled bool         `json:"enabled"`
	Amount  money.Money  `json:"amount"`
	Status  EscrowStatus `json:"status"`
}

// Extension is one accepted extension of a contract's end date.
type Extension struct {
	Days        int          `json:"days"`
	Amount      *money.Money `json:"amount,omitempty"` // price delta, if any
	RequestedBy string       `json:"requestedBy"`
	RequestedAt time.Time    `json:"requestedAt"`
}

// Contract is one agreement between a requester and a single worker.
// Multi-worker jobs create one Contract per worker, each holding its own
// allocation, so one worker's cancellation does not affect the others.
type Contract struct {
	ID          string `json:"id"`
	JobID       string `json:"jobId"`
	RequesterID string `json:"requesterId"`
	WorkerID    string `json:"workerId"`

	BasePrice  money.Money `json:"basePrice"`
	Commission money.Money `json:"commission"`
	TotalPrice money.Money `json:"totalPrice"` // basePrice + commission, always

	Status Status `json:"status"`
	// PreviousStatus stages the pre-change status while a price change is
	// pending counterpart acceptance; rejecting the change restores it.
	PreviousStatus Status `json:"previousStatus,omitempty"`

	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`

	Escrow Escrow `json:"escrow"`

	PairingCode        string    `json:"-"` // short-lived shared secret, never serialized out
	PairingExpiry      time.Time `json:"pairingExpiry"`
	RequesterConfirmed bool      `json:"requesterConfirmed"`
	WorkerConfirmed    bool      `json:"workerConfirmed"`

	WorkCompletedAt *time.Time `json:"workCompletedAt,omitempty"`

	// Extension staging: a requested extension is held here until the
	// counterpart responds.
	PendingExtensionDays int          `json:"pendingExtensionDays,omitempty"`
	PendingNewPrice      *money.Money `json:"pendingNewPrice,omitempty"`
	ExtensionRequestedBy string       `json:"extensionRequestedBy,omitempty"`
	ExtensionCount       int          `json:"extensionCount"`
	Extensions           []Extension  `json:"extensions,omitempty"`

	// Multi-worker allocation (nil for single-worker jobs).
	AllocatedAmount *money.Money `json:"allocatedAmount,omitempty"`
	PercentOfBudget *money.Rate  `json:"percentageOfBudget,omitempty"`

	ReminderSentAt   *time.Time `json:"reminderSentAt,omitempty"`
	OverdueFlaggedAt *time.Time `json:"overdueFlaggedAt,omitempty"`

	// Deleted is a soft-delete marker; contracts are never physically
	// removed (audit retention).
	Deleted bool `json:"deleted"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate enforces the contract's structural invariants: totalPrice
// equals basePrice + commission, all amounts share one currency and are
// non-negative.
func (c *Contract) Validate() error {
	for _, m := range []money.Money{c.BasePrice, c.Commission, c.TotalPrice} {
		if err := m.Validate(); err != nil {
			return apperr.Wrap(apperr.CodeValidation, err, "contract %s", c.ID)
		}
	}
	sum, err := c.BasePrice.Add(c.Commission)
	if err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "contract %s", c.ID)
	}
	if sum != c.TotalPrice {
		return apperr.New(apperr.CodeValidation,
			"contract %s: totalPrice %d != basePrice %d + commission %d",
			c.ID, c.TotalPrice.Amount, c.BasePrice.Amount, c.Commission.Amount)
	}
	return nil
}

// PartyOf reports whether userID is a party to the contract.
func (c *Contract) PartyOf(userID string) bool {
	return userID == c.RequesterID || userID == c.WorkerID
}

// Counterpart returns the other party's user id, or "" when userID is not
// a party.
func (c *Contract) Counterpart(userID string) string {
	switch userID {
	case c.RequesterID:
		return c.WorkerID
	case c.WorkerID:
		return c.RequesterID
	}
	return ""
}
