// Package payment is the ledger of money movements: order intents,
// captures, escrow holds and releases, refunds. Rows are append-only in
// spirit — a payment is never deleted and its amount is immutable after
// capture.
//
// Valid status graph:
//
//	PENDING ──► HELD_ESCROW ──► COMPLETED
//	   │              │
//	   │              └──► REFUNDED
//	   ├──► COMPLETED          ▲
//	   ├──► REFUNDED ──────────┘
//	   └──► FAILED
//
// COMPLETED, REFUNDED and FAILED are terminal; transitions are monotonic.
package payment

import (
	"fmt"
	"time"

	"taskpay/escrow-service/internal/money"
)

// Status values mirror the payment_status enum in PostgreSQL.
type Status string

const (
	StatusPending    Status = "pending"
	StatusHeldEscrow Status = "held_escrow"
	StatusCompleted  Status = "completed"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

var validTransitions = map[Status][]Status{
	StatusPending:    {StatusHeldEscrow, StatusCompleted, StatusRefunded, StatusFailed},
	StatusHeldEscrow: {StatusCompleted, StatusRefunded},
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusHeldEscrow, StatusCompleted, StatusRefunded, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted.
func IsTransitionAllowed(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for statuses with no outgoing transitions.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}

// Payment is one money-movement record tied to exactly one contract.
type Payment struct {
	ID          string      `json:"id"`
	ContractID  string      `json:"contractId"`
	PayerID     string      `json:"payerId"`
	RecipientID string      `json:"recipientId"`
	Amount      money.Money `json:"amount"`
	Status      Status      `json:"status"`

	// GatewayOrderID is the idempotency key: exactly one successful
	// capture per order id, ever.
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayCaptureID string `json:"gatewayCaptureId,omitempty"`

	IsEscrow    bool        `json:"isEscrow"`
	PlatformFee money.Money `json:"platformFee"`

	EscrowReleasedAt *time.Time `json:"escrowReleasedAt,omitempty"`
	EscrowReleasedBy string     `json:"escrowReleasedBy,omitempty"`

	RefundID     string     `json:"refundId,omitempty"`
	RefundReason string     `json:"refundReason,omitempty"`
	RefundedAt   *time.Time `json:"refundedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
