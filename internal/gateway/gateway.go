// Package gateway wraps external payment providers behind one interface:
// create an order, capture it, refund it. The rest of the engine never
// branches on provider identity.
//
// Failures split into two kinds: unavailable (transient — callers retry
// with backoff) and rejected (terminal — surfaced to the user).
package gateway

import (
	"context"

	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/money"
)

// CreateOrderRequest opens a payment order with the provider.
type CreateOrderRequest struct {
	Amount      money.Money
	Description string
	ContractRef string // our contract id, carried as the provider reference
}

// Order is a provider order awaiting payer approval.
type Order struct {
	OrderID     string
	ApprovalURL string
}

// PayerInfo is the resolved payer identity from a capture. Providers that
// return either a bare id or an embedded payer object are normalized here
// once, at the adapter boundary.
type PayerInfo struct {
	PayerID string
	Email   string
}

// Capture is a finalized, held transaction.
type Capture struct {
	CaptureID string
	Payer     PayerInfo
	Amount    money.Money
}

// Refund is a confirmed reversal.
type Refund struct {
	RefundID string
}

// Gateway is the uniform provider contract.
type Gateway interface {
	// CreateOrder opens an order and returns the payer approval URL.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)

	// CaptureOrder converts an approved order into a held transaction.
	CaptureOrder(ctx context.Context, orderID string) (Capture, error)

	// Refund reverses a capture, fully when amount is nil.
	Refund(ctx context.Context, captureID string, amount *money.Money) (Refund, error)
}

// Unavailable marks err as a transient provider failure.
func Unavailable(err error, msg string) error {
	return apperr.Wrap(apperr.CodeGatewayUnavailable, err, "%s", msg)
}

// Rejected marks a terminal provider failure (e.g. insufficient funds).
func Rejected(msg string) error {
	return apperr.New(apperr.CodeGatewayRejected, "%s", msg)
}

// IsUnavailable reports whether err is transient and worth retrying.
func IsUnavailable(err error) bool {
	return apperr.Is(err, apperr.CodeGatewayUnavailable)
}
