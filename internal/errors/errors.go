// Package errors provides structured, machine-readable errors for the
// settlement engine. Every user-visible failure carries a stable Code plus
// a human-readable message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unexpected internal error.
	CodeUnknown Code = "UNKNOWN"

	// CodeValidation rejects bad input (negative amount, mismatched
	// currency, malformed request). No state change.
	CodeValidation Code = "VALIDATION"

	// CodeInvalidTransition rejects a state-machine transition outside the
	// guarded set. No state change.
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// CodeNotFound — the referenced record does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeConflict — lost a race on a guarded, non-idempotent transition.
	CodeConflict Code = "CONFLICT"

	// CodeGatewayUnavailable — transient external failure, retried with
	// backoff by the caller.
	CodeGatewayUnavailable Code = "GATEWAY_UNAVAILABLE"

	// CodeGatewayRejected — terminal external failure (e.g. insufficient
	// funds); surfaced immediately.
	CodeGatewayRejected Code = "GATEWAY_REJECTED"

	// CodePaymentPendingRetry — bounded retries on a transient gateway
	// failure were exhausted; the payment stays pending.
	CodePaymentPendingRetry Code = "PAYMENT_PENDING_RETRY"

	// CodeEscrowHeld — the operation is blocked while funds are held in
	// escrow (e.g. direct cancellation; use the dispute/refund path).
	CodeEscrowHeld Code = "ESCROW_HELD"

	// CodePairingExpired — the pairing window elapsed before both parties
	// confirmed; the contract is cancelled.
	CodePairingExpired Code = "PAIRING_EXPIRED"

	// CodeAllocationExceeded — a job's worker allocations exceed its price.
	CodeAllocationExceeded Code = "ALLOCATION_EXCEEDED"

	// CodeReferralCapReached — the referrer already has the maximum number
	// of active referrals.
	CodeReferralCapReached Code = "REFERRAL_CAP_REACHED"
)

// Error is a domain error with a stable code.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error with the given code and message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// GetCode extracts the code from any error, defaulting to CodeUnknown.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool { return GetCode(err) == code }

// HTTPStatus maps a domain code to an HTTP status for the API layer.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeValidation, CodeAllocationExceeded, CodeReferralCapReached:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidTransition, CodeConflict, CodeEscrowHeld, CodePairingExpired:
		return http.StatusConflict
	case CodeGatewayRejected:
		return http.StatusUnprocessableEntity
	case CodeGatewayUnavailable, CodePaymentPendingRetry:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
