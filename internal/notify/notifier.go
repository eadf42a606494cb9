// Package notify delivers contract and payment events to the notification
// service. Delivery is fire-and-forget: a failed send is logged and never
// rolls back the financial transition that produced it.
package notify

import "context"

// Event types published by the engine. Message bodies are composed by the
// notification service; the engine only names what happened.
const (
	EventContractAccepted   = "CONTRACT_ACCEPTED"
	EventPairingCodeIssued  = "CONTRACT_PAIRING_CODE"
	EventContractCancelled  = "CONTRACT_CANCELLED"
	EventContractDisputed   = "CONTRACT_DISPUTED"
	EventContractOverdue    = "CONTRACT_OVERDUE"
	EventEscrowHeld         = "ESCROW_HELD"
	EventEscrowReleased     = "ESCROW_RELEASED"
	EventReleaseReminder    = "ESCROW_RELEASE_REMINDER"
	EventPaymentRefunded    = "PAYMENT_REFUNDED"
	EventExtensionRequested = "EXTENSION_REQUESTED"
	EventExtensionResolved  = "EXTENSION_RESOLVED"
	EventReferralReward     = "REFERRAL_REWARD"
)

// Event is one notification to one or more recipients.
type Event struct {
	Type       string            `json:"type"`
	Recipients []string          `json:"recipients"`
	ContractID string            `json:"contractId,omitempty"`
	PaymentID  string            `json:"paymentId,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
}

// Notifier delivers events. Implementations must not return delivery
// failures to the caller — log and move on.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}
