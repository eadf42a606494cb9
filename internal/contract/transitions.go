// Package contract owns the contract lifecycle: the status state machine,
// multi-worker budget allocation, pairing confirmation and extensions.
//
// Valid status graph:
//
//	DRAFT ──► PENDING ──► ACCEPTED ──► IN_PROGRESS ──► WAITING_APPROVAL ──► COMPLETED
//	  │           │            │                              │                  ▲
//	  │           │            │                              ▼                  │
//	  └───────────┴────────────┴──► CANCELLED ◄─────────── DISPUTED ────────────┘
//
// COMPLETED and CANCELLED are terminal states. Cancellation is only
// reachable before work starts; once escrow is held, the dispute/refund
// path is the only way out.
package contract

import "fmt"

// Status values mirror the contract_status enum in PostgreSQL.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPending         Status = "pending"
	StatusAccepted        Status = "accepted"
	StatusInProgress      Status = "in_progress"
	StatusWaitingApproval Status = "waiting_approval"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
	StatusDisputed        Status = "disputed"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusDraft:           {StatusPending, StatusCancelled},
	StatusPending:         {StatusAccepted, StatusCancelled},
	StatusAccepted:        {StatusInProgress, StatusCancelled},
	StatusInProgress:      {StatusWaitingApproval},
	StatusWaitingApproval: {StatusCompleted, StatusDisputed},
	StatusDisputed:        {StatusCompleted, StatusCancelled},
	// COMPLETED and CANCELLED are terminal — no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusDraft, StatusPending, StatusAccepted, StatusInProgress,
		StatusWaitingApproval, StatusCompleted, StatusCancelled, StatusDisputed:
		return st, nil
	}
	return "", fmt.Errorf("unknown contract status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by
// the state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state — no outgoing transitions
	}
	for _, s := range allowed {
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

// IsCancellable returns true while explicit cancellation is still
// permitted — i.e. before work has started.
func IsCancellable(s Status) bool {
	return s == StatusDraft || s == StatusPending || s == StatusAccepted
}
