package referral

import "time"

// Status of a referral edge.
type Status string

const (
	// StatusRegistered — the referred user signed up but has not
	// completed a contract yet.
	StatusRegistered Status = "registered"
	// StatusCompleted — the referred user completed their first contract.
	StatusCompleted Status = "completed"
	// StatusCredited — the referrer's reward for this referral was
	// granted.
	StatusCredited Status = "credited"
)

// Referral is one directed edge from a referrer to a referred user.
// A user is referred at most once (unique on ReferredUserID); the
// referrer↔referred relation is two one-directional foreign keys plus an
// index, never an in-memory back-pointer graph.
type Referral struct {
	ID                       string     `json:"id"`
	ReferrerID               string     `json:"referrerId"`
	ReferredUserID           string     `json:"referredUserId"`
	Status                   Status     `json:"status"`
	FirstContractCompletedAt *time.Time `json:"firstContractCompletedAt,omitempty"`
	RewardGranted            bool       `json:"rewardGranted"`
	RewardType               RewardType `json:"rewardType,omitempty"`
	RewardTier               int        `json:"rewardTier,omitempty"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
}
