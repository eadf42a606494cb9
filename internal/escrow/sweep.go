// Package escrow automates stalled-contract handling: auto-release after
// the grace window, a single reminder before it closes, and overdue
// flagging. Sweeps take "now" as a parameter — no hidden wall-clock
// reads — so time-driven behavior is deterministically testable; the
// cron edge supplies time.Now at each tick.
package escrow

import "time"

const (
	// GraceWindow is how long after work completion the requester has to
	// approve before escrow is released automatically.
	GraceWindow = 7 * 24 * time.Hour

	// ReminderAfter opens the reminder window; it closes at GraceWindow.
	ReminderAfter = 5 * 24 * time.Hour
)

// ReleaseDue reports whether a contract whose work completed at the
// given time has exhausted the approval grace window.
func ReleaseDue(workCompletedAt, now time.Time) bool {
	return !workCompletedAt.IsZero() && now.Sub(workCompletedAt) >= GraceWindow
}

// InReminderWindow reports whether the contract sits between day 5 and
// day 7 since work completion — the single-reminder window.
func InReminderWindow(workCompletedAt, now time.Time) bool {
	if workCompletedAt.IsZero() {
		return false
	}
	since := now.Sub(workCompletedAt)
	return since >= ReminderAfter && since < GraceWindow
}

// IsOverdue reports whether an in-progress contract blew past its end
// date without completion.
func IsOverdue(endDate, now time.Time) bool {
	return !endDate.IsZero() && now.After(endDate)
}
