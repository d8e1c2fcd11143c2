// Package sla computes escalation deadlines and overdue status for
// conversations awaiting a human. Overdue is always derived from the current
// time, never stored, so it cannot go stale.
package sla

import (
	"time"

	"github.com/nkarimi/automsg-engine/internal/model"
)

// Deadline computes the SLA deadline for a conversation that entered a
// human-owed state at enteredAt.
func Deadline(enteredAt time.Time, window time.Duration) time.Time {
	return enteredAt.Add(window)
}

// IsOverdue reports whether the conversation has gone unanswered past its
// deadline. A conversation back in active/resolved is never overdue, even if
// an old deadline has passed.
func IsOverdue(c model.Conversation, now time.Time) bool {
	if !c.Status.AwaitingHuman() {
		return false
	}
	return c.SLADeadline != nil && c.SLADeadline.Before(now)
}

// Remaining returns the time left before the deadline; zero or negative means
// overdue or no deadline applies.
func Remaining(c model.Conversation, now time.Time) time.Duration {
	if !c.Status.AwaitingHuman() || c.SLADeadline == nil {
		return 0
	}
	return c.SLADeadline.Sub(now)
}
