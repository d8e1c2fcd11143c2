// Package guard is the admission-control gate every automated outbound send
// must pass. Evaluate is a pure function of (settings snapshot, customer
// state, now) so the invariants are testable without wall-clock sleeps; it is
// run again at fire time because settings and exclusions change between
// scheduling and firing.
package guard

import (
	"context"
	"time"

	"github.com/nkarimi/automsg-engine/internal/model"
)

type DenyReason string

const (
	DenyDisabled  DenyReason = "disabled"
	DenyExcluded  DenyReason = "excluded"
	DenyTopicCap  DenyReason = "topic_cap"
	DenyCooldown  DenyReason = "cooldown"
	DenyDNDWindow DenyReason = "dnd_window"
)

func (r DenyReason) String() string { return string(r) }

// Decision is a normal outcome, not an error. Denials carry a reason code for
// observability and are never silently dropped.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision            { return Decision{Allowed: true} }
func deny(r DenyReason) Decision { return Decision{Reason: r} }

// State is what the guard needs to know about one (customer, topic, phone) at
// evaluation time.
type State struct {
	Excluded   bool       // matching, non-expired excluded_numbers entry
	TopicCount int        // history entries for (customer, topic)
	LastSentAt *time.Time // last history entry for the customer, any topic
}

// Evaluate runs the admission checks in a fixed order: enabled, exclusion,
// per-topic cap, per-customer cooldown, DND window.
func Evaluate(s model.AutoMessageSettings, st State, now time.Time) Decision {
	if !s.Enabled {
		return deny(DenyDisabled)
	}
	if st.Excluded {
		return deny(DenyExcluded)
	}
	if st.TopicCount >= s.MaxMessagesPerTopic {
		return deny(DenyTopicCap)
	}
	if st.LastSentAt != nil && now.Sub(*st.LastSentAt) < s.Cooldown() {
		return deny(DenyCooldown)
	}
	if inDNDWindow(s.DNDStartHour, s.DNDEndHour, now.Hour()) {
		return deny(DenyDNDWindow)
	}
	return allow()
}

// inDNDWindow checks hour membership in [start, end). start > end means the
// window wraps midnight (start=21,end=9 blocks 21:00-08:59); start == end is
// an empty window.
func inDNDWindow(start, end, hour int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// StateSource is the read side the guard loads its state from. Implemented by
// the MySQL repositories; faked in tests.
type StateSource interface {
	CountTopicMessages(ctx context.Context, customerID int64, topicID string) (int, error)
	LastMessageAt(ctx context.Context, customerID int64) (*time.Time, error)
	IsExcluded(ctx context.Context, phone string, now time.Time) (bool, error)
}

// LoadState gathers the guard state for one prospective send.
func LoadState(ctx context.Context, src StateSource, customerID int64, topicID, phone string, now time.Time) (State, error) {
	excluded, err := src.IsExcluded(ctx, phone, now)
	if err != nil {
		return State{}, err
	}
	count, err := src.CountTopicMessages(ctx, customerID, topicID)
	if err != nil {
		return State{}, err
	}
	last, err := src.LastMessageAt(ctx, customerID)
	if err != nil {
		return State{}, err
	}
	return State{Excluded: excluded, TopicCount: count, LastSentAt: last}, nil
}
