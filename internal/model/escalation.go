package model

import (
	"strings"
	"time"
)

type EscalationPriority string

const (
	PriorityLow    EscalationPriority = "low"
	PriorityMedium EscalationPriority = "medium"
	PriorityHigh   EscalationPriority = "high"
)

func (p EscalationPriority) String() string { return string(p) }

func (p EscalationPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationReviewed EscalationStatus = "reviewed"
	EscalationResolved EscalationStatus = "resolved"
)

func (s EscalationStatus) String() string { return string(s) }

func (s EscalationStatus) Valid() bool {
	return s == EscalationPending || s == EscalationReviewed || s == EscalationResolved
}

// ParseEscalationStatus normalizes input. Returns (value, true) if valid.
func ParseEscalationStatus(s string) (EscalationStatus, bool) {
	st := EscalationStatus(strings.ToLower(strings.TrimSpace(s)))
	return st, st.Valid()
}

// EscalationRecord marks a conversation that needs human attention. Status has
// no enforced ordering: operators may move it between any of the three values.
type EscalationRecord struct {
	ID             string             `db:"id" json:"id"`
	CustomerID     int64              `db:"customer_id" json:"customer_id"`
	ConversationID string             `db:"conversation_id" json:"conversation_id"`
	Reason         string             `db:"reason" json:"reason"`
	Priority       EscalationPriority `db:"priority" json:"priority"`
	Status         EscalationStatus   `db:"status" json:"status"`
	MessageContent string             `db:"message_content" json:"message_content"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}
