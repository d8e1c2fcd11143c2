package model

import "time"

type ConversationStatus string

const (
	ConversationActive          ConversationStatus = "active"
	ConversationWaitingForOwner ConversationStatus = "waiting_for_owner"
	ConversationEscalated       ConversationStatus = "escalated"
	ConversationResolved        ConversationStatus = "resolved"
)

func (s ConversationStatus) String() string { return string(s) }

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationActive, ConversationWaitingForOwner, ConversationEscalated, ConversationResolved:
		return true
	default:
		return false
	}
}

// AwaitingHuman reports whether the conversation is in a state covered by the
// SLA deadline.
func (s ConversationStatus) AwaitingHuman() bool {
	return s == ConversationWaitingForOwner || s == ConversationEscalated
}

type MessageDirection string

const (
	FromCustomer MessageDirection = "customer"
	FromOwner    MessageDirection = "owner"
)

// Conversation is the engine's view of a chat thread: enough state to drive
// the no-response sweep and the SLA monitor. The CRM owns the full thread.
type Conversation struct {
	ID              string             `db:"id" json:"id"`
	CustomerID      int64              `db:"customer_id" json:"customer_id"`
	Phone           string             `db:"phone" json:"phone"`
	Status          ConversationStatus `db:"status" json:"status"`
	LastMessageAt   time.Time          `db:"last_message_at" json:"last_message_at"`
	LastMessageFrom MessageDirection   `db:"last_message_from" json:"last_message_from"`
	SLADeadline     *time.Time         `db:"sla_deadline" json:"sla_deadline,omitempty"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}
