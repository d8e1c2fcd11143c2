package model

import "time"

type ScheduledStatus string

const (
	ScheduledPending   ScheduledStatus = "pending"
	ScheduledSending   ScheduledStatus = "sending" // claimed by the firing loop
	ScheduledSent      ScheduledStatus = "sent"
	ScheduledCancelled ScheduledStatus = "cancelled"
	ScheduledFailed    ScheduledStatus = "failed" // transport failure, not retried here
)

func (s ScheduledStatus) String() string { return string(s) }

func (s ScheduledStatus) Valid() bool {
	switch s {
	case ScheduledPending, ScheduledSending, ScheduledSent, ScheduledCancelled, ScheduledFailed:
		return true
	default:
		return false
	}
}

// ScheduledMessage is a rendered auto-message waiting for its due time.
// Immutable once it leaves pending/sending.
type ScheduledMessage struct {
	ID             string          `db:"id" json:"id"`
	CustomerID     int64           `db:"customer_id" json:"customer_id"`
	ConversationID string          `db:"conversation_id" json:"conversation_id"`
	TopicID        string          `db:"topic_id" json:"topic_id"`
	Phone          string          `db:"phone" json:"phone"`
	Trigger        TriggerType     `db:"trigger_type" json:"trigger_type"`
	Message        string          `db:"message" json:"message"`
	ScheduledFor   time.Time       `db:"scheduled_for" json:"scheduled_for"`
	Status         ScheduledStatus `db:"status" json:"status"`
	StatusReason   string          `db:"status_reason" json:"status_reason,omitempty"` // deny reason / transport error
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// HistoryEntry is the append-only record of a message actually sent.
type HistoryEntry struct {
	ID         string      `db:"id" json:"id"`
	CustomerID int64       `db:"customer_id" json:"customer_id"`
	TopicID    string      `db:"topic_id" json:"topic_id"`
	Phone      string      `db:"phone" json:"phone"`
	Trigger    TriggerType `db:"trigger_type" json:"trigger_type"`
	Message    string      `db:"message" json:"message"`
	SentAt     time.Time   `db:"sent_at" json:"sent_at"`
}
