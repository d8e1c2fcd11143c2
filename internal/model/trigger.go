package model

import (
	"strings"
	"time"
)

type TriggerType string

const (
	TriggerNoResponse          TriggerType = "no_response"
	TriggerPartialConversation TriggerType = "partial_conversation"
	TriggerPriceShared         TriggerType = "price_shared"
	TriggerOrderConfirmed      TriggerType = "order_confirmed"
	TriggerPaymentReceived     TriggerType = "payment_received"
	TriggerOrderCompleted      TriggerType = "order_completed"
	TriggerTicketCreated       TriggerType = "ticket_created"
	TriggerTicketUpdated       TriggerType = "ticket_updated"
	TriggerTicketResolved      TriggerType = "ticket_resolved"
	TriggerAIUncertain         TriggerType = "ai_uncertain"
	TriggerHumanTakeover       TriggerType = "human_takeover"
)

func (t TriggerType) String() string { return string(t) }

func (t TriggerType) Valid() bool {
	switch t {
	case TriggerNoResponse, TriggerPartialConversation, TriggerPriceShared,
		TriggerOrderConfirmed, TriggerPaymentReceived, TriggerOrderCompleted,
		TriggerTicketCreated, TriggerTicketUpdated, TriggerTicketResolved,
		TriggerAIUncertain, TriggerHumanTakeover:
		return true
	default:
		return false
	}
}

// ParseTriggerType normalizes input. Returns (value, true) if valid.
func ParseTriggerType(s string) (TriggerType, bool) {
	t := TriggerType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Delayed reports whether the trigger waits for the follow-up window
// (settings.no_response_days) instead of firing at once.
func (t TriggerType) Delayed() bool {
	switch t {
	case TriggerNoResponse, TriggerPartialConversation, TriggerPriceShared:
		return true
	default:
		return false
	}
}

// TriggerRequest is the evaluator's output: one classified trigger bound to a
// customer/conversation, carrying the template variables and the due time.
type TriggerRequest struct {
	CustomerID     int64
	ConversationID string
	TopicID        string
	Phone          string
	Trigger        TriggerType
	Variables      map[string]string
	DueAt          time.Time
}
