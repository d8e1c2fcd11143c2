package model

import (
	"strings"
	"time"
)

// EventKind identifies the domain events the surrounding CRM reports into the
// engine via POST /v1/events (plus the internal sweep).
type EventKind string

const (
	EventCustomerMessage    EventKind = "customer_message"
	EventOwnerReply         EventKind = "owner_reply"
	EventPriceShared        EventKind = "price_shared"
	EventOrderStatus        EventKind = "order_status"
	EventTicketStatus       EventKind = "ticket_status"
	EventAISignal           EventKind = "ai_signal"
	EventHumanTakeover      EventKind = "human_takeover"
	EventConversationStatus EventKind = "conversation_status"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventCustomerMessage, EventOwnerReply, EventPriceShared, EventOrderStatus,
		EventTicketStatus, EventAISignal, EventHumanTakeover, EventConversationStatus:
		return true
	default:
		return false
	}
}

// ParseEventKind normalizes input. Returns (value, true) if valid.
func ParseEventKind(s string) (EventKind, bool) {
	k := EventKind(strings.ToLower(strings.TrimSpace(s)))
	return k, k.Valid()
}

// Order/ticket sub-statuses carried by the corresponding event kinds.
const (
	OrderConfirmed       = "confirmed"
	OrderPaymentReceived = "payment_received"
	OrderCompleted       = "completed"

	TicketCreated  = "created"
	TicketUpdated  = "updated"
	TicketResolved = "resolved"
)

// Event is the descriptor handed to the trigger evaluator.
type Event struct {
	Kind           EventKind         `json:"kind"`
	CustomerID     int64             `json:"customer_id"`
	ConversationID string            `json:"conversation_id"`
	TopicID        string            `json:"topic_id"` // order id, ticket id, or conversation id
	Phone          string            `json:"phone"`
	OccurredAt     time.Time         `json:"occurred_at"`
	Status         string            `json:"status,omitempty"`       // order/ticket/conversation sub-status
	AIUncertain    bool              `json:"ai_uncertain,omitempty"` // set on ai_signal events
	Variables      map[string]string `json:"variables,omitempty"`    // template variables from the caller
}
