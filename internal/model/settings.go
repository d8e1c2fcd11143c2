package model

import (
	"fmt"
	"time"
)

// Templates holds one message template per trigger type. A fixed struct (not a
// map) so a missing slot is an explicit empty field, checkable exhaustively.
type Templates struct {
	NoResponse          string `json:"no_response" db:"tpl_no_response"`
	PartialConversation string `json:"partial_conversation" db:"tpl_partial_conversation"`
	PriceShared         string `json:"price_shared" db:"tpl_price_shared"`
	OrderConfirmed      string `json:"order_confirmed" db:"tpl_order_confirmed"`
	PaymentReceived     string `json:"payment_received" db:"tpl_payment_received"`
	OrderCompleted      string `json:"order_completed" db:"tpl_order_completed"`
	TicketCreated       string `json:"ticket_created" db:"tpl_ticket_created"`
	TicketUpdated       string `json:"ticket_updated" db:"tpl_ticket_updated"`
	TicketResolved      string `json:"ticket_resolved" db:"tpl_ticket_resolved"`
	AIUncertain         string `json:"ai_uncertain" db:"tpl_ai_uncertain"`
	HumanTakeover       string `json:"human_takeover" db:"tpl_human_takeover"`
}

// ByTrigger returns the template slot for a trigger type.
func (t Templates) ByTrigger(tr TriggerType) (string, bool) {
	switch tr {
	case TriggerNoResponse:
		return t.NoResponse, true
	case TriggerPartialConversation:
		return t.PartialConversation, true
	case TriggerPriceShared:
		return t.PriceShared, true
	case TriggerOrderConfirmed:
		return t.OrderConfirmed, true
	case TriggerPaymentReceived:
		return t.PaymentReceived, true
	case TriggerOrderCompleted:
		return t.OrderCompleted, true
	case TriggerTicketCreated:
		return t.TicketCreated, true
	case TriggerTicketUpdated:
		return t.TicketUpdated, true
	case TriggerTicketResolved:
		return t.TicketResolved, true
	case TriggerAIUncertain:
		return t.AIUncertain, true
	case TriggerHumanTakeover:
		return t.HumanTakeover, true
	default:
		return "", false
	}
}

// SetByTrigger writes one template slot. Returns false for an unknown trigger.
func (t *Templates) SetByTrigger(tr TriggerType, tpl string) bool {
	switch tr {
	case TriggerNoResponse:
		t.NoResponse = tpl
	case TriggerPartialConversation:
		t.PartialConversation = tpl
	case TriggerPriceShared:
		t.PriceShared = tpl
	case TriggerOrderConfirmed:
		t.OrderConfirmed = tpl
	case TriggerPaymentReceived:
		t.PaymentReceived = tpl
	case TriggerOrderCompleted:
		t.OrderCompleted = tpl
	case TriggerTicketCreated:
		t.TicketCreated = tpl
	case TriggerTicketUpdated:
		t.TicketUpdated = tpl
	case TriggerTicketResolved:
		t.TicketResolved = tpl
	case TriggerAIUncertain:
		t.AIUncertain = tpl
	case TriggerHumanTakeover:
		t.HumanTakeover = tpl
	default:
		return false
	}
	return true
}

// AutoMessageSettings is the process-wide admission configuration. One row in
// MySQL; readers always see a consistent snapshot (atomic pointer swap in
// settings.Store).
type AutoMessageSettings struct {
	MaxMessagesPerTopic int       `json:"max_messages_per_topic" db:"max_messages_per_topic"`
	CooldownHours       int       `json:"cooldown_hours" db:"cooldown_hours"`
	DNDStartHour        int       `json:"dnd_start_hour" db:"dnd_start_hour"`
	DNDEndHour          int       `json:"dnd_end_hour" db:"dnd_end_hour"`
	NoResponseDays      int       `json:"no_response_days" db:"no_response_days"`
	Enabled             bool      `json:"enabled" db:"enabled"`
	Templates           Templates `json:"templates" db:"-"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// Validate rejects bad settings at update time, not at evaluation time.
func (s AutoMessageSettings) Validate() error {
	if s.MaxMessagesPerTopic < 1 {
		return fmt.Errorf("max_messages_per_topic must be >= 1, got %d", s.MaxMessagesPerTopic)
	}
	if s.CooldownHours < 0 {
		return fmt.Errorf("cooldown_hours must be >= 0, got %d", s.CooldownHours)
	}
	if s.DNDStartHour < 0 || s.DNDStartHour > 23 {
		return fmt.Errorf("dnd_start_hour out of range [0,23]: %d", s.DNDStartHour)
	}
	if s.DNDEndHour < 0 || s.DNDEndHour > 23 {
		return fmt.Errorf("dnd_end_hour out of range [0,23]: %d", s.DNDEndHour)
	}
	if s.NoResponseDays < 1 {
		return fmt.Errorf("no_response_days must be >= 1, got %d", s.NoResponseDays)
	}
	return nil
}

// Cooldown returns cooldown_hours as a duration.
func (s AutoMessageSettings) Cooldown() time.Duration {
	return time.Duration(s.CooldownHours) * time.Hour
}

// NoResponseWindow returns no_response_days as a duration.
func (s AutoMessageSettings) NoResponseWindow() time.Duration {
	return time.Duration(s.NoResponseDays) * 24 * time.Hour
}
