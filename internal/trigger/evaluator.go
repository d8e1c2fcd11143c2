// Package trigger classifies domain events into the auto-messaging trigger
// taxonomy. Classification is pure; admission control and scheduling happen in
// the engine.
package trigger

import (
	"time"

	"github.com/nkarimi/automsg-engine/internal/model"
)

// Evaluate inspects one event and returns zero or one trigger request.
// Delayed triggers (no_response, partial_conversation, price_shared) are due
// after the configured follow-up window, counted from the event's own
// timestamp; all others are due immediately.
func Evaluate(ev model.Event, s model.AutoMessageSettings, now time.Time) (model.TriggerRequest, bool) {
	tr, ok := classify(ev)
	if !ok {
		return model.TriggerRequest{}, false
	}

	due := now
	if tr.Delayed() {
		occurred := ev.OccurredAt
		if occurred.IsZero() {
			occurred = now
		}
		due = occurred.Add(s.NoResponseWindow())
		if due.Before(now) {
			due = now
		}
	}

	return model.TriggerRequest{
		CustomerID:     ev.CustomerID,
		ConversationID: ev.ConversationID,
		TopicID:        topicOf(ev),
		Phone:          ev.Phone,
		Trigger:        tr,
		Variables:      ev.Variables,
		DueAt:          due,
	}, true
}

func classify(ev model.Event) (model.TriggerType, bool) {
	switch ev.Kind {
	case model.EventCustomerMessage:
		return model.TriggerNoResponse, true
	case model.EventOwnerReply:
		// Replies never produce a message; they cancel pending follow-ups.
		return "", false
	case model.EventPriceShared:
		return model.TriggerPriceShared, true
	case model.EventOrderStatus:
		switch ev.Status {
		case model.OrderConfirmed:
			return model.TriggerOrderConfirmed, true
		case model.OrderPaymentReceived:
			return model.TriggerPaymentReceived, true
		case model.OrderCompleted:
			return model.TriggerOrderCompleted, true
		}
		return "", false
	case model.EventTicketStatus:
		switch ev.Status {
		case model.TicketCreated:
			return model.TriggerTicketCreated, true
		case model.TicketUpdated:
			return model.TriggerTicketUpdated, true
		case model.TicketResolved:
			return model.TriggerTicketResolved, true
		}
		return "", false
	case model.EventAISignal:
		if ev.AIUncertain {
			return model.TriggerAIUncertain, true
		}
		return "", false
	case model.EventHumanTakeover:
		return model.TriggerHumanTakeover, true
	default:
		return "", false
	}
}

// topicOf picks the logical thread used for per-topic message caps: the
// order/ticket id when the event carries one, the conversation otherwise.
func topicOf(ev model.Event) string {
	if ev.TopicID != "" {
		return ev.TopicID
	}
	return ev.ConversationID
}

// EvaluateStalled classifies a conversation found by the periodic sweep. A
// customer message left unanswered becomes no_response; a thread where the
// customer went silent after the owner's last message becomes
// partial_conversation. Fires only once the follow-up window has elapsed.
func EvaluateStalled(c model.Conversation, s model.AutoMessageSettings, now time.Time) (model.TriggerRequest, bool) {
	if c.LastMessageAt.IsZero() || now.Sub(c.LastMessageAt) < s.NoResponseWindow() {
		return model.TriggerRequest{}, false
	}

	tr := model.TriggerPartialConversation
	if c.LastMessageFrom == model.FromCustomer {
		tr = model.TriggerNoResponse
	}

	return model.TriggerRequest{
		CustomerID:     c.CustomerID,
		ConversationID: c.ID,
		TopicID:        c.ID,
		Phone:          c.Phone,
		Trigger:        tr,
		DueAt:          now,
	}, true
}

// Escalates reports whether the trigger also demands human attention, and at
// what priority.
func Escalates(tr model.TriggerType) (model.EscalationPriority, bool) {
	switch tr {
	case model.TriggerHumanTakeover:
		return model.PriorityHigh, true
	case model.TriggerAIUncertain:
		return model.PriorityMedium, true
	default:
		return "", false
	}
}
