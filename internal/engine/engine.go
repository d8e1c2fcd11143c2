// Package engine wires the trigger evaluator, anti-spam guard, template store,
// and scheduler together: a domain event comes in, zero or one scheduled
// message (and possibly an escalation) comes out. Evaluation runs inline with
// the event and only enqueues work; the firing loop does the sending.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nkarimi/automsg-engine/internal/escalation"
	"github.com/nkarimi/automsg-engine/internal/guard"
	"github.com/nkarimi/automsg-engine/internal/logger"
	"github.com/nkarimi/automsg-engine/internal/metrics"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/repository"
	"github.com/nkarimi/automsg-engine/internal/sla"
	"github.com/nkarimi/automsg-engine/internal/template"
	"github.com/nkarimi/automsg-engine/internal/trigger"
	"github.com/nkarimi/automsg-engine/internal/util"
	"go.uber.org/zap"
)

var ErrUnknownEvent = errors.New("unknown event kind")

// Locks serializes admission per customer (see internal/lock).
type Locks interface {
	WithCustomer(ctx context.Context, customerID int64, fn func() error) error
}

// SettingsSource yields the current settings snapshot.
type SettingsSource interface {
	Snapshot() model.AutoMessageSettings
}

// Outcome reports what one event produced. Exactly one of the fields is
// normally set; a denied trigger is a normal outcome, not an error.
type Outcome struct {
	ScheduledID  string                  `json:"scheduled_id,omitempty"`
	DeniedReason guard.DenyReason        `json:"denied_reason,omitempty"`
	NoTemplate   bool                    `json:"no_template,omitempty"`
	Suppressed   bool                    `json:"suppressed,omitempty"` // duplicate of an active entry
	Escalation   *model.EscalationRecord `json:"escalation,omitempty"`
	Cancelled    int64                   `json:"cancelled_follow_ups,omitempty"`
}

type Engine struct {
	settings      SettingsSource
	scheduled     repository.ScheduledRepository
	conversations repository.ConversationsRepository
	guardSrc      guard.StateSource
	router        *escalation.Router
	locks         Locks
	slaWindow     time.Duration

	now func() time.Time
}

func New(
	settings SettingsSource,
	scheduled repository.ScheduledRepository,
	conversations repository.ConversationsRepository,
	guardSrc guard.StateSource,
	router *escalation.Router,
	locks Locks,
	slaWindow time.Duration,
) *Engine {
	if slaWindow <= 0 {
		slaWindow = 4 * time.Hour
	}
	return &Engine{
		settings:      settings,
		scheduled:     scheduled,
		conversations: conversations,
		guardSrc:      guardSrc,
		router:        router,
		locks:         locks,
		slaWindow:     slaWindow,
		now:           time.Now,
	}
}

// HandleEvent processes one domain event end to end.
func (e *Engine) HandleEvent(ctx context.Context, ev model.Event) (Outcome, error) {
	if !ev.Kind.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}

	now := e.now()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now
	}
	ev.Phone = util.NormalizePhone(ev.Phone)

	switch ev.Kind {
	case model.EventCustomerMessage:
		if err := e.conversations.RecordMessage(ctx, ev.ConversationID, ev.CustomerID, ev.Phone, model.FromCustomer, ev.OccurredAt); err != nil {
			return Outcome{}, fmt.Errorf("record customer message: %w", err)
		}
	case model.EventOwnerReply:
		if err := e.conversations.RecordMessage(ctx, ev.ConversationID, ev.CustomerID, ev.Phone, model.FromOwner, ev.OccurredAt); err != nil {
			return Outcome{}, fmt.Errorf("record owner reply: %w", err)
		}
		// A human answered: pending follow-ups for the thread are moot.
		n, err := e.scheduled.CancelFollowUps(ctx, ev.ConversationID, "owner_replied")
		if err != nil {
			return Outcome{}, fmt.Errorf("cancel follow-ups: %w", err)
		}
		return Outcome{Cancelled: n}, nil
	case model.EventConversationStatus:
		return e.handleConversationStatus(ctx, ev, now)
	}

	snap := e.settings.Snapshot()
	req, ok := trigger.Evaluate(ev, snap, now)
	if !ok {
		return Outcome{}, nil
	}
	metrics.TriggersTotal.WithLabelValues(req.Trigger.String()).Inc()

	out := Outcome{}
	if prio, escalates := trigger.Escalates(req.Trigger); escalates {
		rec, err := e.escalate(ctx, req, prio, now)
		if err != nil {
			return Outcome{}, err
		}
		out.Escalation = &rec
	}

	scheduled, err := e.schedule(ctx, snap, req, now)
	if err != nil {
		return Outcome{}, err
	}
	out.ScheduledID = scheduled.ScheduledID
	out.DeniedReason = scheduled.DeniedReason
	out.NoTemplate = scheduled.NoTemplate
	out.Suppressed = scheduled.Suppressed
	return out, nil
}

// Sweep finds stalled conversations past the follow-up window and feeds them
// through the same classify/guard/schedule path as live events. Called
// periodically by the scheduler worker; time-based triggers have no event to
// arrive on.
func (e *Engine) Sweep(ctx context.Context, limit int) error {
	snap := e.settings.Snapshot()
	now := e.now()
	cutoff := now.Add(-snap.NoResponseWindow())

	stalled, err := e.conversations.ListStalled(ctx, cutoff, limit)
	if err != nil {
		return fmt.Errorf("list stalled conversations: %w", err)
	}

	for _, c := range stalled {
		req, ok := trigger.EvaluateStalled(c, snap, now)
		if !ok {
			continue
		}
		metrics.TriggersTotal.WithLabelValues(req.Trigger.String()).Inc()
		if _, err := e.schedule(ctx, snap, req, now); err != nil {
			logger.Log.Error("sweep schedule failed",
				zap.String("conversation", c.ID), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) handleConversationStatus(ctx context.Context, ev model.Event, now time.Time) (Outcome, error) {
	status := model.ConversationStatus(ev.Status)
	if !status.Valid() {
		return Outcome{}, fmt.Errorf("invalid conversation status %q", ev.Status)
	}

	var deadline *time.Time
	if status.AwaitingHuman() {
		d := sla.Deadline(now, e.slaWindow)
		deadline = &d
	}
	// Transitioning to active/resolved stores a NULL deadline, which is what
	// clears overdue implicitly.
	if _, err := e.conversations.SetStatus(ctx, ev.ConversationID, status, deadline); err != nil {
		return Outcome{}, fmt.Errorf("set conversation status: %w", err)
	}
	return Outcome{}, nil
}

func (e *Engine) escalate(ctx context.Context, req model.TriggerRequest, prio model.EscalationPriority, now time.Time) (model.EscalationRecord, error) {
	rec, err := e.router.Create(ctx, req.CustomerID, req.ConversationID, req.Trigger.String(), prio, req.Variables["message"])
	if err != nil {
		return model.EscalationRecord{}, err
	}

	// The SLA clock starts the moment the conversation needs a human.
	d := sla.Deadline(now, e.slaWindow)
	if _, err := e.conversations.SetStatus(ctx, req.ConversationID, model.ConversationEscalated, &d); err != nil {
		logger.Log.Error("set escalated status failed",
			zap.String("conversation", req.ConversationID), zap.Error(err))
	}
	return rec, nil
}

// schedule runs admission and, when allowed, renders and inserts the pending
// entry. Admission check and insert run under the per-customer lock so two
// concurrent triggers cannot both slip past the cap or cooldown.
func (e *Engine) schedule(ctx context.Context, snap model.AutoMessageSettings, req model.TriggerRequest, now time.Time) (Outcome, error) {
	exists, err := e.scheduled.ExistsActive(ctx, req.CustomerID, req.TopicID, req.Trigger)
	if err != nil {
		return Outcome{}, fmt.Errorf("check active entries: %w", err)
	}
	if exists {
		return Outcome{Suppressed: true}, nil
	}

	var out Outcome
	err = e.locks.WithCustomer(ctx, req.CustomerID, func() error {
		st, err := guard.LoadState(ctx, e.guardSrc, req.CustomerID, req.TopicID, req.Phone, now)
		if err != nil {
			return err
		}

		dec := guard.Evaluate(snap, st, now)
		if !dec.Allowed {
			metrics.GuardDenialsTotal.WithLabelValues(dec.Reason.String()).Inc()
			out.DeniedReason = dec.Reason
			return nil
		}

		text, err := template.Render(snap.Templates, req.Trigger, req.Variables)
		if err != nil {
			if errors.Is(err, template.ErrNoTemplate) {
				// Fail closed, but loudly: operators see the gap, the
				// customer sees nothing.
				logger.Log.Warn("trigger without template",
					zap.String("trigger", req.Trigger.String()),
					zap.Int64("customer", req.CustomerID))
				out.NoTemplate = true
				return nil
			}
			return err
		}

		m := model.ScheduledMessage{
			ID:             util.NewID(),
			CustomerID:     req.CustomerID,
			ConversationID: req.ConversationID,
			TopicID:        req.TopicID,
			Phone:          req.Phone,
			Trigger:        req.Trigger,
			Message:        text,
			ScheduledFor:   req.DueAt,
			Status:         model.ScheduledPending,
		}
		if err := e.scheduled.Insert(ctx, nil, m); err != nil {
			return fmt.Errorf("insert scheduled message: %w", err)
		}
		metrics.MessagesTotal.WithLabelValues("scheduled").Inc()
		out.ScheduledID = m.ID
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}
