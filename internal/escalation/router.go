// Package escalation creates escalation records and manages their status
// lifecycle. Owner notification rides the outbox so a broken notify channel
// can never block record creation.
package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nkarimi/automsg-engine/internal/logger"
	"github.com/nkarimi/automsg-engine/internal/metrics"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/repository"
	"github.com/nkarimi/automsg-engine/internal/util"
	"go.uber.org/zap"
)

type Router struct {
	escalations repository.EscalationsRepository
	outbox      repository.OutboxRepository
	notify      bool // policy gate for owner notification
}

func NewRouter(escalations repository.EscalationsRepository, outbox repository.OutboxRepository, notify bool) *Router {
	return &Router{escalations: escalations, outbox: outbox, notify: notify}
}

// Create inserts a new escalation record, always in pending status, and (when
// the notify policy is on) enqueues an owner notification through the outbox.
// A failed notification enqueue is logged, not returned: the record wins.
func (r *Router) Create(ctx context.Context, customerID int64, conversationID, reason string, priority model.EscalationPriority, messageContent string) (model.EscalationRecord, error) {
	if !priority.Valid() {
		priority = model.PriorityMedium
	}

	rec := model.EscalationRecord{
		ID:             util.NewID(),
		CustomerID:     customerID,
		ConversationID: conversationID,
		Reason:         reason,
		Priority:       priority,
		Status:         model.EscalationPending,
		MessageContent: messageContent,
		CreatedAt:      time.Now(),
	}

	if err := r.escalations.Insert(ctx, nil, rec); err != nil {
		return model.EscalationRecord{}, fmt.Errorf("insert escalation: %w", err)
	}
	metrics.EscalationsTotal.WithLabelValues(priority.String()).Inc()

	if r.notify {
		payload, err := json.Marshal(model.EscalationEnvelope{ID: rec.ID, Record: rec})
		if err == nil {
			err = r.outbox.Insert(ctx, nil, "escalation", rec.ID, model.EscalationsKafkaTopic, payload)
		}
		if err != nil {
			logger.Log.Warn("escalation notify enqueue failed",
				zap.String("id", rec.ID), zap.Error(err))
		}
	}

	return rec, nil
}

// UpdateStatus sets any of the three statuses. All transitions are permitted;
// operators may revert resolved records. Returns false when the record does
// not exist.
func (r *Router) UpdateStatus(ctx context.Context, id string, status model.EscalationStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("invalid escalation status %q", status)
	}
	return r.escalations.UpdateStatus(ctx, id, status)
}
