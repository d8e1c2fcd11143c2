package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/util"
)

// SchedulerStore bundles the persistence the firing loop needs, including the
// single transaction that marks an entry sent, appends its history row, and
// enqueues the archive event. That transition being atomic is what keeps a
// crash mid-fire from producing a sent entry with no history (or vice versa).
type SchedulerStore struct {
	db        *sqlx.DB
	scheduled ScheduledRepository
	history   HistoryRepository
	outbox    OutboxRepository
}

func NewSchedulerStore(db *sqlx.DB, scheduled ScheduledRepository, history HistoryRepository, outbox OutboxRepository) *SchedulerStore {
	return &SchedulerStore{db: db, scheduled: scheduled, history: history, outbox: outbox}
}

func (s *SchedulerStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	return s.scheduled.ClaimDue(ctx, now, limit)
}

func (s *SchedulerStore) CancelClaimed(ctx context.Context, id, reason string) error {
	return s.scheduled.CancelSending(ctx, id, reason)
}

func (s *SchedulerStore) MarkFailed(ctx context.Context, id, reason string) error {
	return s.scheduled.MarkFailed(ctx, id, reason)
}

func (s *SchedulerStore) Requeue(ctx context.Context, id string) error {
	return s.scheduled.Requeue(ctx, id)
}

func (s *SchedulerStore) RequeueStaleSending(ctx context.Context, before time.Time) (int64, error) {
	return s.scheduled.RequeueStaleSending(ctx, before)
}

// CompleteSend records a successful delivery: sent status, history append, and
// the outbox event for the ClickHouse archive, in one transaction.
func (s *SchedulerStore) CompleteSend(ctx context.Context, m model.ScheduledMessage, sentAt time.Time) error {
	entry := model.HistoryEntry{
		ID:         util.NewID(),
		CustomerID: m.CustomerID,
		TopicID:    m.TopicID,
		Phone:      m.Phone,
		Trigger:    m.Trigger,
		Message:    m.Message,
		SentAt:     sentAt,
	}
	payload, err := json.Marshal(model.HistoryEnvelope{ID: entry.ID, Entry: entry})
	if err != nil {
		return fmt.Errorf("marshal history envelope: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.scheduled.MarkSent(ctx, tx, m.ID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if err := s.history.Insert(ctx, tx, entry); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	if err := s.outbox.Insert(ctx, tx, "history", entry.ID, model.HistoryKafkaTopic, payload); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}

	return tx.Commit()
}
