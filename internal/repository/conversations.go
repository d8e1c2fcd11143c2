package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nkarimi/automsg-engine/internal/model"
)

// ConversationsRepository tracks the engine's slice of conversation state:
// last message direction/time (for the stalled-conversation sweep) and
// status + SLA deadline (for the overdue monitor).
type ConversationsRepository interface {
	Get(ctx context.Context, id string) (*model.Conversation, error)

	// RecordMessage upserts the conversation and stamps the last message.
	RecordMessage(ctx context.Context, id string, customerID int64, phone string, from model.MessageDirection, at time.Time) error

	// SetStatus updates the status and the SLA deadline together (nil clears
	// the deadline).
	SetStatus(ctx context.Context, id string, status model.ConversationStatus, deadline *time.Time) (bool, error)

	// ListOverdue returns conversations awaiting a human whose deadline has
	// passed. Overdue is derived from now, never stored.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Conversation, error)

	// ListStalled returns unresolved conversations whose last message is older
	// than cutoff, for the no-response sweep.
	ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]model.Conversation, error)
}

type ConversationsRepositoryImpl struct {
	db *sqlx.DB
}

func NewConversationsRepository(db *sqlx.DB) *ConversationsRepositoryImpl {
	return &ConversationsRepositoryImpl{db: db}
}

var _ ConversationsRepository = (*ConversationsRepositoryImpl)(nil)

func (r *ConversationsRepositoryImpl) Get(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	err := r.db.GetContext(ctx, &c, `
		SELECT id, customer_id, phone, status, last_message_at, last_message_from, sla_deadline, updated_at
		  FROM conversations
		 WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConversationsRepositoryImpl) RecordMessage(ctx context.Context, id string, customerID int64, phone string, from model.MessageDirection, at time.Time) error {
	const q = `
INSERT INTO conversations
    (id, customer_id, phone, status, last_message_at, last_message_from, updated_at)
VALUES
    (?, ?, ?, 'active', ?, ?, NOW())
ON DUPLICATE KEY UPDATE
    customer_id       = VALUES(customer_id),
    phone             = VALUES(phone),
    last_message_at   = VALUES(last_message_at),
    last_message_from = VALUES(last_message_from),
    updated_at        = NOW()
`
	_, err := r.db.ExecContext(ctx, q, id, customerID, phone, at, string(from))
	return err
}

func (r *ConversationsRepositoryImpl) SetStatus(ctx context.Context, id string, status model.ConversationStatus, deadline *time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET status = ?, sla_deadline = ?, updated_at = NOW() WHERE id = ?
	`, status.String(), deadline, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ConversationsRepositoryImpl) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Conversation, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []model.Conversation
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, customer_id, phone, status, last_message_at, last_message_from, sla_deadline, updated_at
		  FROM conversations
		 WHERE status IN ('waiting_for_owner', 'escalated')
		   AND sla_deadline IS NOT NULL AND sla_deadline < ?
		 ORDER BY sla_deadline
		 LIMIT ?
	`, now, limit)
	return rows, err
}

func (r *ConversationsRepositoryImpl) ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]model.Conversation, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []model.Conversation
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, customer_id, phone, status, last_message_at, last_message_from, sla_deadline, updated_at
		  FROM conversations
		 WHERE status = 'active' AND last_message_at <= ?
		 ORDER BY last_message_at
		 LIMIT ?
	`, cutoff, limit)
	return rows, err
}
