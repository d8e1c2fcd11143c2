package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nkarimi/automsg-engine/internal/model"
)

// ScheduledRepository defines persistence for the scheduled_messages table.
type ScheduledRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, m model.ScheduledMessage) error
	Get(ctx context.Context, id string) (*model.ScheduledMessage, error)
	List(ctx context.Context, limit int) ([]model.ScheduledMessage, error)

	// ClaimDue atomically moves due pending entries to sending and returns
	// them. A claimed entry can no longer be cancelled.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error)

	MarkSent(ctx context.Context, tx *sqlx.Tx, id string) error
	MarkFailed(ctx context.Context, id, reason string) error

	// Cancel transitions pending -> cancelled. Returns false when the entry
	// was not pending (already sent, claimed, or cancelled).
	Cancel(ctx context.Context, id, reason string) (bool, error)

	// CancelSending transitions a claimed entry to cancelled with a deny
	// reason (guard denial at fire time).
	CancelSending(ctx context.Context, id, reason string) error

	// Requeue returns a claimed entry to pending without firing it (e.g. the
	// customer admission lock was busy this cycle).
	Requeue(ctx context.Context, id string) error

	// CancelFollowUps cancels pending delayed follow-ups for a conversation
	// (used when the owner replies before the due time).
	CancelFollowUps(ctx context.Context, conversationID, reason string) (int64, error)

	// ExistsActive reports whether a pending or claimed entry already exists
	// for the (customer, topic, trigger) tuple.
	ExistsActive(ctx context.Context, customerID int64, topicID string, tr model.TriggerType) (bool, error)

	// RequeueStaleSending returns entries stuck in sending (crash between
	// claim and completion) to pending. Called once at worker startup.
	RequeueStaleSending(ctx context.Context, before time.Time) (int64, error)
}

type ScheduledRepositoryImpl struct {
	db *sqlx.DB
}

func NewScheduledRepository(db *sqlx.DB) *ScheduledRepositoryImpl {
	return &ScheduledRepositoryImpl{db: db}
}

var _ ScheduledRepository = (*ScheduledRepositoryImpl)(nil)

func (r *ScheduledRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *ScheduledRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, m model.ScheduledMessage) error {
	const q = `
		INSERT INTO scheduled_messages
		    (id, customer_id, conversation_id, topic_id, phone, trigger_type, message, scheduled_for, status, status_reason, created_at, updated_at)
		VALUES
		    (?,  ?,           ?,               ?,        ?,     ?,            ?,       ?,             'pending', '',        NOW(),      NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			m.ID, m.CustomerID, m.ConversationID, m.TopicID, m.Phone,
			m.Trigger.String(), m.Message, m.ScheduledFor,
		)
		return err
	})
}

func (r *ScheduledRepositoryImpl) Get(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	var m model.ScheduledMessage
	err := r.db.GetContext(ctx, &m, `
		SELECT id, customer_id, conversation_id, topic_id, phone, trigger_type, message, scheduled_for, status, status_reason, created_at, updated_at
		  FROM scheduled_messages
		 WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ScheduledRepositoryImpl) List(ctx context.Context, limit int) ([]model.ScheduledMessage, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []model.ScheduledMessage
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, customer_id, conversation_id, topic_id, phone, trigger_type, message, scheduled_for, status, status_reason, created_at, updated_at
		  FROM scheduled_messages
		 ORDER BY scheduled_for DESC
		 LIMIT ?
	`, limit)
	return rows, err
}

// ClaimDue uses FOR UPDATE SKIP LOCKED so concurrent workers never claim the
// same entry.
func (r *ScheduledRepositoryImpl) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	var claimed []model.ScheduledMessage
	err := r.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &claimed, `
			SELECT id, customer_id, conversation_id, topic_id, phone, trigger_type, message, scheduled_for, status, status_reason, created_at, updated_at
			  FROM scheduled_messages
			 WHERE status = 'pending' AND scheduled_for <= ?
			 ORDER BY scheduled_for
			 LIMIT ?
			   FOR UPDATE SKIP LOCKED
		`, now, limit); err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]string, 0, len(claimed))
		for _, m := range claimed {
			ids = append(ids, m.ID)
		}
		q, args, err := sqlx.In(`UPDATE scheduled_messages SET status = 'sending', updated_at = NOW() WHERE id IN (?)`, ids)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, r.db.Rebind(q), args...)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range claimed {
		claimed[i].Status = model.ScheduledSending
	}
	return claimed, nil
}

func (r *ScheduledRepositoryImpl) MarkSent(ctx context.Context, tx *sqlx.Tx, id string) error {
	const q = `UPDATE scheduled_messages SET status = 'sent', updated_at = NOW() WHERE id = ? AND status = 'sending'`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, id)
		return err
	})
}

func (r *ScheduledRepositoryImpl) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET status = 'failed', status_reason = ?, updated_at = NOW()
		 WHERE id = ? AND status = 'sending'
	`, reason, id)
	return err
}

func (r *ScheduledRepositoryImpl) Cancel(ctx context.Context, id, reason string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET status = 'cancelled', status_reason = ?, updated_at = NOW()
		 WHERE id = ? AND status = 'pending'
	`, reason, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ScheduledRepositoryImpl) CancelSending(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET status = 'cancelled', status_reason = ?, updated_at = NOW()
		 WHERE id = ? AND status = 'sending'
	`, reason, id)
	return err
}

func (r *ScheduledRepositoryImpl) Requeue(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET status = 'pending', updated_at = NOW()
		 WHERE id = ? AND status = 'sending'
	`, id)
	return err
}

func (r *ScheduledRepositoryImpl) CancelFollowUps(ctx context.Context, conversationID, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET status = 'cancelled', status_reason = ?, updated_at = NOW()
		 WHERE conversation_id = ?
		   AND status = 'pending'
		   AND trigger_type IN ('no_response', 'partial_conversation', 'price_shared')
	`, reason, conversationID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ScheduledRepositoryImpl) ExistsActive(ctx context.Context, customerID int64, topicID string, tr model.TriggerType) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM scheduled_messages
		 WHERE customer_id = ? AND topic_id = ? AND trigger_type = ?
		   AND status IN ('pending', 'sending')
	`, customerID, topicID, tr.String())
	return n > 0, err
}

func (r *ScheduledRepositoryImpl) RequeueStaleSending(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET status = 'pending', updated_at = NOW()
		 WHERE status = 'sending' AND updated_at < ?
	`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
