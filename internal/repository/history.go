package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nkarimi/automsg-engine/internal/model"
)

// HistoryRepository persists the append-only message_history table. Rows are
// never updated or deleted; the guard's cap and cooldown checks read from it.
type HistoryRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, e model.HistoryEntry) error
	List(ctx context.Context, limit int) ([]model.HistoryEntry, error)
	CountByTopic(ctx context.Context, customerID int64, topicID string) (int, error)
	LastSentAt(ctx context.Context, customerID int64) (*time.Time, error)
}

type HistoryRepositoryImpl struct {
	db *sqlx.DB
}

func NewHistoryRepository(db *sqlx.DB) *HistoryRepositoryImpl {
	return &HistoryRepositoryImpl{db: db}
}

var _ HistoryRepository = (*HistoryRepositoryImpl)(nil)

func (r *HistoryRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
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

func (r *HistoryRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, e model.HistoryEntry) error {
	const q = `
		INSERT INTO message_history
		    (id, customer_id, topic_id, phone, trigger_type, message, sent_at)
		VALUES
		    (?,  ?,           ?,        ?,     ?,            ?,       ?)
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			e.ID, e.CustomerID, e.TopicID, e.Phone, e.Trigger.String(), e.Message, e.SentAt,
		)
		return err
	})
}

func (r *HistoryRepositoryImpl) List(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	var rows []model.HistoryEntry
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, customer_id, topic_id, phone, trigger_type, message, sent_at
		  FROM message_history
		 ORDER BY sent_at DESC
		 LIMIT ?
	`, limit)
	return rows, err
}

func (r *HistoryRepositoryImpl) CountByTopic(ctx context.Context, customerID int64, topicID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM message_history WHERE customer_id = ? AND topic_id = ?
	`, customerID, topicID)
	return n, err
}

func (r *HistoryRepositoryImpl) LastSentAt(ctx context.Context, customerID int64) (*time.Time, error) {
	var t time.Time
	err := r.db.GetContext(ctx, &t, `
		SELECT sent_at FROM message_history WHERE customer_id = ? ORDER BY sent_at DESC LIMIT 1
	`, customerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
