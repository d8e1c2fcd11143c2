package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/nkarimi/automsg-engine/internal/model"
)

// CHHistoryRepository is the ClickHouse long-retention read model of sent
// auto-messages, fed by the archiver worker from the outbox stream.
type CHHistoryRepository interface {
	InsertBatch(ctx context.Context, entries []model.HistoryEntry) error
	ListByFilter(ctx context.Context, customerID int64, phone string, tr model.TriggerType, limit, offset int) ([]model.HistoryEntry, error)
}

type chHistoryRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHHistoryRepository(ch *sqlx.DB) CHHistoryRepository {
	return &chHistoryRepository{ch: ch}
}

func (r *chHistoryRepository) InsertBatch(ctx context.Context, entries []model.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO automsg.message_history
		    (id, customer_id, topic_id, phone, trigger_type, message, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.CustomerID, e.TopicID, e.Phone, e.Trigger.String(), e.Message, e.SentAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *chHistoryRepository) ListByFilter(ctx context.Context, customerID int64, phone string, tr model.TriggerType, limit, offset int) ([]model.HistoryEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, customer_id, topic_id, phone, trigger_type, message, sent_at
		FROM automsg.message_history
		WHERE 1 = 1
	`
	args := []any{}

	if customerID > 0 {
		q += " AND customer_id = ?"
		args = append(args, customerID)
	}
	if phone != "" {
		q += " AND phone = ?"
		args = append(args, phone)
	}
	if tr != "" {
		q += " AND trigger_type = ?"
		args = append(args, tr.String())
	}

	q += " ORDER BY sent_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.HistoryEntry
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
