package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/nkarimi/automsg-engine/internal/model"
)

// EscalationsRepository persists escalation records.
type EscalationsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, rec model.EscalationRecord) error
	Get(ctx context.Context, id string) (*model.EscalationRecord, error)
	List(ctx context.Context, status model.EscalationStatus, limit int) ([]model.EscalationRecord, error)
	// UpdateStatus sets any of the three statuses; there is no enforced
	// ordering. Returns false when the record does not exist.
	UpdateStatus(ctx context.Context, id string, status model.EscalationStatus) (bool, error)
}

type EscalationsRepositoryImpl struct {
	db *sqlx.DB
}

func NewEscalationsRepository(db *sqlx.DB) *EscalationsRepositoryImpl {
	return &EscalationsRepositoryImpl{db: db}
}

var _ EscalationsRepository = (*EscalationsRepositoryImpl)(nil)

func (r *EscalationsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
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

func (r *EscalationsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, rec model.EscalationRecord) error {
	const q = `
		INSERT INTO escalations
		    (id, customer_id, conversation_id, reason, priority, status, message_content, created_at, updated_at)
		VALUES
		    (?,  ?,           ?,               ?,      ?,        'pending', ?,            NOW(),      NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			rec.ID, rec.CustomerID, rec.ConversationID, rec.Reason, rec.Priority.String(), rec.MessageContent,
		)
		return err
	})
}

func (r *EscalationsRepositoryImpl) Get(ctx context.Context, id string) (*model.EscalationRecord, error) {
	var rec model.EscalationRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT id, customer_id, conversation_id, reason, priority, status, message_content, created_at, updated_at
		  FROM escalations
		 WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *EscalationsRepositoryImpl) List(ctx context.Context, status model.EscalationStatus, limit int) ([]model.EscalationRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := `
		SELECT id, customer_id, conversation_id, reason, priority, status, message_content, created_at, updated_at
		  FROM escalations
	`
	args := []any{}
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, status.String())
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	var rows []model.EscalationRecord
	err := r.db.SelectContext(ctx, &rows, q, args...)
	return rows, err
}

func (r *EscalationsRepositoryImpl) UpdateStatus(ctx context.Context, id string, status model.EscalationStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE escalations SET status = ?, updated_at = NOW() WHERE id = ?
	`, status.String(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
