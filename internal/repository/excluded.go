package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nkarimi/automsg-engine/internal/model"
)

// ExcludedRepository persists the excluded_numbers suppression list.
type ExcludedRepository interface {
	// Upsert inserts or replaces the entry for the phone (phone is UNIQUE).
	Upsert(ctx context.Context, e model.ExcludedNumber) error
	Remove(ctx context.Context, phone string) (bool, error)
	List(ctx context.Context) ([]model.ExcludedNumber, error)
	// GetActive returns the entry for the phone if present and not expired.
	GetActive(ctx context.Context, phone string, now time.Time) (*model.ExcludedNumber, error)
}

type ExcludedRepositoryImpl struct {
	db *sqlx.DB
}

func NewExcludedRepository(db *sqlx.DB) *ExcludedRepositoryImpl {
	return &ExcludedRepositoryImpl{db: db}
}

var _ ExcludedRepository = (*ExcludedRepositoryImpl)(nil)

func (r *ExcludedRepositoryImpl) Upsert(ctx context.Context, e model.ExcludedNumber) error {
	const q = `
INSERT INTO excluded_numbers
    (phone, tag, reason, is_temporary, expires_at, created_at)
VALUES
    (?, ?, ?, ?, ?, NOW())
ON DUPLICATE KEY UPDATE
    tag          = VALUES(tag),
    reason       = VALUES(reason),
    is_temporary = VALUES(is_temporary),
    expires_at   = VALUES(expires_at)
`
	_, err := r.db.ExecContext(ctx, q, e.Phone, e.Tag.String(), e.Reason, e.IsTemporary, e.ExpiresAt)
	return err
}

func (r *ExcludedRepositoryImpl) Remove(ctx context.Context, phone string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM excluded_numbers WHERE phone = ?`, phone)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ExcludedRepositoryImpl) List(ctx context.Context) ([]model.ExcludedNumber, error) {
	var rows []model.ExcludedNumber
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, phone, tag, reason, is_temporary, expires_at, created_at
		  FROM excluded_numbers
		 ORDER BY created_at DESC
	`)
	return rows, err
}

func (r *ExcludedRepositoryImpl) GetActive(ctx context.Context, phone string, now time.Time) (*model.ExcludedNumber, error) {
	var e model.ExcludedNumber
	err := r.db.GetContext(ctx, &e, `
		SELECT id, phone, tag, reason, is_temporary, expires_at, created_at
		  FROM excluded_numbers
		 WHERE phone = ?
		   AND (is_temporary = 0 OR expires_at IS NULL OR expires_at > ?)
		 LIMIT 1
	`, phone, now)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
