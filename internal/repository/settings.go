package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nkarimi/automsg-engine/internal/model"
)

// SettingsRepository persists the singleton auto_message_settings row.
// Templates are stored as a JSON column on the same row so settings and
// templates always update together.
type SettingsRepository interface {
	Get(ctx context.Context) (*model.AutoMessageSettings, error)
	Save(ctx context.Context, s model.AutoMessageSettings) error
}

type SettingsRepositoryImpl struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepositoryImpl {
	return &SettingsRepositoryImpl{db: db}
}

var _ SettingsRepository = (*SettingsRepositoryImpl)(nil)

type settingsRow struct {
	MaxMessagesPerTopic int       `db:"max_messages_per_topic"`
	CooldownHours       int       `db:"cooldown_hours"`
	DNDStartHour        int       `db:"dnd_start_hour"`
	DNDEndHour          int       `db:"dnd_end_hour"`
	NoResponseDays      int       `db:"no_response_days"`
	Enabled             bool      `db:"enabled"`
	Templates           []byte    `db:"templates"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (r *SettingsRepositoryImpl) Get(ctx context.Context) (*model.AutoMessageSettings, error) {
	var row settingsRow
	err := r.db.GetContext(ctx, &row, `
		SELECT max_messages_per_topic, cooldown_hours, dnd_start_hour, dnd_end_hour,
		       no_response_days, enabled, templates, updated_at
		  FROM auto_message_settings
		 WHERE id = 1 LIMIT 1
	`)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s := model.AutoMessageSettings{
		MaxMessagesPerTopic: row.MaxMessagesPerTopic,
		CooldownHours:       row.CooldownHours,
		DNDStartHour:        row.DNDStartHour,
		DNDEndHour:          row.DNDEndHour,
		NoResponseDays:      row.NoResponseDays,
		Enabled:             row.Enabled,
		UpdatedAt:           row.UpdatedAt,
	}
	if len(row.Templates) > 0 {
		if err := json.Unmarshal(row.Templates, &s.Templates); err != nil {
			return nil, fmt.Errorf("unmarshal templates: %w", err)
		}
	}
	return &s, nil
}

func (r *SettingsRepositoryImpl) Save(ctx context.Context, s model.AutoMessageSettings) error {
	tpls, err := json.Marshal(s.Templates)
	if err != nil {
		return fmt.Errorf("marshal templates: %w", err)
	}

	const q = `
INSERT INTO auto_message_settings
    (id, max_messages_per_topic, cooldown_hours, dnd_start_hour, dnd_end_hour, no_response_days, enabled, templates, updated_at)
VALUES
    (1, ?, ?, ?, ?, ?, ?, ?, NOW())
ON DUPLICATE KEY UPDATE
    max_messages_per_topic = VALUES(max_messages_per_topic),
    cooldown_hours         = VALUES(cooldown_hours),
    dnd_start_hour         = VALUES(dnd_start_hour),
    dnd_end_hour           = VALUES(dnd_end_hour),
    no_response_days       = VALUES(no_response_days),
    enabled                = VALUES(enabled),
    templates              = VALUES(templates),
    updated_at             = NOW()
`
	_, err = r.db.ExecContext(ctx, q,
		s.MaxMessagesPerTopic, s.CooldownHours, s.DNDStartHour, s.DNDEndHour,
		s.NoResponseDays, s.Enabled, tpls,
	)
	return err
}
