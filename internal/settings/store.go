// Package settings holds the process-wide AutoMessageSettings snapshot.
// Readers get an immutable copy via an atomic pointer so a concurrent update
// can never produce a torn read (new cooldown with old DND window).
package settings

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/repository"
)

// Defaults applied when the settings row does not exist yet.
var defaults = model.AutoMessageSettings{
	MaxMessagesPerTopic: 3,
	CooldownHours:       24,
	DNDStartHour:        21,
	DNDEndHour:          9,
	NoResponseDays:      2,
	Enabled:             false,
}

type Store struct {
	repo repository.SettingsRepository
	cur  atomic.Pointer[model.AutoMessageSettings]
}

func NewStore(repo repository.SettingsRepository) *Store {
	s := &Store{repo: repo}
	d := defaults
	s.cur.Store(&d)
	return s
}

// Load refreshes the snapshot from the database. Called at startup and at the
// top of every firing-loop cycle, so updates made through another process's
// admin API are picked up within one poll interval.
func (s *Store) Load(ctx context.Context) error {
	row, err := s.repo.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if row == nil {
		d := defaults
		s.cur.Store(&d)
		return nil
	}
	s.cur.Store(row)
	return nil
}

// Snapshot returns the current settings by value.
func (s *Store) Snapshot() model.AutoMessageSettings {
	return *s.cur.Load()
}

// Update validates, persists, and swaps in new settings.
func (s *Store) Update(ctx context.Context, next model.AutoMessageSettings) (model.AutoMessageSettings, error) {
	if err := next.Validate(); err != nil {
		return model.AutoMessageSettings{}, err
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return model.AutoMessageSettings{}, fmt.Errorf("save settings: %w", err)
	}
	s.cur.Store(&next)
	return next, nil
}

// UpdateTemplate replaces a single template slot, leaving the rest of the
// settings untouched.
func (s *Store) UpdateTemplate(ctx context.Context, tr model.TriggerType, tpl string) error {
	next := s.Snapshot()
	if !next.Templates.SetByTrigger(tr, tpl) {
		return fmt.Errorf("unknown trigger type %q", tr)
	}
	_, err := s.Update(ctx, next)
	return err
}
