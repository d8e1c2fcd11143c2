package repository

import (
	"context"
	"time"
)

// GuardSource adapts the history and exclusion repositories to the read
// interface the anti-spam guard loads its state from.
type GuardSource struct {
	History  HistoryRepository
	Excluded ExcludedRepository
}

func (g GuardSource) CountTopicMessages(ctx context.Context, customerID int64, topicID string) (int, error) {
	return g.History.CountByTopic(ctx, customerID, topicID)
}

func (g GuardSource) LastMessageAt(ctx context.Context, customerID int64) (*time.Time, error) {
	return g.History.LastSentAt(ctx, customerID)
}

func (g GuardSource) IsExcluded(ctx context.Context, phone string, now time.Time) (bool, error) {
	e, err := g.Excluded.GetActive(ctx, phone, now)
	if err != nil {
		return false, err
	}
	return e != nil, nil
}
