// Package scheduler drives the firing loop: a single background poller that
// claims due pending entries, re-runs the anti-spam guard, and hands allowed
// messages to the transport. Poll over min-heap was a deliberate choice; due
// times are minute-grained and a poll cycle is one cheap indexed query.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/nkarimi/automsg-engine/internal/guard"
	"github.com/nkarimi/automsg-engine/internal/lock"
	"github.com/nkarimi/automsg-engine/internal/logger"
	"github.com/nkarimi/automsg-engine/internal/metrics"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/transport"
	"go.uber.org/zap"
)

// Store is the persistence surface of the firing loop. Implemented by
// repository.SchedulerStore; faked in tests.
type Store interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error)
	CancelClaimed(ctx context.Context, id, reason string) error
	MarkFailed(ctx context.Context, id, reason string) error
	Requeue(ctx context.Context, id string) error
	RequeueStaleSending(ctx context.Context, before time.Time) (int64, error)
	CompleteSend(ctx context.Context, m model.ScheduledMessage, sentAt time.Time) error
}

// SettingsSource yields the settings snapshot the guard evaluates against.
type SettingsSource interface {
	Load(ctx context.Context) error
	Snapshot() model.AutoMessageSettings
}

// Sender is the external send capability.
type Sender interface {
	Send(ctx context.Context, msg transport.OutboundMessage) error
}

// Locks serializes admission per customer.
type Locks interface {
	WithCustomer(ctx context.Context, customerID int64, fn func() error) error
}

type Runner struct {
	store    Store
	guardSrc guard.StateSource
	settings SettingsSource
	sender   Sender
	locks    Locks

	pollInterval time.Duration
	sendTimeout  time.Duration
	claimLimit   int
	staleAfter   time.Duration

	now func() time.Time
}

func NewRunner(store Store, guardSrc guard.StateSource, settings SettingsSource, sender Sender, locks Locks, pollInterval, sendTimeout time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = 60 * time.Second
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Runner{
		store:        store,
		guardSrc:     guardSrc,
		settings:     settings,
		sender:       sender,
		locks:        locks,
		pollInterval: pollInterval,
		sendTimeout:  sendTimeout,
		claimLimit:   50,
		staleAfter:   5 * time.Minute,
		now:          time.Now,
	}
}

// Run blocks until ctx is cancelled. Entries stuck in sending from a previous
// crash are requeued once at startup.
func (r *Runner) Run(ctx context.Context) error {
	if n, err := r.store.RequeueStaleSending(ctx, r.now().Add(-r.staleAfter)); err != nil {
		logger.Log.Error("requeue stale entries failed", zap.Error(err))
	} else if n > 0 {
		logger.Log.Warn("requeued stale sending entries", zap.Int64("count", n))
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Cycle(ctx)
		}
	}
}

// Cycle runs one poll iteration: refresh the settings snapshot, claim due
// entries, fire each.
func (r *Runner) Cycle(ctx context.Context) {
	if err := r.settings.Load(ctx); err != nil {
		// Keep firing against the previous snapshot rather than stalling.
		logger.Log.Error("settings refresh failed", zap.Error(err))
	}

	claimed, err := r.store.ClaimDue(ctx, r.now(), r.claimLimit)
	if err != nil {
		logger.Log.Error("claim due entries failed", zap.Error(err))
		return
	}

	for _, m := range claimed {
		r.fire(ctx, m)
	}
}

// fire delivers one claimed entry. The guard runs again here, under the
// customer admission lock, because settings and exclusions may have changed
// since the entry was scheduled. A denial abandons the entry (cancelled with
// reason), never requeues it.
func (r *Runner) fire(ctx context.Context, m model.ScheduledMessage) {
	snap := r.settings.Snapshot()

	err := r.locks.WithCustomer(ctx, m.CustomerID, func() error {
		now := r.now()

		st, err := guard.LoadState(ctx, r.guardSrc, m.CustomerID, m.TopicID, m.Phone, now)
		if err != nil {
			return err
		}

		dec := guard.Evaluate(snap, st, now)
		if !dec.Allowed {
			metrics.GuardDenialsTotal.WithLabelValues(dec.Reason.String()).Inc()
			metrics.MessagesTotal.WithLabelValues("cancelled").Inc()
			logger.Log.Info("entry denied at fire time",
				zap.String("id", m.ID), zap.String("reason", dec.Reason.String()))
			return r.store.CancelClaimed(ctx, m.ID, dec.Reason.String())
		}

		sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
		defer cancel()

		sendErr := r.sender.Send(sendCtx, transport.OutboundMessage{
			Ref:   m.ID,
			Phone: m.Phone,
			Text:  m.Message,
		})
		if sendErr != nil {
			metrics.MessagesTotal.WithLabelValues("failed").Inc()
			logger.Log.Error("send failed", zap.String("id", m.ID), zap.Error(sendErr))
			return r.store.MarkFailed(ctx, m.ID, sendErr.Error())
		}

		if err := r.store.CompleteSend(ctx, m, r.now()); err != nil {
			// Delivered but not recorded; the stale-sending requeue will
			// retry and the transport dedupes on the entry id.
			return err
		}
		metrics.MessagesTotal.WithLabelValues("sent").Inc()
		return nil
	})

	if errors.Is(err, lock.ErrBusy) {
		if rqErr := r.store.Requeue(ctx, m.ID); rqErr != nil {
			logger.Log.Error("requeue busy entry failed", zap.String("id", m.ID), zap.Error(rqErr))
		}
		return
	}
	if err != nil {
		logger.Log.Error("fire failed", zap.String("id", m.ID), zap.Error(err))
	}
}
