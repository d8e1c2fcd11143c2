package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nkarimi/automsg-engine/internal/kafka"
	"github.com/nkarimi/automsg-engine/internal/logger"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/repository"
	"go.uber.org/zap"
)

// Archiver:
// - fetches history envelopes from Kafka (outbox stream),
// - batches them into the ClickHouse read model with size/time-based flush,
// - commits offsets only after a successful flush (at-least-once; ClickHouse
//   dedupes on the entry id via ReplacingMergeTree).
type Archiver struct {
	Consumer *kafka.Consumer
	Archive  repository.CHHistoryRepository

	BatchSize int
	BatchWait time.Duration
}

func NewArchiver(consumer *kafka.Consumer, archive repository.CHHistoryRepository) *Archiver {
	return &Archiver{
		Consumer:  consumer,
		Archive:   archive,
		BatchSize: 200,
		BatchWait: time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	if a.BatchSize <= 0 {
		a.BatchSize = 200
	}
	if a.BatchWait <= 0 {
		a.BatchWait = time.Second
	}

	var (
		entries []model.HistoryEntry
		msgs    []kafka.Message
	)

	flush := func() {
		if len(entries) == 0 {
			return
		}
		if err := a.Archive.InsertBatch(ctx, entries); err != nil {
			// Offsets stay uncommitted; the batch is redelivered.
			logger.Log.Error("archive batch insert failed", zap.Int("size", len(entries)), zap.Error(err))
			entries = entries[:0]
			msgs = msgs[:0]
			return
		}
		if err := a.Consumer.Commit(ctx, msgs...); err != nil {
			logger.Log.Error("archive commit failed", zap.Error(err))
		}
		entries = entries[:0]
		msgs = msgs[:0]
	}

	deadline := time.Now().Add(a.BatchWait)
	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()
		default:
		}

		fetchCtx, cancel := context.WithDeadline(ctx, deadline)
		m, err := a.Consumer.Fetch(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				flush()
				return ctx.Err()
			}
			// Deadline elapsed or transient fetch error: flush what we have.
			flush()
			deadline = time.Now().Add(a.BatchWait)
			continue
		}

		var env model.HistoryEnvelope
		if err := json.Unmarshal(m.Value, &env); err != nil || env.ID == "" {
			// Poison message: commit and skip.
			logger.Log.Warn("bad history envelope", zap.Error(err))
			_ = a.Consumer.Commit(ctx, m)
			continue
		}

		entries = append(entries, env.Entry)
		msgs = append(msgs, m)
		if len(entries) >= a.BatchSize {
			flush()
			deadline = time.Now().Add(a.BatchWait)
		}
	}
}
