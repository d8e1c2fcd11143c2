package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nkarimi/automsg-engine/internal/kafka"
	"github.com/nkarimi/automsg-engine/internal/logger"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/transport"
	"go.uber.org/zap"
)

// Notifier consumes escalation envelopes and posts them to the owner's
// notification webhook. Delivery is best effort: failures are logged and the
// offset committed anyway so a dead webhook never wedges the stream.
type Notifier struct {
	Consumer *kafka.Consumer

	hookURL string
	client  *http.Client
	breaker *transport.MicroBreaker
}

func NewNotifier(consumer *kafka.Consumer, hookURL string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		Consumer: consumer,
		hookURL:  hookURL,
		client:   &http.Client{Timeout: timeout},
		breaker:  transport.NewMicroBreaker(5, 30*time.Second),
	}
}

// Run blocks until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		m, err := n.Consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.Error("escalation fetch failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var env model.EscalationEnvelope
		if err := json.Unmarshal(m.Value, &env); err != nil || env.ID == "" {
			logger.Log.Warn("bad escalation envelope", zap.Error(err))
			_ = n.Consumer.Commit(ctx, m)
			continue
		}

		if err := n.deliver(ctx, env); err != nil {
			logger.Log.Warn("owner notification failed",
				zap.String("escalation_id", env.ID),
				zap.String("priority", string(env.Record.Priority)),
				zap.Error(err))
		}
		if err := n.Consumer.Commit(ctx, m); err != nil {
			logger.Log.Error("escalation commit failed", zap.Error(err))
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, env model.EscalationEnvelope) error {
	if n.hookURL == "" {
		return nil
	}
	if !n.breaker.TryAcquire() {
		return fmt.Errorf("owner hook breaker open")
	}

	body, err := json.Marshal(env)
	if err != nil {
		n.breaker.OnSuccess() // marshal errors are not the hook's fault
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.hookURL, bytes.NewReader(body))
	if err != nil {
		n.breaker.OnSuccess()
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.breaker.OnFailure()
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		n.breaker.OnFailure()
		return fmt.Errorf("owner hook returned %d", resp.StatusCode)
	}

	n.breaker.OnSuccess()
	return nil
}
