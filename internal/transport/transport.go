// Package transport is the external send(phone, text) capability: one or more
// channel gateways behind a round-robin dispatcher, each with its own micro
// circuit breaker and bounded timeout. The engine treats it as fallible and
// never retries beyond the configured attempts.
package transport

import (
	"context"
	"fmt"
	"sync/atomic"
)

var (
	ErrNoHealthy = fmt.Errorf("no healthy channel providers")
	ErrNoAcquire = fmt.Errorf("provider not acquired")
)

// OutboundMessage is one automated message handed to a channel gateway. Ref is
// the scheduled entry id; gateways use it to deduplicate redelivered sends.
type OutboundMessage struct {
	Ref   string `json:"ref"`
	Phone string `json:"phone"`
	Text  string `json:"text"`
}

// Provider is a single channel gateway.
type Provider interface {
	Name() string
	Ready() bool
	Acquire() bool
	Send(ctx context.Context, msg OutboundMessage) error
}

// Dispatcher fans sends out over healthy providers round-robin, with a
// bounded number of attempts per message.
type Dispatcher struct {
	providers         []Provider
	roundRobinCounter atomic.Uint64
	maxAttempts       int
}

func NewDispatcher(provs []Provider, maxAttempts int) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 2
	}
	return &Dispatcher{providers: provs, maxAttempts: maxAttempts}
}

func (d *Dispatcher) selectProvider() (Provider, error) {
	healthy := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if p.Ready() {
			healthy = append(healthy, p)
		}
	}

	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}

	x := d.roundRobinCounter.Add(1)
	idx := int((x - 1) % uint64(len(healthy)))

	return healthy[idx], nil
}

func (d *Dispatcher) tryOnce(ctx context.Context, msg OutboundMessage) error {
	p, err := d.selectProvider()
	if err != nil {
		return err
	}

	if !p.Acquire() {
		return ErrNoAcquire
	}

	return p.Send(ctx, msg)
}

// Send attempts delivery up to maxAttempts times and returns the last error.
func (d *Dispatcher) Send(ctx context.Context, msg OutboundMessage) error {
	var last error
	for i := 0; i < d.maxAttempts; i++ {
		if err := d.tryOnce(ctx, msg); err == nil {
			return nil
		} else {
			last = err
		}
	}

	if last == nil {
		last = fmt.Errorf("send failed")
	}

	return last
}
