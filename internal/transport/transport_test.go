package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedProvider struct {
	name    string
	ready   bool
	acquire bool
	err     error
	sent    []OutboundMessage
}

func (p *scriptedProvider) Name() string  { return p.name }
func (p *scriptedProvider) Ready() bool   { return p.ready }
func (p *scriptedProvider) Acquire() bool { return p.acquire }

func (p *scriptedProvider) Send(ctx context.Context, msg OutboundMessage) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func msg(ref string) OutboundMessage {
	return OutboundMessage{Ref: ref, Phone: "+15550001111", Text: "hi"}
}

func TestDispatcherRoundRobin(t *testing.T) {
	a := &scriptedProvider{name: "a", ready: true, acquire: true}
	b := &scriptedProvider{name: "b", ready: true, acquire: true}
	d := NewDispatcher([]Provider{a, b}, 1)

	for i := 0; i < 4; i++ {
		if err := d.Send(context.Background(), msg("m")); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if len(a.sent) != 2 || len(b.sent) != 2 {
		t.Errorf("uneven distribution: a=%d b=%d", len(a.sent), len(b.sent))
	}
}

func TestDispatcherSkipsUnhealthy(t *testing.T) {
	down := &scriptedProvider{name: "down", ready: false}
	up := &scriptedProvider{name: "up", ready: true, acquire: true}
	d := NewDispatcher([]Provider{down, up}, 1)

	if err := d.Send(context.Background(), msg("m")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(up.sent) != 1 || len(down.sent) != 0 {
		t.Errorf("expected only healthy provider used: up=%d down=%d", len(up.sent), len(down.sent))
	}
}

func TestDispatcherNoHealthyProviders(t *testing.T) {
	d := NewDispatcher([]Provider{&scriptedProvider{ready: false}}, 3)
	err := d.Send(context.Background(), msg("m"))
	if !errors.Is(err, ErrNoHealthy) {
		t.Errorf("got %v, want ErrNoHealthy", err)
	}
}

func TestDispatcherRetriesThenFails(t *testing.T) {
	bad := &scriptedProvider{name: "bad", ready: true, acquire: true, err: errors.New("gateway 502")}
	good := &scriptedProvider{name: "good", ready: true, acquire: true}

	// two attempts over [bad, good]: first try hits one, retry hits the other
	d := NewDispatcher([]Provider{bad, good}, 2)
	if err := d.Send(context.Background(), msg("m")); err != nil {
		t.Fatalf("retry should have reached the good provider: %v", err)
	}

	// bad alone exhausts every attempt and surfaces the last error
	d = NewDispatcher([]Provider{bad}, 2)
	err := d.Send(context.Background(), msg("m"))
	if err == nil || err.Error() != "gateway 502" {
		t.Errorf("got %v, want the provider error", err)
	}
}

func TestMicroBreakerOpensAfterThreshold(t *testing.T) {
	b := NewMicroBreaker(3, time.Hour)

	for i := 0; i < 2; i++ {
		b.OnFailure()
	}
	if !b.Ready() {
		t.Fatal("breaker must stay closed below the threshold")
	}

	b.OnFailure()
	if b.Ready() {
		t.Fatal("breaker must open at the threshold")
	}
	if b.TryAcquire() {
		t.Error("open breaker must refuse acquisition")
	}
}

func TestMicroBreakerHalfOpenProbe(t *testing.T) {
	b := NewMicroBreaker(1, time.Millisecond)
	b.OnFailure()

	time.Sleep(5 * time.Millisecond)

	if !b.TryAcquire() {
		t.Fatal("expected a probe slot after the open window")
	}
	// second caller must not get a probe while one is in flight
	if b.TryAcquire() {
		t.Error("only one probe may be in flight")
	}

	b.OnSuccess()
	if !b.Ready() {
		t.Error("successful probe must close the breaker")
	}
}

func TestMicroBreakerFailedProbeReopens(t *testing.T) {
	b := NewMicroBreaker(1, time.Millisecond)
	b.OnFailure()
	time.Sleep(5 * time.Millisecond)

	if !b.TryAcquire() {
		t.Fatal("expected a probe slot")
	}
	b.OnFailure()
	if b.TryAcquire() {
		t.Error("failed probe must reopen the breaker")
	}
}

func TestMicroBreakerSuccessResetsCount(t *testing.T) {
	b := NewMicroBreaker(3, time.Hour)
	b.OnFailure()
	b.OnFailure()
	b.OnSuccess()
	b.OnFailure()
	b.OnFailure()
	if !b.Ready() {
		t.Error("success must reset the consecutive failure count")
	}
}
