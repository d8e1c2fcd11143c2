package engine

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nkarimi/automsg-engine/internal/escalation"
	"github.com/nkarimi/automsg-engine/internal/guard"
	"github.com/nkarimi/automsg-engine/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// ---- fakes ----

type fakeSettings struct{ snap model.AutoMessageSettings }

func (f *fakeSettings) Snapshot() model.AutoMessageSettings { return f.snap }

type fakeScheduled struct {
	inserted  []model.ScheduledMessage
	active    bool
	cancelled map[string]string // conversation id -> reason
	cancelN   int64
}

func newFakeScheduled() *fakeScheduled {
	return &fakeScheduled{cancelled: map[string]string{}}
}

func (f *fakeScheduled) Insert(ctx context.Context, tx *sqlx.Tx, m model.ScheduledMessage) error {
	f.inserted = append(f.inserted, m)
	return nil
}

func (f *fakeScheduled) Get(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	return nil, nil
}

func (f *fakeScheduled) List(ctx context.Context, limit int) ([]model.ScheduledMessage, error) {
	return nil, nil
}

func (f *fakeScheduled) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	return nil, nil
}

func (f *fakeScheduled) MarkSent(ctx context.Context, tx *sqlx.Tx, id string) error { return nil }
func (f *fakeScheduled) MarkFailed(ctx context.Context, id, reason string) error    { return nil }

func (f *fakeScheduled) Cancel(ctx context.Context, id, reason string) (bool, error) {
	return false, nil
}

func (f *fakeScheduled) CancelSending(ctx context.Context, id, reason string) error { return nil }
func (f *fakeScheduled) Requeue(ctx context.Context, id string) error               { return nil }

func (f *fakeScheduled) CancelFollowUps(ctx context.Context, conversationID, reason string) (int64, error) {
	f.cancelled[conversationID] = reason
	return f.cancelN, nil
}

func (f *fakeScheduled) ExistsActive(ctx context.Context, customerID int64, topicID string, tr model.TriggerType) (bool, error) {
	return f.active, nil
}

func (f *fakeScheduled) RequeueStaleSending(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type statusChange struct {
	status   model.ConversationStatus
	deadline *time.Time
}

type fakeConversations struct {
	recorded []model.MessageDirection
	statuses map[string]statusChange
	stalled  []model.Conversation
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{statuses: map[string]statusChange{}}
}

func (f *fakeConversations) Get(ctx context.Context, id string) (*model.Conversation, error) {
	return nil, nil
}

func (f *fakeConversations) RecordMessage(ctx context.Context, id string, customerID int64, phone string, from model.MessageDirection, at time.Time) error {
	f.recorded = append(f.recorded, from)
	return nil
}

func (f *fakeConversations) SetStatus(ctx context.Context, id string, status model.ConversationStatus, deadline *time.Time) (bool, error) {
	f.statuses[id] = statusChange{status: status, deadline: deadline}
	return true, nil
}

func (f *fakeConversations) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Conversation, error) {
	return nil, nil
}

func (f *fakeConversations) ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]model.Conversation, error) {
	return f.stalled, nil
}

type fakeGuardSource struct {
	topicCount int
	excluded   bool
	lastSent   *time.Time
}

func (f *fakeGuardSource) CountTopicMessages(ctx context.Context, customerID int64, topicID string) (int, error) {
	return f.topicCount, nil
}

func (f *fakeGuardSource) LastMessageAt(ctx context.Context, customerID int64) (*time.Time, error) {
	return f.lastSent, nil
}

func (f *fakeGuardSource) IsExcluded(ctx context.Context, phone string, now time.Time) (bool, error) {
	return f.excluded, nil
}

type fakeEscalationsRepo struct {
	records []model.EscalationRecord
}

func (f *fakeEscalationsRepo) Insert(ctx context.Context, tx *sqlx.Tx, rec model.EscalationRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeEscalationsRepo) Get(ctx context.Context, id string) (*model.EscalationRecord, error) {
	return nil, nil
}

func (f *fakeEscalationsRepo) List(ctx context.Context, status model.EscalationStatus, limit int) ([]model.EscalationRecord, error) {
	return nil, nil
}

func (f *fakeEscalationsRepo) UpdateStatus(ctx context.Context, id string, status model.EscalationStatus) (bool, error) {
	return true, nil
}

type fakeOutbox struct{ topics []string }

func (f *fakeOutbox) Insert(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload []byte) error {
	f.topics = append(f.topics, topic)
	return nil
}

type passLocks struct{}

func (passLocks) WithCustomer(ctx context.Context, customerID int64, fn func() error) error {
	return fn()
}

// ---- harness ----

type harness struct {
	eng           *Engine
	scheduled     *fakeScheduled
	conversations *fakeConversations
	guardSrc      *fakeGuardSource
	escalations   *fakeEscalationsRepo
	settings      *fakeSettings
}

func newHarness() *harness {
	h := &harness{
		scheduled:     newFakeScheduled(),
		conversations: newFakeConversations(),
		guardSrc:      &fakeGuardSource{},
		escalations:   &fakeEscalationsRepo{},
		settings: &fakeSettings{snap: model.AutoMessageSettings{
			MaxMessagesPerTopic: 3,
			CooldownHours:       24,
			DNDStartHour:        21,
			DNDEndHour:          9,
			NoResponseDays:      2,
			Enabled:             true,
			Templates: model.Templates{
				NoResponse:     "Still there, {name}?",
				OrderConfirmed: "Order {order_id} confirmed.",
				HumanTakeover:  "A team member has taken over.",
				AIUncertain:    "A specialist will follow up.",
			},
		}},
	}

	router := escalation.NewRouter(h.escalations, &fakeOutbox{}, false)
	h.eng = New(h.settings, h.scheduled, h.conversations, h.guardSrc, router, passLocks{}, 4*time.Hour)
	h.eng.now = func() time.Time { return testNow }
	return h
}

func orderEvent() model.Event {
	return model.Event{
		Kind:           model.EventOrderStatus,
		Status:         model.OrderConfirmed,
		CustomerID:     7,
		ConversationID: "conv-1",
		TopicID:        "order-9",
		Phone:          "+15550001111",
		OccurredAt:     testNow,
		Variables:      map[string]string{"order_id": "ORD-9"},
	}
}

// ---- tests ----

func TestHandleEventSchedulesImmediateTrigger(t *testing.T) {
	h := newHarness()

	out, err := h.eng.HandleEvent(context.Background(), orderEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ScheduledID == "" {
		t.Fatal("expected a scheduled entry")
	}
	if len(h.scheduled.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(h.scheduled.inserted))
	}

	m := h.scheduled.inserted[0]
	if m.Status != model.ScheduledPending {
		t.Errorf("new entry status %q, want pending", m.Status)
	}
	if m.Message != "Order ORD-9 confirmed." {
		t.Errorf("rendered message %q", m.Message)
	}
	if !m.ScheduledFor.Equal(testNow) {
		t.Errorf("immediate trigger due %v, want now", m.ScheduledFor)
	}
}

func TestHandleEventDelayedTriggerDueLater(t *testing.T) {
	h := newHarness()
	ev := model.Event{
		Kind:           model.EventCustomerMessage,
		CustomerID:     7,
		ConversationID: "conv-1",
		Phone:          "+15550001111",
		OccurredAt:     testNow,
		Variables:      map[string]string{"name": "Sara"},
	}

	out, err := h.eng.HandleEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ScheduledID == "" {
		t.Fatal("expected a scheduled entry")
	}

	m := h.scheduled.inserted[0]
	want := testNow.Add(48 * time.Hour)
	if !m.ScheduledFor.Equal(want) {
		t.Errorf("due %v, want %v", m.ScheduledFor, want)
	}
	if len(h.conversations.recorded) != 1 || h.conversations.recorded[0] != model.FromCustomer {
		t.Errorf("customer message not recorded: %v", h.conversations.recorded)
	}
}

func TestHandleEventGuardDenial(t *testing.T) {
	h := newHarness()
	h.guardSrc.excluded = true

	out, err := h.eng.HandleEvent(context.Background(), orderEvent())
	if err != nil {
		t.Fatalf("a denial is an outcome, not an error: %v", err)
	}
	if out.DeniedReason != guard.DenyExcluded {
		t.Errorf("got reason %q, want excluded", out.DeniedReason)
	}
	if len(h.scheduled.inserted) != 0 {
		t.Error("denied trigger must not schedule")
	}
}

func TestHandleEventDuplicateSuppressed(t *testing.T) {
	h := newHarness()
	h.scheduled.active = true

	out, err := h.eng.HandleEvent(context.Background(), orderEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Suppressed {
		t.Error("expected suppression of duplicate active entry")
	}
	if len(h.scheduled.inserted) != 0 {
		t.Error("suppressed trigger must not schedule")
	}
}

func TestHandleEventMissingTemplate(t *testing.T) {
	h := newHarness()
	h.settings.snap.Templates.OrderConfirmed = ""

	out, err := h.eng.HandleEvent(context.Background(), orderEvent())
	if err != nil {
		t.Fatalf("a missing template fails closed, not loudly: %v", err)
	}
	if !out.NoTemplate {
		t.Error("expected NoTemplate outcome")
	}
	if len(h.scheduled.inserted) != 0 {
		t.Error("no template, nothing to schedule")
	}
}

func TestHandleEventOwnerReplyCancelsFollowUps(t *testing.T) {
	h := newHarness()
	h.scheduled.cancelN = 2

	out, err := h.eng.HandleEvent(context.Background(), model.Event{
		Kind:           model.EventOwnerReply,
		CustomerID:     7,
		ConversationID: "conv-1",
		Phone:          "+15550001111",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Cancelled != 2 {
		t.Errorf("got %d cancellations, want 2", out.Cancelled)
	}
	if h.scheduled.cancelled["conv-1"] != "owner_replied" {
		t.Errorf("follow-ups not cancelled: %v", h.scheduled.cancelled)
	}
	if len(h.scheduled.inserted) != 0 {
		t.Error("owner reply must not schedule anything")
	}
}

func TestHandleEventHumanTakeoverEscalates(t *testing.T) {
	h := newHarness()

	ev := orderEvent()
	ev.Kind = model.EventHumanTakeover
	ev.Status = ""

	out, err := h.eng.HandleEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Escalation == nil {
		t.Fatal("expected an escalation")
	}
	if out.Escalation.Priority != model.PriorityHigh {
		t.Errorf("got priority %q, want high", out.Escalation.Priority)
	}
	if out.ScheduledID == "" {
		t.Error("takeover also sends the courtesy message")
	}

	st, ok := h.conversations.statuses["conv-1"]
	if !ok || st.status != model.ConversationEscalated {
		t.Errorf("conversation not marked escalated: %+v", st)
	}
	if st.deadline == nil {
		t.Fatal("escalation must start the SLA clock")
	}
	if want := testNow.Add(4 * time.Hour); !st.deadline.Equal(want) {
		t.Errorf("deadline %v, want %v", st.deadline, want)
	}
}

func TestHandleEventAIUncertainMediumPriority(t *testing.T) {
	h := newHarness()

	ev := orderEvent()
	ev.Kind = model.EventAISignal
	ev.Status = ""
	ev.AIUncertain = true

	out, err := h.eng.HandleEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Escalation == nil || out.Escalation.Priority != model.PriorityMedium {
		t.Errorf("expected medium-priority escalation, got %+v", out.Escalation)
	}
}

func TestHandleEventConversationStatus(t *testing.T) {
	h := newHarness()

	t.Run("waiting starts the clock", func(t *testing.T) {
		_, err := h.eng.HandleEvent(context.Background(), model.Event{
			Kind:           model.EventConversationStatus,
			ConversationID: "conv-1",
			Status:         "waiting_for_owner",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		st := h.conversations.statuses["conv-1"]
		if st.status != model.ConversationWaitingForOwner || st.deadline == nil {
			t.Errorf("expected waiting with deadline, got %+v", st)
		}
	})

	t.Run("resolved clears the deadline", func(t *testing.T) {
		_, err := h.eng.HandleEvent(context.Background(), model.Event{
			Kind:           model.EventConversationStatus,
			ConversationID: "conv-1",
			Status:         "resolved",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		st := h.conversations.statuses["conv-1"]
		if st.status != model.ConversationResolved || st.deadline != nil {
			t.Errorf("expected resolved with nil deadline, got %+v", st)
		}
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		_, err := h.eng.HandleEvent(context.Background(), model.Event{
			Kind:           model.EventConversationStatus,
			ConversationID: "conv-1",
			Status:         "parked",
		})
		if err == nil {
			t.Fatal("expected error for invalid status")
		}
	})
}

func TestHandleEventUnknownKind(t *testing.T) {
	h := newHarness()
	if _, err := h.eng.HandleEvent(context.Background(), model.Event{Kind: "reboot"}); err == nil {
		t.Fatal("expected error for unknown event kind")
	}
}

func TestSweepSchedulesStalledConversations(t *testing.T) {
	h := newHarness()
	h.conversations.stalled = []model.Conversation{
		{
			ID:              "conv-quiet",
			CustomerID:      7,
			Phone:           "+15550001111",
			Status:          model.ConversationActive,
			LastMessageAt:   testNow.Add(-72 * time.Hour),
			LastMessageFrom: model.FromCustomer,
		},
		{
			// Inside the window; the sweep query is a coarse cutoff, the
			// evaluator re-checks per conversation.
			ID:              "conv-fresh",
			CustomerID:      8,
			Phone:           "+15550002222",
			Status:          model.ConversationActive,
			LastMessageAt:   testNow.Add(-time.Hour),
			LastMessageFrom: model.FromCustomer,
		},
	}

	if err := h.eng.Sweep(context.Background(), 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.scheduled.inserted) != 1 {
		t.Fatalf("expected 1 scheduled entry, got %d", len(h.scheduled.inserted))
	}
	if h.scheduled.inserted[0].ConversationID != "conv-quiet" {
		t.Errorf("wrong conversation scheduled: %q", h.scheduled.inserted[0].ConversationID)
	}
	if h.scheduled.inserted[0].Trigger != model.TriggerNoResponse {
		t.Errorf("got trigger %q, want no_response", h.scheduled.inserted[0].Trigger)
	}
}
