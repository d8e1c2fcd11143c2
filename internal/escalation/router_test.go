package escalation

import (
	"context"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/nkarimi/automsg-engine/internal/model"
)

type fakeEscalationsRepo struct {
	records   map[string]model.EscalationRecord
	insertErr error
}

func newFakeEscalationsRepo() *fakeEscalationsRepo {
	return &fakeEscalationsRepo{records: map[string]model.EscalationRecord{}}
}

func (f *fakeEscalationsRepo) Insert(ctx context.Context, tx *sqlx.Tx, rec model.EscalationRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeEscalationsRepo) Get(ctx context.Context, id string) (*model.EscalationRecord, error) {
	if rec, ok := f.records[id]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (f *fakeEscalationsRepo) List(ctx context.Context, status model.EscalationStatus, limit int) ([]model.EscalationRecord, error) {
	var out []model.EscalationRecord
	for _, rec := range f.records {
		if status == "" || rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeEscalationsRepo) UpdateStatus(ctx context.Context, id string, status model.EscalationStatus) (bool, error) {
	rec, ok := f.records[id]
	if !ok {
		return false, nil
	}
	rec.Status = status
	f.records[id] = rec
	return true, nil
}

type fakeOutbox struct {
	topics []string
	err    error
}

func (f *fakeOutbox) Insert(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	return nil
}

func TestCreateAlwaysPending(t *testing.T) {
	repo := newFakeEscalationsRepo()
	r := NewRouter(repo, &fakeOutbox{}, false)

	rec, err := r.Create(context.Background(), 7, "conv-1", "human_takeover", model.PriorityHigh, "please call me")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != model.EscalationPending {
		t.Errorf("new escalation must be pending, got %q", rec.Status)
	}
	if rec.Priority != model.PriorityHigh {
		t.Errorf("got priority %q", rec.Priority)
	}
	if rec.ID == "" {
		t.Error("expected a generated id")
	}
	if _, ok := repo.records[rec.ID]; !ok {
		t.Error("record not persisted")
	}
}

func TestCreateInvalidPriorityDefaultsMedium(t *testing.T) {
	r := NewRouter(newFakeEscalationsRepo(), &fakeOutbox{}, false)

	rec, err := r.Create(context.Background(), 7, "conv-1", "ai_uncertain", model.EscalationPriority("urgent!!"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Priority != model.PriorityMedium {
		t.Errorf("got priority %q, want medium", rec.Priority)
	}
}

func TestCreateNotifyEnqueuesOutboxEvent(t *testing.T) {
	outbox := &fakeOutbox{}
	r := NewRouter(newFakeEscalationsRepo(), outbox, true)

	if _, err := r.Create(context.Background(), 7, "conv-1", "human_takeover", model.PriorityHigh, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outbox.topics) != 1 || outbox.topics[0] != model.EscalationsKafkaTopic {
		t.Errorf("expected one envelope on %q, got %v", model.EscalationsKafkaTopic, outbox.topics)
	}
}

func TestCreateNotifyDisabledSkipsOutbox(t *testing.T) {
	outbox := &fakeOutbox{}
	r := NewRouter(newFakeEscalationsRepo(), outbox, false)

	if _, err := r.Create(context.Background(), 7, "conv-1", "human_takeover", model.PriorityHigh, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outbox.topics) != 0 {
		t.Errorf("notify disabled, got outbox events %v", outbox.topics)
	}
}

// A broken notify channel must not block record creation.
func TestCreateSucceedsWhenOutboxFails(t *testing.T) {
	repo := newFakeEscalationsRepo()
	r := NewRouter(repo, &fakeOutbox{err: fmt.Errorf("outbox down")}, true)

	rec, err := r.Create(context.Background(), 7, "conv-1", "human_takeover", model.PriorityHigh, "")
	if err != nil {
		t.Fatalf("record creation must survive a notify failure: %v", err)
	}
	if _, ok := repo.records[rec.ID]; !ok {
		t.Error("record not persisted")
	}
}

func TestUpdateStatusAnyTransition(t *testing.T) {
	repo := newFakeEscalationsRepo()
	r := NewRouter(repo, &fakeOutbox{}, false)

	rec, _ := r.Create(context.Background(), 7, "conv-1", "human_takeover", model.PriorityHigh, "")

	// forward and backward transitions are both permitted
	for _, st := range []model.EscalationStatus{
		model.EscalationResolved,
		model.EscalationReviewed,
		model.EscalationPending,
	} {
		found, err := r.UpdateStatus(context.Background(), rec.ID, st)
		if err != nil {
			t.Fatalf("transition to %q: %v", st, err)
		}
		if !found {
			t.Fatalf("transition to %q: record not found", st)
		}
		if repo.records[rec.ID].Status != st {
			t.Errorf("status not applied, got %q", repo.records[rec.ID].Status)
		}
	}
}

func TestUpdateStatusInvalid(t *testing.T) {
	r := NewRouter(newFakeEscalationsRepo(), &fakeOutbox{}, false)
	if _, err := r.UpdateStatus(context.Background(), "any", model.EscalationStatus("archived")); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestUpdateStatusMissingRecord(t *testing.T) {
	r := NewRouter(newFakeEscalationsRepo(), &fakeOutbox{}, false)
	found, err := r.UpdateStatus(context.Background(), "nope", model.EscalationResolved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected found=false for missing record")
	}
}
