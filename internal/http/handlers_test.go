package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"
	"github.com/nkarimi/automsg-engine/internal/model"
	"github.com/nkarimi/automsg-engine/internal/settings"
)

type fakeScheduledRepo struct {
	entries map[string]*model.ScheduledMessage
}

func newFakeScheduledRepo(entries ...*model.ScheduledMessage) *fakeScheduledRepo {
	f := &fakeScheduledRepo{entries: map[string]*model.ScheduledMessage{}}
	for _, m := range entries {
		f.entries[m.ID] = m
	}
	return f
}

func (f *fakeScheduledRepo) Insert(ctx context.Context, tx *sqlx.Tx, m model.ScheduledMessage) error {
	f.entries[m.ID] = &m
	return nil
}

func (f *fakeScheduledRepo) Get(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	return f.entries[id], nil
}

func (f *fakeScheduledRepo) List(ctx context.Context, limit int) ([]model.ScheduledMessage, error) {
	var out []model.ScheduledMessage
	for _, m := range f.entries {
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeScheduledRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	return nil, nil
}

func (f *fakeScheduledRepo) MarkSent(ctx context.Context, tx *sqlx.Tx, id string) error { return nil }
func (f *fakeScheduledRepo) MarkFailed(ctx context.Context, id, reason string) error    { return nil }

func (f *fakeScheduledRepo) Cancel(ctx context.Context, id, reason string) (bool, error) {
	m, ok := f.entries[id]
	if !ok || m.Status != model.ScheduledPending {
		return false, nil
	}
	m.Status = model.ScheduledCancelled
	m.StatusReason = reason
	return true, nil
}

func (f *fakeScheduledRepo) CancelSending(ctx context.Context, id, reason string) error { return nil }
func (f *fakeScheduledRepo) Requeue(ctx context.Context, id string) error               { return nil }

func (f *fakeScheduledRepo) CancelFollowUps(ctx context.Context, conversationID, reason string) (int64, error) {
	return 0, nil
}

func (f *fakeScheduledRepo) ExistsActive(ctx context.Context, customerID int64, topicID string, tr model.TriggerType) (bool, error) {
	return false, nil
}

func (f *fakeScheduledRepo) RequeueStaleSending(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeSettingsRepo struct {
	stored *model.AutoMessageSettings
}

func (f *fakeSettingsRepo) Get(ctx context.Context) (*model.AutoMessageSettings, error) {
	return f.stored, nil
}

func (f *fakeSettingsRepo) Save(ctx context.Context, s model.AutoMessageSettings) error {
	f.stored = &s
	return nil
}

func doRequest(h echo.HandlerFunc, method, path, body string, params map[string]string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for k, v := range params {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	_ = h(c)
	return rec
}

func TestCancelScheduledPending(t *testing.T) {
	repo := newFakeScheduledRepo(&model.ScheduledMessage{ID: "m1", Status: model.ScheduledPending})

	rec := doRequest(cancelScheduled(repo), http.MethodDelete, "/v1/scheduled/m1", "", map[string]string{"id": "m1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["cancelled"] != true {
		t.Errorf("expected cancelled=true, got %v", resp)
	}
	if repo.entries["m1"].Status != model.ScheduledCancelled {
		t.Errorf("entry status %q", repo.entries["m1"].Status)
	}
}

// Cancelling twice, or cancelling a sent entry, reports the current state
// instead of failing.
func TestCancelScheduledIdempotent(t *testing.T) {
	repo := newFakeScheduledRepo(
		&model.ScheduledMessage{ID: "done", Status: model.ScheduledSent},
		&model.ScheduledMessage{ID: "gone", Status: model.ScheduledCancelled},
	)

	rec := doRequest(cancelScheduled(repo), http.MethodDelete, "/v1/scheduled/done", "", map[string]string{"id": "done"})
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["cancelled"] != false || resp["status"] != "sent" {
		t.Errorf("sent entry must stay sent: %v", resp)
	}
	if repo.entries["done"].Status != model.ScheduledSent {
		t.Error("a sent message is never un-sent")
	}

	rec = doRequest(cancelScheduled(repo), http.MethodDelete, "/v1/scheduled/gone", "", map[string]string{"id": "gone"})
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat cancel got status %d", rec.Code)
	}
}

func TestCancelScheduledNotFound(t *testing.T) {
	repo := newFakeScheduledRepo()
	rec := doRequest(cancelScheduled(repo), http.MethodDelete, "/v1/scheduled/nope", "", map[string]string{"id": "nope"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404", rec.Code)
	}
}

func TestUpdateSettingsValidationError(t *testing.T) {
	store := settings.NewStore(&fakeSettingsRepo{})

	body := `{"max_messages_per_topic":0,"cooldown_hours":24,"dnd_start_hour":21,"dnd_end_hour":9,"no_response_days":2}`
	rec := doRequest(updateSettings(store), http.MethodPut, "/v1/settings", body, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("got status %d, want 422", rec.Code)
	}
	if store.Snapshot().MaxMessagesPerTopic == 0 {
		t.Error("invalid settings must not be applied")
	}
}

func TestUpdateSettingsOK(t *testing.T) {
	repo := &fakeSettingsRepo{}
	store := settings.NewStore(repo)

	body := `{"max_messages_per_topic":5,"cooldown_hours":12,"dnd_start_hour":22,"dnd_end_hour":8,"no_response_days":3,"enabled":true}`
	rec := doRequest(updateSettings(store), http.MethodPut, "/v1/settings", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	if repo.stored == nil || !repo.stored.Enabled {
		t.Error("settings not persisted")
	}
	if !store.Snapshot().Enabled {
		t.Error("snapshot not swapped")
	}
}

func TestUpdateTemplateInvalidTrigger(t *testing.T) {
	store := settings.NewStore(&fakeSettingsRepo{})
	rec := doRequest(updateTemplate(store), http.MethodPut, "/v1/settings/templates/bogus",
		`{"template":"hi"}`, map[string]string{"trigger": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", rec.Code)
	}
}
