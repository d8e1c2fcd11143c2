package sla

import (
	"testing"
	"time"

	"github.com/nkarimi/automsg-engine/internal/model"
)

func TestDeadline(t *testing.T) {
	entered := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	got := Deadline(entered, 4*time.Hour)
	want := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		status   model.ConversationStatus
		deadline *time.Time
		want     bool
	}{
		{"waiting past deadline", model.ConversationWaitingForOwner, &past, true},
		{"escalated past deadline", model.ConversationEscalated, &past, true},
		{"waiting before deadline", model.ConversationWaitingForOwner, &future, false},
		{"waiting without deadline", model.ConversationWaitingForOwner, nil, false},
		{"active with stale deadline", model.ConversationActive, &past, false},
		{"resolved with stale deadline", model.ConversationResolved, &past, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := model.Conversation{Status: tc.status, SLADeadline: tc.deadline}
			if got := IsOverdue(c, now); got != tc.want {
				t.Errorf("IsOverdue = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	deadline := now.Add(90 * time.Minute)

	c := model.Conversation{Status: model.ConversationWaitingForOwner, SLADeadline: &deadline}
	if got := Remaining(c, now); got != 90*time.Minute {
		t.Errorf("got %v, want 90m", got)
	}

	c.Status = model.ConversationResolved
	if got := Remaining(c, now); got != 0 {
		t.Errorf("resolved conversation: got %v, want 0", got)
	}
}
