package model

import "testing"

func validSettings() AutoMessageSettings {
	return AutoMessageSettings{
		MaxMessagesPerTopic: 3,
		CooldownHours:       24,
		DNDStartHour:        21,
		DNDEndHour:          9,
		NoResponseDays:      2,
	}
}

func TestSettingsValidate(t *testing.T) {
	if err := validSettings().Validate(); err != nil {
		t.Fatalf("valid settings rejected: %v", err)
	}

	tests := []struct {
		name string
		mod  func(*AutoMessageSettings)
	}{
		{"zero topic cap", func(s *AutoMessageSettings) { s.MaxMessagesPerTopic = 0 }},
		{"negative cooldown", func(s *AutoMessageSettings) { s.CooldownHours = -1 }},
		{"dnd start too high", func(s *AutoMessageSettings) { s.DNDStartHour = 24 }},
		{"dnd end negative", func(s *AutoMessageSettings) { s.DNDEndHour = -1 }},
		{"zero no-response days", func(s *AutoMessageSettings) { s.NoResponseDays = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := validSettings()
			tc.mod(&s)
			if err := s.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTemplatesByTriggerCoversAllTypes(t *testing.T) {
	all := []TriggerType{
		TriggerNoResponse, TriggerPartialConversation, TriggerPriceShared,
		TriggerOrderConfirmed, TriggerPaymentReceived, TriggerOrderCompleted,
		TriggerTicketCreated, TriggerTicketUpdated, TriggerTicketResolved,
		TriggerAIUncertain, TriggerHumanTakeover,
	}

	var tpls Templates
	for _, tr := range all {
		if !tpls.SetByTrigger(tr, "t:"+tr.String()) {
			t.Errorf("SetByTrigger rejected %q", tr)
		}
	}
	for _, tr := range all {
		got, ok := tpls.ByTrigger(tr)
		if !ok || got != "t:"+tr.String() {
			t.Errorf("ByTrigger(%q) = (%q, %v)", tr, got, ok)
		}
	}

	if _, ok := tpls.ByTrigger(TriggerType("bogus")); ok {
		t.Error("unknown trigger must not resolve")
	}
}

func TestParseTriggerType(t *testing.T) {
	if tr, ok := ParseTriggerType("  No_Response "); !ok || tr != TriggerNoResponse {
		t.Errorf("got (%q, %v)", tr, ok)
	}
	if _, ok := ParseTriggerType("carrier_pigeon"); ok {
		t.Error("invalid trigger accepted")
	}
}
