package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automsg_triggers_total",
			Help: "Classified triggers by type",
		},
		[]string{"trigger"},
	)

	GuardDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automsg_guard_denials_total",
			Help: "Anti-spam guard denials by reason",
		},
		[]string{"reason"}, // disabled|excluded|topic_cap|cooldown|dnd_window
	)

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automsg_messages_total",
			Help: "Scheduled message lifecycle outcomes",
		},
		[]string{"outcome"}, // scheduled|sent|cancelled|failed
	)

	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automsg_escalations_total",
			Help: "Escalation records created by priority",
		},
		[]string{"priority"},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		TriggersTotal,
		GuardDenialsTotal,
		MessagesTotal,
		EscalationsTotal,
	)
}
