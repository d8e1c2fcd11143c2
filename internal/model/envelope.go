package model

// Kafka topics fed from the outbox table (Debezium outbox SMT, same pipeline
// shape as the rest of the platform).
const (
	HistoryKafkaTopic     = "automsg.history"
	EscalationsKafkaTopic = "automsg.escalations"
)

// HistoryEnvelope is the outbox payload emitted when a message is sent;
// consumed by the archiver worker into ClickHouse.
type HistoryEnvelope struct {
	ID    string       `json:"id"` // history entry ULID
	Entry HistoryEntry `json:"entry"`
}

// EscalationEnvelope is the outbox payload emitted on escalation creation;
// consumed by the notifier worker to ping the owner channel.
type EscalationEnvelope struct {
	ID     string           `json:"id"` // escalation ULID
	Record EscalationRecord `json:"record"`
}
