package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the versioned event shape shared by the outbox, the bus and
// every consumer of election lifecycle events.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// ElectionEventData is the payload of every election.* event.
type ElectionEventData struct {
	ElectionID     string `json:"election_id"`
	Slug           string `json:"slug"`
	Status         string `json:"status"`
	IsResultPublic bool   `json:"is_result_public"`
	ActorID        string `json:"actor_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}

// TokenEventData is the payload of token.* and tokens.* events. Codes never
// appear in events.
type TokenEventData struct {
	ElectionID string `json:"election_id"`
	TokenID    string `json:"token_id,omitempty"`
	Batch      int    `json:"batch,omitempty"`
	Count      int    `json:"count,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
