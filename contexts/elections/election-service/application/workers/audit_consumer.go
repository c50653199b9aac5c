package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "ballot/contexts/elections/election-service/application"
	"ballot/contexts/elections/election-service/ports"
)

const (
	defaultAuditConsumerGroup = "election-service-audit-cg"
	defaultAuditDedupTTL      = 7 * 24 * time.Hour
)

// AuditTopics are the lifecycle events written to the audit log.
var AuditTopics = []string{
	"election.created",
	"election.activated",
	"election.closed",
	"election.archived",
	"election.results_published",
	"election.results_hidden",
	"tokens.generated",
	"token.invalidated",
}

// AuditConsumer writes one structured audit line per lifecycle event.
// Delivery is at-least-once, so events are deduplicated by id.
type AuditConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c AuditConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("audit consumer disabled by feature flag",
			"event", "election_audit_consumer_disabled",
			"module", application.ModuleName,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultAuditConsumerGroup
	}
	for _, topic := range AuditTopics {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.handle); err != nil {
			logger.Error("audit consumer subscribe failed",
				"event", "election_audit_consumer_subscribe_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"topic", topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("audit consumer subscriptions active",
		"event", "election_audit_consumer_started",
		"module", application.ModuleName,
		"layer", "worker",
		"consumer_group", group,
		"topics", len(AuditTopics),
	)
	return nil
}

func (c AuditConsumer) handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	now := resolveNow(c.Clock)
	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, ports.EventReservation{
		EventID:     event.EventID,
		PayloadHash: hashPayload(event.Data),
		Now:         now,
		ExpiresAt:   now.Add(c.dedupTTL()),
	})
	if err != nil {
		logger.Error("audit event dedupe failed",
			"event", "election_audit_dedupe_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return err
	}
	if alreadyProcessed {
		logger.Debug("audit event replay skipped",
			"event", "election_audit_replayed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload struct {
		ElectionID string `json:"election_id"`
		TokenID    string `json:"token_id"`
		ActorID    string `json:"actor_id"`
		Status     string `json:"status"`
		Reason     string `json:"reason"`
		Batch      int    `json:"batch"`
		Count      int    `json:"count"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("audit event decode failed",
			"event", "election_audit_decode_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	attrs := []any{
		"event", "election_audit",
		"module", application.ModuleName,
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"occurred_at", event.OccurredAt.Format(time.RFC3339),
		"election_id", payload.ElectionID,
		"actor_id", payload.ActorID,
	}
	if payload.Status != "" {
		attrs = append(attrs, "status", payload.Status)
	}
	if payload.Reason != "" {
		attrs = append(attrs, "reason", payload.Reason)
	}
	if payload.TokenID != "" {
		attrs = append(attrs, "token_id", payload.TokenID)
	}
	if payload.Count > 0 {
		attrs = append(attrs, "batch", payload.Batch, "count", payload.Count)
	}
	logger.Info("audit", attrs...)
	return nil
}

func (c AuditConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return defaultAuditDedupTTL
	}
	return c.DedupTTL
}
