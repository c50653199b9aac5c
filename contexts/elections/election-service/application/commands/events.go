package commands

import (
	"context"
	"encoding/json"
	"time"

	eventsv1 "ballot/contracts/gen/events/v1"
	"ballot/contexts/elections/election-service/domain/entities"
	"ballot/contexts/elections/election-service/ports"
)

const (
	EventElectionCreated          = "election.created"
	EventElectionActivated        = "election.activated"
	EventElectionClosed           = "election.closed"
	EventElectionArchived         = "election.archived"
	EventElectionResultsPublished = "election.results_published"
	EventElectionResultsHidden    = "election.results_hidden"
	EventTokensGenerated          = "tokens.generated"
	EventTokenInvalidated         = "token.invalidated"
)

func newElectionEnvelope(
	eventID string,
	eventType string,
	partitionKey string,
	occurredAt time.Time,
	data any,
) (ports.EventEnvelope, error) {
	// All events are partitioned by election so consumers see one election's
	// lifecycle in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "election-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "election_id",
		PartitionKey:     partitionKey,
		Data:             payload,
	}, nil
}

// appendEvent is a no-op when no outbox is wired (pure read/test wiring).
func appendEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	ids ports.IDGenerator,
	eventType string,
	electionID string,
	occurredAt time.Time,
	data any,
) error {
	if outbox == nil || ids == nil {
		return nil
	}
	eventID, err := ids.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newElectionEnvelope(eventID, eventType, electionID, occurredAt, data)
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, envelope)
}

func electionEventData(election entities.Election, actorID string, reason string, occurredAt time.Time) eventsv1.ElectionEventData {
	return eventsv1.ElectionEventData{
		ElectionID:     election.ElectionID,
		Slug:           election.Slug,
		Status:         string(election.Status),
		IsResultPublic: election.IsResultPublic,
		ActorID:        actorID,
		Reason:         reason,
		OccurredAt:     occurredAt.UTC().Format(time.RFC3339),
	}
}
