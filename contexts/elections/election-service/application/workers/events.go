package workers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	eventsv1 "ballot/contracts/gen/events/v1"
	"ballot/contexts/elections/election-service/domain/entities"
	"ballot/contexts/elections/election-service/ports"
)

const (
	eventElectionClosed = "election.closed"
	sweepActorID        = "system:close-sweep"
)

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// newSweepEnvelope builds the election.closed event emitted when the sweep
// closes an election whose window has ended.
func newSweepEnvelope(eventID string, election entities.Election, occurredAt time.Time) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(eventsv1.ElectionEventData{
		ElectionID:     election.ElectionID,
		Slug:           election.Slug,
		Status:         string(election.Status),
		IsResultPublic: election.IsResultPublic,
		ActorID:        sweepActorID,
		Reason:         "schedule_ended",
		OccurredAt:     occurredAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventElectionClosed,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "election-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "election_id",
		PartitionKey:     election.ElectionID,
		Data:             payload,
	}, nil
}

func resolveNow(clock ports.Clock) time.Time {
	if clock != nil {
		return clock.Now().UTC()
	}
	return time.Now().UTC()
}
