package workers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ballot/contexts/elections/election-service/adapters/memory"
	"ballot/contexts/elections/election-service/application/workers"
	"ballot/contexts/elections/election-service/domain/entities"
	"ballot/contexts/elections/election-service/ports"
	"ballot/internal/platform/messaging"
)

var baseTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// movableClock is a Clock the test can advance while subscribers read it.
type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sequenceIDs struct{ next atomic.Int64 }

func (g *sequenceIDs) NewID(context.Context) (string, error) {
	return fmt.Sprintf("event-%04d", g.next.Add(1)), nil
}

// lockedBuffer collects log output written from subscriber goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Count(substr string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), substr)
}

func seedActiveElection(t *testing.T, store *memory.Store, id string, endAt time.Time) {
	t.Helper()
	ctx := context.Background()
	if err := store.CreateElection(ctx, entities.Election{
		ElectionID: id,
		Slug:       id,
		Name:       "Election " + id,
		Status:     entities.ElectionStatusDraft,
		StartAt:    baseTime,
		EndAt:      endAt,
		CreatedAt:  baseTime,
	}); err != nil {
		t.Fatalf("create election: %v", err)
	}
	if _, err := store.CreateTokenBatch(ctx, id, []entities.Token{{TokenID: id + "-token", Code: id + "-CODE"}}); err != nil {
		t.Fatalf("create token: %v", err)
	}
	if _, err := store.ActivateElection(ctx, id, baseTime); err != nil {
		t.Fatalf("activate: %v", err)
	}
}

func TestElectionCloserClosesEndedElectionsOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedActiveElection(t, store, "ended", baseTime.Add(time.Hour))
	if err := store.ReplaceSession(ctx, entities.VoterSession{
		SessionID:   "stale",
		TokenID:     "ended-token",
		ElectionID:  "ended",
		SessionHash: "hash",
		ExpiresAt:   baseTime.Add(30 * time.Minute),
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	closer := workers.ElectionCloser{
		Elections: store,
		Sessions:  store,
		Admins:    store,
		Outbox:    store,
		Clock:     fixedClock{now: baseTime.Add(2 * time.Hour)},
		IDGen:     &sequenceIDs{},
	}
	report, err := closer.RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.ClosedElections != 1 || report.ExpiredVoterSessions != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	election, err := store.GetElection(ctx, "ended")
	if err != nil || election.Status != entities.ElectionStatusClosed || election.ClosedAt == nil {
		t.Fatalf("expected election closed, got %+v err=%v", election, err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].EventType != "election.closed" {
		t.Fatalf("expected one election.closed event, got %+v err=%v", pending, err)
	}
	var envelope ports.EventEnvelope
	if err := json.Unmarshal(pending[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.PartitionKey != "ended" || !strings.Contains(string(envelope.Data), "schedule_ended") {
		t.Fatalf("unexpected envelope %+v", envelope)
	}

	again, err := closer.RunOnce(ctx)
	if err != nil || again.ClosedElections != 0 {
		t.Fatalf("expected second sweep to be a no-op, got %+v err=%v", again, err)
	}
}

func TestElectionCloserLeavesOpenElections(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedActiveElection(t, store, "open", baseTime.Add(3*time.Hour))

	report, err := workers.ElectionCloser{Elections: store, Clock: fixedClock{now: baseTime.Add(3 * time.Hour)}}.RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.ClosedElections != 0 {
		t.Fatalf("an election is open through its end instant, got %+v", report)
	}
}

type staticReports struct {
	ports.ResultRepository
	reports []entities.IntegrityReport
	err     error
}

func (s staticReports) IntegrityReports(context.Context) ([]entities.IntegrityReport, error) {
	return s.reports, s.err
}

func TestIntegrityCheckerReportsMismatches(t *testing.T) {
	checker := workers.IntegrityChecker{Results: staticReports{reports: []entities.IntegrityReport{
		{ElectionID: "ok", Votes: 4, UsedTokens: 4},
		{ElectionID: "broken", Votes: 3, UsedTokens: 4},
	}}}
	mismatches, err := checker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(mismatches) != 1 || mismatches[0].ElectionID != "broken" {
		t.Fatalf("expected the broken election reported, got %+v", mismatches)
	}

	failing := workers.IntegrityChecker{Results: staticReports{err: errors.New("store down")}}
	if _, err := failing.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected store error surfaced")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, ports.EventEnvelope) error {
	return errors.New("bus unavailable")
}

func TestOutboxRelayKeepsRowsOnPublishFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	appendEvents(t, store, 2)

	published, err := workers.OutboxRelay{Outbox: store, Publisher: failingPublisher{}}.RunOnce(ctx)
	if err == nil || published != 0 {
		t.Fatalf("expected publish failure, got %d err=%v", published, err)
	}
	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected rows kept for retry, got %d err=%v", len(pending), err)
	}
}

func TestRelayFeedsAuditConsumerOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logs := &lockedBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	store := memory.NewStore()
	bus := messaging.NewBus(logger)

	audit := workers.AuditConsumer{Subscriber: bus, Dedup: store, Clock: fixedClock{now: baseTime}, Logger: logger}
	if err := audit.Start(ctx); err != nil {
		t.Fatalf("start audit consumer: %v", err)
	}
	for _, topic := range workers.AuditTopics {
		if bus.Subscribers(topic) != 1 {
			t.Fatalf("expected a subscription on %s", topic)
		}
	}

	appendEvents(t, store, 3)
	relay := workers.OutboxRelay{Outbox: store, Publisher: bus, Clock: fixedClock{now: baseTime}, BatchSize: 2, Logger: logger}
	total := 0
	for i := 0; i < 3; i++ {
		published, err := relay.RunOnce(ctx)
		if err != nil {
			t.Fatalf("relay: %v", err)
		}
		total += published
	}
	if total != 3 {
		t.Fatalf("expected 3 events relayed, got %d", total)
	}

	// Redelivery of an already audited event is skipped.
	replay := ports.EventEnvelope{
		EventID:   "event-0001",
		EventType: "election.created",
		Data:      json.RawMessage(`{"election_id":"election-1","actor_id":"admin-1"}`),
	}
	if err := bus.Publish(ctx, replay.EventType, replay); err != nil {
		t.Fatalf("republish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for logs.Count(`"event":"election_audit"`) < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if got := logs.Count(`"event":"election_audit"`); got != 3 {
		t.Fatalf("expected 3 audit lines, got %d", got)
	}
}

func TestAuditDedupWindowFollowsConsumerClock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logs := &lockedBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	bus := messaging.NewBus(logger)
	// Years behind the wall clock: expiry must be judged on this clock alone.
	clock := &movableClock{now: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)}
	audit := workers.AuditConsumer{
		Subscriber: bus,
		Dedup:      memory.NewStore(),
		Clock:      clock,
		DedupTTL:   time.Hour,
		Logger:     logger,
	}
	if err := audit.Start(ctx); err != nil {
		t.Fatalf("start audit consumer: %v", err)
	}

	event := ports.EventEnvelope{
		EventID:   "event-0042",
		EventType: "election.activated",
		Data:      json.RawMessage(`{"election_id":"election-1"}`),
	}
	deliver := func(want int) {
		t.Helper()
		if err := bus.Publish(ctx, event.EventType, event); err != nil {
			t.Fatalf("publish: %v", err)
		}
		deadline := time.Now().Add(2 * time.Second)
		for logs.Count(`"event":"election_audit"`) < want && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		time.Sleep(50 * time.Millisecond)
		if got := logs.Count(`"event":"election_audit"`); got != want {
			t.Fatalf("expected %d audit lines, got %d", want, got)
		}
	}

	deliver(1)
	clock.Advance(30 * time.Minute)
	deliver(1)
	clock.Advance(time.Hour)
	deliver(2)
}

func TestAuditConsumerDisabled(t *testing.T) {
	bus := messaging.NewBus(nil)
	if err := (workers.AuditConsumer{Subscriber: bus, Disabled: true}).Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if bus.Subscribers("election.created") != 0 {
		t.Fatalf("disabled consumer must not subscribe")
	}
}

func appendEvents(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
			EventID:       fmt.Sprintf("event-%04d", i),
			EventType:     "election.created",
			OccurredAt:    baseTime.Add(time.Duration(i) * time.Second),
			SourceService: "election-service",
			PartitionKey:  fmt.Sprintf("election-%d", i),
			Data:          json.RawMessage(fmt.Sprintf(`{"election_id":"election-%d","actor_id":"admin-1"}`, i)),
		}); err != nil {
			t.Fatalf("append outbox: %v", err)
		}
	}
}
