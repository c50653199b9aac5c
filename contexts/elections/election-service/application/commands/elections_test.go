package commands_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ballot/contexts/elections/election-service/application/commands"
	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
)

func TestActivateSecondElectionClosesTheFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	first := f.draftElection(t, "spring", baseTime)
	second := f.draftElection(t, "autumn", baseTime)

	f.clock.Set(baseTime.Add(time.Hour))
	if got := f.activate(t, first.ElectionID); got.Status != entities.ElectionStatusActive {
		t.Fatalf("expected first election active, got %s", got.Status)
	}

	f.clock.Set(baseTime.Add(90 * time.Minute))
	if got := f.activate(t, second.ElectionID); got.Status != entities.ElectionStatusActive {
		t.Fatalf("expected second election active, got %s", got.Status)
	}

	previous, err := f.store.GetElection(ctx, first.ElectionID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if previous.Status != entities.ElectionStatusClosed {
		t.Fatalf("expected first election closed, got %s", previous.Status)
	}
	active, err := f.store.ListElections(ctx, entities.ElectionFilter{Status: entities.ElectionStatusActive})
	if err != nil || len(active) != 1 || active[0].ElectionID != second.ElectionID {
		t.Fatalf("expected only the second election active, got %+v err=%v", active, err)
	}

	pending, err := f.store.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	seen := map[string]int{}
	for _, message := range pending {
		seen[message.EventType]++
	}
	if seen[commands.EventElectionActivated] != 2 || seen[commands.EventElectionClosed] != 1 || seen[commands.EventElectionCreated] != 2 {
		t.Fatalf("unexpected lifecycle events %v", seen)
	}
}

func TestActivateOutsideScheduleFails(t *testing.T) {
	f := newFixture()
	election := f.draftElection(t, "early", baseTime.Add(time.Hour))

	_, err := f.elections.Activate(context.Background(), commands.TransitionCommand{Actor: f.admin, ElectionID: election.ElectionID})
	if !errors.Is(err, domainerrors.ErrOutsideSchedule) {
		t.Fatalf("expected outside schedule before start, got %v", err)
	}
	f.clock.Set(baseTime.Add(4 * time.Hour))
	_, err = f.elections.Activate(context.Background(), commands.TransitionCommand{Actor: f.admin, ElectionID: election.ElectionID})
	if !errors.Is(err, domainerrors.ErrOutsideSchedule) {
		t.Fatalf("expected outside schedule after end, got %v", err)
	}
}

func TestConcurrentActivationsLeaveOneActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	var ids []string
	for _, slug := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, f.draftElection(t, slug, baseTime).ElectionID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = f.elections.Activate(ctx, commands.TransitionCommand{Actor: f.admin, ElectionID: id})
		}(id)
	}
	wg.Wait()

	active, err := f.store.ListElections(ctx, entities.ElectionFilter{Status: entities.ElectionStatusActive})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) > 1 {
		t.Fatalf("expected at most one active election, got %d", len(active))
	}
}

func TestScheduleFrozenAfterDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	election := f.draftElection(t, "frozen", baseTime)

	later := baseTime.Add(3 * time.Hour)
	updated, err := f.elections.UpdateElection(ctx, commands.UpdateElectionCommand{
		Actor:      f.admin,
		ElectionID: election.ElectionID,
		EndAt:      &later,
	})
	if err != nil {
		t.Fatalf("draft schedule update: %v", err)
	}
	if !updated.EndAt.Equal(later) {
		t.Fatalf("expected end moved to %v, got %v", later, updated.EndAt)
	}

	f.activate(t, election.ElectionID)
	evenLater := later.Add(time.Hour)
	_, err = f.elections.UpdateElection(ctx, commands.UpdateElectionCommand{
		Actor:      f.admin,
		ElectionID: election.ElectionID,
		EndAt:      &evenLater,
	})
	if !errors.Is(err, domainerrors.ErrScheduleFrozen) {
		t.Fatalf("expected schedule frozen, got %v", err)
	}

	name := "Renamed while active"
	renamed, err := f.elections.UpdateElection(ctx, commands.UpdateElectionCommand{
		Actor:      f.admin,
		ElectionID: election.ElectionID,
		Name:       &name,
	})
	if err != nil || renamed.Name != name {
		t.Fatalf("metadata should stay editable, got %+v err=%v", renamed, err)
	}
}

func TestLifecycleTransitionsAreOrdered(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	election := f.draftElection(t, "ordered", baseTime)
	cmd := commands.TransitionCommand{Actor: f.admin, ElectionID: election.ElectionID}

	if _, err := f.elections.Close(ctx, cmd); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("closing a draft must fail, got %v", err)
	}
	if _, err := f.elections.PublishResults(ctx, cmd); !errors.Is(err, domainerrors.ErrElectionNotClosed) {
		t.Fatalf("publishing a draft must fail, got %v", err)
	}
	f.activate(t, election.ElectionID)
	if _, err := f.elections.Archive(ctx, cmd); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("archiving an active election must fail, got %v", err)
	}
	closed, err := f.elections.Close(ctx, cmd)
	if err != nil || closed.Status != entities.ElectionStatusClosed || closed.ClosedAt == nil {
		t.Fatalf("close: %+v err=%v", closed, err)
	}
	published, err := f.elections.PublishResults(ctx, cmd)
	if err != nil || !published.IsResultPublic {
		t.Fatalf("publish: %+v err=%v", published, err)
	}
	hidden, err := f.elections.HideResults(ctx, cmd)
	if err != nil || hidden.IsResultPublic {
		t.Fatalf("hide: %+v err=%v", hidden, err)
	}
	archived, err := f.elections.Archive(ctx, cmd)
	if err != nil || archived.Status != entities.ElectionStatusArchived {
		t.Fatalf("archive: %+v err=%v", archived, err)
	}
	if _, err := f.elections.Activate(ctx, cmd); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("archived is terminal, got %v", err)
	}
}

func TestElectionMutationsRequireAdminRole(t *testing.T) {
	f := newFixture()
	_, err := f.elections.CreateElection(context.Background(), commands.CreateElectionCommand{
		Actor:   f.auditor,
		Slug:    "audit",
		Name:    "Audit",
		StartAt: baseTime,
		EndAt:   baseTime.Add(time.Hour),
	})
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden for auditor, got %v", err)
	}
	_, err = f.elections.CreateElection(context.Background(), commands.CreateElectionCommand{
		Slug:    "anon",
		Name:    "Anon",
		StartAt: baseTime,
		EndAt:   baseTime.Add(time.Hour),
	})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized without actor, got %v", err)
	}
}

func TestCreateElectionValidation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name  string
		cmd   commands.CreateElectionCommand
		field string
	}{
		{"bad slug", commands.CreateElectionCommand{Slug: "no spaces", Name: "x", StartAt: baseTime, EndAt: baseTime.Add(time.Hour)}, "slug"},
		{"missing name", commands.CreateElectionCommand{Slug: "ok", StartAt: baseTime, EndAt: baseTime.Add(time.Hour)}, "name"},
		{"end before start", commands.CreateElectionCommand{Slug: "ok", Name: "x", StartAt: baseTime, EndAt: baseTime}, "end_at"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cmd.Actor = f.admin
			_, err := f.elections.CreateElection(context.Background(), tc.cmd)
			if !errors.Is(err, domainerrors.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if field, _ := domainerrors.FieldOf(err); field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, field)
			}
		})
	}

	f.draftElection(t, "taken", baseTime)
	_, err := f.elections.CreateElection(context.Background(), commands.CreateElectionCommand{
		Actor:   f.admin,
		Slug:    "TAKEN",
		Name:    "Again",
		StartAt: baseTime,
		EndAt:   baseTime.Add(time.Hour),
	})
	if !errors.Is(err, domainerrors.ErrDuplicateSlug) {
		t.Fatalf("expected duplicate slug, got %v", err)
	}
}
