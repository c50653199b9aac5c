package commands_test

import (
	"context"
	"errors"
	"testing"

	"ballot/contexts/elections/election-service/application/commands"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
)

func TestCandidateNumbersAreUniquePerElection(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	spring := f.draftElection(t, "spring", baseTime)
	autumn := f.draftElection(t, "autumn", baseTime)
	f.candidate(t, spring.ElectionID, 1)

	_, err := f.candidates.CreateCandidate(ctx, commands.CreateCandidateCommand{
		Actor:      f.admin,
		ElectionID: spring.ElectionID,
		Number:     1,
		LeaderName: "Other leader",
		DeputyName: "Other deputy",
	})
	if !errors.Is(err, domainerrors.ErrDuplicateCandidate) {
		t.Fatalf("expected duplicate candidate, got %v", err)
	}
	if created := f.candidate(t, autumn.ElectionID, 1); created.ElectionID != autumn.ElectionID {
		t.Fatalf("expected number 1 accepted in another election, got %+v", created)
	}

	second := f.candidate(t, spring.ElectionID, 2)
	one := 1
	if _, err := f.candidates.UpdateCandidate(ctx, commands.UpdateCandidateCommand{
		Actor:       f.admin,
		ElectionID:  spring.ElectionID,
		CandidateID: second.CandidateID,
		Number:      &one,
	}); !errors.Is(err, domainerrors.ErrDuplicateCandidate) {
		t.Fatalf("expected renumbering onto a taken number rejected, got %v", err)
	}
}

func TestCandidateValidation(t *testing.T) {
	f := newFixture()
	election := f.draftElection(t, "valid", baseTime)
	tests := []struct {
		name  string
		cmd   commands.CreateCandidateCommand
		field string
	}{
		{"zero number", commands.CreateCandidateCommand{Number: 0, LeaderName: "a", DeputyName: "b"}, "number"},
		{"missing leader", commands.CreateCandidateCommand{Number: 1, DeputyName: "b"}, "leader_name"},
		{"missing deputy", commands.CreateCandidateCommand{Number: 1, LeaderName: "a"}, "deputy_name"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cmd.Actor = f.admin
			tc.cmd.ElectionID = election.ElectionID
			_, err := f.candidates.CreateCandidate(context.Background(), tc.cmd)
			if field, _ := domainerrors.FieldOf(err); !errors.Is(err, domainerrors.ErrValidation) || field != tc.field {
				t.Fatalf("expected validation on %s, got %v", tc.field, err)
			}
		})
	}
}

func TestSlateFrozenOutsideDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	election := f.draftElection(t, "slate", baseTime)
	candidate := f.candidate(t, election.ElectionID, 1)
	f.activate(t, election.ElectionID)

	_, err := f.candidates.CreateCandidate(ctx, commands.CreateCandidateCommand{
		Actor:      f.admin,
		ElectionID: election.ElectionID,
		Number:     2,
		LeaderName: "Late",
		DeputyName: "Entry",
	})
	if !errors.Is(err, domainerrors.ErrElectionNotDraft) {
		t.Fatalf("expected create rejected, got %v", err)
	}
	err = f.candidates.DeleteCandidate(ctx, commands.DeleteCandidateCommand{
		Actor:       f.admin,
		ElectionID:  election.ElectionID,
		CandidateID: candidate.CandidateID,
	})
	if !errors.Is(err, domainerrors.ErrElectionNotDraft) {
		t.Fatalf("expected delete rejected, got %v", err)
	}
}

func TestDeleteCandidate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	election := f.draftElection(t, "delete", baseTime)
	other := f.draftElection(t, "elsewhere", baseTime)
	candidate := f.candidate(t, election.ElectionID, 1)

	err := f.candidates.DeleteCandidate(ctx, commands.DeleteCandidateCommand{
		Actor:       f.admin,
		ElectionID:  other.ElectionID,
		CandidateID: candidate.CandidateID,
	})
	if !errors.Is(err, domainerrors.ErrCandidateNotFound) {
		t.Fatalf("expected candidate scoped to its election, got %v", err)
	}
	if err := f.candidates.DeleteCandidate(ctx, commands.DeleteCandidateCommand{
		Actor:       f.admin,
		ElectionID:  election.ElectionID,
		CandidateID: candidate.CandidateID,
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.store.GetCandidate(ctx, candidate.CandidateID); !errors.Is(err, domainerrors.ErrCandidateNotFound) {
		t.Fatalf("expected candidate gone, got %v", err)
	}
}
