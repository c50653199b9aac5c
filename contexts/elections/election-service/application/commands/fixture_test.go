package commands_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ballot/contexts/elections/election-service/adapters/memory"
	"ballot/contexts/elections/election-service/application/commands"
	"ballot/contexts/elections/election-service/domain/entities"
)

var baseTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type sequenceIDs struct {
	next atomic.Int64
}

func (g *sequenceIDs) NewID(context.Context) (string, error) {
	return fmt.Sprintf("id-%04d", g.next.Add(1)), nil
}

type fixture struct {
	store      *memory.Store
	clock      *fakeClock
	admin      entities.AdminPrincipal
	auditor    entities.AdminPrincipal
	elections  commands.ElectionUseCase
	candidates commands.CandidateUseCase
	tokens     commands.TokenUseCase
	sessions   commands.SessionUseCase
	votes      commands.VoteUseCase
}

func newFixture() *fixture {
	store := memory.NewStore()
	clock := &fakeClock{now: baseTime}
	ids := &sequenceIDs{}
	return &fixture{
		store:   store,
		clock:   clock,
		admin:   entities.AdminPrincipal{AdminID: "admin-1", Username: "operator", Role: entities.AdminRoleAdmin},
		auditor: entities.AdminPrincipal{AdminID: "admin-2", Username: "observer", Role: entities.AdminRoleAuditor},
		elections: commands.ElectionUseCase{
			Elections: store,
			Outbox:    store,
			Clock:     clock,
			IDGen:     ids,
		},
		candidates: commands.CandidateUseCase{
			Elections:  store,
			Candidates: store,
			Clock:      clock,
			IDGen:      ids,
		},
		tokens: commands.TokenUseCase{
			Elections: store,
			Tokens:    store,
			Outbox:    store,
			Clock:     clock,
			IDGen:     ids,
			MaxBatch:  100,
		},
		sessions: commands.SessionUseCase{
			Elections: store,
			Tokens:    store,
			Sessions:  store,
			Clock:     clock,
			IDGen:     ids,
		},
		votes: commands.VoteUseCase{
			Elections:  store,
			Candidates: store,
			Sessions:   store,
			Votes:      store,
			Clock:      clock,
			IDGen:      ids,
		},
	}
}

// draftElection creates a DRAFT election open from start for two hours.
func (f *fixture) draftElection(t *testing.T, slug string, start time.Time) entities.Election {
	t.Helper()
	election, err := f.elections.CreateElection(context.Background(), commands.CreateElectionCommand{
		Actor:   f.admin,
		Slug:    slug,
		Name:    "Election " + slug,
		StartAt: start,
		EndAt:   start.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create election %s: %v", slug, err)
	}
	return election
}

func (f *fixture) candidate(t *testing.T, electionID string, number int) entities.CandidatePair {
	t.Helper()
	candidate, err := f.candidates.CreateCandidate(context.Background(), commands.CreateCandidateCommand{
		Actor:      f.admin,
		ElectionID: electionID,
		Number:     number,
		LeaderName: fmt.Sprintf("Leader %d", number),
		DeputyName: fmt.Sprintf("Deputy %d", number),
	})
	if err != nil {
		t.Fatalf("create candidate %d: %v", number, err)
	}
	return candidate
}

func (f *fixture) generate(t *testing.T, electionID string, count int) []entities.Token {
	t.Helper()
	batch, err := f.tokens.GenerateTokens(context.Background(), commands.GenerateTokensCommand{
		Actor:      f.admin,
		ElectionID: electionID,
		Count:      count,
	})
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}
	return batch.Tokens
}

func (f *fixture) activate(t *testing.T, electionID string) entities.Election {
	t.Helper()
	election, err := f.elections.Activate(context.Background(), commands.TransitionCommand{Actor: f.admin, ElectionID: electionID})
	if err != nil {
		t.Fatalf("activate %s: %v", electionID, err)
	}
	return election
}

func (f *fixture) redeem(t *testing.T, code string) commands.RedeemTokenResult {
	t.Helper()
	result, err := f.sessions.RedeemToken(context.Background(), commands.RedeemTokenCommand{Code: code})
	if err != nil {
		t.Fatalf("redeem %s: %v", code, err)
	}
	return result
}

func (f *fixture) principal(t *testing.T, secret string) entities.VoterPrincipal {
	t.Helper()
	voter, err := f.sessions.Authenticate(context.Background(), secret)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	return voter
}

func (f *fixture) assertIntegrity(t *testing.T) {
	t.Helper()
	reports, err := f.store.IntegrityReports(context.Background())
	if err != nil {
		t.Fatalf("integrity reports: %v", err)
	}
	for _, report := range reports {
		if !report.Consistent() {
			t.Fatalf("votes and used tokens diverged: %+v", report)
		}
	}
}
