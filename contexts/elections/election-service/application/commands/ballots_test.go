package commands_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ballot/contexts/elections/election-service/application/commands"
	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/domain/services"
)

// fixedSecrets hands out the same token code every time.
type fixedSecrets struct {
	code    string
	secrets atomic.Int64
}

func (s *fixedSecrets) NewTokenCode() (string, error) {
	return s.code, nil
}

func (s *fixedSecrets) NewSessionSecret() (string, error) {
	return fmt.Sprintf("secret-%d", s.secrets.Add(1)), nil
}

func TestConcurrentVotesConsumeTokenOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	election := f.draftElection(t, "race", baseTime)
	first := f.candidate(t, election.ElectionID, 1)
	f.candidate(t, election.ElectionID, 2)
	tokens := f.generate(t, election.ElectionID, 3)
	f.activate(t, election.ElectionID)

	login := f.redeem(t, tokens[0].Code)
	voter := f.principal(t, login.Secret)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		successes atomic.Int64
		rejected  atomic.Int64
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.votes.CastVote(ctx, commands.CastVoteCommand{Voter: voter, CandidateID: first.CandidateID})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domainerrors.ErrTokenAlreadyUsed):
				rejected.Add(1)
			default:
				t.Errorf("unexpected vote error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 || rejected.Load() != attempts-1 {
		t.Fatalf("expected one success and %d rejections, got %d and %d", attempts-1, successes.Load(), rejected.Load())
	}
	used, err := f.store.GetToken(ctx, tokens[0].TokenID)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if used.Status != entities.TokenStatusUsed || used.UsedAt == nil {
		t.Fatalf("expected token used, got %+v", used)
	}
	if !services.IsRedacted(used.Code) {
		t.Fatalf("expected used token code to be redacted, got %q", used.Code)
	}
	if _, err := f.sessions.Authenticate(ctx, login.Secret); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected session to end with the vote, got %v", err)
	}
	f.assertIntegrity(t)
}

func TestUsedCodeCannotBeRedeemedAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	election := f.draftElection(t, "reuse", baseTime)
	candidate := f.candidate(t, election.ElectionID, 1)
	tokens := f.generate(t, election.ElectionID, 1)
	f.activate(t, election.ElectionID)

	login := f.redeem(t, tokens[0].Code)
	if _, err := f.votes.CastVote(ctx, commands.CastVoteCommand{
		Voter:       f.principal(t, login.Secret),
		CandidateID: candidate.CandidateID,
	}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	_, err := f.sessions.RedeemToken(ctx, commands.RedeemTokenCommand{Code: tokens[0].Code})
	if !errors.Is(err, domainerrors.ErrTokenInvalid) {
		t.Fatalf("expected a spent code to be unknown, got %v", err)
	}
}

func TestRedeemNormalizesCodeAndReplacesSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	election := f.draftElection(t, "normalize", baseTime)
	tokens := f.generate(t, election.ElectionID, 1)
	f.activate(t, election.ElectionID)

	code := tokens[0].Code
	sloppy := " " + code[:4] + code[5:] + " "
	first := f.redeem(t, sloppy)
	second := f.redeem(t, code)
	if first.Secret == second.Secret {
		t.Fatalf("expected a fresh secret per redemption")
	}
	if _, err := f.sessions.Authenticate(ctx, first.Secret); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected the first session to be replaced, got %v", err)
	}
	voter := f.principal(t, second.Secret)
	if voter.TokenID != tokens[0].TokenID || voter.ElectionID != election.ElectionID {
		t.Fatalf("unexpected principal %+v", voter)
	}

	if _, err := f.sessions.RedeemToken(ctx, commands.RedeemTokenCommand{Code: "not a code"}); !errors.Is(err, domainerrors.ErrTokenInvalid) {
		t.Fatalf("expected malformed code rejected, got %v", err)
	}
}

func TestInvalidatedTokenIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	election := f.draftElection(t, "invalidate", baseTime)
	tokens := f.generate(t, election.ElectionID, 2)

	invalidated, err := f.tokens.InvalidateToken(ctx, commands.InvalidateTokenCommand{
		Actor:      f.admin,
		ElectionID: election.ElectionID,
		TokenID:    tokens[0].TokenID,
	})
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if invalidated.Status != entities.TokenStatusInvalidated || !services.IsRedacted(invalidated.Code) {
		t.Fatalf("expected invalidated and redacted token, got %+v", invalidated)
	}
	if _, err := f.tokens.InvalidateToken(ctx, commands.InvalidateTokenCommand{
		Actor:      f.admin,
		ElectionID: election.ElectionID,
		TokenID:    tokens[0].TokenID,
	}); !errors.Is(err, domainerrors.ErrTokenNotInvalidatable) {
		t.Fatalf("expected second invalidation rejected, got %v", err)
	}

	f.activate(t, election.ElectionID)
	if _, err := f.sessions.RedeemToken(ctx, commands.RedeemTokenCommand{Code: tokens[0].Code}); !errors.Is(err, domainerrors.ErrTokenInvalid) {
		t.Fatalf("expected invalidated code rejected, got %v", err)
	}
	f.redeem(t, tokens[1].Code)

	if _, err := f.tokens.InvalidateToken(ctx, commands.InvalidateTokenCommand{
		Actor:      f.admin,
		ElectionID: election.ElectionID,
		TokenID:    tokens[1].TokenID,
	}); !errors.Is(err, domainerrors.ErrElectionNotDraft) {
		t.Fatalf("expected invalidation outside draft rejected, got %v", err)
	}
}

func TestGenerateTokensBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	election := f.draftElection(t, "bounds", baseTime)

	for _, count := range []int{0, -1, 101} {
		_, err := f.tokens.GenerateTokens(ctx, commands.GenerateTokensCommand{Actor: f.admin, ElectionID: election.ElectionID, Count: count})
		if !errors.Is(err, domainerrors.ErrTokenBatchTooLarge) {
			t.Fatalf("count %d: expected batch size rejected, got %v", count, err)
		}
	}

	first, err := f.tokens.GenerateTokens(ctx, commands.GenerateTokensCommand{Actor: f.admin, ElectionID: election.ElectionID, Count: 100})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := f.tokens.GenerateTokens(ctx, commands.GenerateTokensCommand{Actor: f.admin, ElectionID: election.ElectionID, Count: 5})
	if err != nil {
		t.Fatalf("generate second batch: %v", err)
	}
	if first.Batch != 1 || second.Batch != 2 {
		t.Fatalf("expected batches 1 and 2, got %d and %d", first.Batch, second.Batch)
	}
	codes := make(map[string]struct{})
	for _, token := range append(first.Tokens, second.Tokens...) {
		if _, ok := services.NormalizeTokenCode(token.Code); !ok {
			t.Fatalf("generated code %q is not canonical", token.Code)
		}
		if _, dup := codes[token.Code]; dup {
			t.Fatalf("duplicate code %q", token.Code)
		}
		codes[token.Code] = struct{}{}
	}

	if _, err := f.tokens.GenerateTokens(ctx, commands.GenerateTokensCommand{Actor: f.auditor, ElectionID: election.ElectionID, Count: 1}); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected auditor forbidden, got %v", err)
	}

	f.activate(t, election.ElectionID)
	if _, err := f.tokens.GenerateTokens(ctx, commands.GenerateTokensCommand{Actor: f.admin, ElectionID: election.ElectionID, Count: 1}); !errors.Is(err, domainerrors.ErrElectionNotDraft) {
		t.Fatalf("expected generation outside draft rejected, got %v", err)
	}
}

func TestGenerateTokensExhaustedCreatesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.tokens.Secrets = &fixedSecrets{code: "ABCD-EFGH"}
	election := f.draftElection(t, "exhausted", baseTime)

	_, err := f.tokens.GenerateTokens(ctx, commands.GenerateTokensCommand{Actor: f.admin, ElectionID: election.ElectionID, Count: 2})
	if !errors.Is(err, domainerrors.ErrTokenCodeExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	counts, err := f.store.CountTokensByStatus(ctx, election.ElectionID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts.Total != 0 {
		t.Fatalf("expected no tokens after a failed batch, got %d", counts.Total)
	}
}

func TestRedeemSharedCodeAcrossElections(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	secrets := &fixedSecrets{code: "ABCD-EFGH"}
	f.tokens.Secrets = secrets
	f.sessions.Secrets = secrets

	spring := f.draftElection(t, "spring", baseTime)
	autumn := f.draftElection(t, "autumn", baseTime)
	springTokens := f.generate(t, spring.ElectionID, 1)
	f.generate(t, autumn.ElectionID, 1)

	if _, err := f.sessions.RedeemToken(ctx, commands.RedeemTokenCommand{Code: "abcd efgh"}); !errors.Is(err, domainerrors.ErrTokenAmbiguous) {
		t.Fatalf("expected ambiguous code while nothing is open, got %v", err)
	}
	if _, err := f.sessions.RedeemToken(ctx, commands.RedeemTokenCommand{Code: "ABCDEFGH", ElectionSlug: "spring"}); !errors.Is(err, domainerrors.ErrElectionNotActive) {
		t.Fatalf("expected draft election rejected, got %v", err)
	}

	f.activate(t, spring.ElectionID)
	login := f.redeem(t, "ABCD-EFGH")
	if login.Election.ElectionID != spring.ElectionID || login.Session.TokenID != springTokens[0].TokenID {
		t.Fatalf("expected the open election's token, got %+v", login.Session)
	}
	if _, err := f.sessions.RedeemToken(ctx, commands.RedeemTokenCommand{Code: "ABCD-EFGH", ElectionSlug: "missing"}); !errors.Is(err, domainerrors.ErrTokenInvalid) {
		t.Fatalf("expected unknown slug rejected, got %v", err)
	}
}

func TestVoteRejectedAfterScheduleEnds(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	election := f.draftElection(t, "late", baseTime)
	candidate := f.candidate(t, election.ElectionID, 1)
	tokens := f.generate(t, election.ElectionID, 1)
	f.activate(t, election.ElectionID)
	login := f.redeem(t, tokens[0].Code)
	voter := f.principal(t, login.Secret)

	f.clock.Set(election.EndAt.Add(time.Second))
	_, err := f.votes.CastVote(ctx, commands.CastVoteCommand{Voter: voter, CandidateID: candidate.CandidateID})
	if !errors.Is(err, domainerrors.ErrElectionNotActive) {
		t.Fatalf("expected vote after end rejected, got %v", err)
	}
	token, err := f.store.GetToken(ctx, tokens[0].TokenID)
	if err != nil || token.Status != entities.TokenStatusUnused {
		t.Fatalf("expected token untouched, got %+v err=%v", token, err)
	}
	f.assertIntegrity(t)
}

func TestVoteRejectsForeignCandidate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	other := f.draftElection(t, "other", baseTime)
	foreign := f.candidate(t, other.ElectionID, 1)
	election := f.draftElection(t, "home", baseTime)
	f.candidate(t, election.ElectionID, 1)
	tokens := f.generate(t, election.ElectionID, 1)
	f.activate(t, election.ElectionID)
	voter := f.principal(t, f.redeem(t, tokens[0].Code).Secret)

	for _, candidateID := range []string{foreign.CandidateID, "missing"} {
		_, err := f.votes.CastVote(ctx, commands.CastVoteCommand{Voter: voter, CandidateID: candidateID})
		if !errors.Is(err, domainerrors.ErrInvalidCandidate) {
			t.Fatalf("candidate %s: expected invalid candidate, got %v", candidateID, err)
		}
	}
	if _, err := f.votes.CastVote(ctx, commands.CastVoteCommand{Voter: voter}); !errors.Is(err, domainerrors.ErrValidation) {
		t.Fatalf("expected missing candidate id rejected, got %v", err)
	}
}

func TestVoterSessionExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.sessions.SessionTTL = 10 * time.Minute
	election := f.draftElection(t, "expiry", baseTime)
	tokens := f.generate(t, election.ElectionID, 1)
	f.activate(t, election.ElectionID)
	login := f.redeem(t, tokens[0].Code)
	if !login.ExpiresAt.Equal(baseTime.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", login.ExpiresAt)
	}

	f.clock.Set(baseTime.Add(11 * time.Minute))
	if _, err := f.sessions.Authenticate(ctx, login.Secret); !errors.Is(err, domainerrors.ErrSessionExpired) {
		t.Fatalf("expected expired session, got %v", err)
	}
	if _, err := f.sessions.Authenticate(ctx, login.Secret); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected expired session removed, got %v", err)
	}
	if err := f.sessions.Logout(ctx, login.Secret); err != nil {
		t.Fatalf("logout of an unknown session should be a no-op: %v", err)
	}
}
