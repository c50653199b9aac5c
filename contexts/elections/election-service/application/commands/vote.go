package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	application "ballot/contexts/elections/election-service/application"
	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/domain/services"
	"ballot/contexts/elections/election-service/ports"
)

type CastVoteCommand struct {
	Voter       entities.VoterPrincipal
	CandidateID string
}

// VoteUseCase casts a ballot. Every business rule is checked before the
// transaction; only the token consumption race is decided inside it.
type VoteUseCase struct {
	Elections  ports.ElectionRepository
	Candidates ports.CandidateRepository
	Sessions   ports.SessionRepository
	Votes      ports.VoteRepository
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)
	voter := cmd.Voter
	if voter.SessionID == "" || voter.TokenID == "" || voter.ElectionID == "" {
		return entities.Vote{}, domainerrors.ErrUnauthorized
	}
	candidateID := strings.TrimSpace(cmd.CandidateID)
	if candidateID == "" {
		return entities.Vote{}, domainerrors.Invalid("candidate_id", "candidate_id is required")
	}

	// The election may have closed between login and submission.
	election, err := uc.Elections.GetElection(ctx, voter.ElectionID)
	if err != nil {
		return entities.Vote{}, err
	}
	now := resolveNow(uc.Clock)
	if !election.AcceptsVotes(now) {
		logger.Warn("vote rejected: election not accepting votes",
			"event", "vote_election_inactive",
			"module", application.ModuleName,
			"layer", "application",
			"election_id", election.ElectionID,
			"status", string(election.Status),
		)
		return entities.Vote{}, domainerrors.ErrElectionNotActive
	}

	candidate, err := uc.Candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrCandidateNotFound) {
			return entities.Vote{}, domainerrors.ErrInvalidCandidate
		}
		return entities.Vote{}, err
	}
	if candidate.ElectionID != election.ElectionID || !candidate.IsActive {
		return entities.Vote{}, domainerrors.ErrInvalidCandidate
	}

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Vote{}, err
	}
	vote, err := uc.Votes.CastVote(ctx, entities.CastVoteParams{
		VoteID:       voteID,
		TokenID:      voter.TokenID,
		ElectionID:   election.ElectionID,
		CandidateID:  candidate.CandidateID,
		SessionID:    voter.SessionID,
		RedactedCode: services.RedactedCode(voter.TokenID),
		CastAt:       now,
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrTokenAlreadyUsed) {
			// The losing transaction rolled back, so the session is removed here.
			if delErr := uc.Sessions.DeleteSession(ctx, voter.SessionID); delErr != nil {
				logger.Error("stale voter session cleanup failed",
					"event", "vote_session_cleanup_failed",
					"module", application.ModuleName,
					"layer", "application",
					"session_id", voter.SessionID,
					"error", delErr.Error(),
				)
			}
			logger.Warn("vote rejected: token already used",
				"event", "vote_token_already_used",
				"module", application.ModuleName,
				"layer", "application",
				"election_id", election.ElectionID,
				"token_id", voter.TokenID,
			)
		}
		return entities.Vote{}, err
	}
	// No candidate id here: the log line must not link a token to a choice.
	logger.Info("vote cast",
		"event", "vote_cast",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", election.ElectionID,
		"token_id", voter.TokenID,
	)
	return vote, nil
}
