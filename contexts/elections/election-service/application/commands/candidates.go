package commands

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	application "ballot/contexts/elections/election-service/application"
	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/ports"
)

const (
	maxCandidateNameLength = 200
	maxCandidateTextLength = 5000
)

type CreateCandidateCommand struct {
	Actor      entities.AdminPrincipal
	ElectionID string
	Number     int
	LeaderName string
	DeputyName string
	Vision     string
	Mission    string
	PhotoURL   string
	IsActive   *bool
}

type UpdateCandidateCommand struct {
	Actor       entities.AdminPrincipal
	ElectionID  string
	CandidateID string
	Number      *int
	LeaderName  *string
	DeputyName  *string
	Vision      *string
	Mission     *string
	PhotoURL    *string
	IsActive    *bool
}

type DeleteCandidateCommand struct {
	Actor       entities.AdminPrincipal
	ElectionID  string
	CandidateID string
}

// CandidateUseCase edits the slate. The slate is frozen once the election
// leaves DRAFT.
type CandidateUseCase struct {
	Elections  ports.ElectionRepository
	Candidates ports.CandidateRepository
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc CandidateUseCase) CreateCandidate(ctx context.Context, cmd CreateCandidateCommand) (entities.CandidatePair, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireMutator(cmd.Actor); err != nil {
		return entities.CandidatePair{}, err
	}
	election, err := uc.draftElection(ctx, cmd.ElectionID)
	if err != nil {
		return entities.CandidatePair{}, err
	}
	candidate := entities.CandidatePair{
		ElectionID: election.ElectionID,
		Number:     cmd.Number,
		LeaderName: strings.TrimSpace(cmd.LeaderName),
		DeputyName: strings.TrimSpace(cmd.DeputyName),
		Vision:     strings.TrimSpace(cmd.Vision),
		Mission:    strings.TrimSpace(cmd.Mission),
		PhotoURL:   strings.TrimSpace(cmd.PhotoURL),
		IsActive:   true,
	}
	if cmd.IsActive != nil {
		candidate.IsActive = *cmd.IsActive
	}
	if err := validateCandidate(candidate); err != nil {
		return entities.CandidatePair{}, err
	}

	candidateID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.CandidatePair{}, err
	}
	now := resolveNow(uc.Clock)
	candidate.CandidateID = candidateID
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	if err := uc.Candidates.CreateCandidate(ctx, candidate); err != nil {
		return entities.CandidatePair{}, err
	}
	logger.Info("candidate created",
		"event", "candidate_created",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", candidate.ElectionID,
		"candidate_id", candidate.CandidateID,
		"number", candidate.Number,
		"actor_id", cmd.Actor.AdminID,
	)
	return candidate, nil
}

func (uc CandidateUseCase) UpdateCandidate(ctx context.Context, cmd UpdateCandidateCommand) (entities.CandidatePair, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireMutator(cmd.Actor); err != nil {
		return entities.CandidatePair{}, err
	}
	election, err := uc.draftElection(ctx, cmd.ElectionID)
	if err != nil {
		return entities.CandidatePair{}, err
	}
	candidate, err := uc.Candidates.GetCandidate(ctx, strings.TrimSpace(cmd.CandidateID))
	if err != nil {
		return entities.CandidatePair{}, err
	}
	if candidate.ElectionID != election.ElectionID {
		return entities.CandidatePair{}, domainerrors.ErrCandidateNotFound
	}

	if cmd.Number != nil {
		candidate.Number = *cmd.Number
	}
	if cmd.LeaderName != nil {
		candidate.LeaderName = strings.TrimSpace(*cmd.LeaderName)
	}
	if cmd.DeputyName != nil {
		candidate.DeputyName = strings.TrimSpace(*cmd.DeputyName)
	}
	if cmd.Vision != nil {
		candidate.Vision = strings.TrimSpace(*cmd.Vision)
	}
	if cmd.Mission != nil {
		candidate.Mission = strings.TrimSpace(*cmd.Mission)
	}
	if cmd.PhotoURL != nil {
		candidate.PhotoURL = strings.TrimSpace(*cmd.PhotoURL)
	}
	if cmd.IsActive != nil {
		candidate.IsActive = *cmd.IsActive
	}
	if err := validateCandidate(candidate); err != nil {
		return entities.CandidatePair{}, err
	}
	candidate.UpdatedAt = resolveNow(uc.Clock)
	if err := uc.Candidates.UpdateCandidate(ctx, candidate); err != nil {
		return entities.CandidatePair{}, err
	}
	logger.Info("candidate updated",
		"event", "candidate_updated",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", candidate.ElectionID,
		"candidate_id", candidate.CandidateID,
		"actor_id", cmd.Actor.AdminID,
	)
	return candidate, nil
}

// DeleteCandidate refuses to remove a pair that already has votes. The store
// also restricts the delete through the votes foreign key.
func (uc CandidateUseCase) DeleteCandidate(ctx context.Context, cmd DeleteCandidateCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireMutator(cmd.Actor); err != nil {
		return err
	}
	election, err := uc.draftElection(ctx, cmd.ElectionID)
	if err != nil {
		return err
	}
	candidate, err := uc.Candidates.GetCandidate(ctx, strings.TrimSpace(cmd.CandidateID))
	if err != nil {
		return err
	}
	if candidate.ElectionID != election.ElectionID {
		return domainerrors.ErrCandidateNotFound
	}
	votes, err := uc.Candidates.CountVotesForCandidate(ctx, candidate.CandidateID)
	if err != nil {
		return err
	}
	if votes > 0 {
		logger.Warn("candidate delete rejected: votes recorded",
			"event", "candidate_delete_has_votes",
			"module", application.ModuleName,
			"layer", "application",
			"election_id", candidate.ElectionID,
			"candidate_id", candidate.CandidateID,
		)
		return domainerrors.ErrCandidateHasVotes
	}
	if err := uc.Candidates.DeleteCandidate(ctx, election.ElectionID, candidate.CandidateID); err != nil {
		return err
	}
	logger.Info("candidate deleted",
		"event", "candidate_deleted",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", candidate.ElectionID,
		"candidate_id", candidate.CandidateID,
		"actor_id", cmd.Actor.AdminID,
	)
	return nil
}

func (uc CandidateUseCase) draftElection(ctx context.Context, electionID string) (entities.Election, error) {
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return entities.Election{}, err
	}
	if election.Status != entities.ElectionStatusDraft {
		return entities.Election{}, domainerrors.ErrElectionNotDraft
	}
	return election, nil
}

func validateCandidate(candidate entities.CandidatePair) error {
	if candidate.Number <= 0 {
		return domainerrors.Invalid("number", "number must be positive")
	}
	if candidate.LeaderName == "" {
		return domainerrors.Invalid("leader_name", "leader_name is required")
	}
	if candidate.DeputyName == "" {
		return domainerrors.Invalid("deputy_name", "deputy_name is required")
	}
	if len(candidate.LeaderName) > maxCandidateNameLength {
		return domainerrors.Invalid("leader_name", "leader_name is too long")
	}
	if len(candidate.DeputyName) > maxCandidateNameLength {
		return domainerrors.Invalid("deputy_name", "deputy_name is too long")
	}
	if len(candidate.Vision) > maxCandidateTextLength {
		return domainerrors.Invalid("vision", "vision is too long")
	}
	if len(candidate.Mission) > maxCandidateTextLength {
		return domainerrors.Invalid("mission", "mission is too long")
	}
	if candidate.PhotoURL != "" {
		parsed, err := url.Parse(candidate.PhotoURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return domainerrors.Invalid("photo_url", "photo_url must be an absolute http(s) url")
		}
	}
	return nil
}
