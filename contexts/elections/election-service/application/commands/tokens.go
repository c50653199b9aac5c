package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "ballot/contexts/elections/election-service/application"
	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/domain/services"
	"ballot/contexts/elections/election-service/ports"
	eventsv1 "ballot/contracts/gen/events/v1"
)

const (
	DefaultTokenBatchMax = 5000
	maxBatchAttempts     = 5
	maxCodeDraws         = 64
)

type GenerateTokensCommand struct {
	Actor      entities.AdminPrincipal
	ElectionID string
	Count      int
}

type InvalidateTokenCommand struct {
	Actor      entities.AdminPrincipal
	ElectionID string
	TokenID    string
}

// TokenUseCase mints and invalidates voter tokens. Both are only allowed
// while the owning election is DRAFT.
type TokenUseCase struct {
	Elections ports.ElectionRepository
	Tokens    ports.TokenRepository
	Secrets   ports.SecretGenerator
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	MaxBatch  int
	Logger    *slog.Logger
}

// GenerateTokens creates Count tokens in one store transaction. Code
// collisions are redrawn; a batch that still collides after a few attempts
// fails as a whole and creates nothing.
func (uc TokenUseCase) GenerateTokens(ctx context.Context, cmd GenerateTokensCommand) (entities.TokenBatch, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireMutator(cmd.Actor); err != nil {
		return entities.TokenBatch{}, err
	}
	if cmd.Count <= 0 || cmd.Count > uc.maxBatch() {
		logger.Warn("token batch size rejected",
			"event", "tokens_generate_size_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"election_id", strings.TrimSpace(cmd.ElectionID),
			"count", cmd.Count,
			"max", uc.maxBatch(),
		)
		return entities.TokenBatch{}, domainerrors.ErrTokenBatchTooLarge
	}
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(cmd.ElectionID))
	if err != nil {
		return entities.TokenBatch{}, err
	}
	if election.Status != entities.ElectionStatusDraft {
		return entities.TokenBatch{}, domainerrors.ErrElectionNotDraft
	}

	existing, err := uc.Tokens.ListTokenCodes(ctx, election.ElectionID)
	if err != nil {
		return entities.TokenBatch{}, err
	}
	taken := make(map[string]struct{}, len(existing)+cmd.Count)
	for _, code := range existing {
		taken[code] = struct{}{}
	}

	now := resolveNow(uc.Clock)
	var batch entities.TokenBatch
	for attempt := 1; attempt <= maxBatchAttempts; attempt++ {
		tokens, err := uc.drawTokens(ctx, election.ElectionID, cmd.Count, taken, now)
		if err != nil {
			return entities.TokenBatch{}, err
		}
		batch, err = uc.Tokens.CreateTokenBatch(ctx, election.ElectionID, tokens)
		if err == nil {
			break
		}
		if !errors.Is(err, domainerrors.ErrConflict) {
			return entities.TokenBatch{}, err
		}
		logger.Warn("token batch collided, redrawing",
			"event", "tokens_generate_collision",
			"module", application.ModuleName,
			"layer", "application",
			"election_id", election.ElectionID,
			"attempt", attempt,
		)
		// A concurrent batch may have claimed codes; refresh before redrawing.
		if existing, err = uc.Tokens.ListTokenCodes(ctx, election.ElectionID); err != nil {
			return entities.TokenBatch{}, err
		}
		for _, code := range existing {
			taken[code] = struct{}{}
		}
		if attempt == maxBatchAttempts {
			return entities.TokenBatch{}, domainerrors.ErrTokenCodeExhausted
		}
	}

	if err := appendEvent(ctx, uc.Outbox, uc.IDGen, EventTokensGenerated, election.ElectionID, now, eventsv1.TokenEventData{
		ElectionID: election.ElectionID,
		Batch:      batch.Batch,
		Count:      len(batch.Tokens),
		ActorID:    cmd.Actor.AdminID,
		OccurredAt: now.Format(time.RFC3339),
	}); err != nil {
		return entities.TokenBatch{}, err
	}
	logger.Info("tokens generated",
		"event", "tokens_generated",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", election.ElectionID,
		"batch", batch.Batch,
		"count", len(batch.Tokens),
		"actor_id", cmd.Actor.AdminID,
	)
	return batch, nil
}

// InvalidateToken retires an UNUSED token, redacts its code and drops any
// session bound to it.
func (uc TokenUseCase) InvalidateToken(ctx context.Context, cmd InvalidateTokenCommand) (entities.Token, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireMutator(cmd.Actor); err != nil {
		return entities.Token{}, err
	}
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(cmd.ElectionID))
	if err != nil {
		return entities.Token{}, err
	}
	if election.Status != entities.ElectionStatusDraft {
		return entities.Token{}, domainerrors.ErrElectionNotDraft
	}
	token, err := uc.Tokens.GetToken(ctx, strings.TrimSpace(cmd.TokenID))
	if err != nil {
		return entities.Token{}, err
	}
	if token.ElectionID != election.ElectionID {
		return entities.Token{}, domainerrors.ErrTokenNotFound
	}
	if token.Status != entities.TokenStatusUnused {
		return entities.Token{}, domainerrors.ErrTokenNotInvalidatable
	}

	now := resolveNow(uc.Clock)
	invalidated, err := uc.Tokens.InvalidateToken(ctx, token.TokenID, services.RedactedCode(token.TokenID), now)
	if err != nil {
		return entities.Token{}, err
	}
	if err := appendEvent(ctx, uc.Outbox, uc.IDGen, EventTokenInvalidated, election.ElectionID, now, eventsv1.TokenEventData{
		ElectionID: election.ElectionID,
		TokenID:    invalidated.TokenID,
		Batch:      invalidated.GeneratedBatch,
		Count:      1,
		ActorID:    cmd.Actor.AdminID,
		OccurredAt: now.Format(time.RFC3339),
	}); err != nil {
		return entities.Token{}, err
	}
	logger.Info("token invalidated",
		"event", "token_invalidated",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", election.ElectionID,
		"token_id", invalidated.TokenID,
		"actor_id", cmd.Actor.AdminID,
	)
	return invalidated, nil
}

func (uc TokenUseCase) maxBatch() int {
	if uc.MaxBatch <= 0 {
		return DefaultTokenBatchMax
	}
	return uc.MaxBatch
}

func (uc TokenUseCase) secrets() ports.SecretGenerator {
	if uc.Secrets == nil {
		return services.CodeGenerator{}
	}
	return uc.Secrets
}

// drawTokens returns count tokens whose codes are distinct from each other
// and from taken. The returned codes are not added to taken.
func (uc TokenUseCase) drawTokens(
	ctx context.Context,
	electionID string,
	count int,
	taken map[string]struct{},
	now time.Time,
) ([]entities.Token, error) {
	drawn := make(map[string]struct{}, count)
	tokens := make([]entities.Token, 0, count)
	for len(tokens) < count {
		code, err := uc.drawCode(taken, drawn)
		if err != nil {
			return nil, err
		}
		tokenID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return nil, err
		}
		drawn[code] = struct{}{}
		tokens = append(tokens, entities.Token{
			TokenID:    tokenID,
			ElectionID: electionID,
			Code:       code,
			Status:     entities.TokenStatusUnused,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return tokens, nil
}

func (uc TokenUseCase) drawCode(taken map[string]struct{}, drawn map[string]struct{}) (string, error) {
	for i := 0; i < maxCodeDraws; i++ {
		code, err := uc.secrets().NewTokenCode()
		if err != nil {
			return "", err
		}
		if _, exists := taken[code]; exists {
			continue
		}
		if _, exists := drawn[code]; exists {
			continue
		}
		return code, nil
	}
	return "", domainerrors.ErrTokenCodeExhausted
}
