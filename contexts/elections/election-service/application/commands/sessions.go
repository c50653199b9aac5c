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
)

const DefaultVoterSessionTTL = 30 * time.Minute

type RedeemTokenCommand struct {
	Code string
	// ElectionSlug optionally scopes the lookup when the same code exists in
	// several elections.
	ElectionSlug string
}

// RedeemTokenResult carries the session secret. It is handed out exactly once
// and never persisted.
type RedeemTokenResult struct {
	Secret    string
	Session   entities.VoterSession
	Election  entities.Election
	ExpiresAt time.Time
}

// SessionUseCase exchanges an unused token for a voter session and resolves
// presented session secrets back to a principal.
type SessionUseCase struct {
	Elections  ports.ElectionRepository
	Tokens     ports.TokenRepository
	Sessions   ports.SessionRepository
	Secrets    ports.SecretGenerator
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	SessionTTL time.Duration
	Logger     *slog.Logger
}

func (uc SessionUseCase) RedeemToken(ctx context.Context, cmd RedeemTokenCommand) (RedeemTokenResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	code, ok := services.NormalizeTokenCode(cmd.Code)
	if !ok {
		return RedeemTokenResult{}, domainerrors.ErrTokenInvalid
	}
	now := resolveNow(uc.Clock)
	token, election, err := uc.resolveToken(ctx, code, strings.ToLower(strings.TrimSpace(cmd.ElectionSlug)), now)
	if err != nil {
		logger.Warn("token redemption rejected",
			"event", "voter_token_redeem_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"reason", string(domainerrors.KindOf(err)),
			"error", err.Error(),
		)
		return RedeemTokenResult{}, err
	}
	switch token.Status {
	case entities.TokenStatusUnused:
	case entities.TokenStatusUsed:
		return RedeemTokenResult{}, domainerrors.ErrTokenAlreadyUsed
	default:
		return RedeemTokenResult{}, domainerrors.ErrTokenInvalid
	}
	if !election.AcceptsVotes(now) {
		return RedeemTokenResult{}, domainerrors.ErrElectionNotActive
	}

	secret, err := uc.secrets().NewSessionSecret()
	if err != nil {
		return RedeemTokenResult{}, err
	}
	sessionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return RedeemTokenResult{}, err
	}
	session := entities.VoterSession{
		SessionID:   sessionID,
		TokenID:     token.TokenID,
		ElectionID:  election.ElectionID,
		SessionHash: services.HashSecret(secret),
		ExpiresAt:   now.Add(uc.sessionTTL()),
		CreatedAt:   now,
	}
	if err := uc.Sessions.ReplaceSession(ctx, session); err != nil {
		return RedeemTokenResult{}, err
	}
	logger.Info("voter session created",
		"event", "voter_session_created",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", election.ElectionID,
		"token_id", token.TokenID,
		"session_id", session.SessionID,
	)
	return RedeemTokenResult{
		Secret:    secret,
		Session:   session,
		Election:  election,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Authenticate resolves a presented secret. A session whose token is no
// longer UNUSED is deleted and reported as ErrTokenAlreadyUsed.
func (uc SessionUseCase) Authenticate(ctx context.Context, secret string) (entities.VoterPrincipal, error) {
	logger := application.ResolveLogger(uc.Logger)
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return entities.VoterPrincipal{}, domainerrors.ErrUnauthorized
	}
	session, found, err := uc.Sessions.GetSessionByHash(ctx, services.HashSecret(secret))
	if err != nil {
		return entities.VoterPrincipal{}, err
	}
	if !found {
		return entities.VoterPrincipal{}, domainerrors.ErrUnauthorized
	}
	now := resolveNow(uc.Clock)
	if session.Expired(now) {
		if err := uc.Sessions.DeleteSession(ctx, session.SessionID); err != nil {
			return entities.VoterPrincipal{}, err
		}
		return entities.VoterPrincipal{}, domainerrors.ErrSessionExpired
	}

	token, err := uc.Tokens.GetToken(ctx, session.TokenID)
	if err != nil && !errors.Is(err, domainerrors.ErrTokenNotFound) {
		return entities.VoterPrincipal{}, err
	}
	if err != nil || token.Status != entities.TokenStatusUnused {
		if err := uc.Sessions.DeleteSession(ctx, session.SessionID); err != nil {
			return entities.VoterPrincipal{}, err
		}
		logger.Warn("voter session rejected: token no longer unused",
			"event", "voter_session_token_consumed",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", session.SessionID,
			"token_id", session.TokenID,
		)
		if token.Status == entities.TokenStatusInvalidated {
			return entities.VoterPrincipal{}, domainerrors.ErrTokenInvalid
		}
		return entities.VoterPrincipal{}, domainerrors.ErrTokenAlreadyUsed
	}
	return entities.VoterPrincipal{
		SessionID:  session.SessionID,
		TokenID:    session.TokenID,
		ElectionID: session.ElectionID,
	}, nil
}

// Logout is idempotent: an unknown secret is not an error.
func (uc SessionUseCase) Logout(ctx context.Context, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	session, found, err := uc.Sessions.GetSessionByHash(ctx, services.HashSecret(secret))
	if err != nil || !found {
		return err
	}
	if err := uc.Sessions.DeleteSession(ctx, session.SessionID); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("voter session closed",
		"event", "voter_session_logout",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", session.SessionID,
	)
	return nil
}

// resolveToken finds the token a code refers to. Without a slug the match is
// narrowed to elections currently accepting votes; more than one remaining
// match is ambiguous.
func (uc SessionUseCase) resolveToken(
	ctx context.Context,
	code string,
	slug string,
	now time.Time,
) (entities.Token, entities.Election, error) {
	matches, err := uc.Tokens.FindTokensByCode(ctx, code)
	if err != nil {
		return entities.Token{}, entities.Election{}, err
	}
	if len(matches) == 0 {
		return entities.Token{}, entities.Election{}, domainerrors.ErrTokenInvalid
	}

	if slug != "" {
		election, err := uc.Elections.GetElectionBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, domainerrors.ErrElectionNotFound) {
				return entities.Token{}, entities.Election{}, domainerrors.ErrTokenInvalid
			}
			return entities.Token{}, entities.Election{}, err
		}
		for _, token := range matches {
			if token.ElectionID == election.ElectionID {
				return token, election, nil
			}
		}
		return entities.Token{}, entities.Election{}, domainerrors.ErrTokenInvalid
	}

	if len(matches) == 1 {
		election, err := uc.Elections.GetElection(ctx, matches[0].ElectionID)
		if err != nil {
			return entities.Token{}, entities.Election{}, err
		}
		return matches[0], election, nil
	}

	var (
		chosen   entities.Token
		owner    entities.Election
		eligible int
	)
	for _, token := range matches {
		election, err := uc.Elections.GetElection(ctx, token.ElectionID)
		if err != nil {
			return entities.Token{}, entities.Election{}, err
		}
		if election.AcceptsVotes(now) {
			chosen, owner = token, election
			eligible++
		}
	}
	if eligible != 1 {
		return entities.Token{}, entities.Election{}, domainerrors.ErrTokenAmbiguous
	}
	return chosen, owner, nil
}

func (uc SessionUseCase) sessionTTL() time.Duration {
	if uc.SessionTTL <= 0 {
		return DefaultVoterSessionTTL
	}
	return uc.SessionTTL
}

func (uc SessionUseCase) secrets() ports.SecretGenerator {
	if uc.Secrets == nil {
		return services.CodeGenerator{}
	}
	return uc.Secrets
}
