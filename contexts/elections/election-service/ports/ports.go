package ports

import (
	"context"
	"time"

	eventsv1 "ballot/contracts/gen/events/v1"
	"ballot/contexts/elections/election-service/domain/entities"
)

type ElectionRepository interface {
	CreateElection(ctx context.Context, election entities.Election) error
	UpdateElection(ctx context.Context, election entities.Election) error
	GetElection(ctx context.Context, electionID string) (entities.Election, error)
	GetElectionBySlug(ctx context.Context, slug string) (entities.Election, error)
	GetActiveElection(ctx context.Context) (entities.Election, bool, error)
	GetLatestPublishedElection(ctx context.Context) (entities.Election, bool, error)
	ListElections(ctx context.Context, filter entities.ElectionFilter) ([]entities.Election, error)

	// ActivateElection closes every other ACTIVE election and moves the target
	// from DRAFT to ACTIVE in one transaction.
	ActivateElection(ctx context.Context, electionID string, now time.Time) (entities.ActivationResult, error)
	// TransitionElection is a conditional update from -> to. It returns
	// ErrConflict when the row was no longer in the from state.
	TransitionElection(ctx context.Context, electionID string, from entities.ElectionStatus, to entities.ElectionStatus, now time.Time) (entities.Election, error)
	SetResultVisibility(ctx context.Context, electionID string, public bool, now time.Time) (entities.Election, error)
	CloseExpiredElections(ctx context.Context, now time.Time) ([]entities.Election, error)
}

type CandidateRepository interface {
	CreateCandidate(ctx context.Context, candidate entities.CandidatePair) error
	UpdateCandidate(ctx context.Context, candidate entities.CandidatePair) error
	DeleteCandidate(ctx context.Context, electionID string, candidateID string) error
	GetCandidate(ctx context.Context, candidateID string) (entities.CandidatePair, error)
	ListCandidates(ctx context.Context, electionID string, activeOnly bool) ([]entities.CandidatePair, error)
	CountVotesForCandidate(ctx context.Context, candidateID string) (int64, error)
}

type TokenRepository interface {
	// CreateTokenBatch persists all codes or none. It returns ErrConflict when
	// one of the codes already exists so the caller can redraw.
	CreateTokenBatch(ctx context.Context, electionID string, tokens []entities.Token) (entities.TokenBatch, error)
	ListTokenCodes(ctx context.Context, electionID string) ([]string, error)
	GetToken(ctx context.Context, tokenID string) (entities.Token, error)
	FindTokensByCode(ctx context.Context, code string) ([]entities.Token, error)
	ListTokens(ctx context.Context, filter entities.TokenFilter) (entities.TokenPage, error)
	// InvalidateToken moves an UNUSED token to INVALIDATED, redacts its code
	// and drops any session bound to it.
	InvalidateToken(ctx context.Context, tokenID string, redactedCode string, now time.Time) (entities.Token, error)
}

type SessionRepository interface {
	// ReplaceSession drops any session for the token and inserts the new one,
	// provided the token is still UNUSED.
	ReplaceSession(ctx context.Context, session entities.VoterSession) error
	GetSessionByHash(ctx context.Context, sessionHash string) (entities.VoterSession, bool, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type VoteRepository interface {
	// CastVote consumes the token with a conditional update, inserts the vote
	// and deletes the session atomically. It returns ErrTokenAlreadyUsed when
	// the conditional update matched no row.
	CastVote(ctx context.Context, params entities.CastVoteParams) (entities.Vote, error)
}

type ResultRepository interface {
	CountVotesByCandidate(ctx context.Context, electionID string) (map[string]int64, error)
	CountTokensByStatus(ctx context.Context, electionID string) (entities.TokenStatusCounts, error)
	IntegrityReports(ctx context.Context) ([]entities.IntegrityReport, error)
}

type AdminRepository interface {
	CreateAdmin(ctx context.Context, admin entities.Admin) error
	GetAdminByUsername(ctx context.Context, username string) (entities.Admin, error)
	GetAdmin(ctx context.Context, adminID string) (entities.Admin, error)
	CreateAdminSession(ctx context.Context, session entities.AdminSession) error
	GetAdminSessionByHash(ctx context.Context, sessionHash string) (entities.AdminSession, bool, error)
	DeleteAdminSession(ctx context.Context, sessionID string) error
	DeleteExpiredAdminSessions(ctx context.Context, now time.Time) (int64, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// SecretGenerator is the random source for token codes and session secrets.
type SecretGenerator interface {
	NewTokenCode() (string, error)
	NewSessionSecret() (string, error)
}

type EventEnvelope = eventsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, EventEnvelope) error) error
}

// EventReservation claims an event id until ExpiresAt. Now is read from the
// consumer's clock and is the only time an adapter compares ExpiresAt with.
type EventReservation struct {
	EventID     string
	PayloadHash string
	Now         time.Time
	ExpiresAt   time.Time
}

// EventDedupStore reports true when the event id is already claimed with the
// same payload hash.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, reservation EventReservation) (bool, error)
}
