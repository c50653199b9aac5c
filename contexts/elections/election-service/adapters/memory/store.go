package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

func (d dedupRecord) lapsed(now time.Time) bool {
	return !d.expiresAt.IsZero() && now.UTC().After(d.expiresAt)
}

// Store is a single-process implementation of every election-service port.
// One mutex guards all maps, so each method is atomic the way a store
// transaction would be.
type Store struct {
	mu sync.RWMutex

	elections     map[string]entities.Election
	candidates    map[string]entities.CandidatePair
	tokens        map[string]entities.Token
	sessions      map[string]entities.VoterSession
	votes         map[string]entities.Vote
	admins        map[string]entities.Admin
	adminSessions map[string]entities.AdminSession
	outbox        map[string]outboxRecord
	eventDedup    map[string]dedupRecord
}

func NewStore() *Store {
	return &Store{
		elections:     make(map[string]entities.Election),
		candidates:    make(map[string]entities.CandidatePair),
		tokens:        make(map[string]entities.Token),
		sessions:      make(map[string]entities.VoterSession),
		votes:         make(map[string]entities.Vote),
		admins:        make(map[string]entities.Admin),
		adminSessions: make(map[string]entities.AdminSession),
		outbox:        make(map[string]outboxRecord),
		eventDedup:    make(map[string]dedupRecord),
	}
}

func (s *Store) CreateElection(_ context.Context, election entities.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.elections[election.ElectionID]; exists {
		return domainerrors.ErrConflict
	}
	if s.slugTakenLocked(election.Slug, "") {
		return domainerrors.ErrDuplicateSlug
	}
	s.elections[election.ElectionID] = election
	return nil
}

func (s *Store) UpdateElection(_ context.Context, election entities.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.elections[election.ElectionID]
	if !ok {
		return domainerrors.ErrElectionNotFound
	}
	if current.Status != election.Status {
		return domainerrors.ErrConflict
	}
	if s.slugTakenLocked(election.Slug, election.ElectionID) {
		return domainerrors.ErrDuplicateSlug
	}
	// Status and visibility only move through the dedicated transitions.
	election.Status = current.Status
	election.IsResultPublic = current.IsResultPublic
	election.ClosedAt = current.ClosedAt
	election.CreatedAt = current.CreatedAt
	s.elections[election.ElectionID] = election
	return nil
}

func (s *Store) GetElection(_ context.Context, electionID string) (entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	return election, nil
}

func (s *Store) GetElectionBySlug(_ context.Context, slug string) (entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, election := range s.elections {
		if election.Slug == strings.TrimSpace(slug) {
			return election, nil
		}
	}
	return entities.Election{}, domainerrors.ErrElectionNotFound
}

func (s *Store) GetActiveElection(_ context.Context) (entities.Election, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, election := range s.elections {
		if election.Status == entities.ElectionStatusActive {
			return election, true, nil
		}
	}
	return entities.Election{}, false, nil
}

func (s *Store) GetLatestPublishedElection(_ context.Context) (entities.Election, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest entities.Election
		found  bool
	)
	for _, election := range s.elections {
		if !election.IsResultPublic || election.ClosedAt == nil {
			continue
		}
		if !found || election.ClosedAt.After(*latest.ClosedAt) {
			latest, found = election, true
		}
	}
	return latest, found, nil
}

func (s *Store) ListElections(_ context.Context, filter entities.ElectionFilter) ([]entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Election, 0, len(s.elections))
	for _, election := range s.elections {
		if filter.Status != "" && election.Status != filter.Status {
			continue
		}
		items = append(items, election)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ElectionID < items[j].ElectionID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) ActivateElection(_ context.Context, electionID string, now time.Time) (entities.ActivationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.ActivationResult{}, domainerrors.ErrElectionNotFound
	}
	if target.Status != entities.ElectionStatusDraft {
		return entities.ActivationResult{}, domainerrors.ErrActivationConflict
	}
	now = now.UTC()
	result := entities.ActivationResult{}
	for id, election := range s.elections {
		if election.Status != entities.ElectionStatusActive {
			continue
		}
		closedAt := now
		election.Status = entities.ElectionStatusClosed
		election.ClosedAt = &closedAt
		election.UpdatedAt = now
		s.elections[id] = election
		result.ClosedElections = append(result.ClosedElections, election)
	}
	target.Status = entities.ElectionStatusActive
	target.UpdatedAt = now
	s.elections[target.ElectionID] = target
	result.Election = target
	return result, nil
}

func (s *Store) TransitionElection(
	_ context.Context,
	electionID string,
	from entities.ElectionStatus,
	to entities.ElectionStatus,
	now time.Time,
) (entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	if election.Status != from {
		return entities.Election{}, domainerrors.ErrConflict
	}
	now = now.UTC()
	election.Status = to
	election.UpdatedAt = now
	if to == entities.ElectionStatusClosed {
		closedAt := now
		election.ClosedAt = &closedAt
	}
	s.elections[election.ElectionID] = election
	return election, nil
}

func (s *Store) SetResultVisibility(_ context.Context, electionID string, public bool, now time.Time) (entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	if election.Status != entities.ElectionStatusClosed {
		return entities.Election{}, domainerrors.ErrElectionNotClosed
	}
	election.IsResultPublic = public
	election.UpdatedAt = now.UTC()
	s.elections[election.ElectionID] = election
	return election, nil
}

func (s *Store) CloseExpiredElections(_ context.Context, now time.Time) ([]entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now = now.UTC()
	closed := make([]entities.Election, 0)
	for id, election := range s.elections {
		if election.Status != entities.ElectionStatusActive || !election.EndAt.Before(now) {
			continue
		}
		closedAt := now
		election.Status = entities.ElectionStatusClosed
		election.ClosedAt = &closedAt
		election.UpdatedAt = now
		s.elections[id] = election
		closed = append(closed, election)
	}
	return closed, nil
}

func (s *Store) CreateCandidate(_ context.Context, candidate entities.CandidatePair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.draftLocked(candidate.ElectionID); err != nil {
		return err
	}
	if s.numberTakenLocked(candidate.ElectionID, candidate.Number, "") {
		return domainerrors.ErrDuplicateCandidate
	}
	s.candidates[candidate.CandidateID] = candidate
	return nil
}

func (s *Store) UpdateCandidate(_ context.Context, candidate entities.CandidatePair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.candidates[candidate.CandidateID]
	if !ok {
		return domainerrors.ErrCandidateNotFound
	}
	if err := s.draftLocked(current.ElectionID); err != nil {
		return err
	}
	if s.numberTakenLocked(current.ElectionID, candidate.Number, candidate.CandidateID) {
		return domainerrors.ErrDuplicateCandidate
	}
	candidate.ElectionID = current.ElectionID
	candidate.CreatedAt = current.CreatedAt
	s.candidates[candidate.CandidateID] = candidate
	return nil
}

func (s *Store) DeleteCandidate(_ context.Context, electionID string, candidateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate, ok := s.candidates[strings.TrimSpace(candidateID)]
	if !ok || candidate.ElectionID != strings.TrimSpace(electionID) {
		return domainerrors.ErrCandidateNotFound
	}
	if err := s.draftLocked(candidate.ElectionID); err != nil {
		return err
	}
	for _, vote := range s.votes {
		if vote.CandidateID == candidate.CandidateID {
			return domainerrors.ErrCandidateHasVotes
		}
	}
	delete(s.candidates, candidate.CandidateID)
	return nil
}

func (s *Store) GetCandidate(_ context.Context, candidateID string) (entities.CandidatePair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidate, ok := s.candidates[strings.TrimSpace(candidateID)]
	if !ok {
		return entities.CandidatePair{}, domainerrors.ErrCandidateNotFound
	}
	return candidate, nil
}

func (s *Store) ListCandidates(_ context.Context, electionID string, activeOnly bool) ([]entities.CandidatePair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.CandidatePair, 0)
	for _, candidate := range s.candidates {
		if candidate.ElectionID != strings.TrimSpace(electionID) {
			continue
		}
		if activeOnly && !candidate.IsActive {
			continue
		}
		items = append(items, candidate)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Number < items[j].Number
	})
	return items, nil
}

func (s *Store) CountVotesForCandidate(_ context.Context, candidateID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, vote := range s.votes {
		if vote.CandidateID == strings.TrimSpace(candidateID) {
			count++
		}
	}
	return count, nil
}

// draftLocked mirrors the store-level guard on slate and token writes.
func (s *Store) draftLocked(electionID string) error {
	election, ok := s.elections[electionID]
	if !ok {
		return domainerrors.ErrElectionNotFound
	}
	if election.Status != entities.ElectionStatusDraft {
		return domainerrors.ErrElectionNotDraft
	}
	return nil
}

func (s *Store) slugTakenLocked(slug string, exceptID string) bool {
	for id, election := range s.elections {
		if id != exceptID && election.Slug == slug {
			return true
		}
	}
	return false
}

func (s *Store) numberTakenLocked(electionID string, number int, exceptID string) bool {
	for id, candidate := range s.candidates {
		if id != exceptID && candidate.ElectionID == electionID && candidate.Number == number {
			return true
		}
	}
	return false
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].OutboxID < items[j].OutboxID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok || row.published {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) ReserveEvent(_ context.Context, reservation ports.EventReservation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(reservation.EventID)
	hash := strings.TrimSpace(reservation.PayloadHash)
	claim, ok := s.eventDedup[key]
	if ok && !claim.lapsed(reservation.Now) {
		if claim.payloadHash != hash {
			return false, domainerrors.ErrConflict
		}
		return true, nil
	}
	s.eventDedup[key] = dedupRecord{
		payloadHash: hash,
		expiresAt:   reservation.ExpiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
