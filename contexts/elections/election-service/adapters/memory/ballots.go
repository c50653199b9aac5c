package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
)

func (s *Store) CreateTokenBatch(_ context.Context, electionID string, tokens []entities.Token) (entities.TokenBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	electionID = strings.TrimSpace(electionID)
	if err := s.draftLocked(electionID); err != nil {
		return entities.TokenBatch{}, err
	}

	codes := make(map[string]struct{}, len(s.tokens)+len(tokens))
	batch := 0
	for _, token := range s.tokens {
		if token.ElectionID != electionID {
			continue
		}
		codes[token.Code] = struct{}{}
		if token.GeneratedBatch > batch {
			batch = token.GeneratedBatch
		}
	}
	for _, token := range tokens {
		if _, exists := codes[token.Code]; exists {
			return entities.TokenBatch{}, domainerrors.ErrConflict
		}
		if _, exists := s.tokens[token.TokenID]; exists {
			return entities.TokenBatch{}, domainerrors.ErrConflict
		}
		codes[token.Code] = struct{}{}
	}

	batch++
	created := make([]entities.Token, 0, len(tokens))
	for _, token := range tokens {
		token.ElectionID = electionID
		token.GeneratedBatch = batch
		token.Status = entities.TokenStatusUnused
		s.tokens[token.TokenID] = token
		created = append(created, token)
	}
	return entities.TokenBatch{ElectionID: electionID, Batch: batch, Tokens: created}, nil
}

func (s *Store) ListTokenCodes(_ context.Context, electionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]string, 0)
	for _, token := range s.tokens {
		if token.ElectionID == strings.TrimSpace(electionID) {
			codes = append(codes, token.Code)
		}
	}
	return codes, nil
}

func (s *Store) GetToken(_ context.Context, tokenID string) (entities.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[strings.TrimSpace(tokenID)]
	if !ok {
		return entities.Token{}, domainerrors.ErrTokenNotFound
	}
	return token, nil
}

func (s *Store) FindTokensByCode(_ context.Context, code string) ([]entities.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]entities.Token, 0, 1)
	for _, token := range s.tokens {
		if token.Code == code {
			matches = append(matches, token)
		}
	}
	return matches, nil
}

func (s *Store) ListTokens(_ context.Context, filter entities.TokenFilter) (entities.TokenPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Token, 0)
	for _, token := range s.tokens {
		if token.ElectionID != filter.ElectionID {
			continue
		}
		if filter.Status != "" && token.Status != filter.Status {
			continue
		}
		if filter.Batch > 0 && token.GeneratedBatch != filter.Batch {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToUpper(token.Code), strings.ToUpper(filter.Query)) {
			continue
		}
		items = append(items, token)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].GeneratedBatch != items[j].GeneratedBatch {
			return items[i].GeneratedBatch < items[j].GeneratedBatch
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].TokenID < items[j].TokenID
	})

	page := entities.TokenPage{Total: int64(len(items)), Page: filter.Page, PageSize: filter.PageSize}
	start := (filter.Page - 1) * filter.PageSize
	if start < 0 || start >= len(items) {
		page.Items = []entities.Token{}
		return page, nil
	}
	end := start + filter.PageSize
	if end > len(items) {
		end = len(items)
	}
	page.Items = items[start:end]
	return page, nil
}

func (s *Store) InvalidateToken(_ context.Context, tokenID string, redactedCode string, now time.Time) (entities.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[strings.TrimSpace(tokenID)]
	if !ok {
		return entities.Token{}, domainerrors.ErrTokenNotFound
	}
	if err := s.draftLocked(token.ElectionID); err != nil {
		return entities.Token{}, err
	}
	if token.Status != entities.TokenStatusUnused {
		return entities.Token{}, domainerrors.ErrTokenNotInvalidatable
	}
	now = now.UTC()
	token.Status = entities.TokenStatusInvalidated
	token.Code = redactedCode
	token.InvalidatedAt = &now
	token.UpdatedAt = now
	s.tokens[token.TokenID] = token
	s.deleteSessionsForTokenLocked(token.TokenID)
	return token, nil
}

func (s *Store) ReplaceSession(_ context.Context, session entities.VoterSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[session.TokenID]
	if !ok {
		return domainerrors.ErrTokenInvalid
	}
	switch token.Status {
	case entities.TokenStatusUnused:
	case entities.TokenStatusUsed:
		return domainerrors.ErrTokenAlreadyUsed
	default:
		return domainerrors.ErrTokenInvalid
	}
	s.deleteSessionsForTokenLocked(session.TokenID)
	s.sessions[session.SessionID] = session
	return nil
}

func (s *Store) GetSessionByHash(_ context.Context, sessionHash string) (entities.VoterSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.SessionHash == sessionHash {
			return session, true, nil
		}
	}
	return entities.VoterSession{}, false, nil
}

func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, strings.TrimSpace(sessionID))
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// CastVote mirrors the store transaction: the token is consumed only if it is
// still UNUSED in the given election, and nothing changes otherwise.
func (s *Store) CastVote(_ context.Context, params entities.CastVoteParams) (entities.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[params.TokenID]
	if !ok || token.ElectionID != params.ElectionID || token.Status != entities.TokenStatusUnused {
		return entities.Vote{}, domainerrors.ErrTokenAlreadyUsed
	}
	candidate, ok := s.candidates[params.CandidateID]
	if !ok || candidate.ElectionID != params.ElectionID {
		return entities.Vote{}, domainerrors.ErrInvalidCandidate
	}
	if _, exists := s.votes[params.VoteID]; exists {
		return entities.Vote{}, domainerrors.ErrConflict
	}

	castAt := params.CastAt.UTC()
	token.Status = entities.TokenStatusUsed
	token.Code = params.RedactedCode
	token.UsedAt = &castAt
	token.UpdatedAt = castAt
	s.tokens[token.TokenID] = token

	vote := entities.Vote{
		VoteID:      params.VoteID,
		ElectionID:  params.ElectionID,
		CandidateID: params.CandidateID,
		CreatedAt:   castAt,
	}
	s.votes[vote.VoteID] = vote
	delete(s.sessions, params.SessionID)
	s.deleteSessionsForTokenLocked(token.TokenID)
	return vote, nil
}

func (s *Store) CountVotesByCandidate(_ context.Context, electionID string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int64)
	for _, vote := range s.votes {
		if vote.ElectionID == strings.TrimSpace(electionID) {
			counts[vote.CandidateID]++
		}
	}
	return counts, nil
}

func (s *Store) CountTokensByStatus(_ context.Context, electionID string) (entities.TokenStatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countTokensLocked(strings.TrimSpace(electionID)), nil
}

func (s *Store) IntegrityReports(_ context.Context) ([]entities.IntegrityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	votes := make(map[string]int64)
	for _, vote := range s.votes {
		votes[vote.ElectionID]++
	}
	reports := make([]entities.IntegrityReport, 0, len(s.elections))
	for id, election := range s.elections {
		if election.Status == entities.ElectionStatusDraft {
			continue
		}
		reports = append(reports, entities.IntegrityReport{
			ElectionID: id,
			Votes:      votes[id],
			UsedTokens: s.countTokensLocked(id).Used,
		})
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].ElectionID < reports[j].ElectionID
	})
	return reports, nil
}

func (s *Store) countTokensLocked(electionID string) entities.TokenStatusCounts {
	var counts entities.TokenStatusCounts
	for _, token := range s.tokens {
		if token.ElectionID != electionID {
			continue
		}
		counts.Total++
		switch token.Status {
		case entities.TokenStatusUsed:
			counts.Used++
		case entities.TokenStatusInvalidated:
			counts.Invalidated++
		default:
			counts.Unused++
		}
	}
	return counts
}

func (s *Store) deleteSessionsForTokenLocked(tokenID string) {
	for id, session := range s.sessions {
		if session.TokenID == tokenID {
			delete(s.sessions, id)
		}
	}
}

func (s *Store) CreateAdmin(_ context.Context, admin entities.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.admins {
		if existing.Username == admin.Username {
			return domainerrors.ErrDuplicateAdmin
		}
	}
	s.admins[admin.AdminID] = admin
	return nil
}

func (s *Store) GetAdminByUsername(_ context.Context, username string) (entities.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, admin := range s.admins {
		if admin.Username == username {
			return admin, nil
		}
	}
	return entities.Admin{}, domainerrors.ErrAdminNotFound
}

func (s *Store) GetAdmin(_ context.Context, adminID string) (entities.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	admin, ok := s.admins[strings.TrimSpace(adminID)]
	if !ok {
		return entities.Admin{}, domainerrors.ErrAdminNotFound
	}
	return admin, nil
}

func (s *Store) CreateAdminSession(_ context.Context, session entities.AdminSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.admins[session.AdminID]; !ok {
		return domainerrors.ErrAdminNotFound
	}
	s.adminSessions[session.SessionID] = session
	return nil
}

func (s *Store) GetAdminSessionByHash(_ context.Context, sessionHash string) (entities.AdminSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.adminSessions {
		if session.SessionHash == sessionHash {
			return session, true, nil
		}
	}
	return entities.AdminSession{}, false, nil
}

func (s *Store) DeleteAdminSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.adminSessions, strings.TrimSpace(sessionID))
	return nil
}

func (s *Store) DeleteExpiredAdminSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, session := range s.adminSessions {
		if session.Expired(now) {
			delete(s.adminSessions, id)
			deleted++
		}
	}
	return deleted, nil
}
