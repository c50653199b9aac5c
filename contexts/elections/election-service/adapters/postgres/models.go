package postgresadapter

import (
	"strings"
	"time"

	"ballot/contexts/elections/election-service/domain/entities"
)

type electionModel struct {
	ID             string     `gorm:"column:id;primaryKey"`
	Slug           string     `gorm:"column:slug"`
	Name           string     `gorm:"column:name"`
	Description    string     `gorm:"column:description"`
	Status         string     `gorm:"column:status"`
	StartAt        time.Time  `gorm:"column:start_at"`
	EndAt          time.Time  `gorm:"column:end_at"`
	IsResultPublic bool       `gorm:"column:is_result_public"`
	ClosedAt       *time.Time `gorm:"column:closed_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (electionModel) TableName() string {
	return "elections"
}

func electionModelFromEntity(election entities.Election) electionModel {
	row := electionModel{
		ID:             strings.TrimSpace(election.ElectionID),
		Slug:           strings.TrimSpace(election.Slug),
		Name:           election.Name,
		Description:    election.Description,
		Status:         string(election.Status),
		StartAt:        election.StartAt.UTC(),
		EndAt:          election.EndAt.UTC(),
		IsResultPublic: election.IsResultPublic,
		ClosedAt:       normalizeOptionalTime(election.ClosedAt),
		CreatedAt:      election.CreatedAt.UTC(),
		UpdatedAt:      election.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m electionModel) toEntity() entities.Election {
	return entities.Election{
		ElectionID:     m.ID,
		Slug:           m.Slug,
		Name:           m.Name,
		Description:    m.Description,
		Status:         entities.ElectionStatus(m.Status),
		StartAt:        m.StartAt.UTC(),
		EndAt:          m.EndAt.UTC(),
		IsResultPublic: m.IsResultPublic,
		ClosedAt:       normalizeOptionalTime(m.ClosedAt),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

type candidateModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ElectionID string    `gorm:"column:election_id"`
	Number     int       `gorm:"column:number"`
	LeaderName string    `gorm:"column:leader_name"`
	DeputyName string    `gorm:"column:deputy_name"`
	Vision     string    `gorm:"column:vision"`
	Mission    string    `gorm:"column:mission"`
	PhotoURL   string    `gorm:"column:photo_url"`
	IsActive   bool      `gorm:"column:is_active"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (candidateModel) TableName() string {
	return "candidate_pairs"
}

func candidateModelFromEntity(candidate entities.CandidatePair) candidateModel {
	row := candidateModel{
		ID:         strings.TrimSpace(candidate.CandidateID),
		ElectionID: strings.TrimSpace(candidate.ElectionID),
		Number:     candidate.Number,
		LeaderName: candidate.LeaderName,
		DeputyName: candidate.DeputyName,
		Vision:     candidate.Vision,
		Mission:    candidate.Mission,
		PhotoURL:   candidate.PhotoURL,
		IsActive:   candidate.IsActive,
		CreatedAt:  candidate.CreatedAt.UTC(),
		UpdatedAt:  candidate.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m candidateModel) toEntity() entities.CandidatePair {
	return entities.CandidatePair{
		CandidateID: m.ID,
		ElectionID:  m.ElectionID,
		Number:      m.Number,
		LeaderName:  m.LeaderName,
		DeputyName:  m.DeputyName,
		Vision:      m.Vision,
		Mission:     m.Mission,
		PhotoURL:    m.PhotoURL,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

type tokenModel struct {
	ID             string     `gorm:"column:id;primaryKey"`
	ElectionID     string     `gorm:"column:election_id"`
	Code           string     `gorm:"column:code"`
	Status         string     `gorm:"column:status"`
	GeneratedBatch int        `gorm:"column:generated_batch"`
	UsedAt         *time.Time `gorm:"column:used_at"`
	InvalidatedAt  *time.Time `gorm:"column:invalidated_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (tokenModel) TableName() string {
	return "tokens"
}

func tokenModelFromEntity(token entities.Token) tokenModel {
	row := tokenModel{
		ID:             strings.TrimSpace(token.TokenID),
		ElectionID:     strings.TrimSpace(token.ElectionID),
		Code:           token.Code,
		Status:         string(token.Status),
		GeneratedBatch: token.GeneratedBatch,
		UsedAt:         normalizeOptionalTime(token.UsedAt),
		InvalidatedAt:  normalizeOptionalTime(token.InvalidatedAt),
		CreatedAt:      token.CreatedAt.UTC(),
		UpdatedAt:      token.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m tokenModel) toEntity() entities.Token {
	return entities.Token{
		TokenID:        m.ID,
		ElectionID:     m.ElectionID,
		Code:           m.Code,
		Status:         entities.TokenStatus(m.Status),
		GeneratedBatch: m.GeneratedBatch,
		UsedAt:         normalizeOptionalTime(m.UsedAt),
		InvalidatedAt:  normalizeOptionalTime(m.InvalidatedAt),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

type voterSessionModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	TokenID     string    `gorm:"column:token_id"`
	ElectionID  string    `gorm:"column:election_id"`
	SessionHash string    `gorm:"column:session_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (voterSessionModel) TableName() string {
	return "voter_sessions"
}

func (m voterSessionModel) toEntity() entities.VoterSession {
	return entities.VoterSession{
		SessionID:   m.ID,
		TokenID:     m.TokenID,
		ElectionID:  m.ElectionID,
		SessionHash: m.SessionHash,
		ExpiresAt:   m.ExpiresAt.UTC(),
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

type voteModel struct {
	ID              string    `gorm:"column:id;primaryKey"`
	ElectionID      string    `gorm:"column:election_id"`
	CandidatePairID string    `gorm:"column:candidate_pair_id"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		VoteID:      m.ID,
		ElectionID:  m.ElectionID,
		CandidateID: m.CandidatePairID,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

type adminModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Username     string    `gorm:"column:username"`
	PasswordHash string    `gorm:"column:password_hash"`
	Role         string    `gorm:"column:role"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (adminModel) TableName() string {
	return "admins"
}

func (m adminModel) toEntity() entities.Admin {
	return entities.Admin{
		AdminID:      m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Role:         entities.AdminRole(m.Role),
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

type adminSessionModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	AdminID     string    `gorm:"column:admin_id"`
	SessionHash string    `gorm:"column:session_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (adminSessionModel) TableName() string {
	return "admin_sessions"
}

func (m adminSessionModel) toEntity() entities.AdminSession {
	return entities.AdminSession{
		SessionID:   m.ID,
		AdminID:     m.AdminID,
		SessionHash: m.SessionHash,
		ExpiresAt:   m.ExpiresAt.UTC(),
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "election_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "election_event_dedup"
}

func toElectionEntities(rows []electionModel) []entities.Election {
	items := make([]entities.Election, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func toTokenEntities(rows []tokenModel) []entities.Token {
	items := make([]entities.Token, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
