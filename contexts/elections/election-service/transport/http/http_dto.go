package httptransport

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AdminDTO struct {
	AdminID  string `json:"admin_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type AdminLoginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresAt   string   `json:"expires_at"`
	Admin       AdminDTO `json:"admin"`
}

type ElectionDTO struct {
	ElectionID     string `json:"election_id"`
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Status         string `json:"status"`
	StartAt        string `json:"start_at"`
	EndAt          string `json:"end_at"`
	IsResultPublic bool   `json:"is_result_public"`
	ClosedAt       string `json:"closed_at,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type CreateElectionRequest struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartAt     string `json:"start_at"`
	EndAt       string `json:"end_at"`
}

// UpdateElectionRequest only changes fields that are present.
type UpdateElectionRequest struct {
	Slug        *string `json:"slug,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	StartAt     *string `json:"start_at,omitempty"`
	EndAt       *string `json:"end_at,omitempty"`
}

type ElectionResponse struct {
	Item ElectionDTO `json:"item"`
}

type ListElectionsResponse struct {
	Items []ElectionDTO `json:"items"`
}

type CandidateDTO struct {
	CandidateID string `json:"candidate_id"`
	ElectionID  string `json:"election_id"`
	Number      int    `json:"number"`
	LeaderName  string `json:"leader_name"`
	DeputyName  string `json:"deputy_name"`
	Vision      string `json:"vision,omitempty"`
	Mission     string `json:"mission,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	IsActive    bool   `json:"is_active"`
}

type CreateCandidateRequest struct {
	Number     int    `json:"number"`
	LeaderName string `json:"leader_name"`
	DeputyName string `json:"deputy_name"`
	Vision     string `json:"vision,omitempty"`
	Mission    string `json:"mission,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
	IsActive   *bool  `json:"is_active,omitempty"`
}

type UpdateCandidateRequest struct {
	Number     *int    `json:"number,omitempty"`
	LeaderName *string `json:"leader_name,omitempty"`
	DeputyName *string `json:"deputy_name,omitempty"`
	Vision     *string `json:"vision,omitempty"`
	Mission    *string `json:"mission,omitempty"`
	PhotoURL   *string `json:"photo_url,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

type CandidateResponse struct {
	Item CandidateDTO `json:"item"`
}

type ListCandidatesResponse struct {
	Items []CandidateDTO `json:"items"`
}

type TokenDTO struct {
	TokenID        string `json:"token_id"`
	ElectionID     string `json:"election_id"`
	Code           string `json:"code"`
	Status         string `json:"status"`
	GeneratedBatch int    `json:"generated_batch"`
	UsedAt         string `json:"used_at,omitempty"`
	InvalidatedAt  string `json:"invalidated_at,omitempty"`
	CreatedAt      string `json:"created_at"`
}

type GenerateTokensRequest struct {
	Count int `json:"count"`
}

type GenerateTokensResponse struct {
	ElectionID string     `json:"election_id"`
	Batch      int        `json:"batch"`
	Count      int        `json:"count"`
	Items      []TokenDTO `json:"items"`
}

type ListTokensRequest struct {
	Status   string
	Batch    int
	Query    string
	Page     int
	PageSize int
}

type ListTokensResponse struct {
	Items    []TokenDTO `json:"items"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

type TokenResponse struct {
	Item TokenDTO `json:"item"`
}

type VoterLoginRequest struct {
	Code         string `json:"code"`
	ElectionSlug string `json:"election_slug,omitempty"`
}

type VoterLoginResponse struct {
	SessionToken string      `json:"session_token"`
	ExpiresAt    string      `json:"expires_at"`
	Election     ElectionDTO `json:"election"`
}

type VoterCandidatesResponse struct {
	Election ElectionDTO    `json:"election"`
	Items    []CandidateDTO `json:"items"`
}

type CastVoteRequest struct {
	CandidateID string `json:"candidate_id"`
}

type CastVoteResponse struct {
	Status  string `json:"status"`
	VotedAt string `json:"voted_at"`
}

type CandidateTallyDTO struct {
	CandidateID string `json:"candidate_id"`
	Number      int    `json:"number"`
	LeaderName  string `json:"leader_name"`
	DeputyName  string `json:"deputy_name"`
	Votes       int64  `json:"votes"`
}

type TokenCountsDTO struct {
	Used        int64 `json:"used"`
	Unused      int64 `json:"unused"`
	Invalidated int64 `json:"invalidated"`
	Total       int64 `json:"total"`
}

type ResultsResponse struct {
	Election   ElectionDTO         `json:"election"`
	Candidates []CandidateTallyDTO `json:"candidates"`
	Tokens     TokenCountsDTO      `json:"tokens"`
	TotalVotes int64               `json:"total_votes"`
}

type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}
