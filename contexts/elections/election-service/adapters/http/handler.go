package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "ballot/contexts/elections/election-service/application"
	"ballot/contexts/elections/election-service/application/commands"
	"ballot/contexts/elections/election-service/application/queries"
	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	httptransport "ballot/contexts/elections/election-service/transport/http"
)

// Handler translates transport DTOs to use-case calls. Authentication is
// resolved by the caller and passed in as an explicit principal.
type Handler struct {
	Elections     commands.ElectionUseCase
	Candidates    commands.CandidateUseCase
	Tokens        commands.TokenUseCase
	Sessions      commands.SessionUseCase
	Votes         commands.VoteUseCase
	AdminAuth     commands.AdminAuthUseCase
	ElectionReads queries.ElectionQueries
	TokenReads    queries.TokenQueries
	Results       queries.ResultQueries
	Logger        *slog.Logger
}

// AdminLoginHandler godoc
// @Summary Admin login
// @Description Exchanges admin credentials for a bearer secret.
// @Tags admin-auth
// @Accept json
// @Produce json
// @Param request body httptransport.AdminLoginRequest true "Credentials"
// @Success 200 {object} httptransport.AdminLoginResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Router /api/v1/admin/login [post]
func (h Handler) AdminLoginHandler(ctx context.Context, req httptransport.AdminLoginRequest) (httptransport.AdminLoginResponse, error) {
	result, err := h.AdminAuth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return httptransport.AdminLoginResponse{}, err
	}
	return httptransport.AdminLoginResponse{
		AccessToken: result.Secret,
		TokenType:   "Bearer",
		ExpiresAt:   formatTime(result.ExpiresAt),
		Admin: httptransport.AdminDTO{
			AdminID:  result.Principal.AdminID,
			Username: result.Principal.Username,
			Role:     string(result.Principal.Role),
		},
	}, nil
}

func (h Handler) AuthenticateAdmin(ctx context.Context, secret string) (entities.AdminPrincipal, error) {
	return h.AdminAuth.Authenticate(ctx, secret)
}

// AdminLogoutHandler godoc
// @Summary Admin logout
// @Tags admin-auth
// @Security BearerAuth
// @Success 204
// @Router /api/v1/admin/logout [post]
func (h Handler) AdminLogoutHandler(ctx context.Context, secret string) error {
	return h.AdminAuth.Logout(ctx, secret)
}

// ListElectionsHandler godoc
// @Summary List elections
// @Tags admin-elections
// @Produce json
// @Security BearerAuth
// @Param status query string false "DRAFT, ACTIVE, CLOSED or ARCHIVED"
// @Success 200 {object} httptransport.ListElectionsResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /api/v1/admin/elections [get]
func (h Handler) ListElectionsHandler(ctx context.Context, actor entities.AdminPrincipal, status string) (httptransport.ListElectionsResponse, error) {
	filter := entities.ElectionFilter{Status: entities.ElectionStatus(strings.ToUpper(strings.TrimSpace(status)))}
	if filter.Status != "" && !filter.Status.Valid() {
		return httptransport.ListElectionsResponse{}, domainerrors.Invalid("status", "unknown election status")
	}
	items, err := h.ElectionReads.ListElections(ctx, actor, filter)
	if err != nil {
		return httptransport.ListElectionsResponse{}, err
	}
	resp := httptransport.ListElectionsResponse{Items: make([]httptransport.ElectionDTO, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, mapElection(item))
	}
	return resp, nil
}

// GetElectionHandler godoc
// @Summary Get election
// @Tags admin-elections
// @Produce json
// @Security BearerAuth
// @Param electionID path string true "Election id"
// @Success 200 {object} httptransport.ElectionResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/v1/admin/elections/{electionID} [get]
func (h Handler) GetElectionHandler(ctx context.Context, actor entities.AdminPrincipal, electionID string) (httptransport.ElectionResponse, error) {
	election, err := h.ElectionReads.GetElection(ctx, actor, electionID)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return httptransport.ElectionResponse{Item: mapElection(election)}, nil
}

// CreateElectionHandler godoc
// @Summary Create election
// @Description Creates a DRAFT election. Times are RFC3339.
// @Tags admin-elections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body httptransport.CreateElectionRequest true "Election"
// @Success 201 {object} httptransport.ElectionResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /api/v1/admin/elections [post]
func (h Handler) CreateElectionHandler(
	ctx context.Context,
	actor entities.AdminPrincipal,
	req httptransport.CreateElectionRequest,
) (httptransport.ElectionResponse, error) {
	startAt, err := parseTime("start_at", req.StartAt)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	endAt, err := parseTime("end_at", req.EndAt)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	election, err := h.Elections.CreateElection(ctx, commands.CreateElectionCommand{
		Actor:       actor,
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		StartAt:     startAt,
		EndAt:       endAt,
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return httptransport.ElectionResponse{Item: mapElection(election)}, nil
}

// UpdateElectionHandler godoc
// @Summary Update election
// @Description Slug and schedule may only change while DRAFT.
// @Tags admin-elections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param electionID path string true "Election id"
// @Param request body httptransport.UpdateElectionRequest true "Changed fields"
// @Success 200 {object} httptransport.ElectionResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/v1/admin/elections/{electionID} [patch]
func (h Handler) UpdateElectionHandler(
	ctx context.Context,
	actor entities.AdminPrincipal,
	electionID string,
	req httptransport.UpdateElectionRequest,
) (httptransport.ElectionResponse, error) {
	cmd := commands.UpdateElectionCommand{
		Actor:       actor,
		ElectionID:  electionID,
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
	}
	if req.StartAt != nil {
		startAt, err := parseTime("start_at", *req.StartAt)
		if err != nil {
			return httptransport.ElectionResponse{}, err
		}
		cmd.StartAt = &startAt
	}
	if req.EndAt != nil {
		endAt, err := parseTime("end_at", *req.EndAt)
		if err != nil {
			return httptransport.ElectionResponse{}, err
		}
		cmd.EndAt = &endAt
	}
	election, err := h.Elections.UpdateElection(ctx, cmd)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return httptransport.ElectionResponse{Item: mapElection(election)}, nil
}

// TransitionElectionHandler godoc
// @Summary Change election status or result visibility
// @Description action is one of activate, close, archive, publish-results, hide-results.
// @Tags admin-elections
// @Produce json
// @Security BearerAuth
// @Param electionID path string true "Election id"
// @Param action path string true "Lifecycle action"
// @Success 200 {object} httptransport.ElectionResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/v1/admin/elections/{electionID}/{action} [post]
func (h Handler) TransitionElectionHandler(
	ctx context.Context,
	actor entities.AdminPrincipal,
	electionID string,
	action string,
) (httptransport.ElectionResponse, error) {
	cmd := commands.TransitionCommand{Actor: actor, ElectionID: electionID}
	var (
		election entities.Election
		err      error
	)
	switch action {
	case "activate":
		election, err = h.Elections.Activate(ctx, cmd)
	case "close":
		election, err = h.Elections.Close(ctx, cmd)
	case "archive":
		election, err = h.Elections.Archive(ctx, cmd)
	case "publish-results":
		election, err = h.Elections.PublishResults(ctx, cmd)
	case "hide-results":
		election, err = h.Elections.HideResults(ctx, cmd)
	default:
		return httptransport.ElectionResponse{}, domainerrors.Invalid("action", "unknown election action")
	}
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return httptransport.ElectionResponse{Item: mapElection(election)}, nil
}

// AdminResultsHandler godoc
// @Summary Election results for operators
// @Description Returns the tally regardless of publication.
// @Tags admin-results
// @Produce json
// @Security BearerAuth
// @Param electionID path string true "Election id"
// @Success 200 {object} httptransport.ResultsResponse
// @Router /api/v1/admin/elections/{electionID}/results [get]
func (h Handler) AdminResultsHandler(ctx context.Context, actor entities.AdminPrincipal, electionID string) (httptransport.ResultsResponse, error) {
	results, err := h.Results.AdminResults(ctx, actor, electionID)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	return mapResults(results), nil
}

// ListCandidatesHandler godoc
// @Summary List candidates
// @Tags admin-candidates
// @Produce json
// @Security BearerAuth
// @Param electionID path string true "Election id"
// @Success 200 {object} httptransport.ListCandidatesResponse
// @Router /api/v1/admin/elections/{electionID}/candidates [get]
func (h Handler) ListCandidatesHandler(ctx context.Context, actor entities.AdminPrincipal, electionID string) (httptransport.ListCandidatesResponse, error) {
	items, err := h.ElectionReads.ListCandidates(ctx, actor, electionID)
	if err != nil {
		return httptransport.ListCandidatesResponse{}, err
	}
	return httptransport.ListCandidatesResponse{Items: mapCandidates(items)}, nil
}

// CreateCandidateHandler godoc
// @Summary Create candidate pair
// @Tags admin-candidates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param electionID path string true "Election id"
// @Param request body httptransport.CreateCandidateRequest true "Candidate"
// @Success 201 {object} httptransport.CandidateResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/v1/admin/elections/{electionID}/candidates [post]
func (h Handler) CreateCandidateHandler(
	ctx context.Context,
	actor entities.AdminPrincipal,
	electionID string,
	req httptransport.CreateCandidateRequest,
) (httptransport.CandidateResponse, error) {
	candidate, err := h.Candidates.CreateCandidate(ctx, commands.CreateCandidateCommand{
		Actor:      actor,
		ElectionID: electionID,
		Number:     req.Number,
		LeaderName: req.LeaderName,
		DeputyName: req.DeputyName,
		Vision:     req.Vision,
		Mission:    req.Mission,
		PhotoURL:   req.PhotoURL,
		IsActive:   req.IsActive,
	})
	if err != nil {
		return httptransport.CandidateResponse{}, err
	}
	return httptransport.CandidateResponse{Item: mapCandidate(candidate)}, nil
}

// UpdateCandidateHandler godoc
// @Summary Update candidate pair
// @Tags admin-candidates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param electionID path string true "Election id"
// @Param candidateID path string true "Candidate id"
// @Param request body httptransport.UpdateCandidateRequest true "Changed fields"
// @Success 200 {object} httptransport.CandidateResponse
// @Router /api/v1/admin/elections/{electionID}/candidates/{candidateID} [patch]
func (h Handler) UpdateCandidateHandler(
	ctx context.Context,
	actor entities.AdminPrincipal,
	electionID string,
	candidateID string,
	req httptransport.UpdateCandidateRequest,
) (httptransport.CandidateResponse, error) {
	candidate, err := h.Candidates.UpdateCandidate(ctx, commands.UpdateCandidateCommand{
		Actor:       actor,
		ElectionID:  electionID,
		CandidateID: candidateID,
		Number:      req.Number,
		LeaderName:  req.LeaderName,
		DeputyName:  req.DeputyName,
		Vision:      req.Vision,
		Mission:     req.Mission,
		PhotoURL:    req.PhotoURL,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return httptransport.CandidateResponse{}, err
	}
	return httptransport.CandidateResponse{Item: mapCandidate(candidate)}, nil
}

// DeleteCandidateHandler godoc
// @Summary Delete candidate pair
// @Description Fails once the candidate has votes.
// @Tags admin-candidates
// @Security BearerAuth
// @Param electionID path string true "Election id"
// @Param candidateID path string true "Candidate id"
// @Success 204
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/v1/admin/elections/{electionID}/candidates/{candidateID} [delete]
func (h Handler) DeleteCandidateHandler(ctx context.Context, actor entities.AdminPrincipal, electionID string, candidateID string) error {
	return h.Candidates.DeleteCandidate(ctx, commands.DeleteCandidateCommand{
		Actor:       actor,
		ElectionID:  electionID,
		CandidateID: candidateID,
	})
}

// ListTokensHandler godoc
// @Summary List voter tokens
// @Tags admin-tokens
// @Produce json
// @Security BearerAuth
// @Param electionID path string true "Election id"
// @Param status query string false "UNUSED, USED or INVALIDATED"
// @Param batch query int false "Generation batch"
// @Param q query string false "Code substring"
// @Param page query int false "1-based page"
// @Param page_size query int false "Page size (max 500)"
// @Success 200 {object} httptransport.ListTokensResponse
// @Router /api/v1/admin/elections/{electionID}/tokens [get]
func (h Handler) ListTokensHandler(
	ctx context.Context,
	actor entities.AdminPrincipal,
	electionID string,
	req httptransport.ListTokensRequest,
) (httptransport.ListTokensResponse, error) {
	status := entities.TokenStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if status != "" && !status.Valid() {
		return httptransport.ListTokensResponse{}, domainerrors.Invalid("status", "unknown token status")
	}
	page, err := h.TokenReads.ListTokens(ctx, actor, entities.TokenFilter{
		ElectionID: electionID,
		Status:     status,
		Batch:      req.Batch,
		Query:      req.Query,
		Page:       req.Page,
		PageSize:   req.PageSize,
	})
	if err != nil {
		return httptransport.ListTokensResponse{}, err
	}
	return httptransport.ListTokensResponse{
		Items:    mapTokens(page.Items),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

// GenerateTokensHandler godoc
// @Summary Generate a token batch
// @Tags admin-tokens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param electionID path string true "Election id"
// @Param request body httptransport.GenerateTokensRequest true "Batch size"
// @Success 201 {object} httptransport.GenerateTokensResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /api/v1/admin/elections/{electionID}/tokens [post]
func (h Handler) GenerateTokensHandler(
	ctx context.Context,
	actor entities.AdminPrincipal,
	electionID string,
	req httptransport.GenerateTokensRequest,
) (httptransport.GenerateTokensResponse, error) {
	batch, err := h.Tokens.GenerateTokens(ctx, commands.GenerateTokensCommand{
		Actor:      actor,
		ElectionID: electionID,
		Count:      req.Count,
	})
	if err != nil {
		return httptransport.GenerateTokensResponse{}, err
	}
	return httptransport.GenerateTokensResponse{
		ElectionID: batch.ElectionID,
		Batch:      batch.Batch,
		Count:      len(batch.Tokens),
		Items:      mapTokens(batch.Tokens),
	}, nil
}

// InvalidateTokenHandler godoc
// @Summary Invalidate an unused token
// @Tags admin-tokens
// @Produce json
// @Security BearerAuth
// @Param electionID path string true "Election id"
// @Param tokenID path string true "Token id"
// @Success 200 {object} httptransport.TokenResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /api/v1/admin/elections/{electionID}/tokens/{tokenID}/invalidate [post]
func (h Handler) InvalidateTokenHandler(
	ctx context.Context,
	actor entities.AdminPrincipal,
	electionID string,
	tokenID string,
) (httptransport.TokenResponse, error) {
	token, err := h.Tokens.InvalidateToken(ctx, commands.InvalidateTokenCommand{
		Actor:      actor,
		ElectionID: electionID,
		TokenID:    tokenID,
	})
	if err != nil {
		return httptransport.TokenResponse{}, err
	}
	return httptransport.TokenResponse{Item: mapToken(token)}, nil
}

// VoterLoginHandler godoc
// @Summary Redeem a voter token
// @Description Returns a session secret once; it is also set as a cookie.
// @Tags voter
// @Accept json
// @Produce json
// @Param request body httptransport.VoterLoginRequest true "Token code"
// @Success 200 {object} httptransport.VoterLoginResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Router /api/v1/voter/login [post]
func (h Handler) VoterLoginHandler(ctx context.Context, req httptransport.VoterLoginRequest) (httptransport.VoterLoginResponse, error) {
	result, err := h.Sessions.RedeemToken(ctx, commands.RedeemTokenCommand{
		Code:         req.Code,
		ElectionSlug: req.ElectionSlug,
	})
	if err != nil {
		return httptransport.VoterLoginResponse{}, err
	}
	return httptransport.VoterLoginResponse{
		SessionToken: result.Secret,
		ExpiresAt:    formatTime(result.ExpiresAt),
		Election:     mapElection(result.Election),
	}, nil
}

func (h Handler) AuthenticateVoter(ctx context.Context, secret string) (entities.VoterPrincipal, error) {
	return h.Sessions.Authenticate(ctx, secret)
}

// VoterLogoutHandler godoc
// @Summary Voter logout
// @Tags voter
// @Success 204
// @Router /api/v1/voter/logout [post]
func (h Handler) VoterLogoutHandler(ctx context.Context, secret string) error {
	return h.Sessions.Logout(ctx, secret)
}

// VoterCandidatesHandler godoc
// @Summary Candidates on the voter's ballot
// @Tags voter
// @Produce json
// @Success 200 {object} httptransport.VoterCandidatesResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Router /api/v1/voter/candidates [get]
func (h Handler) VoterCandidatesHandler(ctx context.Context, voter entities.VoterPrincipal) (httptransport.VoterCandidatesResponse, error) {
	election, candidates, err := h.ElectionReads.VoterCandidates(ctx, voter)
	if err != nil {
		return httptransport.VoterCandidatesResponse{}, err
	}
	return httptransport.VoterCandidatesResponse{
		Election: mapElection(election),
		Items:    mapCandidates(candidates),
	}, nil
}

// CastVoteHandler godoc
// @Summary Cast a vote
// @Description Consumes the voter's token. The session ends with the vote.
// @Tags voter
// @Accept json
// @Produce json
// @Param request body httptransport.CastVoteRequest true "Choice"
// @Success 200 {object} httptransport.CastVoteResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Router /api/v1/voter/vote [post]
func (h Handler) CastVoteHandler(
	ctx context.Context,
	voter entities.VoterPrincipal,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	vote, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		Voter:       voter,
		CandidateID: req.CandidateID,
	})
	if err != nil {
		logger := application.ResolveLogger(h.Logger)
		if domainerrors.KindOf(err) == domainerrors.KindInternal {
			logger.Error("cast vote request failed",
				"event", "http_cast_vote_failed",
				"module", application.ModuleName,
				"layer", "transport",
				"election_id", voter.ElectionID,
				"error", err.Error(),
			)
		}
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		Status:  "recorded",
		VotedAt: formatTime(vote.CreatedAt),
	}, nil
}

// PublicResultsHandler godoc
// @Summary Published results
// @Description Resolves by slug, else the active election, else the latest published one.
// @Tags results
// @Produce json
// @Param slug query string false "Election slug"
// @Success 200 {object} httptransport.ResultsResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/v1/results [get]
func (h Handler) PublicResultsHandler(ctx context.Context, slug string) (httptransport.ResultsResponse, error) {
	results, err := h.Results.PublicResults(ctx, slug)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	return mapResults(results), nil
}

func parseTime(field string, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, domainerrors.Invalid(field, field+" is required")
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domainerrors.Invalid(field, field+" must be an RFC3339 timestamp")
	}
	return parsed.UTC(), nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}
