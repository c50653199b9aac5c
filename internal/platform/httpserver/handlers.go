package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	httptransport "ballot/contexts/elections/election-service/transport/http"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req httptransport.AdminLoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.AdminLoginHandler(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.election.Handler.AdminLogoutHandler(r.Context(), bearerToken(r)); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListElections(w http.ResponseWriter, r *http.Request) {
	resp, err := s.election.Handler.ListElectionsHandler(r.Context(), adminFrom(r.Context()), r.URL.Query().Get("status"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req httptransport.CreateElectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.CreateElectionHandler(r.Context(), adminFrom(r.Context()), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	resp, err := s.election.Handler.GetElectionHandler(r.Context(), adminFrom(r.Context()), chi.URLParam(r, "electionID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateElection(w http.ResponseWriter, r *http.Request) {
	var req httptransport.UpdateElectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.UpdateElectionHandler(r.Context(), adminFrom(r.Context()), chi.URLParam(r, "electionID"), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransitionElection(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := s.election.Handler.TransitionElectionHandler(r.Context(), adminFrom(r.Context()), chi.URLParam(r, "electionID"), action)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleAdminResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.election.Handler.AdminResultsHandler(r.Context(), adminFrom(r.Context()), chi.URLParam(r, "electionID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	resp, err := s.election.Handler.ListCandidatesHandler(r.Context(), adminFrom(r.Context()), chi.URLParam(r, "electionID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	var req httptransport.CreateCandidateRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.CreateCandidateHandler(r.Context(), adminFrom(r.Context()), chi.URLParam(r, "electionID"), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUpdateCandidate(w http.ResponseWriter, r *http.Request) {
	var req httptransport.UpdateCandidateRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.UpdateCandidateHandler(
		r.Context(),
		adminFrom(r.Context()),
		chi.URLParam(r, "electionID"),
		chi.URLParam(r, "candidateID"),
		req,
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	err := s.election.Handler.DeleteCandidateHandler(
		r.Context(),
		adminFrom(r.Context()),
		chi.URLParam(r, "electionID"),
		chi.URLParam(r, "candidateID"),
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := httptransport.ListTokensRequest{
		Status: query.Get("status"),
		Query:  query.Get("q"),
	}
	var err error
	if req.Batch, err = intParam(query.Get("batch"), "batch"); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if req.Page, err = intParam(query.Get("page"), "page"); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if req.PageSize, err = intParam(query.Get("page_size"), "page_size"); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp, err := s.election.Handler.ListTokensHandler(r.Context(), adminFrom(r.Context()), chi.URLParam(r, "electionID"), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateTokens(w http.ResponseWriter, r *http.Request) {
	var req httptransport.GenerateTokensRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.GenerateTokensHandler(r.Context(), adminFrom(r.Context()), chi.URLParam(r, "electionID"), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleInvalidateToken(w http.ResponseWriter, r *http.Request) {
	resp, err := s.election.Handler.InvalidateTokenHandler(
		r.Context(),
		adminFrom(r.Context()),
		chi.URLParam(r, "electionID"),
		chi.URLParam(r, "tokenID"),
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVoterLogin(w http.ResponseWriter, r *http.Request) {
	var req httptransport.VoterLoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.VoterLoginHandler(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.setVoterCookie(w, r, resp.SessionToken); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVoterLogout(w http.ResponseWriter, r *http.Request) {
	err := s.election.Handler.VoterLogoutHandler(r.Context(), s.voterSecret(r))
	s.clearVoterCookie(w, r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVoterCandidates(w http.ResponseWriter, r *http.Request) {
	resp, err := s.election.Handler.VoterCandidatesHandler(r.Context(), voterFrom(r.Context()))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req httptransport.CastVoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.CastVoteHandler(r.Context(), voterFrom(r.Context()), req)
	if err != nil {
		if errors.Is(err, domainerrors.ErrTokenAlreadyUsed) {
			s.clearVoterCookie(w, r)
		}
		s.writeDomainError(w, r, err)
		return
	}
	// The session was deleted with the vote.
	s.clearVoterCookie(w, r)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePublicResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.election.Handler.PublicResultsHandler(r.Context(), r.URL.Query().Get("slug"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, httptransport.ErrorResponse{
			Code:    "invalid_json",
			Message: "request body must be valid JSON",
		})
		return false
	}
	return true
}

func intParam(raw string, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domainerrors.Invalid(field, field+" must be an integer")
	}
	return value, nil
}
