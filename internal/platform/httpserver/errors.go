package httpserver

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	httptransport "ballot/contexts/elections/election-service/transport/http"

	"github.com/go-chi/chi/v5/middleware"
)

// errorCodes gives each sentinel a stable machine code. Sentinels not listed
// fall back to their kind.
var errorCodes = []struct {
	err  error
	code string
}{
	{domainerrors.ErrElectionNotFound, "election_not_found"},
	{domainerrors.ErrCandidateNotFound, "candidate_not_found"},
	{domainerrors.ErrTokenNotFound, "token_not_found"},
	{domainerrors.ErrResultsNotFound, "results_not_found"},
	{domainerrors.ErrInvalidTransition, "invalid_transition"},
	{domainerrors.ErrOutsideSchedule, "outside_schedule"},
	{domainerrors.ErrScheduleFrozen, "schedule_frozen"},
	{domainerrors.ErrElectionNotDraft, "election_not_draft"},
	{domainerrors.ErrElectionNotClosed, "election_not_closed"},
	{domainerrors.ErrElectionNotActive, "election_not_active"},
	{domainerrors.ErrInvalidCandidate, "invalid_candidate"},
	{domainerrors.ErrTokenBatchTooLarge, "token_batch_out_of_range"},
	{domainerrors.ErrTokenNotInvalidatable, "token_not_invalidatable"},
	{domainerrors.ErrTokenInvalid, "token_invalid"},
	{domainerrors.ErrTokenAmbiguous, "token_ambiguous"},
	{domainerrors.ErrDuplicateSlug, "duplicate_slug"},
	{domainerrors.ErrDuplicateCandidate, "duplicate_candidate_number"},
	{domainerrors.ErrCandidateHasVotes, "candidate_has_votes"},
	{domainerrors.ErrActivationConflict, "activation_conflict"},
	{domainerrors.ErrTokenAlreadyUsed, "token_already_used"},
	{domainerrors.ErrTokenCodeExhausted, "token_code_exhausted"},
	{domainerrors.ErrDuplicateAdmin, "duplicate_admin"},
	{domainerrors.ErrResultsNotPublished, "results_not_published"},
	{domainerrors.ErrSessionExpired, "session_expired"},
	{domainerrors.ErrInvalidCredentials, "invalid_credentials"},
}

var kindStatus = map[domainerrors.Kind]int{
	domainerrors.KindValidation:   http.StatusUnprocessableEntity,
	domainerrors.KindNotFound:     http.StatusNotFound,
	domainerrors.KindBadRequest:   http.StatusBadRequest,
	domainerrors.KindConflict:     http.StatusConflict,
	domainerrors.KindForbidden:    http.StatusForbidden,
	domainerrors.KindUnauthorized: http.StatusUnauthorized,
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		// middleware.Timeout answers 504 once the handler returns.
		return
	}
	kind := domainerrors.KindOf(err)
	status, known := kindStatus[kind]
	if !known {
		requestID := middleware.GetReqID(r.Context())
		s.logger.Error("request failed",
			"event", "http_internal_error",
			"module", moduleName,
			"layer", "platform",
			"route", routePattern(r),
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, httptransport.ErrorResponse{
			Code:    "internal_error",
			Message: "internal server error",
			Details: map[string]string{"request_id": requestID},
		})
		return
	}

	resp := httptransport.ErrorResponse{Code: string(kind), Message: err.Error()}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			resp.Code = entry.code
			break
		}
	}
	var verr *domainerrors.ValidationError
	if errors.As(err, &verr) {
		resp.Message = verr.Message
		resp.Details = map[string]string{"field": verr.Field}
	}
	writeError(w, status, resp)
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeError(w, http.StatusTooManyRequests, httptransport.ErrorResponse{
		Code:    "rate_limited",
		Message: "too many requests",
		Details: map[string]string{"retry_after_seconds": strconv.Itoa(seconds)},
	})
}

func writeError(w http.ResponseWriter, status int, resp httptransport.ErrorResponse) {
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
