package errors

import "errors"

var (
	ErrValidation = errors.New("validation failed")

	ErrElectionNotFound  = errors.New("election not found")
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrTokenNotFound     = errors.New("token not found")
	ErrAdminNotFound     = errors.New("admin not found")
	ErrResultsNotFound   = errors.New("no election results available")

	ErrInvalidTransition     = errors.New("election status transition not allowed")
	ErrOutsideSchedule       = errors.New("current time is outside the election schedule")
	ErrScheduleFrozen        = errors.New("election schedule can only change while draft")
	ErrElectionNotDraft      = errors.New("election is not in draft")
	ErrElectionNotClosed     = errors.New("election is not closed")
	ErrElectionNotActive     = errors.New("election is not accepting votes")
	ErrInvalidCandidate      = errors.New("candidate is not valid for this election")
	ErrTokenBatchTooLarge    = errors.New("token batch size is out of range")
	ErrTokenNotInvalidatable = errors.New("only unused tokens can be invalidated")
	ErrTokenInvalid          = errors.New("token is invalid")
	ErrTokenAmbiguous        = errors.New("token matches more than one election")

	ErrConflict           = errors.New("concurrent update conflict")
	ErrDuplicateSlug      = errors.New("election slug already exists")
	ErrDuplicateCandidate = errors.New("candidate number already exists in election")
	ErrCandidateHasVotes  = errors.New("candidate has recorded votes")
	ErrActivationConflict = errors.New("another election was activated concurrently")
	ErrTokenAlreadyUsed   = errors.New("token already used")
	ErrTokenCodeExhausted = errors.New("could not generate a unique token code")
	ErrDuplicateAdmin     = errors.New("admin username already exists")

	ErrForbidden           = errors.New("not permitted")
	ErrResultsNotPublished = errors.New("results are not published")

	ErrUnauthorized       = errors.New("authentication required")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Kind is the propagation class of a domain error.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindBadRequest   Kind = "bad_request"
	KindConflict     Kind = "conflict"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindInternal     Kind = "internal"
)

var kinds = []struct {
	kind     Kind
	sentinel []error
}{
	{KindValidation, []error{ErrValidation}},
	{KindNotFound, []error{
		ErrElectionNotFound,
		ErrCandidateNotFound,
		ErrTokenNotFound,
		ErrAdminNotFound,
		ErrResultsNotFound,
	}},
	{KindBadRequest, []error{
		ErrInvalidTransition,
		ErrOutsideSchedule,
		ErrScheduleFrozen,
		ErrElectionNotDraft,
		ErrElectionNotClosed,
		ErrElectionNotActive,
		ErrInvalidCandidate,
		ErrTokenBatchTooLarge,
		ErrTokenNotInvalidatable,
		ErrTokenInvalid,
		ErrTokenAmbiguous,
	}},
	{KindConflict, []error{
		ErrConflict,
		ErrDuplicateSlug,
		ErrDuplicateCandidate,
		ErrCandidateHasVotes,
		ErrActivationConflict,
		ErrTokenAlreadyUsed,
		ErrTokenCodeExhausted,
		ErrDuplicateAdmin,
	}},
	{KindForbidden, []error{ErrForbidden, ErrResultsNotPublished}},
	{KindUnauthorized, []error{ErrUnauthorized, ErrSessionExpired, ErrInvalidCredentials}},
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, entry := range kinds {
		for _, sentinel := range entry.sentinel {
			if errors.Is(err, sentinel) {
				return entry.kind
			}
		}
	}
	return KindInternal
}

// Retryable reports whether re-reading state and retrying may succeed.
func Retryable(err error) bool {
	return KindOf(err) == KindConflict
}

// ValidationError carries field-level detail and matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(field string, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// FieldOf returns the failing field of a validation error, if any.
func FieldOf(err error) (string, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Field, true
	}
	return "", false
}
