package queries

import (
	"context"
	"strings"

	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/ports"
)

const (
	DefaultTokenPageSize = 50
	MaxTokenPageSize     = 500
)

type TokenQueries struct {
	Elections ports.ElectionRepository
	Tokens    ports.TokenRepository
}

// ListTokens pages through an election's tokens. Query matches the code
// case-insensitively; redacted codes never match a real code fragment.
func (q TokenQueries) ListTokens(ctx context.Context, actor entities.AdminPrincipal, filter entities.TokenFilter) (entities.TokenPage, error) {
	if err := requireReader(actor); err != nil {
		return entities.TokenPage{}, err
	}
	election, err := q.Elections.GetElection(ctx, strings.TrimSpace(filter.ElectionID))
	if err != nil {
		return entities.TokenPage{}, err
	}
	filter.ElectionID = election.ElectionID
	if filter.Status != "" && !filter.Status.Valid() {
		return entities.TokenPage{}, domainerrors.Invalid("status", "unknown token status")
	}
	if filter.Batch < 0 {
		return entities.TokenPage{}, domainerrors.Invalid("batch", "batch must not be negative")
	}
	filter.Query = strings.ToUpper(strings.TrimSpace(filter.Query))
	if filter.Page <= 0 {
		filter.Page = 1
	}
	switch {
	case filter.PageSize <= 0:
		filter.PageSize = DefaultTokenPageSize
	case filter.PageSize > MaxTokenPageSize:
		filter.PageSize = MaxTokenPageSize
	}
	return q.Tokens.ListTokens(ctx, filter)
}
