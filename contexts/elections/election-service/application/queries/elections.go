package queries

import (
	"context"
	"strings"

	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/ports"
)

// ElectionQueries serves admin reads. Auditors may call every method here.
type ElectionQueries struct {
	Elections  ports.ElectionRepository
	Candidates ports.CandidateRepository
}

func (q ElectionQueries) GetElection(ctx context.Context, actor entities.AdminPrincipal, electionID string) (entities.Election, error) {
	if err := requireReader(actor); err != nil {
		return entities.Election{}, err
	}
	return q.Elections.GetElection(ctx, strings.TrimSpace(electionID))
}

func (q ElectionQueries) ListElections(ctx context.Context, actor entities.AdminPrincipal, filter entities.ElectionFilter) ([]entities.Election, error) {
	if err := requireReader(actor); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domainerrors.Invalid("status", "unknown election status")
	}
	return q.Elections.ListElections(ctx, filter)
}

func (q ElectionQueries) ListCandidates(ctx context.Context, actor entities.AdminPrincipal, electionID string) ([]entities.CandidatePair, error) {
	if err := requireReader(actor); err != nil {
		return nil, err
	}
	election, err := q.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return nil, err
	}
	return q.Candidates.ListCandidates(ctx, election.ElectionID, false)
}

// VoterCandidates lists the active slate of the election the voter's session
// is bound to.
func (q ElectionQueries) VoterCandidates(ctx context.Context, voter entities.VoterPrincipal) (entities.Election, []entities.CandidatePair, error) {
	if voter.ElectionID == "" {
		return entities.Election{}, nil, domainerrors.ErrUnauthorized
	}
	election, err := q.Elections.GetElection(ctx, voter.ElectionID)
	if err != nil {
		return entities.Election{}, nil, err
	}
	candidates, err := q.Candidates.ListCandidates(ctx, election.ElectionID, true)
	if err != nil {
		return entities.Election{}, nil, err
	}
	return election, candidates, nil
}

func requireReader(actor entities.AdminPrincipal) error {
	if actor.AdminID == "" {
		return domainerrors.ErrUnauthorized
	}
	if !actor.Role.Valid() {
		return domainerrors.ErrForbidden
	}
	return nil
}
