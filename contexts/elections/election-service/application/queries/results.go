package queries

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	application "ballot/contexts/elections/election-service/application"
	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/ports"
)

type ResultQueries struct {
	Elections  ports.ElectionRepository
	Candidates ports.CandidateRepository
	Results    ports.ResultRepository
	Logger     *slog.Logger
}

// AdminResults tallies any election regardless of publication.
func (q ResultQueries) AdminResults(ctx context.Context, actor entities.AdminPrincipal, electionID string) (entities.ElectionResults, error) {
	if err := requireReader(actor); err != nil {
		return entities.ElectionResults{}, err
	}
	election, err := q.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return entities.ElectionResults{}, err
	}
	return q.tally(ctx, election)
}

// PublicResults resolves the election by slug, else the ACTIVE election,
// else the latest closed election with published results. Unpublished
// results are Forbidden, never empty.
func (q ResultQueries) PublicResults(ctx context.Context, slug string) (entities.ElectionResults, error) {
	logger := application.ResolveLogger(q.Logger)
	election, err := q.resolvePublic(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return entities.ElectionResults{}, err
	}
	if !election.IsResultPublic {
		logger.Info("public results withheld",
			"event", "results_not_published",
			"module", application.ModuleName,
			"layer", "application",
			"election_id", election.ElectionID,
			"status", string(election.Status),
		)
		return entities.ElectionResults{}, domainerrors.ErrResultsNotPublished
	}
	return q.tally(ctx, election)
}

func (q ResultQueries) resolvePublic(ctx context.Context, slug string) (entities.Election, error) {
	if slug != "" {
		return q.Elections.GetElectionBySlug(ctx, slug)
	}
	if active, found, err := q.Elections.GetActiveElection(ctx); err != nil {
		return entities.Election{}, err
	} else if found {
		return active, nil
	}
	published, found, err := q.Elections.GetLatestPublishedElection(ctx)
	if err != nil {
		return entities.Election{}, err
	}
	if !found {
		return entities.Election{}, domainerrors.ErrResultsNotFound
	}
	return published, nil
}

// tally zero-fills candidates without votes; TotalVotes is the sum of the
// per-candidate counts.
func (q ResultQueries) tally(ctx context.Context, election entities.Election) (entities.ElectionResults, error) {
	candidates, err := q.Candidates.ListCandidates(ctx, election.ElectionID, false)
	if err != nil {
		return entities.ElectionResults{}, err
	}
	counts, err := q.Results.CountVotesByCandidate(ctx, election.ElectionID)
	if err != nil {
		return entities.ElectionResults{}, err
	}
	tokens, err := q.Results.CountTokensByStatus(ctx, election.ElectionID)
	if err != nil {
		return entities.ElectionResults{}, err
	}

	results := entities.ElectionResults{
		Election:   election,
		Candidates: make([]entities.CandidateTally, 0, len(candidates)),
		Tokens:     tokens,
	}
	for _, candidate := range candidates {
		votes := counts[candidate.CandidateID]
		results.Candidates = append(results.Candidates, entities.CandidateTally{
			CandidateID: candidate.CandidateID,
			Number:      candidate.Number,
			LeaderName:  candidate.LeaderName,
			DeputyName:  candidate.DeputyName,
			Votes:       votes,
		})
		results.TotalVotes += votes
	}
	sort.SliceStable(results.Candidates, func(i, j int) bool {
		return results.Candidates[i].Number < results.Candidates[j].Number
	})
	return results, nil
}
