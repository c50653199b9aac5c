package httpadapter

import (
	"ballot/contexts/elections/election-service/domain/entities"
	httptransport "ballot/contexts/elections/election-service/transport/http"
)

func mapElection(election entities.Election) httptransport.ElectionDTO {
	return httptransport.ElectionDTO{
		ElectionID:     election.ElectionID,
		Slug:           election.Slug,
		Name:           election.Name,
		Description:    election.Description,
		Status:         string(election.Status),
		StartAt:        formatTime(election.StartAt),
		EndAt:          formatTime(election.EndAt),
		IsResultPublic: election.IsResultPublic,
		ClosedAt:       formatOptionalTime(election.ClosedAt),
		CreatedAt:      formatTime(election.CreatedAt),
		UpdatedAt:      formatTime(election.UpdatedAt),
	}
}

func mapCandidate(candidate entities.CandidatePair) httptransport.CandidateDTO {
	return httptransport.CandidateDTO{
		CandidateID: candidate.CandidateID,
		ElectionID:  candidate.ElectionID,
		Number:      candidate.Number,
		LeaderName:  candidate.LeaderName,
		DeputyName:  candidate.DeputyName,
		Vision:      candidate.Vision,
		Mission:     candidate.Mission,
		PhotoURL:    candidate.PhotoURL,
		IsActive:    candidate.IsActive,
	}
}

func mapCandidates(items []entities.CandidatePair) []httptransport.CandidateDTO {
	out := make([]httptransport.CandidateDTO, 0, len(items))
	for _, item := range items {
		out = append(out, mapCandidate(item))
	}
	return out
}

func mapToken(token entities.Token) httptransport.TokenDTO {
	return httptransport.TokenDTO{
		TokenID:        token.TokenID,
		ElectionID:     token.ElectionID,
		Code:           token.Code,
		Status:         string(token.Status),
		GeneratedBatch: token.GeneratedBatch,
		UsedAt:         formatOptionalTime(token.UsedAt),
		InvalidatedAt:  formatOptionalTime(token.InvalidatedAt),
		CreatedAt:      formatTime(token.CreatedAt),
	}
}

func mapTokens(items []entities.Token) []httptransport.TokenDTO {
	out := make([]httptransport.TokenDTO, 0, len(items))
	for _, item := range items {
		out = append(out, mapToken(item))
	}
	return out
}

func mapResults(results entities.ElectionResults) httptransport.ResultsResponse {
	resp := httptransport.ResultsResponse{
		Election:   mapElection(results.Election),
		Candidates: make([]httptransport.CandidateTallyDTO, 0, len(results.Candidates)),
		Tokens: httptransport.TokenCountsDTO{
			Used:        results.Tokens.Used,
			Unused:      results.Tokens.Unused,
			Invalidated: results.Tokens.Invalidated,
			Total:       results.Tokens.Total,
		},
		TotalVotes: results.TotalVotes,
	}
	for _, tally := range results.Candidates {
		resp.Candidates = append(resp.Candidates, httptransport.CandidateTallyDTO{
			CandidateID: tally.CandidateID,
			Number:      tally.Number,
			LeaderName:  tally.LeaderName,
			DeputyName:  tally.DeputyName,
			Votes:       tally.Votes,
		})
	}
	return resp
}
