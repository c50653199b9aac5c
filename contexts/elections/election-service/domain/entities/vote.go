package entities

import "time"

// Vote is append-only and deliberately carries no token reference.
type Vote struct {
	VoteID      string
	ElectionID  string
	CandidateID string
	CreatedAt   time.Time
}

// CastVoteParams is everything the store needs to consume a token and record
// the ballot in one transaction.
type CastVoteParams struct {
	VoteID       string
	TokenID      string
	ElectionID   string
	CandidateID  string
	SessionID    string
	RedactedCode string
	CastAt       time.Time
}

type CandidateTally struct {
	CandidateID string
	Number      int
	LeaderName  string
	DeputyName  string
	Votes       int64
}

type ElectionResults struct {
	Election   Election
	Candidates []CandidateTally
	Tokens     TokenStatusCounts
	TotalVotes int64
}

// IntegrityReport compares persisted votes with consumed tokens for one election.
type IntegrityReport struct {
	ElectionID string
	Votes      int64
	UsedTokens int64
}

func (r IntegrityReport) Consistent() bool {
	return r.Votes == r.UsedTokens
}
