package entities

import "time"

// CandidatePair is one ballot entry: a leader and a deputy running together
// under a ballot number that is unique within the election.
type CandidatePair struct {
	CandidateID string
	ElectionID  string
	Number      int
	LeaderName  string
	DeputyName  string
	Vision      string
	Mission     string
	PhotoURL    string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
