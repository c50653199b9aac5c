package entities

import "time"

type TokenStatus string

const (
	TokenStatusUnused      TokenStatus = "UNUSED"
	TokenStatusUsed        TokenStatus = "USED"
	TokenStatusInvalidated TokenStatus = "INVALIDATED"
)

func (s TokenStatus) Valid() bool {
	switch s {
	case TokenStatusUnused, TokenStatusUsed, TokenStatusInvalidated:
		return true
	default:
		return false
	}
}

func (s TokenStatus) Terminal() bool {
	return s == TokenStatusUsed || s == TokenStatusInvalidated
}

type Token struct {
	TokenID        string
	ElectionID     string
	Code           string
	Status         TokenStatus
	GeneratedBatch int
	UsedAt         *time.Time
	InvalidatedAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type TokenFilter struct {
	ElectionID string
	Status     TokenStatus
	Batch      int
	Query      string
	Page       int
	PageSize   int
}

type TokenPage struct {
	Items    []Token
	Total    int64
	Page     int
	PageSize int
}

// TokenBatch is the outcome of one bulk generation run.
type TokenBatch struct {
	ElectionID string
	Batch      int
	Tokens     []Token
}

type TokenStatusCounts struct {
	Used        int64
	Unused      int64
	Invalidated int64
	Total       int64
}
