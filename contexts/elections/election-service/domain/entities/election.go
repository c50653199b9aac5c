package entities

import "time"

type ElectionStatus string

const (
	ElectionStatusDraft    ElectionStatus = "DRAFT"
	ElectionStatusActive   ElectionStatus = "ACTIVE"
	ElectionStatusClosed   ElectionStatus = "CLOSED"
	ElectionStatusArchived ElectionStatus = "ARCHIVED"
)

func (s ElectionStatus) Valid() bool {
	switch s {
	case ElectionStatusDraft, ElectionStatusActive, ElectionStatusClosed, ElectionStatusArchived:
		return true
	default:
		return false
	}
}

// Next returns the only status this one may move to. Archived is terminal.
func (s ElectionStatus) Next() (ElectionStatus, bool) {
	switch s {
	case ElectionStatusDraft:
		return ElectionStatusActive, true
	case ElectionStatusActive:
		return ElectionStatusClosed, true
	case ElectionStatusClosed:
		return ElectionStatusArchived, true
	default:
		return "", false
	}
}

type Election struct {
	ElectionID     string
	Slug           string
	Name           string
	Description    string
	Status         ElectionStatus
	StartAt        time.Time
	EndAt          time.Time
	IsResultPublic bool
	ClosedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WithinWindow reports whether now falls inside [StartAt, EndAt].
func (e Election) WithinWindow(now time.Time) bool {
	now = now.UTC()
	return !now.Before(e.StartAt.UTC()) && !now.After(e.EndAt.UTC())
}

// AcceptsVotes is the voting gate shared by token redemption and vote casting.
func (e Election) AcceptsVotes(now time.Time) bool {
	return e.Status == ElectionStatusActive && e.WithinWindow(now)
}

func (e Election) CanTransitionTo(target ElectionStatus) bool {
	next, ok := e.Status.Next()
	return ok && next == target
}

type ElectionFilter struct {
	Status ElectionStatus
}

// ActivationResult lists the elections that were force-closed to keep a single
// election active.
type ActivationResult struct {
	Election        Election
	ClosedElections []Election
}
