package entities

import "time"

// VoterSession binds a redeemed token to a single voting attempt. Only the
// hash of the session secret is ever stored.
type VoterSession struct {
	SessionID   string
	TokenID     string
	ElectionID  string
	SessionHash string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

func (s VoterSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.UTC().After(now.UTC())
}

// VoterPrincipal is the authenticated identity threaded through voter calls.
type VoterPrincipal struct {
	SessionID  string
	TokenID    string
	ElectionID string
}

type AdminRole string

const (
	AdminRoleAdmin   AdminRole = "admin"
	AdminRoleAuditor AdminRole = "auditor"
)

func (r AdminRole) Valid() bool {
	return r == AdminRoleAdmin || r == AdminRoleAuditor
}

type Admin struct {
	AdminID      string
	Username     string
	PasswordHash string
	Role         AdminRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AdminSession struct {
	SessionID   string
	AdminID     string
	SessionHash string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

func (s AdminSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.UTC().After(now.UTC())
}

// AdminPrincipal is the capability passed explicitly into admin operations.
type AdminPrincipal struct {
	AdminID  string
	Username string
	Role     AdminRole
}

func (p AdminPrincipal) CanMutate() bool {
	return p.Role == AdminRoleAdmin
}
