package domain

import "time"

// TokenPurpose distinguishes what an ephemeral token authorizes.
type TokenPurpose string

const (
	TokenPurposeVerification TokenPurpose = "verification"
	TokenPurposeReset        TokenPurpose = "reset"
)

// EphemeralToken is a short-lived single-use code bound to one candidate.
// Expired rows are never purged eagerly; expiry is checked at lookup time.
type EphemeralToken struct {
	ID          int64
	Code        string
	Purpose     TokenPurpose
	CandidateID int64
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *EphemeralToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
