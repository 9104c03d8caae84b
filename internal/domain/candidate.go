package domain

import "time"

// Candidate is the domain model for registered identities.
type Candidate struct {
	ID                int64
	Firstname         string
	Lastname          string
	Email             string
	Phone             string
	Matricule         string
	DateOfBirth       time.Time
	PasswordHash      string
	TemporaryPassword bool
	AccountLocked     bool
	Enabled           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FullName combines first and last name for display and mail templates.
func (c *Candidate) FullName() string {
	return c.Firstname + " " + c.Lastname
}

// HasPassword reports whether a credential has been established.
func (c *Candidate) HasPassword() bool {
	return c.PasswordHash != ""
}
