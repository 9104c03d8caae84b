package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCandidateRegistered    EventType = "candidate.registered"
	EventCandidateVerified      EventType = "candidate.verified"
	EventCandidateAuthenticated EventType = "candidate.authenticated"
	EventPasswordReset          EventType = "candidate.password_reset"
)

// Event represents a lifecycle event emitted by the identity engine.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	CandidateID int64       `json:"candidate_id"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// CandidateRegisteredPayload payload.
type CandidateRegisteredPayload struct {
	Email     string `json:"email"`
	Matricule string `json:"matricule"`
}

// CandidateVerifiedPayload payload.
type CandidateVerifiedPayload struct {
	Email string `json:"email"`
}

// CandidateAuthenticatedPayload payload.
type CandidateAuthenticatedPayload struct {
	Email string `json:"email"`
}

// PasswordResetPayload payload.
type PasswordResetPayload struct {
	Email string `json:"email"`
}
