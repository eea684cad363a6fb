package models

import (
	"time"

	"github.com/google/uuid"
)

// Kind of ephemeral proof
type ProofKind string

const (
	ProofKindConfirmation  ProofKind = "confirmation"
	ProofKindPasswordReset ProofKind = "password_reset"
)

// EphemeralProof is a single use, time limited token proving control of an
// email address (confirmation) or intent to reset a password
type EphemeralProof struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Value       string
	Kind        ProofKind
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ConfirmedAt *time.Time // nil until consumed
}

// Consumed reports whether the proof reached its terminal Confirmed state
func (p EphemeralProof) Consumed() bool {
	return p.ConfirmedAt != nil
}

// ExpiredAt reports whether the proof window is over at the given moment
func (p EphemeralProof) ExpiredAt(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
