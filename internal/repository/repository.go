package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avoytenko/gatekeeper/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If username or email is taken must return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, user models.User) (models.User, error)

	// Get user by id, username or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Set enabled flag for the user that owns the email
	// Must return apperrors.ErrUserNotFound if email is unknown
	SetEnabled(ctx context.Context, email string, enabled bool) error

	// Toggle the MFA flag, the secret itself is kept as is
	SetMFA(ctx context.Context, userID uuid.UUID, enabled bool) error

	// Replace the stored password hash
	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error
}

// Ledger token repository interface
type TokenRepo interface {
	// Persist a freshly issued token, expired and revoked are false
	Save(ctx context.Context, token models.LedgerToken) (models.LedgerToken, error)

	// Return the ledger row for a token value
	// Must return apperrors.ErrTokenNotFound if the value is unknown
	GetByValue(ctx context.Context, value string) (models.LedgerToken, error)

	// Mark a single token expired and revoked
	// Must return apperrors.ErrTokenNotFound if the value is unknown
	Revoke(ctx context.Context, value string) error

	// Mark every live token of the user expired and revoked
	// Must be visible to the very next GetByValue call
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// Ephemeral proof repository interface
type ProofRepo interface {
	// Persist a new proof
	Save(ctx context.Context, proof models.EphemeralProof) (models.EphemeralProof, error)

	// Return the proof for an opaque value
	// Must return apperrors.ErrProofNotFound if the value is unknown
	GetByValue(ctx context.Context, value string) (models.EphemeralProof, error)

	// Set confirmed_at once
	// If it is set already must keep the stored time and return apperrors.ErrProofAlreadyConsumed
	Consume(ctx context.Context, value string, at time.Time) (models.EphemeralProof, error)

	// Drop every proof of the kind the user still has outstanding
	// Used to guarantee at most one live proof per (user, kind)
	DeleteAllForUser(ctx context.Context, userID uuid.UUID, kind models.ProofKind) error
}

// Storage aggregates the repositories over one backing connection
type Storage interface {
	User() UserRepo
	Token() TokenRepo
	Proof() ProofRepo

	// Run fn within a transaction when the backend supports one
	InTx(ctx context.Context, fn func(Storage) error) error
}
