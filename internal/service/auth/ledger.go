package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avoytenko/gatekeeper/internal/models"
	"github.com/avoytenko/gatekeeper/internal/repository"
)

// Ledger tracks every issued token and answers whether one is still good.
// It keeps no process local state: each check goes to the store, so a
// revocation is visible to the very next call.
type Ledger struct {
	tokens repository.TokenRepo

	now func() time.Time
}

func NewLedger(tokens repository.TokenRepo) *Ledger {
	return &Ledger{
		tokens: tokens,
		now:    time.Now,
	}
}

// Record persists a freshly issued token as a live ledger row
func (l *Ledger) Record(ctx context.Context, user models.User, issued models.IssuedToken, kind models.TokenKind) error {
	_, err := l.tokens.Save(ctx, models.LedgerToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Value:     issued.Value,
		Kind:      kind,
		Expired:   false,
		Revoked:   false,
		CreatedAt: l.now(),
		ExpiresAt: issued.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("error while recording token. Err: %w", err)
	}

	return nil
}

// IsValid reports whether the ledger vouches for the token value:
// the row exists, is not flagged and the expiry window is still open
func (l *Ledger) IsValid(ctx context.Context, value string) bool {
	token, err := l.tokens.GetByValue(ctx, value)
	if err != nil {
		return false
	}

	return token.Live() && l.now().Before(token.ExpiresAt)
}

// Resolve returns the ledger row behind a token value, dead rows included
// Callers that need liveness use IsValid, this is for finding the owner
func (l *Ledger) Resolve(ctx context.Context, value string) (models.LedgerToken, error) {
	return l.tokens.GetByValue(ctx, value)
}

// Revoke flips a single token to expired and revoked
// Unknown values return apperrors.ErrTokenNotFound, callers decide if that matters
func (l *Ledger) Revoke(ctx context.Context, value string) error {
	return l.tokens.Revoke(ctx, value)
}

// RevokeAllForUser invalidates every live token the user holds
// Called on each new login success so one user has one live session lineage
func (l *Ledger) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	if err := l.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("error while revoking user tokens. Err: %w", err)
	}

	return nil
}
