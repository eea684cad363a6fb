package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/avoytenko/gatekeeper/internal/apperrors"
	"github.com/avoytenko/gatekeeper/internal/models"
)

type TokenRepo struct {
	s *Storage
}

func (r *TokenRepo) Save(ctx context.Context, token models.LedgerToken) (models.LedgerToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	r.s.tokens[token.Value] = token

	return token, nil
}

func (r *TokenRepo) GetByValue(ctx context.Context, value string) (models.LedgerToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tokens[value]
	if !ok {
		return models.LedgerToken{}, apperrors.ErrTokenNotFound
	}
	return t, nil
}

func (r *TokenRepo) Revoke(ctx context.Context, value string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tokens[value]
	if !ok {
		return apperrors.ErrTokenNotFound
	}

	t.Expired = true
	t.Revoked = true
	r.s.tokens[value] = t

	return nil
}

func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for value, t := range r.s.tokens {
		if t.UserID == userID && t.Live() {
			t.Expired = true
			t.Revoked = true
			r.s.tokens[value] = t
		}
	}

	return nil
}
