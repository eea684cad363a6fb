package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avoytenko/gatekeeper/internal/apperrors"
	"github.com/avoytenko/gatekeeper/internal/models"
)

type TokenRepo struct {
	DB DBTX
}

const saveToken = `-- name: SaveToken
INSERT INTO ledger_tokens (id, user_id, value, kind, expired, revoked, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, user_id, value, kind, expired, revoked, created_at, expires_at
`

func (r *TokenRepo) Save(ctx context.Context, token models.LedgerToken) (models.LedgerToken, error) {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, saveToken,
		token.ID, token.UserID, token.Value, token.Kind,
		token.Expired, token.Revoked, token.CreatedAt, token.ExpiresAt,
	)
	saved, err := pgx.CollectOneRow(rows, rowToToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}

	return saved, nil
}

const getTokenByValue = `-- name: GetTokenByValue
SELECT id, user_id, value, kind, expired, revoked, created_at, expires_at
FROM ledger_tokens
WHERE value = $1
`

func (r *TokenRepo) GetByValue(ctx context.Context, value string) (models.LedgerToken, error) {
	rows, _ := r.DB.Query(ctx, getTokenByValue, value)
	token, err := pgx.CollectOneRow(rows, rowToToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, apperrors.ErrTokenNotFound
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const revokeToken = `-- name: RevokeToken
UPDATE ledger_tokens
SET expired = TRUE, revoked = TRUE
WHERE value = $1
`

func (r *TokenRepo) Revoke(ctx context.Context, value string) error {
	tag, err := r.DB.Exec(ctx, revokeToken, value)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTokenNotFound
	}
	return nil
}

const revokeAllForUser = `-- name: RevokeAllForUser
UPDATE ledger_tokens
SET expired = TRUE, revoked = TRUE
WHERE user_id = $1 AND NOT (expired OR revoked)
`

// Revoke every live token of the user in a single statement
// so the next GetByValue observes the flip already
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, revokeAllForUser, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func rowToToken(row pgx.CollectableRow) (models.LedgerToken, error) {
	var t models.LedgerToken
	err := row.Scan(
		&t.ID, &t.UserID, &t.Value, &t.Kind,
		&t.Expired, &t.Revoked, &t.CreatedAt, &t.ExpiresAt,
	)
	return t, err
}
