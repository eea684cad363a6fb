package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avoytenko/gatekeeper/internal/apperrors"
	"github.com/avoytenko/gatekeeper/internal/models"
)

type ProofRepo struct {
	DB DBTX
}

const saveProof = `-- name: SaveProof
INSERT INTO ephemeral_proofs (id, user_id, value, kind, created_at, expires_at, confirmed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, user_id, value, kind, created_at, expires_at, confirmed_at
`

func (r *ProofRepo) Save(ctx context.Context, proof models.EphemeralProof) (models.EphemeralProof, error) {
	if proof.ID == uuid.Nil {
		proof.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, saveProof,
		proof.ID, proof.UserID, proof.Value, proof.Kind,
		proof.CreatedAt, proof.ExpiresAt, proof.ConfirmedAt,
	)
	saved, err := pgx.CollectOneRow(rows, rowToProof)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}

	return saved, nil
}

const getProofByValue = `-- name: GetProofByValue
SELECT id, user_id, value, kind, created_at, expires_at, confirmed_at
FROM ephemeral_proofs
WHERE value = $1
`

func (r *ProofRepo) GetByValue(ctx context.Context, value string) (models.EphemeralProof, error) {
	rows, _ := r.DB.Query(ctx, getProofByValue, value)
	proof, err := pgx.CollectOneRow(rows, rowToProof)

	switch {
	case err == nil:
		return proof, nil
	case errors.Is(err, pgx.ErrNoRows):
		return proof, apperrors.ErrProofNotFound
	default:
		return proof, fmt.Errorf("db error: %w", err)
	}
}

const consumeProof = `-- name: ConsumeProof
UPDATE ephemeral_proofs
SET confirmed_at = $2
WHERE value = $1 AND confirmed_at IS NULL
RETURNING id, user_id, value, kind, created_at, expires_at, confirmed_at
`

// Consume sets confirmed_at exactly once
// The IS NULL guard decides the winner inside the statement itself, so two
// concurrent consumes can not both succeed even with identical timestamps
func (r *ProofRepo) Consume(ctx context.Context, value string, at time.Time) (models.EphemeralProof, error) {
	rows, _ := r.DB.Query(ctx, consumeProof, value, at)
	proof, err := pgx.CollectOneRow(rows, rowToProof)

	switch {
	case err == nil:
		return proof, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Either the value is unknown or someone already confirmed it
		existing, getErr := r.GetByValue(ctx, value)
		if getErr != nil {
			return models.EphemeralProof{}, apperrors.ErrProofNotFound
		}
		return existing, apperrors.ErrProofAlreadyConsumed
	default:
		return proof, fmt.Errorf("db error: %w", err)
	}
}

const deleteProofsForUser = `-- name: DeleteProofsForUser
DELETE FROM ephemeral_proofs
WHERE user_id = $1 AND kind = $2
`

func (r *ProofRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID, kind models.ProofKind) error {
	_, err := r.DB.Exec(ctx, deleteProofsForUser, userID, kind)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func rowToProof(row pgx.CollectableRow) (models.EphemeralProof, error) {
	var p models.EphemeralProof
	err := row.Scan(
		&p.ID, &p.UserID, &p.Value, &p.Kind,
		&p.CreatedAt, &p.ExpiresAt, &p.ConfirmedAt,
	)
	return p, err
}
