package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avoytenko/gatekeeper/internal/apperrors"
	"github.com/avoytenko/gatekeeper/internal/models"
)

type ProofRepo struct {
	s *Storage
}

func (r *ProofRepo) Save(ctx context.Context, proof models.EphemeralProof) (models.EphemeralProof, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if proof.ID == uuid.Nil {
		proof.ID = uuid.New()
	}
	r.s.proofs[proof.Value] = proof

	return proof, nil
}

func (r *ProofRepo) GetByValue(ctx context.Context, value string) (models.EphemeralProof, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.proofs[value]
	if !ok {
		return models.EphemeralProof{}, apperrors.ErrProofNotFound
	}
	return p, nil
}

func (r *ProofRepo) Consume(ctx context.Context, value string, at time.Time) (models.EphemeralProof, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.proofs[value]
	if !ok {
		return models.EphemeralProof{}, apperrors.ErrProofNotFound
	}
	if p.ConfirmedAt != nil {
		return p, apperrors.ErrProofAlreadyConsumed
	}

	p.ConfirmedAt = &at
	r.s.proofs[value] = p

	return p, nil
}

func (r *ProofRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID, kind models.ProofKind) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for value, p := range r.s.proofs {
		if p.UserID == userID && p.Kind == kind {
			delete(r.s.proofs, value)
		}
	}

	return nil
}
