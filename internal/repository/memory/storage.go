// Package memory holds map backed repository implementations.
//
// Used by service and handler tests and by the dev mode of the server when no
// database DSN is configured. A single mutex per storage keeps every operation
// linearizable, which is the same guarantee per-row updates give in postgres.
package memory

import (
	"context"
	"sync"

	"github.com/avoytenko/gatekeeper/internal/models"
	"github.com/avoytenko/gatekeeper/internal/repository"
)

type Storage struct {
	mu sync.Mutex

	users  map[string]models.User           // keyed by username
	tokens map[string]models.LedgerToken    // keyed by token value
	proofs map[string]models.EphemeralProof // keyed by proof value
}

func NewStorage() *Storage {
	return &Storage{
		users:  make(map[string]models.User),
		tokens: make(map[string]models.LedgerToken),
		proofs: make(map[string]models.EphemeralProof),
	}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{s: s}
}

func (s *Storage) Token() repository.TokenRepo {
	return &TokenRepo{s: s}
}

func (s *Storage) Proof() repository.ProofRepo {
	return &ProofRepo{s: s}
}

// InTx runs fn against the same storage
// The memory backend has no transactions, fn simply holds no lock between calls
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	return fn(s)
}
