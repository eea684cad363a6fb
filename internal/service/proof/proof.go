// Package proof manages ephemeral proofs: single use, time limited tokens a
// user presents to confirm an email address or reset a password.
//
// Each proof is a three state machine. Pending until consumed or expired,
// then terminally Confirmed or Expired. Only Pending proofs grant their
// effect, both terminal checks are re-run inside consume so a racing or
// stale proof can never win.
package proof

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avoytenko/gatekeeper/internal/apperrors"
	"github.com/avoytenko/gatekeeper/internal/logger"
	"github.com/avoytenko/gatekeeper/internal/mail"
	"github.com/avoytenko/gatekeeper/internal/models"
	"github.com/avoytenko/gatekeeper/internal/repository"
)

const (
	defaultProofTTL = 24 * time.Hour

	proofValueBytes = 16
)

// Hasher for the password reset flow
type passwordHasher interface {
	Hash(password string) (string, error)
}

// Revoker kills the user's live sessions after a password change
type sessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

type Config struct {
	// Proof validity window, default 24h
	ProofTTL time.Duration
}

type Manager struct {
	proofs  repository.ProofRepo
	users   repository.UserRepo
	sender  mail.EmailSender
	hasher  passwordHasher
	revoker sessionRevoker
	logger  logger.Logger

	ttl time.Duration
	now func() time.Time
}

func NewManager(
	cfg Config,
	proofs repository.ProofRepo,
	users repository.UserRepo,
	sender mail.EmailSender,
	hasher passwordHasher,
	revoker sessionRevoker,
	l logger.Logger,
) (*Manager, error) {
	if proofs == nil || users == nil {
		return nil, errors.New("repos must not be nil")
	}
	if sender == nil {
		return nil, errors.New("email sender must not be nil")
	}

	if cfg.ProofTTL == 0 {
		cfg.ProofTTL = defaultProofTTL
	}

	return &Manager{
		proofs:  proofs,
		users:   users,
		sender:  sender,
		hasher:  hasher,
		revoker: revoker,
		logger:  l,
		ttl:     cfg.ProofTTL,
		now:     time.Now,
	}, nil
}

// Create replaces any outstanding proof of the kind with a fresh one.
// Delete then insert, never update: at most one live proof per (user, kind)
func (m *Manager) Create(ctx context.Context, user models.User, kind models.ProofKind) (models.EphemeralProof, error) {
	if err := m.proofs.DeleteAllForUser(ctx, user.ID, kind); err != nil {
		return models.EphemeralProof{}, fmt.Errorf("error while dropping stale proofs. Err: %w", err)
	}

	b := make([]byte, proofValueBytes)
	if _, err := rand.Read(b); err != nil {
		return models.EphemeralProof{}, fmt.Errorf("error while generating proof value. Err: %w", err)
	}

	now := m.now().Truncate(time.Second)
	proof, err := m.proofs.Save(ctx, models.EphemeralProof{
		ID:        uuid.New(),
		UserID:    user.ID,
		Value:     hex.EncodeToString(b),
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	})
	if err != nil {
		return models.EphemeralProof{}, fmt.Errorf("error while saving proof. Err: %w", err)
	}

	return proof, nil
}

// Consume moves a Pending proof of the expected kind into Confirmed.
// Both terminal conditions are checked against the current moment before the
// store update, but the update itself is the arbiter: its pending-only guard
// lets exactly one of two racing consumes through
func (m *Manager) Consume(ctx context.Context, value string, kind models.ProofKind) (models.EphemeralProof, error) {
	proof, err := m.proofs.GetByValue(ctx, value)
	if err != nil {
		return models.EphemeralProof{}, err
	}

	// A proof presented through the wrong flow must not grant anything
	if proof.Kind != kind {
		return models.EphemeralProof{}, apperrors.ErrProofNotFound
	}

	now := m.now()
	switch {
	case proof.Consumed():
		return models.EphemeralProof{}, apperrors.ErrProofAlreadyConsumed
	case proof.ExpiredAt(now):
		return models.EphemeralProof{}, apperrors.ErrProofExpired
	}

	consumed, err := m.proofs.Consume(ctx, value, now)
	if err != nil {
		return models.EphemeralProof{}, err
	}

	return consumed, nil
}

// SendConfirmation creates a confirmation proof and mails it
// The mail is the deliverable here, a failed send fails the whole operation
func (m *Manager) SendConfirmation(ctx context.Context, user models.User) error {
	proof, err := m.Create(ctx, user, models.ProofKindConfirmation)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Confirm your account with this token: %s. The token is valid for %s.", proof.Value, m.ttl)
	if err := m.sender.Send(ctx, user.Email, "Confirm your account", body); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrEmailDelivery, err)
	}

	return nil
}

// ResendConfirmation mails a fresh confirmation proof for the email
// Prior proofs are invalidated by Create. Already enabled users are a no-op
func (m *Manager) ResendConfirmation(ctx context.Context, email string) error {
	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user.Enabled {
		return nil
	}

	return m.SendConfirmation(ctx, user)
}

// Confirm consumes a confirmation proof and enables the owning account
func (m *Manager) Confirm(ctx context.Context, value string) error {
	proof, err := m.Consume(ctx, value, models.ProofKindConfirmation)
	if err != nil {
		return err
	}

	user, err := m.users.GetUserByID(ctx, proof.UserID)
	if err != nil {
		return err
	}

	if err := m.users.SetEnabled(ctx, user.Email, true); err != nil {
		return fmt.Errorf("error while enabling user. Err: %w", err)
	}

	m.logger.Info("Account confirmed", "user", user.Username)
	return nil
}

// SendPasswordReset creates a reset proof for the email owner and mails it
func (m *Manager) SendPasswordReset(ctx context.Context, email string) error {
	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	proof, err := m.Create(ctx, user, models.ProofKindPasswordReset)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Reset your password with this token: %s. The token is valid for %s.", proof.Value, m.ttl)
	if err := m.sender.Send(ctx, user.Email, "Password reset", body); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrEmailDelivery, err)
	}

	return nil
}

// ResetPassword consumes a reset proof, stores the new password hash and
// kills every live session of the user
func (m *Manager) ResetPassword(ctx context.Context, value string, newPassword string) error {
	proof, err := m.Consume(ctx, value, models.ProofKindPasswordReset)
	if err != nil {
		return err
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, error=%w", err)
	}

	if err := m.users.UpdatePassword(ctx, proof.UserID, hash); err != nil {
		return err
	}

	if err := m.revoker.RevokeAllForUser(ctx, proof.UserID); err != nil {
		return err
	}

	m.logger.Info("Password reset completed", "user_id", proof.UserID)
	return nil
}
