package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoytenko/gatekeeper/internal/apperrors"
	"github.com/avoytenko/gatekeeper/internal/models"
	"github.com/avoytenko/gatekeeper/internal/repository"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	someUser := func(username string) models.User {
		return models.User{
			Username:       username,
			Email:          username + "@example.com",
			HashedPassword: "hashed",
			Roles:          []string{"user"},
		}
	}

	t.Run("create assigns id and finds back", func(t *testing.T) {
		r := NewStorage().User()

		created, err := r.CreateUser(ctx, someUser("alice"))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)

		byName, err := r.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byName.ID)

		byEmail, err := r.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)

		byID, err := r.GetUserByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username)
	})

	t.Run("duplicate username or email rejected", func(t *testing.T) {
		r := NewStorage().User()

		_, err := r.CreateUser(ctx, someUser("bob"))
		require.NoError(t, err)

		_, err = r.CreateUser(ctx, someUser("bob"))
		assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)

		stranger := someUser("carol")
		stranger.Email = "bob@example.com"
		_, err = r.CreateUser(ctx, stranger)
		assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})

	t.Run("unknown lookups", func(t *testing.T) {
		r := NewStorage().User()

		_, err := r.GetUserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

		err = r.SetEnabled(ctx, "nobody@example.com", true)
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

		err = r.SetMFA(ctx, uuid.New(), true)
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

		err = r.UpdatePassword(ctx, uuid.New(), "hash")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})
}

func Test_TokenRepo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	someToken := func(userID uuid.UUID, value string) models.LedgerToken {
		return models.LedgerToken{
			UserID:    userID,
			Value:     value,
			Kind:      models.TokenKindAccess,
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		}
	}

	t.Run("revoke keeps the row", func(t *testing.T) {
		r := NewStorage().Token()
		userID := uuid.New()

		_, err := r.Save(ctx, someToken(userID, "tok"))
		require.NoError(t, err)

		require.NoError(t, r.Revoke(ctx, "tok"))

		got, err := r.GetByValue(ctx, "tok")
		require.NoError(t, err, "ledger rows are never deleted")
		assert.False(t, got.Live())
	})

	t.Run("revoke all is user scoped", func(t *testing.T) {
		r := NewStorage().Token()
		mine, theirs := uuid.New(), uuid.New()

		_, err := r.Save(ctx, someToken(mine, "mine"))
		require.NoError(t, err)
		_, err = r.Save(ctx, someToken(theirs, "theirs"))
		require.NoError(t, err)

		require.NoError(t, r.RevokeAllForUser(ctx, mine))

		got, err := r.GetByValue(ctx, "mine")
		require.NoError(t, err)
		assert.False(t, got.Live())

		got, err = r.GetByValue(ctx, "theirs")
		require.NoError(t, err)
		assert.True(t, got.Live())
	})

	t.Run("unknown value", func(t *testing.T) {
		r := NewStorage().Token()

		_, err := r.GetByValue(ctx, "nope")
		assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)

		err = r.Revoke(ctx, "nope")
		assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)
	})
}

func Test_ProofRepo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	someProof := func(userID uuid.UUID, value string, kind models.ProofKind) models.EphemeralProof {
		return models.EphemeralProof{
			UserID:    userID,
			Value:     value,
			Kind:      kind,
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		}
	}

	t.Run("consume wins once", func(t *testing.T) {
		r := NewStorage().Proof()
		userID := uuid.New()

		_, err := r.Save(ctx, someProof(userID, "proof", models.ProofKindConfirmation))
		require.NoError(t, err)

		at := time.Now()
		consumed, err := r.Consume(ctx, "proof", at)
		require.NoError(t, err)
		require.NotNil(t, consumed.ConfirmedAt)

		_, err = r.Consume(ctx, "proof", at.Add(time.Minute))
		assert.ErrorIs(t, err, apperrors.ErrProofAlreadyConsumed)
	})

	t.Run("delete all is kind scoped", func(t *testing.T) {
		r := NewStorage().Proof()
		userID := uuid.New()

		_, err := r.Save(ctx, someProof(userID, "confirm", models.ProofKindConfirmation))
		require.NoError(t, err)
		_, err = r.Save(ctx, someProof(userID, "reset", models.ProofKindPasswordReset))
		require.NoError(t, err)

		require.NoError(t, r.DeleteAllForUser(ctx, userID, models.ProofKindConfirmation))

		_, err = r.GetByValue(ctx, "confirm")
		assert.ErrorIs(t, err, apperrors.ErrProofNotFound)

		_, err = r.GetByValue(ctx, "reset")
		assert.NoError(t, err)
	})
}

func Test_InTx(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewStorage()

	err := s.InTx(ctx, func(st repository.Storage) error {
		_, err := st.User().CreateUser(ctx, models.User{Username: "txuser", Email: "tx@example.com"})
		return err
	})
	require.NoError(t, err)

	_, err = s.User().GetUserByUsername(ctx, "txuser")
	require.NoError(t, err, "writes inside InTx land in the same storage")

	wantErr := errors.New("boom")
	err = s.InTx(ctx, func(repository.Storage) error { return wantErr })
	require.ErrorIs(t, err, wantErr, "fn error is passed through")
}
