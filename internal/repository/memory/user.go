package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/avoytenko/gatekeeper/internal/apperrors"
	"github.com/avoytenko/gatekeeper/internal/models"
)

type UserRepo struct {
	s *Storage
}

func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.Username]; ok {
		return models.User{}, apperrors.ErrUserAlreadyExists
	}
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return models.User{}, apperrors.ErrUserAlreadyExists
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.s.users[user.Username] = user

	return user, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[username]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return u, nil
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}

func (r *UserRepo) SetEnabled(ctx context.Context, email string, enabled bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for username, u := range r.s.users {
		if u.Email == email {
			u.Enabled = enabled
			r.s.users[username] = u
			return nil
		}
	}
	return apperrors.ErrUserNotFound
}

func (r *UserRepo) SetMFA(ctx context.Context, userID uuid.UUID, enabled bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for username, u := range r.s.users {
		if u.ID == userID {
			u.MFAEnabled = enabled
			r.s.users[username] = u
			return nil
		}
	}
	return apperrors.ErrUserNotFound
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for username, u := range r.s.users {
		if u.ID == userID {
			u.HashedPassword = hashedPassword
			r.s.users[username] = u
			return nil
		}
	}
	return apperrors.ErrUserNotFound
}
