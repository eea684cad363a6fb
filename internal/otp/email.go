package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/avoytenko/gatekeeper/internal/apperrors"
	"github.com/avoytenko/gatekeeper/internal/logger"
	"github.com/avoytenko/gatekeeper/internal/mail"
	"github.com/avoytenko/gatekeeper/internal/models"
	"github.com/avoytenko/gatekeeper/internal/secretcache"
)

const emailCodeSubject = "Your one-time sign in code"

var emailCodeMax = big.NewInt(1_000_000)

// EmailOTP issues and checks emailed numeric codes
// Codes live in the secret cache under the user's email and die on the cache TTL
type EmailOTP struct {
	cache  secretcache.Cache
	sender mail.EmailSender
	logger logger.Logger
}

func NewEmailOTP(cache secretcache.Cache, sender mail.EmailSender, l logger.Logger) *EmailOTP {
	return &EmailOTP{
		cache:  cache,
		sender: sender,
		logger: l,
	}
}

// Issue caches a fresh 6 digit code for the user and dispatches it by email
// The previous code, if any, is invalidated by the cache write itself
// Delivery runs async and never blocks or fails the surrounding flow
func (e *EmailOTP) Issue(ctx context.Context, user models.User) error {
	code, err := generateCode()
	if err != nil {
		return err
	}

	if err := e.cache.Put(ctx, user.Email, code); err != nil {
		return fmt.Errorf("error while caching otp code. Err: %w", err)
	}

	body := fmt.Sprintf("Your one-time code is %s. It expires shortly, do not share it.", code)
	mail.SendAsync(e.sender, e.logger, user.Email, emailCodeSubject, body)

	return nil
}

// Verify checks the submitted code against the cached one
// Returns apperrors.ErrNoActiveChallenge when nothing is cached (expired or
// never issued), so callers can tell "wrong code" from "no code outstanding".
// A code that validates is evicted: single use. The system this replaces kept
// the code until TTL expiry, which allowed replay, the stricter behavior is
// deliberate here.
func (e *EmailOTP) Verify(ctx context.Context, user models.User, code string) error {
	cached, ok, err := e.cache.Get(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("error while reading otp code. Err: %w", err)
	}
	if !ok {
		return apperrors.ErrNoActiveChallenge
	}

	if subtle.ConstantTimeCompare([]byte(cached), []byte(code)) != 1 {
		return apperrors.ErrInvalidOTP
	}

	if err := e.cache.Evict(ctx, user.Email); err != nil {
		return fmt.Errorf("error while evicting used otp code. Err: %w", err)
	}

	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, emailCodeMax)
	if err != nil {
		return "", fmt.Errorf("error while generating otp code. Err: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()), nil
}
