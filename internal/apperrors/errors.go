package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserNotEnabled    = errors.New("user is not enabled")

	ErrTokenNotFound = errors.New("token not found")
	ErrTokenInvalid  = errors.New("token is invalid")

	ErrProofNotFound        = errors.New("proof not found")
	ErrProofExpired         = errors.New("proof is expired")
	ErrProofAlreadyConsumed = errors.New("proof already consumed")

	ErrInvalidOTP        = errors.New("one-time code is invalid")
	ErrNoActiveChallenge = errors.New("no active challenge for user")

	ErrEmailDelivery = errors.New("email delivery failed")
)
