package handlers

import (
	"context"
	"net/http"

	"github.com/avoytenko/gatekeeper/internal/handlers/middleware"
	"github.com/avoytenko/gatekeeper/internal/logger"
	"github.com/avoytenko/gatekeeper/internal/models"
	"github.com/avoytenko/gatekeeper/internal/service/auth"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	proofService proofService,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	apiauth := http.NewServeMux()

	apiauth.Handle("POST /register", handleRegister(authService, logger))
	apiauth.Handle("POST /login", handleLogin(authService, logger))
	apiauth.Handle("POST /verify", handleVerify(authService, logger))
	apiauth.Handle("POST /challenge/email", handleEmailChallenge(authService, logger))
	apiauth.Handle("POST /refresh", handleTokenRefresh(authService, logger))
	apiauth.Handle("POST /logout", handleLogout(authService, logger))

	apiauth.Handle("POST /confirm", handleConfirm(proofService, logger))
	apiauth.Handle("POST /confirm/resend", handleResendConfirmation(proofService, logger))
	apiauth.Handle("POST /password/forgot", handleForgotPassword(proofService, logger))
	apiauth.Handle("POST /password/reset", handleResetPassword(proofService, logger))

	apiauth.Handle("GET /me", withAuth(handleUserMe()))
	apiauth.Handle("POST /mfa", withAuth(handleSetMFA(authService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register user and send the account confirmation email
	// Has to return apperrors.ErrUserAlreadyExists if username or email is taken
	Register(ctx context.Context, username string, email string, password string) (models.User, error)

	// Login checks credentials and either issues tokens or demands an OTP
	// Has to return apperrors.ErrUserNotFound for bad credentials and
	// apperrors.ErrUserNotEnabled for unconfirmed accounts
	Login(ctx context.Context, login string, password string) (auth.LoginResult, error)

	// VerifyOTP answers a pending MFA challenge with a TOTP or email code
	// Has to return apperrors.ErrNoActiveChallenge when no credentialed
	// login opened a challenge for the user
	VerifyOTP(ctx context.Context, login string, code string) (models.TokenPair, error)

	// IssueEmailChallenge sends a one-time code to the user's email
	// Only valid while a login challenge is pending, otherwise
	// apperrors.ErrNoActiveChallenge
	IssueEmailChallenge(ctx context.Context, login string) error

	// Refresh rotates a token pair using a live refresh token
	// Every failure is apperrors.ErrTokenInvalid
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Logout revokes the session behind the request's bearer token, if any
	Logout(ctx context.Context, r *http.Request) error

	// AuthenticateRequest resolves the request's bearer token to a user
	AuthenticateRequest(ctx context.Context, r *http.Request) (models.User, error)

	// SetMFA toggles MFA for the user, returning the provisioning URI when enabling
	SetMFA(ctx context.Context, user models.User, enabled bool) (string, error)
}

type proofService interface {
	// Confirm consumes a confirmation proof and enables the account
	Confirm(ctx context.Context, value string) error

	// ResendConfirmation issues a fresh confirmation proof for an unconfirmed user
	ResendConfirmation(ctx context.Context, email string) error

	// SendPasswordReset issues a password reset proof and mails it
	SendPasswordReset(ctx context.Context, email string) error

	// ResetPassword consumes a reset proof, stores the new password and kills sessions
	ResetPassword(ctx context.Context, value string, newPassword string) error
}
