package handlers

import (
	"errors"
	"net/http"

	"github.com/avoytenko/gatekeeper/internal/apperrors"
	"github.com/avoytenko/gatekeeper/internal/handlers/render"
	"github.com/avoytenko/gatekeeper/internal/logger"
)

type MessageResponse struct {
	Message string `json:"message"`
}

type TokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type ChallengeResponse struct {
	Challenge       string `json:"challenge"`
	ProvisioningURI string `json:"provisioning_uri,omitempty"`
}

func handleRegister(s authService, l logger.Logger) http.Handler {
	type RegisterRequest struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[RegisterRequest](w, r)
		if err != nil {
			return
		}

		_, err = s.Register(r.Context(), data.Username, data.Email, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserAlreadyExists):
				render.ServiceError(w, r, "User already exists", http.StatusBadRequest)
			case errors.Is(err, apperrors.ErrEmailDelivery):
				render.ServiceError(w, r, "Failed to send confirmation email", http.StatusInternalServerError)
			default:
				l.Error("register failed", "error", err)
				render.ServiceError(w, r, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, MessageResponse{Message: "User registered. Check your email to confirm the account"})
	})
}

func handleLogin(s authService, l logger.Logger) http.Handler {
	type LoginRequest struct {
		Login    string `json:"login" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[LoginRequest](w, r)
		if err != nil {
			return
		}

		result, err := s.Login(r.Context(), data.Login, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserNotFound):
				render.ServiceError(w, r, "Invalid username or password", http.StatusUnauthorized)
			case errors.Is(err, apperrors.ErrUserNotEnabled):
				render.ServiceError(w, r, "Account is not confirmed", http.StatusBadRequest)
			default:
				l.Error("login failed", "error", err)
				render.ServiceError(w, r, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		if result.MFARequired {
			render.JSON(w, ChallengeResponse{
				Challenge:       "totp",
				ProvisioningURI: result.ProvisioningURI,
			})
			return
		}

		render.JSON(w, TokenPairResponse{
			Access:  result.Tokens.Access.Value,
			Refresh: result.Tokens.Refresh.Value,
		})
	})
}

func handleVerify(s authService, l logger.Logger) http.Handler {
	type VerifyRequest struct {
		Login string `json:"login" validate:"required"`
		Code  string `json:"code" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[VerifyRequest](w, r)
		if err != nil {
			return
		}

		pair, err := s.VerifyOTP(r.Context(), data.Login, data.Code)
		if err != nil {
			// Collapse every failure here: a caller probing this endpoint learns
			// nothing about which part of the check tripped
			switch {
			case errors.Is(err, apperrors.ErrInvalidOTP),
				errors.Is(err, apperrors.ErrNoActiveChallenge),
				errors.Is(err, apperrors.ErrUserNotFound),
				errors.Is(err, apperrors.ErrUserNotEnabled):
				render.ServiceError(w, r, "Invalid code", http.StatusUnauthorized)
			default:
				l.Error("otp verification failed", "error", err)
				render.ServiceError(w, r, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, TokenPairResponse{
			Access:  pair.Access.Value,
			Refresh: pair.Refresh.Value,
		})
	})
}

func handleEmailChallenge(s authService, l logger.Logger) http.Handler {
	type ChallengeRequest struct {
		Login string `json:"login" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[ChallengeRequest](w, r)
		if err != nil {
			return
		}

		err = s.IssueEmailChallenge(r.Context(), data.Login)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserNotFound):
				render.ServiceError(w, r, "User not found", http.StatusNotFound)
			case errors.Is(err, apperrors.ErrNoActiveChallenge):
				render.ServiceError(w, r, "No pending login challenge", http.StatusBadRequest)
			default:
				l.Error("email challenge failed", "error", err)
				render.ServiceError(w, r, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSONWithStatus(w, MessageResponse{Message: "Verification code sent"}, http.StatusAccepted)
	})
}

func handleTokenRefresh(s authService, l logger.Logger) http.Handler {
	type RefreshRequest struct {
		Refresh string `json:"refresh" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[RefreshRequest](w, r)
		if err != nil {
			return
		}

		pair, err := s.Refresh(r.Context(), data.Refresh)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrTokenInvalid):
				render.ServiceError(w, r, "Invalid refresh token", http.StatusUnauthorized)
			default:
				l.Error("token refresh failed", "error", err)
				render.ServiceError(w, r, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, TokenPairResponse{
			Access:  pair.Access.Value,
			Refresh: pair.Refresh.Value,
		})
	})
}

func handleLogout(s authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Logout never fails from the caller's point of view. A missing or
		// already dead token leaves the ledger in the desired state anyway
		err := s.Logout(r.Context(), r)
		if err != nil {
			l.Error("logout failed", "error", err)
		}

		render.JSON(w, MessageResponse{Message: "Logged out"})
	})
}

func handleConfirm(p proofService, l logger.Logger) http.Handler {
	type ConfirmRequest struct {
		Token string `json:"token"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Confirmation links arrive as ?token= from the mail, API clients send a body
		value := r.URL.Query().Get("token")
		if value == "" {
			data, err := render.BindAndValidate[ConfirmRequest](w, r)
			if err != nil {
				return
			}
			value = data.Token
		}
		if value == "" {
			render.ServiceError(w, r, "Confirmation token is required", http.StatusBadRequest)
			return
		}

		err := p.Confirm(r.Context(), value)
		if err != nil {
			renderProofError(w, r, l, err, "Confirmation")
			return
		}

		render.JSON(w, MessageResponse{Message: "Account confirmed"})
	})
}

func handleResendConfirmation(p proofService, l logger.Logger) http.Handler {
	type ResendRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[ResendRequest](w, r)
		if err != nil {
			return
		}

		err = p.ResendConfirmation(r.Context(), data.Email)
		if err != nil {
			renderMailError(w, r, l, err)
			return
		}

		render.JSON(w, MessageResponse{Message: "Confirmation email sent"})
	})
}

func handleForgotPassword(p proofService, l logger.Logger) http.Handler {
	type ForgotRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[ForgotRequest](w, r)
		if err != nil {
			return
		}

		err = p.SendPasswordReset(r.Context(), data.Email)
		if err != nil {
			renderMailError(w, r, l, err)
			return
		}

		render.JSON(w, MessageResponse{Message: "Password reset email sent"})
	})
}

func handleResetPassword(p proofService, l logger.Logger) http.Handler {
	type ResetRequest struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,min=8"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[ResetRequest](w, r)
		if err != nil {
			return
		}

		err = p.ResetPassword(r.Context(), data.Token, data.Password)
		if err != nil {
			renderProofError(w, r, l, err, "Reset")
			return
		}

		render.JSON(w, MessageResponse{Message: "Password changed"})
	})
}

func renderProofError(w http.ResponseWriter, r *http.Request, l logger.Logger, err error, subject string) {
	switch {
	case errors.Is(err, apperrors.ErrProofNotFound):
		render.ServiceError(w, r, subject+" token not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrProofExpired):
		render.ServiceError(w, r, subject+" token expired", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrProofAlreadyConsumed):
		render.ServiceError(w, r, subject+" token already used", http.StatusBadRequest)
	default:
		l.Error("proof consumption failed", "error", err)
		render.ServiceError(w, r, "Internal server error", http.StatusInternalServerError)
	}
}

func renderMailError(w http.ResponseWriter, r *http.Request, l logger.Logger, err error) {
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		render.ServiceError(w, r, "User not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrEmailDelivery):
		render.ServiceError(w, r, "Failed to send email", http.StatusInternalServerError)
	default:
		l.Error("proof mail failed", "error", err)
		render.ServiceError(w, r, "Internal server error", http.StatusInternalServerError)
	}
}
