package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/avoytenko/gatekeeper/internal/handlers/render"
	"github.com/avoytenko/gatekeeper/internal/handlers/userctx"
	"github.com/avoytenko/gatekeeper/internal/logger"
)

type UserResponse struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Roles      []string  `json:"roles"`
	MFAEnabled bool      `json:"mfa_enabled"`
}

func handleUserMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, r, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, UserResponse{
			ID:         user.ID,
			Username:   user.Username,
			Email:      user.Email,
			Roles:      user.Roles,
			MFAEnabled: user.MFAEnabled,
		})
	})
}

func handleSetMFA(s authService, l logger.Logger) http.Handler {
	type SetMFARequest struct {
		Enabled *bool `json:"enabled" validate:"required"`
	}
	type SetMFAResponse struct {
		Message         string `json:"message"`
		ProvisioningURI string `json:"provisioning_uri,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, r, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[SetMFARequest](w, r)
		if err != nil {
			return
		}

		uri, err := s.SetMFA(r.Context(), user, *data.Enabled)
		if err != nil {
			l.Error("mfa toggle failed", "error", err)
			render.ServiceError(w, r, "Internal server error", http.StatusInternalServerError)
			return
		}

		message := "MFA disabled"
		if *data.Enabled {
			message = "MFA enabled"
		}
		render.JSON(w, SetMFAResponse{Message: message, ProvisioningURI: uri})
	})
}
