package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	Email          string
	HashedPassword string

	// Roles carried into the token 'scope' claim
	Roles []string

	// Enabled flips to true when the confirmation proof is consumed
	Enabled bool

	// MFASecret is generated at registration and kept for the account lifetime,
	// it only takes effect while MFAEnabled is true
	MFAEnabled bool
	MFASecret  string
}
