package models

import (
	"time"

	"github.com/google/uuid"
)

// Kind of issued token
// Access and refresh tokens share one ledger and one revocation path
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// LedgerToken is the authoritative record of an issued token
// Rows are never deleted: expired/revoked flip and the row stays as audit trail
type LedgerToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Value     string
	Kind      TokenKind
	Expired   bool
	Revoked   bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Live reports whether the ledger still vouches for the token
func (t LedgerToken) Live() bool {
	return !t.Expired && !t.Revoked
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair returned to the user on successful authentication
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
