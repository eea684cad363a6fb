// Package token signs and reads bearer tokens.
//
// Signing is asymmetric (Ed25519): verification needs only the public key, so
// the signing secret never leaves the issuer. Decode fails closed, a token
// that does not verify completely yields no claims at all.
package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/avoytenko/gatekeeper/internal/apperrors"
	"github.com/avoytenko/gatekeeper/internal/models"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID        `json:"uid"`
	Scope  []string         `json:"scope"`
	Kind   models.TokenKind `json:"kind"`
}

type Config struct {
	// PEM encoded Ed25519 keys
	// PrivateKeyPEM may be empty for a verify-only codec (the interceptor side)
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte

	// Issuer claim value, required
	Issuer string
}

type Codec struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	issuer  string

	now func() time.Time
}

func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("issuer must not be empty")
	}
	if len(cfg.PublicKeyPEM) == 0 {
		return nil, errors.New("public key must not be empty")
	}

	public, err := ParsePublicKeyPEM(cfg.PublicKeyPEM)
	if err != nil {
		return nil, err
	}

	var private ed25519.PrivateKey
	if len(cfg.PrivateKeyPEM) > 0 {
		private, err = ParsePrivateKeyPEM(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
	}

	return &Codec{
		private: private,
		public:  public,
		issuer:  cfg.Issuer,
		now:     time.Now,
	}, nil
}

// Issue signs a token for the user
// Subject is the user's email, scope carries the role set
func (c *Codec) Issue(user models.User, kind models.TokenKind, ttl time.Duration) (models.IssuedToken, error) {
	if c.private == nil {
		return models.IssuedToken{}, errors.New("codec has no private key, it can only decode")
	}

	now := c.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(
		jwt.SigningMethodEdDSA,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Issuer:    c.issuer,
				Subject:   user.Email,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID: user.ID,
			Scope:  user.Roles,
			Kind:   kind,
		},
	)

	signed, err := token.SignedString(c.private)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Decode parses and verifies a signed token
// Any signature mismatch, structural corruption, unexpected algorithm or
// expired window is collapsed into apperrors.ErrTokenInvalid
func (c *Codec) Decode(raw string) (Claims, error) {
	claims := Claims{}

	parsed, err := jwt.ParseWithClaims(
		raw,
		&claims,
		func(t *jwt.Token) (any, error) { return c.public, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	switch {
	case err == nil && parsed.Valid:
		return claims, nil
	default:
		return Claims{}, fmt.Errorf("%w: %v", apperrors.ErrTokenInvalid, err)
	}
}
