// Package auth orchestrates the credential flows: login, the optional second
// factor, token issuance with prior session revocation, refresh and logout.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avoytenko/gatekeeper/internal/apperrors"
	"github.com/avoytenko/gatekeeper/internal/models"
	"github.com/avoytenko/gatekeeper/internal/otp"
	"github.com/avoytenko/gatekeeper/internal/repository"
	"github.com/avoytenko/gatekeeper/internal/secretcache"
	"github.com/avoytenko/gatekeeper/internal/service/proof"
	"github.com/avoytenko/gatekeeper/internal/token"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 24 * time.Hour

	bearerScheme = "Bearer"

	defaultRole = "user"

	// Pending challenge markers share the cache with emailed codes, which are
	// keyed by bare email. The prefix keeps the two namespaces apart
	challengeKeyPrefix = "challenge:"
)

type Config struct {
	// Access and refresh token lifetimes
	// If not set then defaults are used
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Hasher to use during registration or login
	// Defaults to BcryptHasher
	Hasher PasswordHasher
}

// LoginResult is what a credential check hands back: either a token pair or,
// for MFA users, a challenge that must be answered first
type LoginResult struct {
	Tokens *models.TokenPair

	MFARequired     bool
	ProvisioningURI string
}

type AuthService struct {
	users      repository.UserRepo
	codec      *token.Codec
	ledger     *Ledger
	totp       *otp.TOTP
	emailOTP   *otp.EmailOTP
	proofs     *proof.Manager
	challenges secretcache.Cache
	hasher     PasswordHasher

	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func NewService(
	cfg Config,
	users repository.UserRepo,
	codec *token.Codec,
	ledger *Ledger,
	totpEngine *otp.TOTP,
	emailOTP *otp.EmailOTP,
	proofs *proof.Manager,
	challenges secretcache.Cache,
) (*AuthService, error) {
	if users == nil || codec == nil || ledger == nil {
		return nil, errors.New("users, codec and ledger must not be nil")
	}
	if totpEngine == nil || emailOTP == nil {
		return nil, errors.New("otp engines must not be nil")
	}
	if proofs == nil {
		return nil, errors.New("proof manager must not be nil")
	}
	if challenges == nil {
		return nil, errors.New("challenge cache must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTokenTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTokenTTL, defaultRefreshTokenTTL)

	return &AuthService{
		users:      users,
		codec:      codec,
		ledger:     ledger,
		totp:       totpEngine,
		emailOTP:   emailOTP,
		proofs:     proofs,
		challenges: challenges,
		hasher:     hasher,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}, nil
}

// Register creates a disabled account and mails the confirmation proof.
// The TOTP secret is minted here once and kept for the account lifetime,
// enabling MFA later only flips the flag
func (s *AuthService) Register(ctx context.Context, username string, email string, password string) (models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("error while hashing password. Err: %w", err)
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return models.User{}, err
	}

	user, err := s.users.CreateUser(ctx, models.User{
		Username:       username,
		Email:          email,
		HashedPassword: hash,
		Roles:          []string{defaultRole},
		Enabled:        false,
		MFAEnabled:     false,
		MFASecret:      secret,
	})
	if err != nil {
		return models.User{}, err
	}

	if err := s.proofs.SendConfirmation(ctx, user); err != nil {
		return models.User{}, err
	}

	return user, nil
}

// Login checks the primary credential
// MFA off: a fresh token pair, every prior token revoked
// MFA on: no tokens yet, only the provisioning payload for the second factor
func (s *AuthService) Login(ctx context.Context, username string, password string) (LoginResult, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return LoginResult{}, apperrors.ErrUserNotFound
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		// Same answer as an unknown user, nothing leaks about which part failed
		return LoginResult{}, apperrors.ErrUserNotFound
	}

	if !user.Enabled {
		return LoginResult{}, apperrors.ErrUserNotEnabled
	}

	if user.MFAEnabled {
		// The marker is what VerifyOTP and IssueEmailChallenge later demand:
		// no second factor step exists without a credentialed login first
		if err := s.challenges.Put(ctx, challengeKey(user), "pending"); err != nil {
			return LoginResult{}, fmt.Errorf("error while opening mfa challenge. Err: %w", err)
		}

		return LoginResult{
			MFARequired:     true,
			ProvisioningURI: s.totp.ProvisioningURI(user.MFASecret, user.Email),
		}, nil
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{Tokens: &pair}, nil
}

// VerifyOTP answers the second factor challenge with either code kind.
// TOTP is tried first, the emailed code only when TOTP fails: a fixed order,
// not a configurable choice.
// Only MFA users with a pending login challenge may pass here, a code alone
// is never a substitute for the password
func (s *AuthService) VerifyOTP(ctx context.Context, username string, code string) (models.TokenPair, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return models.TokenPair{}, apperrors.ErrUserNotFound
	}

	if !user.Enabled {
		return models.TokenPair{}, apperrors.ErrUserNotEnabled
	}

	if err := s.requirePendingChallenge(ctx, user); err != nil {
		return models.TokenPair{}, err
	}

	if !s.totp.Verify(user.MFASecret, code, s.now()) {
		if err := s.emailOTP.Verify(ctx, user, code); err != nil {
			return models.TokenPair{}, apperrors.ErrInvalidOTP
		}
	}

	// The challenge is answered, the next verify needs a fresh login
	if err := s.challenges.Evict(ctx, challengeKey(user)); err != nil {
		return models.TokenPair{}, fmt.Errorf("error while closing mfa challenge. Err: %w", err)
	}

	return s.issuePair(ctx, user)
}

// IssueEmailChallenge mails a one-time code as the alternative second factor.
// Available only while a login challenge is pending, so the emailed code can
// never become a standalone first factor
func (s *AuthService) IssueEmailChallenge(ctx context.Context, username string) error {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return apperrors.ErrUserNotFound
	}

	if err := s.requirePendingChallenge(ctx, user); err != nil {
		return err
	}

	return s.emailOTP.Issue(ctx, user)
}

// requirePendingChallenge checks that Login's MFA branch opened a challenge
// for the user and it has not expired or been answered yet
func (s *AuthService) requirePendingChallenge(ctx context.Context, user models.User) error {
	if !user.MFAEnabled {
		return apperrors.ErrNoActiveChallenge
	}

	_, ok, err := s.challenges.Get(ctx, challengeKey(user))
	if err != nil {
		return fmt.Errorf("error while reading mfa challenge. Err: %w", err)
	}
	if !ok {
		return apperrors.ErrNoActiveChallenge
	}

	return nil
}

func challengeKey(user models.User) string {
	return challengeKeyPrefix + user.Email
}

// Refresh rotates the pair for a valid, live refresh token
func (s *AuthService) Refresh(ctx context.Context, refreshValue string) (models.TokenPair, error) {
	claims, err := s.codec.Decode(refreshValue)
	if err != nil {
		return models.TokenPair{}, apperrors.ErrTokenInvalid
	}

	// An access token must not pass where a refresh token is expected
	if claims.Kind != models.TokenKindRefresh {
		return models.TokenPair{}, apperrors.ErrTokenInvalid
	}

	if !s.ledger.IsValid(ctx, refreshValue) {
		return models.TokenPair{}, apperrors.ErrTokenInvalid
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return models.TokenPair{}, apperrors.ErrTokenInvalid
	}

	return s.issuePair(ctx, user)
}

// Logout revokes the whole session lineage behind the request's bearer token.
// The owner comes from the ledger row, not from decoding the token, so an
// expired bearer still tears down its live refresh half.
// No bearer at all is a no-op, not an error, and so is a forged value
func (s *AuthService) Logout(ctx context.Context, r *http.Request) error {
	raw := BearerFromRequest(r)
	if raw == "" {
		return nil
	}

	row, err := s.ledger.Resolve(ctx, raw)
	if err != nil {
		// Unknown or forged token: nothing to revoke, logout still succeeds
		return nil
	}

	return s.ledger.RevokeAllForUser(ctx, row.UserID)
}

// AuthenticateRequest is the per request authentication decision.
// Signature check, kind check and ledger liveness must all pass, every
// failure collapses into the same apperrors.ErrTokenInvalid so the caller
// leaks nothing about which check rejected the token
func (s *AuthService) AuthenticateRequest(ctx context.Context, r *http.Request) (models.User, error) {
	raw := BearerFromRequest(r)
	if raw == "" {
		return models.User{}, apperrors.ErrTokenInvalid
	}

	claims, err := s.codec.Decode(raw)
	if err != nil {
		return models.User{}, apperrors.ErrTokenInvalid
	}

	// Refresh tokens are only good at the refresh endpoint
	if claims.Kind != models.TokenKindAccess {
		return models.User{}, apperrors.ErrTokenInvalid
	}

	if !s.ledger.IsValid(ctx, raw) {
		return models.User{}, apperrors.ErrTokenInvalid
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return models.User{}, apperrors.ErrTokenInvalid
	}

	return user, nil
}

// SetMFA flips the MFA flag for the user
// Enabling returns the provisioning payload for the stable per account secret
func (s *AuthService) SetMFA(ctx context.Context, user models.User, enabled bool) (provisioningURI string, err error) {
	if err := s.users.SetMFA(ctx, user.ID, enabled); err != nil {
		return "", err
	}

	if !enabled {
		return "", nil
	}

	return s.totp.ProvisioningURI(user.MFASecret, user.Email), nil
}

// BearerFromRequest extracts the bare token from the Authorization header
// Empty string when the header is absent or not a bearer scheme
func BearerFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return ""
	}

	return strings.TrimSpace(value)
}

// issuePair revokes every prior token and records a fresh access/refresh pair
func (s *AuthService) issuePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	access, err := s.codec.Issue(user, models.TokenKindAccess, s.accessTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while issuing access token. Err: %w", err)
	}

	refresh, err := s.codec.Issue(user, models.TokenKindRefresh, s.refreshTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while issuing refresh token. Err: %w", err)
	}

	// Revoke first: at most one live session lineage per user
	if err := s.ledger.RevokeAllForUser(ctx, user.ID); err != nil {
		return models.TokenPair{}, err
	}

	if err := s.ledger.Record(ctx, user, access, models.TokenKindAccess); err != nil {
		return models.TokenPair{}, err
	}
	if err := s.ledger.Record(ctx, user, refresh, models.TokenKindRefresh); err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}
