package e2e

import (
	"context"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stretchr/testify/require"

	"github.com/avoytenko/gatekeeper/internal/handlers"
	"github.com/avoytenko/gatekeeper/internal/logger"
	"github.com/avoytenko/gatekeeper/internal/otp"
	"github.com/avoytenko/gatekeeper/internal/repository/postgres"
	"github.com/avoytenko/gatekeeper/internal/secretcache"
	"github.com/avoytenko/gatekeeper/internal/service/auth"
	"github.com/avoytenko/gatekeeper/internal/service/proof"
	"github.com/avoytenko/gatekeeper/internal/testutil"
	"github.com/avoytenko/gatekeeper/internal/token"
)

var (
	proofTokenRe = regexp.MustCompile(`token: ([0-9a-f]+)\.`)
	otpCodeRe    = regexp.MustCompile(`code is (\d{6})`)
)

// RecordingSender keeps outbound mail on a channel so tests can read
// confirmation tokens and one-time codes back
type RecordingSender struct {
	Bodies chan string
}

func (s *RecordingSender) Send(_ context.Context, _ string, _ string, body string) error {
	s.Bodies <- body
	return nil
}

// WaitProofToken blocks until a mail with a proof token arrives
func (s *RecordingSender) WaitProofToken(t *testing.T) string {
	return s.wait(t, proofTokenRe)
}

// WaitOTPCode blocks until a mail with a one-time code arrives
func (s *RecordingSender) WaitOTPCode(t *testing.T) string {
	return s.wait(t, otpCodeRe)
}

func (s *RecordingSender) wait(t *testing.T, re *regexp.Regexp) string {
	t.Helper()

	select {
	case body := <-s.Bodies:
		match := re.FindStringSubmatch(body)
		require.Lenf(t, match, 2, "mail body should match. Body: %s", body)
		return match[1]
	case <-time.After(3 * time.Second):
		t.Fatal("no mail arrived in time")
		return ""
	}
}

type Services struct {
	Auth   *auth.AuthService
	Proofs *proof.Manager
	Sender *RecordingSender
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.WithTx with it
func ServeWithTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		privatePEM, publicPEM, err := token.GenerateKeyPair()
		require.NoError(t, err)
		codec, err := token.NewCodec(token.Config{
			PrivateKeyPEM: privatePEM,
			PublicKeyPEM:  publicPEM,
			Issuer:        "gatekeeper-e2e",
		})
		require.NoError(t, err, "token codec should be created without errors")

		log := logger.NewNoOpLogger()
		storage := postgres.NewStorage(tx)
		sender := &RecordingSender{Bodies: make(chan string, 16)}

		ledger := auth.NewLedger(storage.Token())
		totpEngine := otp.NewTOTP(otp.TOTPConfig{Issuer: "gatekeeper-e2e"})
		cache := secretcache.NewMemoryCache(5 * time.Minute)
		emailOTP := otp.NewEmailOTP(cache, sender, log)

		proofManager, err := proof.NewManager(
			proof.Config{},
			storage.Proof(),
			storage.User(),
			sender,
			auth.BcryptHasher{},
			ledger,
			log,
		)
		require.NoError(t, err, "proof manager should be created without errors")

		authService, err := auth.NewService(
			auth.Config{},
			storage.User(),
			codec,
			ledger,
			totpEngine,
			emailOTP,
			proofManager,
			cache,
		)
		require.NoError(t, err, "auth service should be created without errors")

		// Run http server with the router in transaction
		srv := httptest.NewServer(handlers.NewRouter(authService, proofManager, log))
		defer srv.Close()

		fn(tx, srv.URL, Services{
			Auth:   authService,
			Proofs: proofManager,
			Sender: sender,
		})
	})
}
