package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avoytenko/gatekeeper/internal/db"
	"github.com/avoytenko/gatekeeper/internal/handlers"
	"github.com/avoytenko/gatekeeper/internal/logger"
	"github.com/avoytenko/gatekeeper/internal/mail"
	"github.com/avoytenko/gatekeeper/internal/otp"
	"github.com/avoytenko/gatekeeper/internal/repository"
	"github.com/avoytenko/gatekeeper/internal/repository/memory"
	"github.com/avoytenko/gatekeeper/internal/repository/postgres"
	"github.com/avoytenko/gatekeeper/internal/secretcache"
	"github.com/avoytenko/gatekeeper/internal/service/auth"
	"github.com/avoytenko/gatekeeper/internal/service/proof"
	"github.com/avoytenko/gatekeeper/internal/token"
)

const (
	otpCodeTTL    = 5 * time.Minute
	sweepInterval = time.Minute
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	storage, err := newStorage(ctx, c, log)
	if err != nil {
		return nil, err
	}

	codec, err := newCodec(c, log)
	if err != nil {
		return nil, err
	}

	cache := newSecretCache(ctx, c, log)
	sender := mail.LogSender{Logger: log}

	ledger := auth.NewLedger(storage.Token())
	totpEngine := otp.NewTOTP(otp.TOTPConfig{Issuer: c.TokenIssuer})
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
	if err != nil {
		return nil, fmt.Errorf("error while creating proof manager. Err: %w", err)
	}

	authService, err := auth.NewService(
		auth.Config{
			AccessTokenTTL:  c.AccessTokenTTL,
			RefreshTokenTTL: c.RefreshTokenTTL,
		},
		storage.User(),
		codec,
		ledger,
		totpEngine,
		emailOTP,
		proofManager,
		cache,
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	mux := handlers.NewRouter(authService, proofManager, log)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// newStorage picks postgres when a DSN is configured, memory otherwise
func newStorage(ctx context.Context, c *Config, log logger.Logger) (repository.Storage, error) {
	if c.DatabaseDSN == "" {
		log.Warn("No database configured, using in-memory storage. All state is lost on restart")
		return memory.NewStorage(), nil
	}

	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	return postgres.NewStorage(pool), nil
}

// newCodec loads the signing pair from PEM files, or mints an ephemeral one
// for development when no files are configured
func newCodec(c *Config, log logger.Logger) (*token.Codec, error) {
	var privatePEM, publicPEM []byte
	var err error

	switch {
	case c.PrivateKeyFile != "" && c.PublicKeyFile != "":
		privatePEM, err = os.ReadFile(c.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("error while reading private key. Err: %w", err)
		}
		publicPEM, err = os.ReadFile(c.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("error while reading public key. Err: %w", err)
		}

	case c.PrivateKeyFile == "" && c.PublicKeyFile == "":
		log.Warn("No signing keys configured, generating an ephemeral pair. Tokens will not survive a restart")
		privatePEM, publicPEM, err = token.GenerateKeyPair()
		if err != nil {
			return nil, fmt.Errorf("error while generating signing keys. Err: %w", err)
		}

	default:
		return nil, fmt.Errorf("both key files must be set together, got private=%q public=%q", c.PrivateKeyFile, c.PublicKeyFile)
	}

	return token.NewCodec(token.Config{
		PrivateKeyPEM: privatePEM,
		PublicKeyPEM:  publicPEM,
		Issuer:        c.TokenIssuer,
	})
}

// newSecretCache backs one-time codes with redis when configured,
// an in-process cache with a background sweep otherwise
func newSecretCache(ctx context.Context, c *Config, log logger.Logger) secretcache.Cache {
	if c.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		return secretcache.NewRedisCache(client, otpCodeTTL)
	}

	cache := secretcache.NewMemoryCache(otpCodeTTL)
	cache.StartSweep(ctx, sweepInterval, log)
	return cache
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
