// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command authserver runs the OAuth2/OIDC authorization server: it loads
// configuration from the environment, connects to PostgreSQL and Redis,
// wires every domain service to the HTTP surface, and serves until an
// interrupt or terminate signal triggers a graceful shutdown.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ironforge-id/authcore/audit"
	"github.com/ironforge-id/authcore/authorize"
	"github.com/ironforge-id/authcore/backup"
	"github.com/ironforge-id/authcore/client"
	"github.com/ironforge-id/authcore/clientauth"
	"github.com/ironforge-id/authcore/config"
	"github.com/ironforge-id/authcore/consent"
	"github.com/ironforge-id/authcore/crypto"
	"github.com/ironforge-id/authcore/httpapi"
	"github.com/ironforge-id/authcore/password"
	"github.com/ironforge-id/authcore/ratelimit"
	"github.com/ironforge-id/authcore/rbac"
	"github.com/ironforge-id/authcore/revocation"
	"github.com/ironforge-id/authcore/session"
	"github.com/ironforge-id/authcore/store/postgres"
	"github.com/ironforge-id/authcore/tokencodec"
	"github.com/ironforge-id/authcore/tokenendpoint"
	"github.com/ironforge-id/authcore/user"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := run(); err != nil {
		slog.Error("authserver: fatal startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%s", config.DescribeError(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("authserver: connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return fmt.Errorf("authserver: run migrations: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("authserver: connect to redis: %w", err)
	}

	keys, err := buildKeyManager(cfg)
	if err != nil {
		return fmt.Errorf("authserver: build signing key manager: %w", err)
	}

	server, err := wireServer(cfg, db, redisClient, keys)
	if err != nil {
		return fmt.Errorf("authserver: wire server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("authserver: listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("authserver: shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("authserver: listen: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("authserver: graceful shutdown: %w", err)
	}
	slog.Info("authserver: shut down cleanly")
	return nil
}

// buildKeyManager constructs the Crypto/Key Service's Manager from the
// configured algorithm. RS256 parses the operator-supplied PEM keypair;
// HS256 is a development-only fallback that derives a random secret if
// none is configured, since it is never meant to survive a restart.
func buildKeyManager(cfg *config.Config) (*crypto.Manager, error) {
	if cfg.JWTAlgorithm == "HS256" {
		secret := []byte(cfg.JWTPrivateKeyPEM)
		if len(secret) == 0 {
			secret = make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return nil, fmt.Errorf("generate HS256 dev secret: %w", err)
			}
			slog.Warn("authserver: HS256 configured without a secret; generated an ephemeral one for this process")
		}
		return crypto.NewHS256Manager(secret), nil
	}

	priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.JWTPrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse JWT_PRIVATE_KEY_PEM: %w", err)
	}
	return crypto.NewRS256Manager(cfg.JWTKeyID, priv), nil
}

// wireServer constructs every repository, engine and service the HTTP
// surface depends on, following the dependency order each constructor
// requires: repositories first, then the services and engines built on
// top of them, then the httpapi.Server that ties them to routes.
func wireServer(cfg *config.Config, db *postgres.DB, redisClient *redis.Client, keys *crypto.Manager) (*httpapi.Server, error) {
	userRepo := postgres.NewUserRepository(db)
	clientRepo := postgres.NewClientRepository(db)
	codeRepo := postgres.NewAuthorizationCodeRepository(db)
	accessRepo := postgres.NewAccessTokenRepository(db)
	refreshRepo := postgres.NewRefreshTokenRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	permRepo := postgres.NewPermissionRepository(db)
	assignmentRepo := postgres.NewAssignmentRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	consentRepo := postgres.NewConsentGrantRepository(db)
	backupRepo := postgres.NewBackupRepository(db)

	auditLogger := audit.NewRepositoryLogger(auditRepo)

	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("construct password hasher: %w", err)
	}

	codec := tokencodec.New(keys, cfg.JWTIssuer, cfg.JWTAudience)

	blacklist := revocation.NewRedisBlacklist(redisClient)
	jwksFetcher := clientauth.NewRedisJWKSFetcher(redisClient)

	decider := rbac.NewDecider(roleRepo, permRepo, assignmentRepo)
	rbacSvc := rbac.NewService(roleRepo, permRepo, assignmentRepo, auditLogger)

	consentSvc := consent.NewService(consentRepo, auditLogger)
	sessionSvc := session.NewService(sessionRepo, cfg.RefreshTokenTTL, 30*time.Minute)

	authorizeEngine := authorize.NewEngine(clientRepo, codeRepo, consentSvc, auditLogger, cfg.AuthCodeTTL)

	userSvc := user.NewService(userRepo, hasher, auditLogger, cfg.LockoutMaxAttempts, cfg.LockoutDuration)
	clientSvc := client.NewService(clientRepo, accessRepo, refreshRepo, consentRepo, hasher, auditLogger)

	authenticator := clientauth.NewAuthenticator(clientRepo, clientSvc, jwksFetcher, blacklist, issuerTokenEndpoint(cfg))
	tokenEngine := tokenendpoint.NewEngine(
		authenticator, codeRepo, accessRepo, refreshRepo, codec, decider, auditLogger,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.IDTokenTTL,
	)
	revocationSvc := revocation.NewService(codec, accessRepo, refreshRepo, blacklist, auditLogger)

	memStore := ratelimit.NewMemoryStore()
	redisStore := ratelimit.NewRedisStore(redisClient)
	limiter := ratelimit.NewLimiter(redisStore, memStore, map[string]ratelimit.Rule{
		"authorize":  {Limit: cfg.RateLimitMax, Window: cfg.RateLimitWindow},
		"token":      {Limit: cfg.RateLimitMax, Window: cfg.RateLimitWindow},
		"introspect": {Limit: cfg.RateLimitMax, Window: cfg.RateLimitWindow},
		"revoke":     {Limit: cfg.RateLimitMax, Window: cfg.RateLimitWindow},
		"register":   {Limit: cfg.RateLimitMax, Window: cfg.RateLimitWindow},
	})

	dumper := backup.NewPgDumper(cfg.DatabaseURL)
	backupSvc := backup.NewService(backupRepo, dumper, auditLogger, cfg.BackupDir)

	return &httpapi.Server{
		Keys:                keys,
		Codec:               codec,
		Authorizer:          authorizeEngine,
		TokenEP:             tokenEngine,
		Revocation:          revocationSvc,
		ClientAuth:          authenticator,
		Decider:             decider,
		RBAC:                rbacSvc,
		Consent:             consentSvc,
		Users:               userSvc,
		Clients:             clientSvc,
		Sessions:            sessionSvc,
		AuditRepo:           auditRepo,
		AuditLogger:         auditLogger,
		Blacklist:           blacklist,
		AccessRepo:          accessRepo,
		RefreshRepo:         refreshRepo,
		RateLimiter:         limiter,
		Backups:             backupSvc,
		RegistrationEnabled: cfg.RegistrationEnabled,
		RequestTimeout:      cfg.RequestTimeout,
		CORSOrigins:         cfg.CORSOrigins,
	}, nil
}

func issuerTokenEndpoint(cfg *config.Config) string {
	return cfg.JWTIssuer + "/api/v2/oauth/token"
}
