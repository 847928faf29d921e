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

// Package config loads process configuration from environment variables,
// read once at startup.
//
// Purpose: Typed access to the server's fixed, small configuration surface.
// Domain: Ambient
// Invariants: Load fails fast when signing configuration is missing for an
// asymmetric algorithm.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingSigningKey is returned by Load when JWT_ALGORITHM selects an
// asymmetric algorithm but no PEM key material is configured.
var ErrMissingSigningKey = errors.New("config: asymmetric algorithm configured without JWT_PRIVATE_KEY_PEM/JWT_PUBLIC_KEY_PEM")

// Config is the authorization server's complete runtime configuration,
// read once at process start.
type Config struct {
	// Signing / token
	JWTAlgorithm      string
	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	JWTIssuer         string
	JWTAudience       string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	IDTokenTTL        time.Duration
	AuthCodeTTL       time.Duration

	// Database
	DatabaseURL string

	// HTTP
	ListenAddr      string
	RequestTimeout  time.Duration
	CORSOrigins     []string
	ShutdownTimeout time.Duration

	// Redis (rate limiter, JWKS cache, revocation blacklist)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Identity
	BcryptCost          int
	LockoutMaxAttempts  int
	LockoutDuration     time.Duration
	RegistrationEnabled bool

	// Rate limiting
	RateLimitWindow time.Duration
	RateLimitMax    int

	// Ops
	BackupDir string
}

// Load reads configuration from the environment and validates it. It fails
// fast when an asymmetric algorithm is configured without key material, so
// the caller can turn the error into a non-zero exit before any listener
// starts.
func Load() (*Config, error) {
	cfg := &Config{
		JWTAlgorithm:     getEnv("JWT_ALGORITHM", "RS256"),
		JWTPrivateKeyPEM: getEnv("JWT_PRIVATE_KEY_PEM", ""),
		JWTPublicKeyPEM:  getEnv("JWT_PUBLIC_KEY_PEM", ""),
		JWTKeyID:         getEnv("JWT_KEY_ID", "default"),
		JWTIssuer:        getEnv("JWT_ISSUER", "https://auth.example.com"),
		JWTAudience:      getEnv("JWT_AUDIENCE", "https://api.example.com"),
		AccessTokenTTL:   getEnvDuration("ACCESS_TOKEN_LIFETIME", time.Hour),
		RefreshTokenTTL:  getEnvDuration("REFRESH_TOKEN_LIFETIME", 30*24*time.Hour),
		IDTokenTTL:       getEnvDuration("ID_TOKEN_LIFETIME", time.Hour),
		AuthCodeTTL:      getEnvDuration("AUTH_CODE_LIFETIME", 10*time.Minute),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/authcore?sslmode=disable"),

		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		CORSOrigins:     getEnvStringSlice("CORS_ORIGINS", []string{"*"}),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		BcryptCost:          getEnvInt("BCRYPT_COST", 12),
		LockoutMaxAttempts:  getEnvInt("LOCKOUT_MAX_ATTEMPTS", 5),
		LockoutDuration:     getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),
		RegistrationEnabled: getEnvBool("REGISTRATION_ENABLED", false),

		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 60),

		BackupDir: getEnv("BACKUP_DIR", "/var/lib/authcore/backups"),
	}

	if cfg.JWTAlgorithm != "HS256" {
		if cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "" {
			return nil, ErrMissingSigningKey
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvStringSlice(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// DescribeError renders a config error with enough context for an
// operator to fix it, used by cmd/authserver before exiting non-zero.
func DescribeError(err error) string {
	return fmt.Sprintf("configuration error: %v", err)
}
