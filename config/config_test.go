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

package config

import (
	"errors"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"JWT_ALGORITHM", "JWT_PRIVATE_KEY_PEM", "JWT_PUBLIC_KEY_PEM", "JWT_KEY_ID",
		"JWT_ISSUER", "JWT_AUDIENCE", "ACCESS_TOKEN_LIFETIME", "REFRESH_TOKEN_LIFETIME",
		"ID_TOKEN_LIFETIME", "AUTH_CODE_LIFETIME", "DATABASE_URL", "LISTEN_ADDR",
		"REQUEST_TIMEOUT", "CORS_ORIGINS", "SHUTDOWN_TIMEOUT", "REDIS_ADDR",
		"REDIS_PASSWORD", "REDIS_DB", "BCRYPT_COST", "LOCKOUT_MAX_ATTEMPTS",
		"LOCKOUT_DURATION", "REGISTRATION_ENABLED", "RATE_LIMIT_WINDOW",
		"RATE_LIMIT_MAX", "BACKUP_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultsUseRS256AndRequireKeys(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); !errors.Is(err, ErrMissingSigningKey) {
		t.Fatalf("expected ErrMissingSigningKey for default RS256 without keys, got %v", err)
	}
}

func TestLoadHS256DoesNotRequireKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_ALGORITHM", "HS256")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.JWTAlgorithm != "HS256" {
		t.Errorf("expected HS256, got %q", cfg.JWTAlgorithm)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_ALGORITHM", "HS256")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AccessTokenTTL != time.Hour {
		t.Errorf("expected default access token ttl of 1h, got %v", cfg.AccessTokenTTL)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected default listen addr :8080, got %q", cfg.ListenAddr)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("expected default CORS origins [*], got %v", cfg.CORSOrigins)
	}
	if cfg.RateLimitMax != 60 {
		t.Errorf("expected default rate limit max 60, got %d", cfg.RateLimitMax)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_ALGORITHM", "HS256")
	t.Setenv("ACCESS_TOKEN_LIFETIME", "5m")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("REGISTRATION_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Errorf("expected 5m access token ttl, got %v", cfg.AccessTokenTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example.com" {
		t.Errorf("expected parsed CORS origins, got %v", cfg.CORSOrigins)
	}
	if !cfg.RegistrationEnabled {
		t.Error("expected registration enabled true")
	}
	if cfg.RedisDB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.RedisDB)
	}
}

func TestLoadFallsBackOnUnparsableOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_ALGORITHM", "HS256")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("expected fallback redis db 0 for unparsable override, got %d", cfg.RedisDB)
	}
}

func TestDescribeError(t *testing.T) {
	msg := DescribeError(ErrMissingSigningKey)
	if msg == "" {
		t.Fatal("expected non-empty description")
	}
}
