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

package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func genKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return priv
}

func TestRS256SignAndVerifyRoundTrip(t *testing.T) {
	m := NewRS256Manager("kid-1", genKey(t))

	claims := jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	token, err := m.Sign(claims)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var out jwt.RegisteredClaims
	kid, err := m.Verify(token, &out)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if kid != "kid-1" {
		t.Errorf("expected kid-1, got %q", kid)
	}
	if out.Subject != "user-1" {
		t.Errorf("expected subject user-1, got %q", out.Subject)
	}
}

func TestHS256SignAndVerifyRoundTrip(t *testing.T) {
	m := NewHS256Manager([]byte("a-shared-secret"))

	claims := jwt.RegisteredClaims{Subject: "user-2"}
	token, err := m.Sign(claims)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var out jwt.RegisteredClaims
	if _, err := m.Verify(token, &out); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Subject != "user-2" {
		t.Errorf("expected subject user-2, got %q", out.Subject)
	}
}

func TestVerifyRejectsUnknownKID(t *testing.T) {
	signer := NewRS256Manager("kid-a", genKey(t))
	verifier := NewRS256Manager("kid-b", genKey(t))

	token, err := signer.Sign(jwt.RegisteredClaims{Subject: "user-3"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var out jwt.RegisteredClaims
	if _, err := verifier.Verify(token, &out); err == nil {
		t.Fatal("expected verification to fail against a manager with a different key")
	}
}

func TestRotateRetainsPreviousKeyDuringGraceWindow(t *testing.T) {
	m := NewRS256Manager("kid-1", genKey(t))

	token, err := m.Sign(jwt.RegisteredClaims{Subject: "user-4"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := m.Rotate("kid-2", genKey(t)); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if m.SigningKeyID() != "kid-2" {
		t.Fatalf("expected signing key id kid-2 after rotate, got %q", m.SigningKeyID())
	}

	var out jwt.RegisteredClaims
	if _, err := m.Verify(token, &out); err != nil {
		t.Fatalf("expected token signed under retired key kid-1 to still verify, got: %v", err)
	}

	jwks := m.PublicJWKS()
	if len(jwks.Keys) != 2 {
		t.Fatalf("expected both keys in jwks during grace window, got %d", len(jwks.Keys))
	}
}

func TestRotateRejectedUnderHS256(t *testing.T) {
	m := NewHS256Manager([]byte("secret"))
	if err := m.Rotate("kid-x", genKey(t)); err == nil {
		t.Fatal("expected rotate to fail under HS256")
	}
}

func TestPublicJWKSEmptyUnderHS256(t *testing.T) {
	m := NewHS256Manager([]byte("secret"))
	jwks := m.PublicJWKS()
	if len(jwks.Keys) != 0 {
		t.Fatalf("expected empty jwks under HS256, got %d keys", len(jwks.Keys))
	}
}
