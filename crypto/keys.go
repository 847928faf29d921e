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

// Package crypto is the Crypto/Key Service: it holds the signing key
// material, signs and verifies JWS-encoded claim sets, and exports a JWK
// set for the /.well-known/jwks.json endpoint.
//
// Purpose: Custodian of signing key material; no private key ever leaves
// this package.
// Domain: OAuth2/OIDC
// Invariants: The current signing kid's private key is never serialized.
// Previous public keys remain servable for their grace window after
// rotation.
package crypto

import (
	"crypto/rsa"
	"errors"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// Algorithm identifies the signing algorithm a Manager is configured for.
type Algorithm string

const (
	// AlgRS256 is the default, production algorithm: asymmetric RSA-SHA256.
	AlgRS256 Algorithm = "RS256"
	// AlgHS256 is a symmetric algorithm permitted only for single-process
	// development. JWKS is always an empty set under HS256.
	AlgHS256 Algorithm = "HS256"
)

// ErrUnknownKID is returned by Verify when no key (current or retained)
// matches the kid in the token header.
var ErrUnknownKID = errors.New("crypto: unknown key id")

// keyEntry is one RSA keypair tagged with a kid and the time after which the
// next rotation drops it from the JWKS (rotation time + GraceWindow). The
// retention does not depend on the lifetime of the tokens the key signed.
type keyEntry struct {
	kid      string
	private  *rsa.PrivateKey
	public   *rsa.PublicKey
	retireAt time.Time // zero for the current signing key
}

// GraceWindow is how long a retired public key is still served in the JWKS
// after a newer key becomes the signing key.
const GraceWindow = 24 * time.Hour

// Manager is the Crypto/Key Service. It is the one process-wide singleton,
// alongside the Client Authenticator and Rate Limiter.
type Manager struct {
	mu        sync.RWMutex
	algorithm Algorithm
	hmacKey   []byte // only set under AlgHS256
	signingID string
	keys      map[string]*keyEntry
}

// NewRS256Manager constructs a Manager whose current signing key is the
// given RSA keypair tagged with kid.
func NewRS256Manager(kid string, priv *rsa.PrivateKey) *Manager {
	m := &Manager{
		algorithm: AlgRS256,
		signingID: kid,
		keys:      map[string]*keyEntry{},
	}
	m.keys[kid] = &keyEntry{kid: kid, private: priv, public: &priv.PublicKey}
	return m
}

// NewHS256Manager constructs a dev-only Manager backed by a shared secret.
// Its JWKS is always empty.
func NewHS256Manager(secret []byte) *Manager {
	return &Manager{algorithm: AlgHS256, hmacKey: secret, keys: map[string]*keyEntry{}}
}

// Algorithm reports the Manager's configured signing algorithm.
func (m *Manager) Algorithm() Algorithm {
	return m.algorithm
}

// SigningKeyID returns the kid currently used to sign new tokens. Empty
// under HS256.
func (m *Manager) SigningKeyID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.signingID
}

// Rotate introduces a new RSA signing key, retiring the previous signing
// key's public half to the JWKS for GraceWindow. No-op (returns an error)
// under HS256 — there is nothing to rotate.
//
// Purpose: Key rotation without invalidating tokens already issued under
// the previous key.
// Domain: OAuth2/OIDC
// Audited: Yes (callers should emit an audit event; this package has no
// audit dependency to avoid an import cycle).
// Errors: returns an error if called on an HS256 Manager.
func (m *Manager) Rotate(newKID string, priv *rsa.PrivateKey) error {
	if m.algorithm != AlgRS256 {
		return errors.New("crypto: rotate is only supported for RS256 managers")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.keys[m.signingID]; ok {
		prev.retireAt = time.Now().Add(GraceWindow)
	}
	m.keys[newKID] = &keyEntry{kid: newKID, private: priv, public: &priv.PublicKey}
	m.signingID = newKID
	m.sweepLocked()
	return nil
}

func (m *Manager) sweepLocked() {
	now := time.Now()
	for kid, e := range m.keys {
		if kid == m.signingID {
			continue
		}
		if !e.retireAt.IsZero() && now.After(e.retireAt) {
			delete(m.keys, kid)
		}
	}
}

// Sign produces a compact JWS for the given claims, using the current
// signing key.
func (m *Manager) Sign(claims jwt.Claims) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch m.algorithm {
	case AlgHS256:
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		return tok.SignedString(m.hmacKey)
	default:
		entry, ok := m.keys[m.signingID]
		if !ok {
			return "", errors.New("crypto: no signing key configured")
		}
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = entry.kid
		return tok.SignedString(entry.private)
	}
}

// Verify parses and validates a JWS, returning the populated claims and the
// kid that signed it (empty under HS256).
func (m *Manager) Verify(raw string, claims jwt.Claims) (string, error) {
	var kidUsed string
	_, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		switch m.algorithm {
		case AlgHS256:
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("crypto: unexpected signing method")
			}
			return m.hmacKey, nil
		default:
			if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, errors.New("crypto: unexpected signing method")
			}
			kid, _ := tok.Header["kid"].(string)
			kidUsed = kid
			m.mu.RLock()
			entry, ok := m.keys[kid]
			m.mu.RUnlock()
			if !ok {
				return nil, ErrUnknownKID
			}
			return entry.public, nil
		}
	})
	if err != nil {
		return "", err
	}
	return kidUsed, nil
}

// PublicJWKS renders the set of servable public keys as a JWK set. Under
// HS256 this is always empty.
func (m *Manager) PublicJWKS() jose.JSONWebKeySet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := jose.JSONWebKeySet{}
	if m.algorithm != AlgRS256 {
		return set
	}
	for kid, e := range m.keys {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       e.public,
			KeyID:     kid,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		})
	}
	return set
}
