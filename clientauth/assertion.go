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

package clientauth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// JSONWebKeySet is the parsed JWKS document fetched from a client's
// jwks_uri.
type JSONWebKeySet = jose.JSONWebKeySet

func decodeUnverifiedClaims(segment string) (jwt.MapClaims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("clientauth: decode assertion claims: %w", err)
	}
	var claims jwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("clientauth: unmarshal assertion claims: %w", err)
	}
	return claims, nil
}

// verifyClientAssertion verifies a private_key_jwt client assertion
// against the client's published JWKS: iss=sub=client_id, aud=token
// endpoint URL, unexpired, signed with RS256/ES256/PS256. It returns the
// assertion's jti for replay-protection bookkeeping.
func verifyClientAssertion(assertion string, keys *JSONWebKeySet, expectedClientID, expectedAudience string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(assertion, &claims, func(tok *jwt.Token) (any, error) {
		switch tok.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA, *jwt.SigningMethodRSAPSS:
		default:
			return nil, errors.New("clientauth: unsupported assertion signing method")
		}
		kid, _ := tok.Header["kid"].(string)
		for _, k := range keys.Keys {
			if kid == "" || k.KeyID == kid {
				return k.Key, nil
			}
		}
		return nil, errors.New("clientauth: no matching key in client JWKS")
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("clientauth: verify assertion: %w", err)
	}

	if claims.Issuer != expectedClientID || claims.Subject != expectedClientID {
		return "", errors.New("clientauth: assertion iss/sub must equal client_id")
	}
	if !containsAudience(claims.Audience, expectedAudience) {
		return "", errors.New("clientauth: assertion aud mismatch")
	}
	return claims.ID, nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
