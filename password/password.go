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

// Package password hashes and verifies user and client-secret credentials.
//
// Purpose: Primary mechanism for secure credential storage and verification.
// Domain: Identity
// Invariants: Cost must be >= MinCost (10), enforced at construction time.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinCost is the minimum bcrypt cost this package will accept.
const MinCost = 10

// ErrCostTooLow is returned by NewHasher when the configured cost is weaker
// than MinCost.
var ErrCostTooLow = errors.New("password: bcrypt cost must be >= 10")

// Hasher hashes and verifies passwords using bcrypt.
type Hasher struct {
	cost int
}

// NewHasher creates a bcrypt-backed password hasher.
//
// Purpose: Constructor for the password hashing utility.
// Domain: Identity
// Audited: No
// Errors: ErrCostTooLow
func NewHasher(cost int) (*Hasher, error) {
	if cost < MinCost {
		return nil, ErrCostTooLow
	}
	return &Hasher{cost: cost}, nil
}

// Hash hashes a plaintext password.
//
// Purpose: Generates a cryptographically secure hash of a plaintext password.
// Domain: Identity
// Audited: No
// Errors: System errors (e.g., random generation failure)
func (h *Hasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(hash), nil
}

// Verify checks a plaintext password against a stored bcrypt hash.
//
// Purpose: Validates an incoming password against a stored hash.
// Domain: Identity
// Security: bcrypt.CompareHashAndPassword runs in constant time relative to
// the hash, preventing timing-based hash oracle attacks.
// Audited: No
// Errors: None — a mismatch and a malformed hash both return false.
func (h *Hasher) Verify(plaintext, encodedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(plaintext))
	return err == nil
}

// IsStrong reports whether a plaintext password meets the server's minimum
// strength policy. Kept intentionally simple; deployments that need a richer
// policy (breached-password lists, entropy scoring) should wrap this.
func IsStrong(plaintext string) bool {
	return len(plaintext) >= 8
}
