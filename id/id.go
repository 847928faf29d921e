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

// Package id generates the identifiers used as primary keys across the
// authorization server. Every entity in the data model is keyed by a
// UUIDv7 so identifiers sort roughly by creation time without leaking a
// counter.
package id

import "github.com/google/uuid"

// New returns a new UUIDv7 string. It falls back to a random UUIDv4 if the
// system clock cannot be read (uuid.NewV7 only fails on a broken clock
// source), so callers never need to handle an error here.
func New() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v7.String()
}

// NewToken returns a cryptographically random, URL-safe opaque token of the
// given byte length (before encoding). Used for authorization codes, session
// IDs — anywhere a bearer value (not a lookup key) is
// needed.
func NewToken(byteLen int) (string, error) {
	return newRandomToken(byteLen)
}
