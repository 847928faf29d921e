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

package id

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestNewReturnsUniqueIDs(t *testing.T) {
	a := New()
	b := New()
	if a == "" || b == "" {
		t.Fatal("expected non-empty IDs")
	}
	if a == b {
		t.Fatal("expected distinct IDs across calls")
	}
}

func TestNewIsRoughlyTimeOrdered(t *testing.T) {
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = New()
	}
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] < sorted[i-1] {
			t.Fatalf("expected UUIDv7s to sort lexicographically by generation order, got %v", sorted)
		}
	}
}

func TestNewTokenProducesURLSafeOutputOfExpectedLength(t *testing.T) {
	tok, err := NewToken(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.ContainsAny(tok, "+/=") {
		t.Errorf("expected URL-safe unpadded base64, got %q", tok)
	}
	decoded, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		t.Fatalf("failed to decode token: %v", err)
	}
	if len(decoded) != 32 {
		t.Errorf("expected 32 decoded bytes, got %d", len(decoded))
	}
}

func TestNewTokenProducesDistinctValues(t *testing.T) {
	a, err := NewToken(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewToken(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct random tokens")
	}
}
