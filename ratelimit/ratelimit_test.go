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

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type erroringStore struct{}

func (erroringStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	return false, 0, errors.New("store unavailable")
}

func TestMemoryStoreAllowsWithinLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := store.Allow(ctx, "k1", 3, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Fatalf("expected attempt %d to be allowed", i)
		}
	}

	allowed, retryAfter, err := store.Allow(ctx, "k1", 3, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatal("expected the 4th attempt to be denied")
	}
	if retryAfter <= 0 {
		t.Fatal("expected a positive retry-after when denied")
	}
}

func TestMemoryStoreResetsAfterWindow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if allowed, _, _ := store.Allow(ctx, "k2", 1, 10*time.Millisecond); !allowed {
		t.Fatal("expected first attempt to be allowed")
	}
	if allowed, _, _ := store.Allow(ctx, "k2", 1, 10*time.Millisecond); allowed {
		t.Fatal("expected second attempt within the window to be denied")
	}

	time.Sleep(20 * time.Millisecond)

	if allowed, _, _ := store.Allow(ctx, "k2", 1, 10*time.Millisecond); !allowed {
		t.Fatal("expected a fresh window to allow again")
	}
}

func TestMemoryStoreSweepRemovesExpiredWindows(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Allow(ctx, "k3", 1, time.Nanosecond)
	time.Sleep(time.Millisecond)

	store.Sweep()

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.windows["k3"]; ok {
		t.Fatal("expected expired window to be swept")
	}
}

func TestLimiterFallsBackWhenPrimaryErrors(t *testing.T) {
	l := NewLimiter(erroringStore{}, NewMemoryStore(), map[string]Rule{
		"login": {Limit: 1, Window: time.Minute},
	})

	d := l.Check(context.Background(), "login", "ip|client|user")
	if !d.Allowed {
		t.Fatal("expected the fallback store to allow the first attempt")
	}

	d2 := l.Check(context.Background(), "login", "ip|client|user")
	if d2.Allowed {
		t.Fatal("expected the fallback store to deny the second attempt")
	}
}

func TestLimiterUnknownRuleAlwaysAllows(t *testing.T) {
	l := NewLimiter(erroringStore{}, nil, map[string]Rule{})
	d := l.Check(context.Background(), "unregistered", "some-key")
	if !d.Allowed {
		t.Fatal("expected an unregistered rule to always allow")
	}
}

func TestLimiterWithNoFallbackPropagatesOpenOnError(t *testing.T) {
	l := NewLimiter(erroringStore{}, nil, map[string]Rule{
		"login": {Limit: 1, Window: time.Minute},
	})
	d := l.Check(context.Background(), "login", "k")
	if !d.Allowed {
		t.Fatal("expected a nil fallback to fail open rather than block traffic")
	}
}

func TestKeyComposesPartsPositionally(t *testing.T) {
	if got, want := Key("1.2.3.4", "client-a", "user-1"), "1.2.3.4|client-a|user-1"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := Key("1.2.3.4", "", ""), "1.2.3.4||"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
