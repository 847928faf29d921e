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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// jwksCacheTTL is the process-wide cache lifetime for a fetched client
// JWKS document.
const jwksCacheTTL = 5 * time.Minute

func jwksCacheKey(jwksURI string) string { return "authcore:jwks:" + jwksURI }

// RedisJWKSFetcher fetches and caches a client's published JWKS document in
// Redis, so a private_key_jwt-heavy workload doesn't re-fetch the same
// document on every token request.
type RedisJWKSFetcher struct {
	redis      *redis.Client
	httpClient *http.Client
}

// NewRedisJWKSFetcher constructs a JWKSFetcher backed by Redis, with a 5s
// HTTP client timeout for the underlying fetch.
func NewRedisJWKSFetcher(redisClient *redis.Client) *RedisJWKSFetcher {
	return &RedisJWKSFetcher{
		redis:      redisClient,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Fetch returns the JWKS for jwksURI, serving from cache when present.
func (f *RedisJWKSFetcher) Fetch(ctx context.Context, jwksURI string) (*JSONWebKeySet, error) {
	if cached, err := f.redis.Get(ctx, jwksCacheKey(jwksURI)).Result(); err == nil {
		var set JSONWebKeySet
		if json.Unmarshal([]byte(cached), &set) == nil {
			return &set, nil
		}
	}

	set, err := f.fetchRemote(ctx, jwksURI)
	if err != nil {
		return nil, err
	}

	if body, err := json.Marshal(set); err == nil {
		_ = f.redis.Set(ctx, jwksCacheKey(jwksURI), body, jwksCacheTTL).Err()
	}
	return set, nil
}

func (f *RedisJWKSFetcher) fetchRemote(ctx context.Context, jwksURI string) (*JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURI, nil)
	if err != nil {
		return nil, fmt.Errorf("clientauth: build jwks request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clientauth: fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clientauth: jwks endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("clientauth: read jwks body: %w", err)
	}

	var set JSONWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("clientauth: parse jwks: %w", err)
	}
	if len(set.Keys) == 0 {
		return nil, errors.New("clientauth: jwks document has no keys")
	}
	return &set, nil
}
