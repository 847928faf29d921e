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

package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func blacklistKey(jti string) string { return "authcore:blacklist:" + jti }

// RedisBlacklist implements Blacklist using Redis key TTLs: a blacklisted
// jti is a key whose value is the token type and whose expiry is the
// token's remaining lifetime, so Redis itself reclaims the entry once the
// token would have expired naturally anyway.
type RedisBlacklist struct {
	client *redis.Client
}

// NewRedisBlacklist creates a new Redis-backed blacklist.
func NewRedisBlacklist(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

// Add records jti as blacklisted for ttl.
func (b *RedisBlacklist) Add(ctx context.Context, jti string, tokenType TokenType, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := b.client.Set(ctx, blacklistKey(jti), string(tokenType), ttl).Err(); err != nil {
		return fmt.Errorf("revocation: blacklist add: %w", err)
	}
	return nil
}

// Contains reports whether jti is currently blacklisted.
func (b *RedisBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	err := b.client.Get(ctx, blacklistKey(jti)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("revocation: blacklist lookup: %w", err)
	}
}
