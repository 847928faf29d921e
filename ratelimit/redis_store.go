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
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func storeKey(key string) string { return "authcore:ratelimit:" + key }

// RedisStore implements Store as a sliding window over a Redis sorted set:
// each attempt adds a member scored by its own timestamp, members outside
// the window are trimmed first, and the remaining cardinality is the
// count within the last `window` of wall-clock time.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed sliding-window Store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Allow implements Store.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	member := fmt.Sprintf("%d-%s", now.UnixNano(), key)
	k := storeKey(key)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	card := pipe.ZCard(ctx, k)
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("ratelimit: redis pipeline: %w", err)
	}

	count := card.Val()
	if count >= int64(limit) {
		// The attempt just recorded above pushed the set over budget;
		// remove it so a denied attempt doesn't itself consume quota.
		_ = s.client.ZRem(ctx, k, member).Err()
		oldest, err := s.client.ZRangeWithScores(ctx, k, 0, 0).Result()
		if err != nil || len(oldest) == 0 {
			return false, window, nil
		}
		retryAfter := time.Duration(int64(oldest[0].Score)-windowStart.UnixNano()) * time.Nanosecond
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}

	return true, 0, nil
}
