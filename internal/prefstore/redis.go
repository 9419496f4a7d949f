/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package prefstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis client methods used by Redis.
// Keeping it as an interface enables substitution in tests.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Close() error
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// Redis keeps each user's preferences in one hash at <prefix>prefs:<user>.
type Redis struct {
	client RedisClient
	prefix string
}

// NewRedis connects and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts := &redis.Options{Addr: cfg.Address, DB: cfg.DB}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("prefstore: redis ping %s: %w", cfg.Address, err)
	}
	return NewRedisWithClient(client, cfg.Prefix), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client RedisClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (s *Redis) hashKey(userID string) string { return s.prefix + "prefs:" + userID }

func (s *Redis) Get(ctx context.Context, userID, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.hashKey(userID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Redis) Set(ctx context.Context, userID, key, value string) error {
	return s.client.HSet(ctx, s.hashKey(userID), key, value).Err()
}

// Ping checks that the server is reachable.
func (s *Redis) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

// Close releases the underlying client.
func (s *Redis) Close() error { return s.client.Close() }
