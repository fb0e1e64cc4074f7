// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisKV.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces keys, e.g. "chatstore:"
	KeyPrefix string
}

// RedisKV stores values as Redis strings.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV connects to Redis and verifies the connection with PING.
func NewRedisKV(ctx context.Context, opts RedisOptions) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s", opts.Addr)
	}
	return &RedisKV{client: client, prefix: opts.KeyPrefix}, nil
}

// NewRedisKVFromClient wraps an existing client.
func NewRedisKVFromClient(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

// Get implements KV.
func (s *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return value, nil
}

// Set implements KV.
func (s *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

// Delete implements KV.
func (s *RedisKV) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Wrapf(err, "redis del %s", key)
	}
	return nil
}

// Close implements KV.
func (s *RedisKV) Close() error {
	return s.client.Close()
}
