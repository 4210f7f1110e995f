// Package redis implements asto.Storage on top of Redis. Each value is a hash
// holding the payload and its update time, so a single HSET publishes both
// atomically. Suitable for small metadata blobs shared by several instances.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/artipie/artipie/internal/asto"
)

const (
	// DefaultPrefix namespaces artipie keys inside a shared Redis database.
	DefaultPrefix = "artipie:"

	fieldData    = "data"
	fieldUpdated = "updated"
	scanCount    = 256
)

// Config holds Redis connection configuration.
type Config struct {
	// URL is the Redis connection URL (e.g. "redis://:password@host:6379/0").
	URL string

	// Prefix is prepended to every key (defaults to "artipie:").
	Prefix string
}

// Storage implements asto.Storage using Redis hashes.
type Storage struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New connects to Redis and verifies the connection with PING.
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, prefix string) *Storage {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Storage{client: client, prefix: prefix, now: time.Now}
}

func (s *Storage) redisKey(key asto.Key) string {
	return s.prefix + key.String()
}

func (s *Storage) Exists(ctx context.Context, key asto.Key) (bool, error) {
	if key.IsRoot() {
		return false, nil
	}
	n, err := s.client.Exists(ctx, s.redisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *Storage) Value(ctx context.Context, key asto.Key) (asto.Content, error) {
	if err := asto.CheckValueKey(key); err != nil {
		return nil, err
	}
	data, err := s.client.HGet(ctx, s.redisKey(key), fieldData).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, asto.NotFoundError(key)
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return asto.FromBytes(data), nil
}

func (s *Storage) Save(ctx context.Context, key asto.Key, content asto.Content) error {
	if err := asto.CheckValueKey(key); err != nil {
		return err
	}
	data, err := asto.ReadAll(content)
	if err != nil {
		return err
	}
	updated := s.now().UTC().UnixNano()
	err = s.client.HSet(ctx, s.redisKey(key),
		fieldData, data,
		fieldUpdated, strconv.FormatInt(updated, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("redis save %s: %w", key, err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, key asto.Key) error {
	if err := asto.CheckValueKey(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

func (s *Storage) Metadata(ctx context.Context, key asto.Key) (asto.Meta, error) {
	if err := asto.CheckValueKey(key); err != nil {
		return asto.Meta{}, err
	}
	rkey := s.redisKey(key)

	pipe := s.client.Pipeline()
	sizeCmd := pipe.HStrLen(ctx, rkey, fieldData)
	updatedCmd := pipe.HGet(ctx, rkey, fieldUpdated)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return asto.Meta{}, fmt.Errorf("redis metadata %s: %w", key, err)
	}

	raw, err := updatedCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return asto.Meta{}, asto.NotFoundError(key)
		}
		return asto.Meta{}, fmt.Errorf("redis metadata %s: %w", key, err)
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return asto.Meta{}, fmt.Errorf("redis metadata %s: invalid update time %q", key, raw)
	}
	return asto.Meta{
		Size:    sizeCmd.Val(),
		Updated: time.Unix(0, nanos).UTC(),
	}, nil
}

func (s *Storage) List(ctx context.Context, prefix asto.Key) ([]asto.Key, error) {
	pattern := escapeGlob(s.prefix) + "*"
	if !prefix.IsRoot() {
		pattern = escapeGlob(s.redisKey(prefix)) + "*"
	}

	var keys []asto.Key
	iter := s.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		key := asto.NewKey(strings.TrimPrefix(iter.Val(), s.prefix))
		if key.HasPrefix(prefix) {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis list %s: %w", prefix, err)
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys, nil
}

// Close closes the Redis connection.
func (s *Storage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
