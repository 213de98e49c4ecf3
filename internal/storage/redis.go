package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const attributesPrefix = "attributes:"

// RedisStore implements AttributeStore using Redis strings holding JSON records
type RedisStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

// RedisOptions configures a RedisStore
type RedisOptions struct {
	URL string
	// Prefix namespaces keys; empty uses "attributes:"
	Prefix string
	// TTL expires records; zero keeps them forever
	TTL     time.Duration
	Timeout time.Duration
}

// NewRedisStore parses opts.URL, connects and pings the server
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(redisOpts)

	store := NewRedisStoreFromClient(client, opts)

	// Test connection
	if err := store.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return store, nil
}

// NewRedisStoreFromClient wraps an existing client without pinging it
func NewRedisStoreFromClient(client *redis.Client, opts RedisOptions) *RedisStore {
	prefix := attributesPrefix
	if opts.Prefix != "" {
		prefix = opts.Prefix + ":"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		ttl:     opts.TTL,
		timeout: timeout,
	}
}

// key generates a Redis key for the given partition key
func (r *RedisStore) key(partitionKey string) string {
	return r.prefix + partitionKey
}

// Get retrieves a record from Redis
func (r *RedisStore) Get(ctx context.Context, key string) (Attributes, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get attributes: %w", err)
	}

	attributes, err := DecodeRecord(data)
	if err != nil {
		return nil, false, err
	}
	return attributes, true, nil
}

// Put stores a record, applying the configured TTL
func (r *RedisStore) Put(ctx context.Context, key string, attributes Attributes) error {
	if err := checkKey(key); err != nil {
		return err
	}

	data, err := EncodeRecord(attributes)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set attributes: %w", err)
	}
	return nil
}

// Delete removes a record from Redis
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete attributes: %w", err)
	}
	return nil
}

// GetTTL gets remaining TTL for a record
func (r *RedisStore) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, r.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get TTL: %w", err)
	}
	return ttl, nil
}

// Ping tests Redis connection
func (r *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
