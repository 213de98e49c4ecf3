package storage

import (
	"context"
	"errors"
	"fmt"

	"skill_persistence/src/model"
)

// ErrUnknownBackend is returned by New for unsupported backend names
var ErrUnknownBackend = errors.New("unknown persistence backend")

// New builds the AttributeStore selected by cfg.Backend
func New(ctx context.Context, cfg model.PersistenceConfig) (AttributeStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		store, err := NewRedisStore(ctx, RedisOptions{
			URL:     cfg.RedisURL,
			Prefix:  cfg.PathPrefix,
			TTL:     cfg.RedisTTL,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "file":
		store, err := NewFileStore(cfg.Bucket, cfg.PathPrefix, cfg.AutoCreate)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		store, err := NewS3Store(ctx, S3Options{
			Bucket:     cfg.Bucket,
			PathPrefix: cfg.PathPrefix,
			Region:     cfg.Region,
			Endpoint:   cfg.Endpoint,
			AutoCreate: cfg.AutoCreate,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
