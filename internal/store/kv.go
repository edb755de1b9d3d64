// Package store persists small JSON records under fixed keys.
package store

import (
	"context"
	"fmt"

	"github.com/park285/checkmate-ai/internal/config"
)

// KV is a minimal key-value store. Get returns (nil, nil) when key is absent.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Update replaces the value of key with fn(current) atomically with respect
	// to other Update calls. current is nil when key is absent; an error from fn
	// leaves the stored value untouched.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
	Close() error
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.Store) (KV, error) {
	switch cfg.Backend {
	case "", config.StoreMemory:
		return NewMemory(), nil
	case config.StoreRedis:
		return NewRedis(ctx, cfg.RedisURL, cfg.RedisPrefix)
	case config.StorePostgres:
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
