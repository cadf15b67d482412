// Package cache stores derived values under named scopes so that a write to
// one resource can drop everything computed from it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrMiss = errors.New("cache miss")

// Store is a string key/value store with prefix deletion.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
}

// Cache namespaces keys as <namespace>:<scope>:<key>.
type Cache struct {
	store     Store
	namespace string
}

func New(store Store, namespace string) *Cache {
	if namespace == "" {
		namespace = "hms"
	}
	return &Cache{store: store, namespace: namespace}
}

func (c *Cache) key(scope, key string) string {
	return c.namespace + ":" + scope + ":" + key
}

// GetJSON decodes the cached value into dst. It returns ErrMiss when the
// key is absent.
func (c *Cache) GetJSON(ctx context.Context, scope, key string, dst interface{}) error {
	raw, err := c.store.Get(ctx, c.key(scope, key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode cached %s/%s: %w", scope, key, err)
	}
	return nil
}

// SetJSON stores v encoded as JSON.
func (c *Cache) SetJSON(ctx context.Context, scope, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", scope, key, err)
	}
	return c.store.Set(ctx, c.key(scope, key), string(raw), ttl)
}

// Invalidate drops every key in the given scopes.
func (c *Cache) Invalidate(ctx context.Context, scopes ...string) error {
	var errs []error
	for _, scope := range scopes {
		if _, err := c.store.DeletePrefix(ctx, c.namespace+":"+scope+":"); err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s: %w", scope, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}
