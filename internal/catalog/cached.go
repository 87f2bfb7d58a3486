package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/cart-engine/internal/cart"
)

// Cached wraps a Source with a Redis read-through cache. Lookups that miss
// fall through to Next and populate the cache on success. Not-found results
// are not cached.
type Cached struct {
	Next   Source
	Client *redis.Client
	TTL    time.Duration
}

// Product implements Source.
func (c Cached) Product(ctx context.Context, id string, options cart.Options) (Product, error) {
	key := cacheKey(id)
	if cached, ok := c.get(ctx, key); ok {
		return cached, nil
	}
	product, err := c.Next.Product(ctx, id, options)
	if err != nil {
		return Product{}, err
	}
	c.set(ctx, key, product)
	return product, nil
}

func cacheKey(id string) string {
	return "catalog:product:" + id
}

func (c Cached) get(ctx context.Context, key string) (Product, bool) {
	if c.Client == nil {
		return Product{}, false
	}
	data, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		return Product{}, false
	}
	var product Product
	if err := json.Unmarshal(data, &product); err != nil {
		return Product{}, false
	}
	return product, true
}

func (c Cached) set(ctx context.Context, key string, product Product) {
	if c.Client == nil {
		return
	}
	data, err := json.Marshal(product)
	if err != nil {
		return
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	_ = c.Client.Set(ctx, key, data, ttl).Err()
}
