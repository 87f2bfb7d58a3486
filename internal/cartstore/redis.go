// Package cartstore provides Storage implementations for cart snapshots.
package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/cart-engine/internal/cart"
)

// DefaultTTL is applied when a store is configured without one. Carts are
// session-scoped; stale ones expire on their own.
const DefaultTTL = 7 * 24 * time.Hour

// Store persists cart snapshots in Redis as JSON blobs, one key per cart
// instance name.
type Store struct {
	R      *redis.Client
	Prefix string
	TTL    time.Duration
}

func (s Store) key(name string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "cart:"
	}
	return prefix + name
}

func (s Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultTTL
	}
	return s.TTL
}

// Load fetches the snapshot for the named cart. A missing key is reported
// via the boolean, not as an error.
func (s Store) Load(ctx context.Context, name string) (cart.Snapshot, bool, error) {
	if s.R == nil {
		return cart.Snapshot{}, false, errors.New("cartstore: redis client not configured")
	}
	data, err := s.R.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cart.Snapshot{}, false, nil
		}
		return cart.Snapshot{}, false, fmt.Errorf("cartstore: get %s: %w", name, err)
	}
	var snap cart.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return cart.Snapshot{}, false, fmt.Errorf("cartstore: decode %s: %w", name, err)
	}
	return snap, true, nil
}

// Save writes the snapshot and refreshes the TTL.
func (s Store) Save(ctx context.Context, name string, snap cart.Snapshot) error {
	if s.R == nil {
		return errors.New("cartstore: redis client not configured")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cartstore: encode %s: %w", name, err)
	}
	if err := s.R.Set(ctx, s.key(name), data, s.ttl()).Err(); err != nil {
		return fmt.Errorf("cartstore: set %s: %w", name, err)
	}
	return nil
}

// Delete removes the stored snapshot. Deleting an absent cart is a no-op.
func (s Store) Delete(ctx context.Context, name string) error {
	if s.R == nil {
		return errors.New("cartstore: redis client not configured")
	}
	if err := s.R.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("cartstore: del %s: %w", name, err)
	}
	return nil
}
