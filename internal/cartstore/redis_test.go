package cartstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cart-engine/internal/cart"
	"github.com/noah-isme/cart-engine/internal/cartstore"
	"github.com/noah-isme/cart-engine/internal/money"
)

func newTestStore(t *testing.T) (cartstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cartstore.Store{R: client, TTL: time.Hour}, mr
}

func TestRedisStoreMissingSnapshot(t *testing.T) {
	store, _ := newTestStore(t)
	_, found, err := store.Load(context.Background(), "absent")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	// Build real cart state and persist through the aggregate.
	c := cart.New("default", cart.InstanceConfig{Currency: "GBP", TaxBps: 2000}, store, nil, zerolog.Nop())
	item, err := c.Add(ctx, cart.ItemSpec{
		ID:      "sku-1",
		Name:    "Teapot",
		Qty:     2,
		Price:   money.New(1000, "GBP"),
		Options: cart.Options{"color": "red"},
		Meta:    cart.Meta{"gift": true},
	})
	require.NoError(t, err)
	delivery, err := cart.NewAdjustment(cart.AdjustmentAttributes{
		Name: "delivery", Type: "delivery", Value: moneyPtr(money.New(500, "GBP")),
	})
	require.NoError(t, err)
	require.NoError(t, c.AddAdjustment(ctx, delivery))

	// A fresh aggregate over the same store sees identical state.
	reloaded := cart.New("default", cart.InstanceConfig{Currency: "GBP", TaxBps: 2000}, store, nil, zerolog.Nop())
	items, err := reloaded.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, item.RowID(), items[0].RowID())
	require.Equal(t, 2, items[0].Quantity())
	require.Equal(t, "red", items[0].Options().Get("color"))

	grand, err := reloaded.GrandTotal(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2900), grand.Amount())
}

func TestRedisStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Save(ctx, "default", cart.Snapshot{Currency: "GBP"}))
	_, found, err := store.Load(ctx, "default")
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, store.Delete(ctx, "default"))
	_, found, err = store.Load(ctx, "default")
	require.NoError(t, err)
	require.False(t, found)

	// Deleting an absent cart stays a no-op.
	require.NoError(t, store.Delete(ctx, "default"))
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	require.NoError(t, store.Save(ctx, "default", cart.Snapshot{Currency: "GBP"}))
	mr.FastForward(2 * time.Hour)

	_, found, err := store.Load(ctx, "default")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := cartstore.NewMemory()

	snap := cart.Snapshot{Currency: "GBP"}
	require.NoError(t, store.Save(ctx, "default", snap))

	loaded, found, err := store.Load(ctx, "default")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "GBP", loaded.Currency)

	require.NoError(t, store.Delete(ctx, "default"))
	_, found, err = store.Load(ctx, "default")
	require.NoError(t, err)
	require.False(t, found)
}

func moneyPtr(m money.Money) *money.Money { return &m }
