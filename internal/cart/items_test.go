package cart

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cart-engine/internal/money"
)

func mustItem(t *testing.T, id string, qty int, options Options) *Item {
	t.Helper()
	item, err := NewItem(id, "Item "+id, money.New(1000, "GBP"), options, nil)
	require.NoError(t, err)
	require.NoError(t, item.SetQuantity(qty))
	return item
}

func rowIDs(c *ItemCollection) []string {
	ids := make([]string, 0, c.Len())
	for _, it := range c.Items() {
		ids = append(ids, it.RowID())
	}
	return ids
}

func TestAddMergesSameRowID(t *testing.T) {
	col := NewItemCollection()
	col.Add(mustItem(t, "sku-1", 2, Options{"color": "red"}))
	stored := col.Add(mustItem(t, "sku-1", 3, Options{"color": "red"}))

	require.Equal(t, 1, col.Len())
	require.Equal(t, 5, stored.Quantity())
	require.Equal(t, 5, col.Count())
}

func TestAddMergesRegardlessOfOptionOrder(t *testing.T) {
	col := NewItemCollection()
	col.Add(mustItem(t, "sku-1", 1, Options{"color": "red", "size": "m"}))
	col.Add(mustItem(t, "sku-1", 1, Options{"size": "m", "color": "red"}))
	require.Equal(t, 1, col.Len())
	require.Equal(t, 2, col.Count())
}

func TestAddPreservesInsertionOrder(t *testing.T) {
	col := NewItemCollection()
	first := col.Add(mustItem(t, "sku-1", 1, nil))
	second := col.Add(mustItem(t, "sku-2", 1, nil))
	third := col.Add(mustItem(t, "sku-3", 1, nil))

	// A merge keeps the original row's position.
	col.Add(mustItem(t, "sku-1", 4, nil))
	require.Equal(t, []string{first.RowID(), second.RowID(), third.RowID()}, rowIDs(col))
}

func TestGetAndRemove(t *testing.T) {
	col := NewItemCollection()
	item := col.Add(mustItem(t, "sku-1", 1, nil))

	got, err := col.Get(item.RowID())
	require.NoError(t, err)
	require.Same(t, item, got)

	_, err = col.Get("missing")
	require.ErrorIs(t, err, ErrItemNotFound)

	require.NoError(t, col.Remove(item.RowID()))
	require.ErrorIs(t, col.Remove(item.RowID()), ErrItemNotFound)
	require.Zero(t, col.Len())
}

func TestUpdateQuantityZeroRemovesRow(t *testing.T) {
	col := NewItemCollection()
	item := col.Add(mustItem(t, "sku-1", 2, nil))

	_, removed, err := col.Update(item.RowID(), func(it *Item) error {
		it.qty = 0
		return nil
	})
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, col.Has(item.RowID()))

	// The collection never holds quantity <= 0.
	for _, it := range col.Items() {
		require.Positive(t, it.Quantity())
	}
}

func TestUpdateRekeysOnOptionsChange(t *testing.T) {
	col := NewItemCollection()
	item := col.Add(mustItem(t, "sku-1", 2, Options{"color": "red"}))
	oldRow := item.RowID()

	opts := Options{"color": "blue"}
	updated, removed, err := col.Update(oldRow, func(it *Item) error {
		it.ApplyPatch(ItemPatch{Options: &opts})
		return nil
	})
	require.NoError(t, err)
	require.False(t, removed)
	require.False(t, col.Has(oldRow))
	require.True(t, col.Has(updated.RowID()))
	require.Equal(t, RowID("sku-1", opts), updated.RowID())
}

func TestUpdateRekeyMergesWithOccupant(t *testing.T) {
	col := NewItemCollection()
	red := col.Add(mustItem(t, "sku-1", 2, Options{"color": "red"}))
	blue := col.Add(mustItem(t, "sku-1", 3, Options{"color": "blue"}))

	// Recolor blue to red: quantities merge into the red row.
	opts := Options{"color": "red"}
	merged, removed, err := col.Update(blue.RowID(), func(it *Item) error {
		it.ApplyPatch(ItemPatch{Options: &opts})
		return nil
	})
	require.NoError(t, err)
	require.False(t, removed)
	require.Same(t, red, merged)
	require.Equal(t, 5, merged.Quantity())
	require.Equal(t, 1, col.Len())
}

func TestUpdateMutationErrorLeavesCollectionIntact(t *testing.T) {
	col := NewItemCollection()
	item := col.Add(mustItem(t, "sku-1", 2, nil))

	_, _, err := col.Update(item.RowID(), func(it *Item) error {
		return it.SetQuantity(-1)
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	require.True(t, col.Has(item.RowID()))
	require.Equal(t, 2, item.Quantity())
}

func TestClear(t *testing.T) {
	col := NewItemCollection()
	col.Add(mustItem(t, "sku-1", 1, nil))
	col.Add(mustItem(t, "sku-2", 1, nil))
	col.Clear()
	require.Zero(t, col.Len())
	require.Zero(t, col.Count())
	require.Empty(t, col.Items())
}
