package cart

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cart-engine/internal/money"
)

func newTestItem(t *testing.T) *Item {
	t.Helper()
	item, err := NewItem("sku-1", "Teapot", money.New(1000, "GBP"), Options{"color": "red"}, Meta{"gift": true})
	require.NoError(t, err)
	item.SetTaxBps(2000)
	require.NoError(t, item.SetQuantity(2))
	return item
}

func TestItemValidation(t *testing.T) {
	_, err := NewItem("", "Teapot", money.New(1, "GBP"), nil, nil)
	require.ErrorIs(t, err, ErrInvalidItem)

	_, err = NewItem("sku-1", "", money.New(1, "GBP"), nil, nil)
	require.ErrorIs(t, err, ErrInvalidItem)
}

func TestItemComputedViews(t *testing.T) {
	item := newTestItem(t)

	require.Equal(t, int64(200), item.Tax().Amount())
	require.Equal(t, int64(1200), item.PriceWithTax().Amount())
	require.Equal(t, int64(2000), item.Subtotal().Amount())
	require.Equal(t, int64(400), item.TaxTotal().Amount())
	require.Equal(t, int64(2400), item.Total().Amount())

	// subtotal + tax == total for the line.
	sum, err := item.Subtotal().Add(item.TaxTotal())
	require.NoError(t, err)
	require.True(t, sum.Equal(item.Total()))
}

func TestItemDiscountViews(t *testing.T) {
	item := newTestItem(t)
	require.False(t, item.HasDiscount())

	amount, err := item.DiscountAmount()
	require.NoError(t, err)
	require.True(t, amount.IsZero())

	d, err := NewPercentageDiscount(25, "sale")
	require.NoError(t, err)
	require.NoError(t, item.SetDiscount(d))
	require.True(t, item.HasDiscount())

	amount, err = item.DiscountAmount()
	require.NoError(t, err)
	require.Equal(t, int64(250), amount.Amount())

	discounted, err := item.DiscountedPrice()
	require.NoError(t, err)
	require.Equal(t, int64(750), discounted.Amount())

	lineDiscount, err := item.DiscountTotal()
	require.NoError(t, err)
	require.Equal(t, int64(500), lineDiscount.Amount())

	item.ClearDiscount()
	require.False(t, item.HasDiscount())
}

func TestItemSetDiscountCurrencyGuard(t *testing.T) {
	item := newTestItem(t)
	d, err := NewFixedDiscount(money.New(100, "EUR"), "")
	require.NoError(t, err)
	require.ErrorIs(t, item.SetDiscount(d), money.ErrCurrencyMismatch)
}

func TestSetQuantity(t *testing.T) {
	item := newTestItem(t)
	require.ErrorIs(t, item.SetQuantity(0), ErrInvalidQuantity)
	require.ErrorIs(t, item.SetQuantity(-3), ErrInvalidQuantity)
	require.NoError(t, item.SetQuantity(5))
	require.Equal(t, 5, item.Quantity())
}

type staticProduct struct {
	id    string
	name  string
	price money.Money
}

func (p staticProduct) BuyableIdentifier(Options) string  { return p.id }
func (p staticProduct) BuyableDescription(Options) string { return p.name }
func (p staticProduct) BuyablePrice(Options) money.Money  { return p.price }

func TestItemUpdateFromBuyable(t *testing.T) {
	item := newTestItem(t)
	rowBefore := item.RowID()

	// Same identifier: price and name refresh, row id holds.
	item.UpdateFromBuyable(staticProduct{id: "sku-1", name: "Teapot v2", price: money.New(1100, "GBP")})
	require.Equal(t, rowBefore, item.RowID())
	require.Equal(t, "Teapot v2", item.Name())
	require.Equal(t, int64(1100), item.UnitPrice().Amount())

	// Canonical identifier change re-keys the line.
	item.UpdateFromBuyable(staticProduct{id: "sku-9", name: "Teapot v2", price: money.New(1100, "GBP")})
	require.NotEqual(t, rowBefore, item.RowID())
	require.Equal(t, RowID("sku-9", item.Options()), item.RowID())
}

func TestItemApplyPatchRecomputesRowID(t *testing.T) {
	item := newTestItem(t)
	rowBefore := item.RowID()

	name := "Kettle"
	item.ApplyPatch(ItemPatch{Name: &name})
	require.Equal(t, rowBefore, item.RowID(), "name change must not re-key")

	opts := Options{"color": "blue"}
	item.ApplyPatch(ItemPatch{Options: &opts})
	require.NotEqual(t, rowBefore, item.RowID())
	require.Equal(t, RowID("sku-1", opts), item.RowID())

	id := "sku-2"
	item.ApplyPatch(ItemPatch{ID: &id})
	require.Equal(t, RowID("sku-2", opts), item.RowID())
}

func TestItemAssociate(t *testing.T) {
	item := newTestItem(t)
	item.Associate("product", "42")
	typ, id := item.ModelRef()
	require.Equal(t, "product", typ)
	require.Equal(t, "42", id)

	// Empty model id falls back to the product identifier.
	item.Associate("product", "")
	_, id = item.ModelRef()
	require.Equal(t, "sku-1", id)
}

func TestItemCopiesBags(t *testing.T) {
	opts := Options{"color": "red"}
	meta := Meta{"note": "fragile"}
	item, err := NewItem("sku-1", "Teapot", money.New(1, "GBP"), opts, meta)
	require.NoError(t, err)

	opts["color"] = "blue"
	meta["note"] = "sturdy"
	require.Equal(t, "red", item.Options().Get("color"))
	require.Equal(t, "fragile", item.Meta().Get("note"))
}
