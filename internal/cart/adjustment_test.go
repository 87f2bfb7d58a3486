package cart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cart-engine/internal/money"
)

func percentage(v float64) *float64 { return &v }

func fixed(amount int64, currency string) *money.Money {
	m := money.New(amount, currency)
	return &m
}

func intPtr(v int) *int { return &v }

func TestNewAdjustmentValidation(t *testing.T) {
	cases := []struct {
		name  string
		attrs AdjustmentAttributes
		field string
	}{
		{"missing name", AdjustmentAttributes{Type: "discount", Percentage: percentage(10)}, "name"},
		{"missing type", AdjustmentAttributes{Name: "x", Percentage: percentage(10)}, "type"},
		{"bad type", AdjustmentAttributes{Name: "x", Type: "voucher", Percentage: percentage(10)}, "type"},
		{"neither magnitude", AdjustmentAttributes{Name: "x", Type: "other"}, "percentage"},
		{"both magnitudes", AdjustmentAttributes{Name: "x", Type: "other", Percentage: percentage(10), Value: fixed(100, "GBP")}, "percentage"},
		{"percentage too high", AdjustmentAttributes{Name: "x", Type: "discount", Percentage: percentage(101)}, "percentage"},
		{"percentage negative", AdjustmentAttributes{Name: "x", Type: "discount", Percentage: percentage(-2)}, "percentage"},
		{"negative fixed", AdjustmentAttributes{Name: "x", Type: "other", Value: fixed(-5, "GBP")}, "value"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAdjustment(tc.attrs)
			require.ErrorIs(t, err, ErrInvalidAdjustment)
			var invalid *InvalidAdjustmentError
			require.True(t, errors.As(err, &invalid))
			require.Contains(t, invalid.Fields, tc.field)
		})
	}
}

func TestAdjustmentDefaultOrders(t *testing.T) {
	discount, err := NewAdjustment(AdjustmentAttributes{Name: "sale", Type: "discount", Percentage: percentage(10)})
	require.NoError(t, err)
	other, err := NewAdjustment(AdjustmentAttributes{Name: "fee", Type: "other", Value: fixed(100, "GBP")})
	require.NoError(t, err)
	delivery, err := NewAdjustment(AdjustmentAttributes{Name: "post", Type: "delivery", Value: fixed(500, "GBP")})
	require.NoError(t, err)

	require.Equal(t, 1, discount.Order())
	require.Equal(t, 2, other.Order())
	require.Equal(t, 3, delivery.Order())

	explicit, err := NewAdjustment(AdjustmentAttributes{Name: "vip", Type: "discount", Percentage: percentage(5), Order: intPtr(9)})
	require.NoError(t, err)
	require.Equal(t, 9, explicit.Order())
}

func TestAdjustmentCalculatePercentageDiscount(t *testing.T) {
	adj, err := NewAdjustment(AdjustmentAttributes{Name: "10% off", Type: "discount", Percentage: percentage(10)})
	require.NoError(t, err)

	base := money.New(2400, "GBP")
	value, err := adj.Calculate(base)
	require.NoError(t, err)
	require.Equal(t, int64(-240), value.Amount())

	applied, err := adj.Apply(base)
	require.NoError(t, err)
	require.Equal(t, int64(2160), applied.Amount())
}

func TestAdjustmentDiscountClampsToZero(t *testing.T) {
	adj, err := NewAdjustment(AdjustmentAttributes{Name: "mega", Type: "discount", Value: fixed(5000, "GBP")})
	require.NoError(t, err)

	base := money.New(2400, "GBP")
	value, err := adj.Calculate(base)
	require.NoError(t, err)
	// A single discount never pushes the total negative.
	require.True(t, value.IsZero())

	applied, err := adj.Apply(base)
	require.NoError(t, err)
	require.True(t, applied.Equal(base))
}

func TestAdjustmentNonDiscountIsAdditive(t *testing.T) {
	adj, err := NewAdjustment(AdjustmentAttributes{Name: "delivery", Type: "delivery", Value: fixed(500, "GBP")})
	require.NoError(t, err)

	applied, err := adj.Apply(money.New(2160, "GBP"))
	require.NoError(t, err)
	require.Equal(t, int64(2660), applied.Amount())
}

func TestAdjustmentFixedCurrencyMismatch(t *testing.T) {
	adj, err := NewAdjustment(AdjustmentAttributes{Name: "fee", Type: "other", Value: fixed(100, "EUR")})
	require.NoError(t, err)

	_, err = adj.Calculate(money.New(1000, "GBP"))
	require.ErrorIs(t, err, money.ErrCurrencyMismatch)
}

func TestAdjustmentCollectionSortedStable(t *testing.T) {
	col := NewAdjustmentCollection()
	mk := func(name, typ string, order *int) *Adjustment {
		adj, err := NewAdjustment(AdjustmentAttributes{Name: name, Type: typ, Value: fixed(10, "GBP"), Order: order})
		require.NoError(t, err)
		return adj
	}
	col.Add(mk("fee-a", "other", nil))    // order 2
	col.Add(mk("post", "delivery", nil))  // order 3
	col.Add(mk("sale-a", "discount", nil)) // order 1
	col.Add(mk("fee-b", "other", nil))    // order 2, after fee-a
	col.Add(mk("sale-b", "discount", nil)) // order 1, after sale-a

	var names []string
	for _, adj := range col.Sorted() {
		names = append(names, adj.Name())
	}
	require.Equal(t, []string{"sale-a", "sale-b", "fee-a", "fee-b", "post"}, names)
}

func TestAdjustmentCollectionTotalsPerTypeAgainstSameBase(t *testing.T) {
	col := NewAdjustmentCollection()
	a, err := NewAdjustment(AdjustmentAttributes{Name: "a", Type: "discount", Percentage: percentage(10)})
	require.NoError(t, err)
	b, err := NewAdjustment(AdjustmentAttributes{Name: "b", Type: "discount", Percentage: percentage(10)})
	require.NoError(t, err)
	col.Add(a)
	col.Add(b)

	// Both computed against the same pre-adjustment base, no compounding.
	total, err := col.TotalByType(AdjustmentDiscount, money.New(1000, "GBP"))
	require.NoError(t, err)
	require.Equal(t, int64(-200), total.Amount())

	require.Equal(t, 2, col.CountByType(AdjustmentDiscount))
	require.Equal(t, 0, col.CountByType(AdjustmentDelivery))
}

func TestAdjustmentCollectionRemoval(t *testing.T) {
	col := NewAdjustmentCollection()
	mk := func(name, typ string) *Adjustment {
		adj, err := NewAdjustment(AdjustmentAttributes{Name: name, Type: typ, Percentage: percentage(5)})
		require.NoError(t, err)
		return adj
	}
	col.Add(mk("dup", "discount"))
	col.Add(mk("dup", "other"))
	col.Add(mk("keep", "other"))

	// Removal by name drops every match.
	col.RemoveByName("dup")
	require.Equal(t, 1, col.Len())
	require.Equal(t, "keep", col.All()[0].Name())

	col.Add(mk("d1", "discount"))
	col.Add(mk("d2", "discount"))
	col.RemoveByType(AdjustmentDiscount)
	require.Equal(t, 1, col.Len())

	col.Clear()
	require.Zero(t, col.Len())
}
