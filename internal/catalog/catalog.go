// Package catalog resolves product identifiers to purchasable products.
package catalog

import (
	"context"
	"errors"

	"github.com/noah-isme/cart-engine/internal/cart"
	"github.com/noah-isme/cart-engine/internal/money"
)

// ErrProductNotFound is returned when no product matches the identifier.
var ErrProductNotFound = errors.New("catalog: product not found")

// Source looks up products by identifier. Option values may change the
// resolved price (size or finish surcharges).
type Source interface {
	Product(ctx context.Context, id string, options cart.Options) (Product, error)
}

// Product is a resolved catalog entry. It satisfies the cart's Buyable
// contract so it can be added to a cart directly.
type Product struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	UnitPrice  money.Money            `json:"unitPrice"`
	Surcharges map[string]money.Money `json:"surcharges,omitempty"`
	ModelType  string                 `json:"modelType,omitempty"`
}

// BuyableIdentifier returns the product identifier.
func (p Product) BuyableIdentifier(cart.Options) string { return p.ID }

// BuyableDescription returns the display name.
func (p Product) BuyableDescription(cart.Options) string { return p.Name }

// BuyablePrice returns the unit price plus any option surcharges. Surcharge
// keys have the form "option=value".
func (p Product) BuyablePrice(options cart.Options) money.Money {
	price := p.UnitPrice
	for _, key := range options.Keys() {
		extra, ok := p.Surcharges[key+"="+options.Get(key)]
		if !ok {
			continue
		}
		sum, err := price.Add(extra)
		if err != nil {
			// surcharge rows in another currency are ignored
			continue
		}
		price = sum
	}
	return price
}

// Static is an in-memory Source keyed by product identifier. Used in tests
// and as a fixture-backed source for local development.
type Static struct {
	Products map[string]Product
}

// Product implements Source.
func (s Static) Product(_ context.Context, id string, _ cart.Options) (Product, error) {
	product, ok := s.Products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return product, nil
}
