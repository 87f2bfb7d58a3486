package cart

import (
	"fmt"

	"github.com/noah-isme/cart-engine/internal/money"
)

// Buyable supplies the canonical identifier, description and price for a
// purchasable product given an option context. Implementations live outside
// the core (catalog lookups, static fixtures).
type Buyable interface {
	BuyableIdentifier(options Options) string
	BuyableDescription(options Options) string
	BuyablePrice(options Options) money.Money
}

// Item is one purchasable line in a cart. Its row id is derived from the
// product identifier and options, and is recomputed whenever either changes
// so the identity invariant holds at all times.
type Item struct {
	rowID     string
	id        string
	name      string
	qty       int
	price     money.Money
	taxBps    int64
	discount  *Discount
	options   Options
	meta      Meta
	modelType string
	modelID   string
}

// NewItem builds an item with quantity 1. The identifier and name are
// required; price is the per-unit price excluding tax.
func NewItem(id, name string, price money.Money, options Options, meta Meta) (*Item, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: identifier is required", ErrInvalidItem)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	return &Item{
		rowID:   RowID(id, options),
		id:      id,
		name:    name,
		qty:     1,
		price:   price,
		options: options.Clone(),
		meta:    meta.Clone(),
	}, nil
}

// ItemFromBuyable builds an item by resolving identity, description and
// price through the product source for the given options.
func ItemFromBuyable(b Buyable, options Options) (*Item, error) {
	return NewItem(b.BuyableIdentifier(options), b.BuyableDescription(options), b.BuyablePrice(options), options, nil)
}

// RowID returns the deterministic identity key for this line.
func (it *Item) RowID() string { return it.rowID }

// ID returns the product identifier.
func (it *Item) ID() string { return it.id }

// Name returns the product description.
func (it *Item) Name() string { return it.name }

// Quantity returns the number of units.
func (it *Item) Quantity() int { return it.qty }

// UnitPrice returns the per-unit price excluding tax.
func (it *Item) UnitPrice() money.Money { return it.price }

// TaxBps returns the per-unit tax rate in basis points.
func (it *Item) TaxBps() int64 { return it.taxBps }

// Discount returns the per-item discount, or nil.
func (it *Item) Discount() *Discount { return it.discount }

// Options returns a copy of the option selections.
func (it *Item) Options() Options { return it.options.Clone() }

// Meta returns a copy of the free-form attribute bag.
func (it *Item) Meta() Meta { return it.meta.Clone() }

// ModelRef returns the associated (type, id) back-reference, empty strings
// when unset. Resolution of the referenced entity is the caller's concern.
func (it *Item) ModelRef() (string, string) { return it.modelType, it.modelID }

// Currency returns the currency of the unit price.
func (it *Item) Currency() string { return it.price.Currency() }

// Tax returns the per-unit tax value.
func (it *Item) Tax() money.Money {
	return it.price.MultiplyBps(it.taxBps)
}

// PriceWithTax returns the per-unit price including tax.
func (it *Item) PriceWithTax() money.Money {
	return addSameCurrency(it.price, it.Tax())
}

// Subtotal returns unit price times quantity, excluding tax.
func (it *Item) Subtotal() money.Money {
	return it.price.Multiply(int64(it.qty))
}

// TaxTotal returns the tax value for the whole line.
func (it *Item) TaxTotal() money.Money {
	return it.Tax().Multiply(int64(it.qty))
}

// Total returns the line price including tax.
func (it *Item) Total() money.Money {
	return it.PriceWithTax().Multiply(int64(it.qty))
}

// HasDiscount reports whether a per-item discount is set.
func (it *Item) HasDiscount() bool { return it.discount != nil }

// DiscountAmount returns the per-unit discount value, zero when no discount
// is set.
func (it *Item) DiscountAmount() (money.Money, error) {
	if it.discount == nil {
		return money.Zero(it.price.Currency()), nil
	}
	return it.discount.Calculate(it.price)
}

// DiscountedPrice returns the unit price with the discount applied, or the
// unit price unchanged when no discount is set.
func (it *Item) DiscountedPrice() (money.Money, error) {
	if it.discount == nil {
		return it.price, nil
	}
	return it.discount.ApplyTo(it.price)
}

// DiscountTotal returns the discount value for the whole line.
func (it *Item) DiscountTotal() (money.Money, error) {
	amount, err := it.DiscountAmount()
	if err != nil {
		return money.Money{}, err
	}
	return amount.Multiply(int64(it.qty)), nil
}

// SetQuantity replaces the quantity. Quantities must be positive; driving a
// line to zero goes through the collection's update path, which removes the
// row instead.
func (it *Item) SetQuantity(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	it.qty = qty
	return nil
}

// SetTaxBps sets the per-unit tax rate in basis points.
func (it *Item) SetTaxBps(bps int64) { it.taxBps = bps }

// SetDiscount attaches a per-item discount. A fixed discount must carry the
// item's currency.
func (it *Item) SetDiscount(d *Discount) error {
	if d != nil && d.kind == DiscountFixed && !d.fixed.SameCurrency(it.price) {
		return fmt.Errorf("%w: discount is %s, item is %s",
			money.ErrCurrencyMismatch, d.fixed.Currency(), it.price.Currency())
	}
	it.discount = d
	return nil
}

// ClearDiscount removes any per-item discount.
func (it *Item) ClearDiscount() { it.discount = nil }

// UpdateFromBuyable refreshes identifier, name and price from the product
// source using the item's current options as lookup context. The row id is
// recomputed, so a canonical identifier change re-keys the line.
func (it *Item) UpdateFromBuyable(b Buyable) {
	it.id = b.BuyableIdentifier(it.options)
	it.name = b.BuyableDescription(it.options)
	it.price = b.BuyablePrice(it.options)
	it.rowID = RowID(it.id, it.options)
}

// ItemPatch is a partial update of item attributes. Nil fields are left
// unchanged. A non-positive Qty is accepted here; the collection removes the
// row when an update drives the quantity to zero or below.
type ItemPatch struct {
	ID      *string
	Qty     *int
	Name    *string
	Price   *money.Money
	Options *Options
	Meta    *Meta
}

// ApplyPatch applies the partial update and recomputes the row id whenever
// the identifier or options changed.
func (it *Item) ApplyPatch(p ItemPatch) {
	if p.ID != nil {
		it.id = *p.ID
	}
	if p.Qty != nil {
		it.qty = *p.Qty
	}
	if p.Name != nil {
		it.name = *p.Name
	}
	if p.Price != nil {
		it.price = *p.Price
	}
	if p.Options != nil {
		it.options = p.Options.Clone()
	}
	if p.Meta != nil {
		it.meta = p.Meta.Clone()
	}
	if p.ID != nil || p.Options != nil {
		it.rowID = RowID(it.id, it.options)
	}
}

// Associate records a weak (type, id) reference to an external model. When
// the model id is empty the product identifier is used.
func (it *Item) Associate(modelType, modelID string) {
	if modelID == "" {
		modelID = it.id
	}
	it.modelType = modelType
	it.modelID = modelID
}

// addSameCurrency adds two values known to share a currency.
func addSameCurrency(a, b money.Money) money.Money {
	sum, err := a.Add(b)
	if err != nil {
		// Unreachable when callers uphold the single-currency invariant.
		panic(err)
	}
	return sum
}
