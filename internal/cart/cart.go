// Package cart implements the checkout pricing core: line items with
// deterministic row identity, per-item discounts, ordered aggregate
// adjustments and the cart aggregate that derives subtotal, tax, total and
// grand total under a single-currency invariant.
//
// A cart instance has one logical owner at a time and performs no internal
// locking; embedding applications serialize access per instance (the HTTP
// layer in this repo takes a per-cart redis lock around mutations).
package cart

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/cart-engine/internal/money"
)

// Storage persists cart snapshots. Load reports whether a snapshot existed;
// a missing snapshot is not an error.
type Storage interface {
	Load(ctx context.Context, name string) (Snapshot, bool, error)
	Save(ctx context.Context, name string, snap Snapshot) error
	Delete(ctx context.Context, name string) error
}

// Notifier receives cart mutation events. Emit failures never fail the
// mutation; the cart logs and moves on.
type Notifier interface {
	Emit(ctx context.Context, topic string, payload any) error
}

// ModelRegistry answers whether a model type referenced by Associate is
// known to the embedding application.
type ModelRegistry interface {
	Known(modelType string) bool
}

// Topics emitted by cart mutations.
const (
	TopicItemAdded         = "cart.item_added"
	TopicItemUpdated       = "cart.item_updated"
	TopicItemRemoved       = "cart.item_removed"
	TopicAdjustmentAdded   = "cart.adjustment_added"
	TopicAdjustmentRemoved = "cart.adjustment_removed"
	TopicCleared           = "cart.cleared"
)

// ItemEvent is the payload for item mutation topics.
type ItemEvent struct {
	Cart      string      `json:"cart"`
	RowID     string      `json:"rowId"`
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Qty       int         `json:"qty"`
	UnitPrice money.Money `json:"unitPrice"`
}

// AdjustmentEvent is the payload for adjustment mutation topics.
type AdjustmentEvent struct {
	Cart string `json:"cart"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// InstanceConfig is the per-instance configuration supplied at construction.
// No ambient lookups happen later: the currency and default tax rate are
// fixed here.
type InstanceConfig struct {
	Currency string
	TaxBps   int64
}

// ItemSpec describes an item to add from raw attributes.
type ItemSpec struct {
	ID      string
	Name    string
	Qty     int
	Price   money.Money
	Options Options
	Meta    Meta
}

// Cart is the aggregate for one checkout session. State is hydrated lazily
// from Storage on first use and saved back after every mutation.
type Cart struct {
	name        string
	currency    string
	taxBps      int64
	items       *ItemCollection
	adjustments *AdjustmentCollection
	store       Storage
	notifier    Notifier
	models      ModelRegistry
	logger      zerolog.Logger
	loaded      bool
}

// New constructs a cart bound to its storage. notifier may be nil.
func New(name string, cfg InstanceConfig, store Storage, notifier Notifier, logger zerolog.Logger) *Cart {
	return &Cart{
		name:        name,
		currency:    cfg.Currency,
		taxBps:      cfg.TaxBps,
		items:       NewItemCollection(),
		adjustments: NewAdjustmentCollection(),
		store:       store,
		notifier:    notifier,
		logger:      logger.With().Str("cart", name).Logger(),
	}
}

// SetModelRegistry installs the registry consulted by Associate.
func (c *Cart) SetModelRegistry(r ModelRegistry) { c.models = r }

// Name returns the instance name.
func (c *Cart) Name() string { return c.name }

// Currency returns the cart currency code.
func (c *Cart) Currency() string { return c.currency }

// TaxBps returns the default tax rate applied to added items.
func (c *Cart) TaxBps() int64 { return c.taxBps }

// Loaded reports whether the cart has been hydrated from storage.
func (c *Cart) Loaded() bool { return c.loaded }

func (c *Cart) ensureLoaded(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	snap, found, err := c.store.Load(ctx, c.name)
	if err != nil {
		return fmt.Errorf("load cart %q: %w", c.name, err)
	}
	if found {
		if err := c.restore(snap); err != nil {
			return fmt.Errorf("load cart %q: %w", c.name, err)
		}
	}
	c.loaded = true
	return nil
}

// Save persists the current state. It fails with ErrNotLoaded when no load
// has occurred yet.
func (c *Cart) Save(ctx context.Context) error {
	if !c.loaded {
		return fmt.Errorf("save cart %q: %w", c.name, ErrNotLoaded)
	}
	if err := c.store.Save(ctx, c.name, c.snapshot()); err != nil {
		return fmt.Errorf("save cart %q: %w", c.name, err)
	}
	return nil
}

// Reload discards in-memory state and hydrates from storage again.
func (c *Cart) Reload(ctx context.Context) error {
	c.loaded = false
	c.items = NewItemCollection()
	c.adjustments = NewAdjustmentCollection()
	return c.ensureLoaded(ctx)
}

// Destroy removes the stored snapshot and resets the cart to empty.
func (c *Cart) Destroy(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.name); err != nil {
		return fmt.Errorf("destroy cart %q: %w", c.name, err)
	}
	c.items = NewItemCollection()
	c.adjustments = NewAdjustmentCollection()
	c.loaded = true
	c.emit(ctx, TopicCleared, AdjustmentEvent{Cart: c.name})
	return nil
}

// Add resolves the spec into one line item, applies the cart tax rate,
// enforces the currency invariant and merges into the collection. Adding the
// same (product, options) pair again sums quantities instead of creating a
// second row.
func (c *Cart) Add(ctx context.Context, spec ItemSpec) (*Item, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	item, err := c.createItem(spec)
	if err != nil {
		return nil, err
	}
	stored := c.items.Add(item)
	c.emit(ctx, TopicItemAdded, c.itemEvent(stored))
	if err := c.Save(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

// AddBatch adds several items in order, mirroring the array form of add.
func (c *Cart) AddBatch(ctx context.Context, specs []ItemSpec) ([]*Item, error) {
	out := make([]*Item, 0, len(specs))
	for _, spec := range specs {
		item, err := c.Add(ctx, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// AddBuyable adds an item resolved through the product source for the given
// options.
func (c *Cart) AddBuyable(ctx context.Context, b Buyable, qty int, options Options, meta Meta) (*Item, error) {
	opts := options.Clone()
	return c.Add(ctx, ItemSpec{
		ID:      b.BuyableIdentifier(opts),
		Name:    b.BuyableDescription(opts),
		Qty:     qty,
		Price:   b.BuyablePrice(opts),
		Options: opts,
		Meta:    meta,
	})
}

// Get returns the line with the given row id.
func (c *Cart) Get(ctx context.Context, rowID string) (*Item, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return c.items.Get(rowID)
}

// Items returns the lines in insertion order.
func (c *Cart) Items(ctx context.Context) ([]*Item, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return c.items.Items(), nil
}

// Count returns the total quantity across all lines.
func (c *Cart) Count(ctx context.Context) (int, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	return c.items.Count(), nil
}

// UpdateQuantity sets the quantity for a line. A quantity of zero or below
// removes the line; the returned item is nil in that case.
func (c *Cart) UpdateQuantity(ctx context.Context, rowID string, qty int) (*Item, error) {
	return c.update(ctx, rowID, func(it *Item) error {
		it.qty = qty
		return nil
	})
}

// UpdateWith applies an arbitrary mutation to a line, then restores the
// collection invariants (re-keying, merge, zero-quantity removal).
func (c *Cart) UpdateWith(ctx context.Context, rowID string, mutate func(*Item) error) (*Item, error) {
	return c.update(ctx, rowID, mutate)
}

// Patch applies a partial attribute update to a line. A patched price must
// carry the cart currency.
func (c *Cart) Patch(ctx context.Context, rowID string, patch ItemPatch) (*Item, error) {
	if patch.Price != nil && patch.Price.Currency() != c.currency {
		return nil, c.currencyError(patch.Price.Currency())
	}
	return c.update(ctx, rowID, func(it *Item) error {
		it.ApplyPatch(patch)
		return nil
	})
}

// UpdateFromBuyable refreshes a line's identity, name and price from the
// product source.
func (c *Cart) UpdateFromBuyable(ctx context.Context, rowID string, b Buyable) (*Item, error) {
	return c.update(ctx, rowID, func(it *Item) error {
		it.UpdateFromBuyable(b)
		if it.Currency() != c.currency {
			return c.currencyError(it.Currency())
		}
		return nil
	})
}

func (c *Cart) update(ctx context.Context, rowID string, mutate func(*Item) error) (*Item, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	before, err := c.items.Get(rowID)
	if err != nil {
		return nil, err
	}
	removedEvent := c.itemEvent(before)

	item, removed, err := c.items.Update(rowID, mutate)
	if err != nil {
		return nil, err
	}
	if removed {
		// Driving the last unit out of the cart is a removal, not an update.
		removedEvent.Qty = 0
		c.emit(ctx, TopicItemRemoved, removedEvent)
	} else {
		c.emit(ctx, TopicItemUpdated, c.itemEvent(item))
	}
	if err := c.Save(ctx); err != nil {
		return nil, err
	}
	return item, nil
}

// Remove deletes the line with the given row id.
func (c *Cart) Remove(ctx context.Context, rowID string) error {
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}
	item, err := c.items.Get(rowID)
	if err != nil {
		return err
	}
	if err := c.items.Remove(rowID); err != nil {
		return err
	}
	event := c.itemEvent(item)
	event.Qty = 0
	c.emit(ctx, TopicItemRemoved, event)
	return c.Save(ctx)
}

// Associate records a weak model back-reference on a line. When a model
// registry is configured, unknown types are rejected.
func (c *Cart) Associate(ctx context.Context, rowID, modelType, modelID string) error {
	if c.models != nil && !c.models.Known(modelType) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, modelType)
	}
	_, err := c.update(ctx, rowID, func(it *Item) error {
		it.Associate(modelType, modelID)
		return nil
	})
	return err
}

// Subtotal sums line subtotals (price times quantity, excluding tax).
func (c *Cart) Subtotal(ctx context.Context) (money.Money, error) {
	return c.fold(ctx, (*Item).Subtotal)
}

// Tax sums line tax totals.
func (c *Cart) Tax(ctx context.Context) (money.Money, error) {
	return c.fold(ctx, (*Item).TaxTotal)
}

// Total sums line totals (including tax), before adjustments.
func (c *Cart) Total(ctx context.Context) (money.Money, error) {
	return c.fold(ctx, (*Item).Total)
}

func (c *Cart) fold(ctx context.Context, view func(*Item) money.Money) (money.Money, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return money.Money{}, err
	}
	total := money.Zero(c.currency)
	for _, item := range c.items.Items() {
		var err error
		total, err = total.Add(view(item))
		if err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}

// GrandTotal folds every adjustment over the pre-adjustment total in
// application order. Percentage adjustments compound against the running
// total after prior adjustments, so ordering is observable.
func (c *Cart) GrandTotal(ctx context.Context) (money.Money, error) {
	total, err := c.Total(ctx)
	if err != nil {
		return money.Money{}, err
	}
	for _, adj := range c.adjustments.Sorted() {
		total, err = adj.Apply(total)
		if err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}

// Adjustments returns the adjustments in application order.
func (c *Cart) Adjustments(ctx context.Context) ([]*Adjustment, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return c.adjustments.Sorted(), nil
}

// AdjustmentsCount counts adjustments of the given type.
func (c *Cart) AdjustmentsCount(ctx context.Context, typ AdjustmentType) (int, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	return c.adjustments.CountByType(typ), nil
}

// AdjustmentsTotal sums the contribution of every adjustment of the given
// type, each computed against the cart's pre-adjustment total.
func (c *Cart) AdjustmentsTotal(ctx context.Context, typ AdjustmentType) (money.Money, error) {
	total, err := c.Total(ctx)
	if err != nil {
		return money.Money{}, err
	}
	return c.adjustments.TotalByType(typ, total)
}

// AddAdjustment appends an adjustment and persists.
func (c *Cart) AddAdjustment(ctx context.Context, adj *Adjustment) error {
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}
	if !adj.percentage && adj.value.Currency() != c.currency {
		return c.currencyError(adj.value.Currency())
	}
	c.adjustments.Add(adj)
	c.emit(ctx, TopicAdjustmentAdded, AdjustmentEvent{Cart: c.name, Name: adj.name, Type: string(adj.typ)})
	return c.Save(ctx)
}

// RemoveAdjustmentWithName drops every adjustment with the name and persists.
func (c *Cart) RemoveAdjustmentWithName(ctx context.Context, name string) error {
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}
	c.adjustments.RemoveByName(name)
	c.emit(ctx, TopicAdjustmentRemoved, AdjustmentEvent{Cart: c.name, Name: name})
	return c.Save(ctx)
}

// RemoveAdjustmentsWithType drops every adjustment of the type and persists.
func (c *Cart) RemoveAdjustmentsWithType(ctx context.Context, typ AdjustmentType) error {
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}
	c.adjustments.RemoveByType(typ)
	c.emit(ctx, TopicAdjustmentRemoved, AdjustmentEvent{Cart: c.name, Type: string(typ)})
	return c.Save(ctx)
}

// ClearAdjustments removes all adjustments and persists.
func (c *Cart) ClearAdjustments(ctx context.Context) error {
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}
	c.adjustments.Clear()
	c.emit(ctx, TopicAdjustmentRemoved, AdjustmentEvent{Cart: c.name})
	return c.Save(ctx)
}

func (c *Cart) createItem(spec ItemSpec) (*Item, error) {
	item, err := NewItem(spec.ID, spec.Name, spec.Price, spec.Options, spec.Meta)
	if err != nil {
		return nil, err
	}
	if err := item.SetQuantity(spec.Qty); err != nil {
		return nil, err
	}
	item.SetTaxBps(c.taxBps)
	if item.Currency() != c.currency {
		return nil, c.currencyError(item.Currency())
	}
	return item, nil
}

func (c *Cart) currencyError(got string) error {
	return fmt.Errorf("%w: cannot use %s in %s cart %q", money.ErrCurrencyMismatch, got, c.currency, c.name)
}

func (c *Cart) itemEvent(it *Item) ItemEvent {
	return ItemEvent{
		Cart:      c.name,
		RowID:     it.rowID,
		ProductID: it.id,
		Name:      it.name,
		Qty:       it.qty,
		UnitPrice: it.price,
	}
}

func (c *Cart) emit(ctx context.Context, topic string, payload any) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Emit(ctx, topic, payload); err != nil {
		c.logger.Warn().Err(err).Str("topic", topic).Msg("emit cart event")
	}
}
