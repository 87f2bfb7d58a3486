package cart

import (
	"fmt"

	"github.com/noah-isme/cart-engine/internal/money"
)

// Snapshot is the opaque persisted state of a cart: items, adjustments and
// currency. Storage backends decide where it lives; the JSON shape below is
// the canonical encoding.
type Snapshot struct {
	Currency    string            `json:"currency"`
	Items       []ItemState       `json:"items"`
	Adjustments []AdjustmentState `json:"adjustments"`
}

// ItemState is the serialized form of a single line.
type ItemState struct {
	RowID     string         `json:"rowId"`
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Qty       int            `json:"qty"`
	Price     money.Money    `json:"price"`
	TaxBps    int64          `json:"taxBps"`
	Discount  *DiscountState `json:"discount,omitempty"`
	Options   Options        `json:"options,omitempty"`
	Meta      Meta           `json:"meta,omitempty"`
	ModelType string         `json:"modelType,omitempty"`
	ModelID   string         `json:"modelId,omitempty"`
}

// DiscountState is the serialized form of a per-item discount.
type DiscountState struct {
	Kind       string       `json:"kind"`
	Fixed      *money.Money `json:"fixed,omitempty"`
	PercentBps int64        `json:"percentBps,omitempty"`
	Label      string       `json:"label,omitempty"`
}

// AdjustmentState is the serialized form of an aggregate-level adjustment.
type AdjustmentState struct {
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	PercentBps *int64       `json:"percentBps,omitempty"`
	Value      *money.Money `json:"value,omitempty"`
	Order      *int         `json:"order,omitempty"`
}

func (it *Item) state() ItemState {
	state := ItemState{
		RowID:     it.rowID,
		ID:        it.id,
		Name:      it.name,
		Qty:       it.qty,
		Price:     it.price,
		TaxBps:    it.taxBps,
		Options:   it.options.Clone(),
		Meta:      it.meta.Clone(),
		ModelType: it.modelType,
		ModelID:   it.modelID,
	}
	if it.discount != nil {
		ds := &DiscountState{Kind: string(it.discount.kind), Label: it.discount.label}
		if it.discount.kind == DiscountFixed {
			fixed := it.discount.fixed
			ds.Fixed = &fixed
		} else {
			ds.PercentBps = it.discount.percentBps
		}
		state.Discount = ds
	}
	return state
}

func itemFromState(s ItemState) (*Item, error) {
	item, err := NewItem(s.ID, s.Name, s.Price, s.Options, s.Meta)
	if err != nil {
		return nil, err
	}
	if s.Qty > 0 {
		item.qty = s.Qty
	}
	item.taxBps = s.TaxBps
	item.modelType = s.ModelType
	item.modelID = s.ModelID
	if s.Discount != nil {
		switch DiscountKind(s.Discount.Kind) {
		case DiscountFixed:
			if s.Discount.Fixed == nil {
				return nil, fmt.Errorf("%w: fixed discount without value", ErrInvalidDiscount)
			}
			item.discount = &Discount{kind: DiscountFixed, fixed: *s.Discount.Fixed, label: s.Discount.Label}
		case DiscountPercentage:
			item.discount = &Discount{kind: DiscountPercentage, percentBps: s.Discount.PercentBps, label: s.Discount.Label}
		default:
			return nil, fmt.Errorf("%w: kind %q", ErrInvalidDiscount, s.Discount.Kind)
		}
	}
	// Row ids are pure functions of id and options; recomputing on restore
	// keeps snapshots written by older serializations consistent.
	item.rowID = RowID(item.id, item.options)
	return item, nil
}

func (a *Adjustment) state() AdjustmentState {
	state := AdjustmentState{Name: a.name, Type: string(a.typ), Order: a.order}
	if a.percentage {
		bps := a.percentBps
		state.PercentBps = &bps
	} else {
		value := a.value
		state.Value = &value
	}
	return state
}

func adjustmentFromState(s AdjustmentState) (*Adjustment, error) {
	switch AdjustmentType(s.Type) {
	case AdjustmentDiscount, AdjustmentOther, AdjustmentDelivery:
	default:
		return nil, &InvalidAdjustmentError{Fields: map[string]string{"type": fmt.Sprintf("unknown type %q", s.Type)}}
	}
	adj := &Adjustment{name: s.Name, typ: AdjustmentType(s.Type), order: s.Order}
	switch {
	case s.PercentBps != nil:
		adj.percentage = true
		adj.percentBps = *s.PercentBps
	case s.Value != nil:
		adj.value = *s.Value
	default:
		return nil, &InvalidAdjustmentError{Fields: map[string]string{"value": "percentage or value is required"}}
	}
	return adj, nil
}

func (c *Cart) snapshot() Snapshot {
	snap := Snapshot{Currency: c.currency}
	for _, item := range c.items.Items() {
		snap.Items = append(snap.Items, item.state())
	}
	for _, adj := range c.adjustments.All() {
		snap.Adjustments = append(snap.Adjustments, adj.state())
	}
	return snap
}

func (c *Cart) restore(snap Snapshot) error {
	items := NewItemCollection()
	for _, s := range snap.Items {
		item, err := itemFromState(s)
		if err != nil {
			return fmt.Errorf("restore item %s: %w", s.RowID, err)
		}
		items.Add(item)
	}
	adjustments := NewAdjustmentCollection()
	for _, s := range snap.Adjustments {
		adj, err := adjustmentFromState(s)
		if err != nil {
			return fmt.Errorf("restore adjustment %s: %w", s.Name, err)
		}
		adjustments.Add(adj)
	}
	c.items = items
	c.adjustments = adjustments
	if snap.Currency != "" {
		c.currency = snap.Currency
	}
	return nil
}
