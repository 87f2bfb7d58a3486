package cart

import (
	"sort"

	"github.com/noah-isme/cart-engine/internal/money"
)

// AdjustmentCollection is an ordered sequence of adjustments. Insertion order
// is retained; names are not unique, removal by name drops every match.
type AdjustmentCollection struct {
	list []*Adjustment
}

// NewAdjustmentCollection returns an empty collection.
func NewAdjustmentCollection() *AdjustmentCollection {
	return &AdjustmentCollection{}
}

// Add appends an adjustment.
func (c *AdjustmentCollection) Add(adj *Adjustment) {
	c.list = append(c.list, adj)
}

// Len returns the number of adjustments.
func (c *AdjustmentCollection) Len() int { return len(c.list) }

// All returns the adjustments in insertion order.
func (c *AdjustmentCollection) All() []*Adjustment {
	out := make([]*Adjustment, len(c.list))
	copy(out, c.list)
	return out
}

// Sorted returns the adjustments in application order: ascending effective
// order, ties kept in insertion order.
func (c *AdjustmentCollection) Sorted() []*Adjustment {
	out := c.All()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order() < out[j].Order()
	})
	return out
}

// CountByType counts adjustments of the given type.
func (c *AdjustmentCollection) CountByType(typ AdjustmentType) int {
	n := 0
	for _, adj := range c.list {
		if adj.typ == typ {
			n++
		}
	}
	return n
}

// TotalByType sums the contribution of every adjustment of the given type,
// each computed independently against the same base. Unlike grand-total
// application there is no compounding here: the base is the cart's
// pre-adjustment total for all of them.
func (c *AdjustmentCollection) TotalByType(typ AdjustmentType, base money.Money) (money.Money, error) {
	total := money.Zero(base.Currency())
	for _, adj := range c.list {
		if adj.typ != typ {
			continue
		}
		value, err := adj.Calculate(base)
		if err != nil {
			return money.Money{}, err
		}
		total, err = total.Add(value)
		if err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}

// RemoveByName drops every adjustment with the given name.
func (c *AdjustmentCollection) RemoveByName(name string) {
	kept := c.list[:0]
	for _, adj := range c.list {
		if adj.name != name {
			kept = append(kept, adj)
		}
	}
	c.list = kept
}

// RemoveByType drops every adjustment of the given type.
func (c *AdjustmentCollection) RemoveByType(typ AdjustmentType) {
	kept := c.list[:0]
	for _, adj := range c.list {
		if adj.typ != typ {
			kept = append(kept, adj)
		}
	}
	c.list = kept
}

// Clear removes all adjustments.
func (c *AdjustmentCollection) Clear() {
	c.list = nil
}
