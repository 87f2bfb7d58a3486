package cart

import "fmt"

// ItemCollection is an ordered-by-insertion mapping of row id to item. A
// second add of the same row id merges by summing quantities into the
// existing line, keeping its original position.
type ItemCollection struct {
	index map[string]*Item
	order []string
}

// NewItemCollection returns an empty collection.
func NewItemCollection() *ItemCollection {
	return &ItemCollection{index: map[string]*Item{}}
}

// Len returns the number of distinct lines.
func (c *ItemCollection) Len() int { return len(c.order) }

// Count returns the total quantity across all lines.
func (c *ItemCollection) Count() int {
	total := 0
	for _, rowID := range c.order {
		total += c.index[rowID].qty
	}
	return total
}

// Has reports whether a line with the row id exists.
func (c *ItemCollection) Has(rowID string) bool {
	_, ok := c.index[rowID]
	return ok
}

// Get returns the line with the given row id.
func (c *ItemCollection) Get(rowID string) (*Item, error) {
	item, ok := c.index[rowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, rowID)
	}
	return item, nil
}

// Items returns the lines in insertion order.
func (c *ItemCollection) Items() []*Item {
	out := make([]*Item, 0, len(c.order))
	for _, rowID := range c.order {
		out = append(out, c.index[rowID])
	}
	return out
}

// Add inserts the item, or merges it into an existing line with the same row
// id by summing quantities. All other fields of the incoming item are
// discarded on merge and the existing line keeps its position. The stored
// line is returned.
func (c *ItemCollection) Add(item *Item) *Item {
	if existing, ok := c.index[item.rowID]; ok {
		existing.qty += item.qty
		return existing
	}
	c.index[item.rowID] = item
	c.order = append(c.order, item.rowID)
	return item
}

// Remove deletes the line with the given row id.
func (c *ItemCollection) Remove(rowID string) error {
	if _, ok := c.index[rowID]; !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, rowID)
	}
	c.delete(rowID)
	return nil
}

// Update applies mutate to the line with the given row id and then restores
// the collection invariants: if the mutation changed the row id (identifier
// or options changed) the line moves to the new key, merging quantities with
// any occupant; if the resulting quantity is zero or below the line is
// removed. It returns the stored line (nil when removed) and whether the
// line was removed.
func (c *ItemCollection) Update(rowID string, mutate func(*Item) error) (*Item, bool, error) {
	item, err := c.Get(rowID)
	if err != nil {
		return nil, false, err
	}
	if err := mutate(item); err != nil {
		return nil, false, err
	}

	if item.rowID != rowID {
		c.delete(rowID)
		if existing, ok := c.index[item.rowID]; ok {
			existing.qty += item.qty
			item = existing
		} else {
			c.index[item.rowID] = item
			c.order = append(c.order, item.rowID)
		}
	}

	if item.qty <= 0 {
		c.delete(item.rowID)
		return nil, true, nil
	}
	return item, false, nil
}

// Clear removes every line.
func (c *ItemCollection) Clear() {
	c.index = map[string]*Item{}
	c.order = nil
}

func (c *ItemCollection) delete(rowID string) {
	delete(c.index, rowID)
	for i, id := range c.order {
		if id == rowID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
