package cart

import (
	"fmt"

	"github.com/noah-isme/cart-engine/internal/money"
)

// DiscountKind distinguishes fixed-amount from percentage discounts.
type DiscountKind string

const (
	// DiscountFixed subtracts a fixed minor-unit amount from the unit price.
	DiscountFixed DiscountKind = "fixed"
	// DiscountPercentage subtracts a percentage of the unit price.
	DiscountPercentage DiscountKind = "percentage"
)

// Discount is a single reduction applied to one item's unit price, before
// any aggregate-level adjustments.
type Discount struct {
	kind       DiscountKind
	fixed      money.Money
	percentBps int64
	label      string
}

// NewFixedDiscount builds a fixed-amount discount. The value must not be
// negative.
func NewFixedDiscount(value money.Money, label string) (*Discount, error) {
	if value.IsNegative() {
		return nil, fmt.Errorf("%w: fixed value must not be negative", ErrInvalidDiscount)
	}
	return &Discount{kind: DiscountFixed, fixed: value, label: label}, nil
}

// NewPercentageDiscount builds a percentage discount. percent must be within
// [0, 100].
func NewPercentageDiscount(percent float64, label string) (*Discount, error) {
	if percent < 0 || percent > 100 {
		return nil, fmt.Errorf("%w: percentage %v outside [0,100]", ErrInvalidDiscount, percent)
	}
	return &Discount{kind: DiscountPercentage, percentBps: money.PercentToBps(percent), label: label}, nil
}

// Kind returns the discount kind.
func (d *Discount) Kind() DiscountKind { return d.kind }

// Label returns the display label.
func (d *Discount) Label() string { return d.label }

// Fixed returns the fixed magnitude. Meaningful only for DiscountFixed.
func (d *Discount) Fixed() money.Money { return d.fixed }

// PercentBps returns the percentage magnitude in basis points. Meaningful
// only for DiscountPercentage.
func (d *Discount) PercentBps() int64 { return d.percentBps }

// Calculate returns the per-unit discount value for the given price. A fixed
// discount is clamped so it never exceeds the price itself; percentage
// discounts are bounded at construction.
func (d *Discount) Calculate(price money.Money) (money.Money, error) {
	switch d.kind {
	case DiscountFixed:
		exceeds, err := d.fixed.GreaterThan(price)
		if err != nil {
			return money.Money{}, err
		}
		if exceeds {
			return price, nil
		}
		return d.fixed, nil
	case DiscountPercentage:
		return price.MultiplyBps(d.percentBps), nil
	default:
		return money.Money{}, fmt.Errorf("%w: kind %q", ErrInvalidDiscount, d.kind)
	}
}

// ApplyTo returns the price with the discount subtracted.
func (d *Discount) ApplyTo(price money.Money) (money.Money, error) {
	value, err := d.Calculate(price)
	if err != nil {
		return money.Money{}, err
	}
	return price.Subtract(value)
}
