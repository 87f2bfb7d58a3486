// Package money implements exact minor-unit monetary arithmetic.
//
// Amounts are integers in the currency's smallest denomination (pence,
// cents). Every operation between two values requires matching currencies
// and every scalar multiplication rounds half away from zero, so totals are
// deterministic regardless of the order adjustments compound in.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrCurrencyMismatch is returned when arithmetic mixes two currencies.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// Money is an immutable amount of a single currency in minor units.
type Money struct {
	amount   int64
	currency string
}

// New constructs a Money value from minor units and an ISO currency code.
func New(amount int64, currency string) Money {
	return Money{amount: amount, currency: currency}
}

// Zero returns the zero value for the given currency.
func Zero(currency string) Money {
	return Money{currency: currency}
}

// Amount returns the value in minor units.
func (m Money) Amount() int64 { return m.amount }

// Currency returns the ISO currency code.
func (m Money) Currency() string { return m.currency }

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.assertSameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount + o.amount, currency: m.currency}, nil
}

// Subtract returns m - o.
func (m Money) Subtract(o Money) (Money, error) {
	if err := m.assertSameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount - o.amount, currency: m.currency}, nil
}

// Multiply scales the amount by an integer factor, typically a quantity.
func (m Money) Multiply(factor int64) Money {
	return Money{amount: m.amount * factor, currency: m.currency}
}

// MultiplyRat scales the amount by num/den rounding half away from zero.
// A negative numerator is permitted and rounds consistently with positive
// multiplication. den must be positive.
func (m Money) MultiplyRat(num, den int64) Money {
	if den <= 0 {
		panic(fmt.Sprintf("money: non-positive denominator %d", den))
	}
	return Money{amount: roundHalfAway(m.amount*num, den), currency: m.currency}
}

// MultiplyBps scales the amount by a percentage expressed in basis points
// (1% == 100 bps).
func (m Money) MultiplyBps(bps int64) Money {
	return m.MultiplyRat(bps, 10_000)
}

// Negate flips the sign of the amount.
func (m Money) Negate() Money {
	return Money{amount: -m.amount, currency: m.currency}
}

// GreaterThan reports whether m exceeds o.
func (m Money) GreaterThan(o Money) (bool, error) {
	if err := m.assertSameCurrency(o); err != nil {
		return false, err
	}
	return m.amount > o.amount, nil
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.amount < 0 }

// Equal reports whether amount and currency both match.
func (m Money) Equal(o Money) bool {
	return m.amount == o.amount && m.currency == o.currency
}

// SameCurrency reports whether o carries the same currency as m.
func (m Money) SameCurrency(o Money) bool {
	return m.currency == o.currency
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.amount, m.currency)
}

func (m Money) assertSameCurrency(o Money) error {
	if m.currency != o.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return nil
}

// PercentToBps converts a percentage with up to two decimal places into
// basis points. 17.5 becomes 1750.
func PercentToBps(percent float64) int64 {
	return int64(math.Round(percent * 100))
}

type moneyJSON struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes the value as {"amount": n, "currency": "GBP"}.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

// UnmarshalJSON decodes the canonical JSON shape.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.amount = v.Amount
	m.currency = v.Currency
	return nil
}

// roundHalfAway divides n by den rounding halves away from zero. den > 0.
func roundHalfAway(n, den int64) int64 {
	q := n / den
	r := n % den
	if r < 0 {
		r = -r
	}
	if 2*r >= den {
		if n < 0 {
			return q - 1
		}
		return q + 1
	}
	return q
}
