package cart

import (
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/cart-engine/internal/money"
)

// AdjustmentType classifies an aggregate-level modifier.
type AdjustmentType string

const (
	// AdjustmentDiscount subtracts from the running total.
	AdjustmentDiscount AdjustmentType = "discount"
	// AdjustmentOther is an additive charge with no special semantics.
	AdjustmentOther AdjustmentType = "other"
	// AdjustmentDelivery is an additive charge applied after discounts by default.
	AdjustmentDelivery AdjustmentType = "delivery"
)

// Default application order per type. Lower applies first.
var defaultOrders = map[AdjustmentType]int{
	AdjustmentDiscount: 1,
	AdjustmentOther:    2,
	AdjustmentDelivery: 3,
}

var validate = validator.New()

// AdjustmentAttributes is the input to NewAdjustment. Exactly one of
// Percentage or Value must be set.
type AdjustmentAttributes struct {
	Name       string       `validate:"required"`
	Type       string       `validate:"required,oneof=discount other delivery"`
	Percentage *float64     `validate:"required_without=Value,excluded_with=Value,omitempty,gte=0,lte=100"`
	Value      *money.Money `validate:"required_without=Percentage"`
	Order      *int
}

// Adjustment is a named, ordered modifier applied to an aggregate total:
// a cart-wide discount, a delivery fee, a service charge. The name is the
// removal key; it is not unique within a collection.
type Adjustment struct {
	name       string
	typ        AdjustmentType
	percentBps int64
	value      money.Money
	percentage bool
	order      *int
}

// NewAdjustment validates the attributes and builds an Adjustment. Failures
// are reported as an *InvalidAdjustmentError carrying field-level messages.
func NewAdjustment(attrs AdjustmentAttributes) (*Adjustment, error) {
	if err := validate.Struct(attrs); err != nil {
		return nil, invalidAdjustment(err)
	}
	if attrs.Value != nil && attrs.Value.IsNegative() {
		return nil, &InvalidAdjustmentError{Fields: map[string]string{
			"value": "must not be negative",
		}}
	}
	adj := &Adjustment{
		name:  attrs.Name,
		typ:   AdjustmentType(attrs.Type),
		order: attrs.Order,
	}
	if attrs.Percentage != nil {
		adj.percentage = true
		adj.percentBps = money.PercentToBps(*attrs.Percentage)
	} else {
		adj.value = *attrs.Value
	}
	return adj, nil
}

// Name returns the removal key.
func (a *Adjustment) Name() string { return a.name }

// Type returns the adjustment type.
func (a *Adjustment) Type() AdjustmentType { return a.typ }

// IsDiscount reports whether the adjustment subtracts from the total.
func (a *Adjustment) IsDiscount() bool { return a.typ == AdjustmentDiscount }

// IsPercentage reports whether the magnitude is a percentage of the base.
func (a *Adjustment) IsPercentage() bool { return a.percentage }

// PercentBps returns the percentage magnitude in basis points. Meaningful
// only when IsPercentage reports true.
func (a *Adjustment) PercentBps() int64 { return a.percentBps }

// Value returns the fixed magnitude. Meaningful only when IsPercentage
// reports false.
func (a *Adjustment) Value() money.Money { return a.value }

// Order returns the effective application order: the explicit order when
// set, otherwise the default for the type.
func (a *Adjustment) Order() int {
	if a.order != nil {
		return *a.order
	}
	if o, ok := defaultOrders[a.typ]; ok {
		return o
	}
	return defaultOrders[AdjustmentOther]
}

// Calculate computes the signed value this adjustment contributes on top of
// base. Non-discount adjustments are additive and returned as-is. A discount
// whose raw magnitude exceeds base contributes zero rather than pushing the
// total negative; otherwise it is negated so it subtracts when added.
func (a *Adjustment) Calculate(base money.Money) (money.Money, error) {
	var value money.Money
	if a.percentage {
		value = base.MultiplyBps(a.percentBps)
	} else {
		if !a.value.SameCurrency(base) {
			return money.Money{}, fmt.Errorf("%w: adjustment %q is %s, cart is %s",
				money.ErrCurrencyMismatch, a.name, a.value.Currency(), base.Currency())
		}
		value = a.value
	}
	if !a.IsDiscount() {
		return value, nil
	}
	exceeds, err := value.GreaterThan(base)
	if err != nil {
		return money.Money{}, err
	}
	if exceeds {
		return money.Zero(base.Currency()), nil
	}
	return value.Negate(), nil
}

// Apply returns base with the adjustment's contribution added.
func (a *Adjustment) Apply(base money.Money) (money.Money, error) {
	value, err := a.Calculate(base)
	if err != nil {
		return money.Money{}, err
	}
	return base.Add(value)
}

func invalidAdjustment(err error) error {
	fields := map[string]string{}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = validationMessage(fe)
		}
	} else {
		fields["_"] = err.Error()
	}
	return &InvalidAdjustmentError{Fields: fields}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "required_without":
		return fmt.Sprintf("is required when %s is absent", strings.ToLower(fe.Param()))
	case "excluded_with":
		return fmt.Sprintf("must not be combined with %s", strings.ToLower(fe.Param()))
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
